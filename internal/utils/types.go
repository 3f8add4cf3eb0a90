package utils

import (
	"github.com/tanq16/multiget/internal/engine"
)

type Downloader interface {
	Download(job *MultigetJob) error
	BuildJob(job *MultigetJob) error
	ValidateJob(job *MultigetJob) error
}

type MultigetJob struct {
	ID               string
	JobType          string
	URL              string
	OutputDir        string
	OutputPath       string
	Overrides        engine.DownloadConfig
	Options          engine.Options
	ProgressFunc     func(downloaded, total int64)
	Metadata         map[string]any
	HTTPClientConfig HTTPClientConfig
}

// Config returns the engine config for this job.
func (j *MultigetJob) Config() engine.DownloadConfig {
	cfg := j.Overrides
	cfg.Source = j.URL
	return cfg
}

const LogFile = ".multiget.log"
const ToolUserAgent = "multiget/1.0"
const DefaultOutputDir = "output"
