package multigethttp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tanq16/multiget/internal/engine"
	"github.com/tanq16/multiget/internal/utils"
)

type HTTPDownloader struct{}

func (d *HTTPDownloader) ValidateJob(job *utils.MultigetJob) error {
	parsedURL, err := url.Parse(job.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL has no host: %s", job.URL)
	}
	return job.Config().Validate()
}

// BuildJob probes the source, fixes the plan and resolves the output path.
// The prepared plan is stored in job.Metadata["prepared"].
func (d *HTTPDownloader) BuildJob(job *utils.MultigetJob) error {
	return utils.PrepareJob(context.Background(), job, newClient(job))
}

func (d *HTTPDownloader) Download(job *utils.MultigetJob) error {
	return utils.ExecuteJob(context.Background(), job, newClient(job))
}

func newClient(job *utils.MultigetJob) engine.RangeClient {
	cfg := job.HTTPClientConfig
	cfg.HighThreadMode = job.Overrides.ChunkCount > 5
	return newRangeClient(utils.NewMultigetHTTPClient(cfg))
}
