package scheduler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	multigethttp "github.com/tanq16/multiget/internal/downloaders/http"
	"github.com/tanq16/multiget/internal/downloaders/s3"
	"github.com/tanq16/multiget/internal/engine"
	"github.com/tanq16/multiget/internal/metrics"
	"github.com/tanq16/multiget/internal/output"
	"github.com/tanq16/multiget/internal/utils"
)

// downloaderRegistry maps job types to their respective downloader implementations
var downloaderRegistry = map[string]utils.Downloader{
	"http": &multigethttp.HTTPDownloader{},
	"s3":   &s3.S3Downloader{},
}

var newManager = output.NewManager

// Run executes every job on numWorkers workers and returns the combined
// error of all failed jobs.
func Run(jobs []utils.MultigetJob, numWorkers int) error {
	outputMgr := newManager()
	outputMgr.StartDisplay()
	defer outputMgr.StopDisplay()

	jobCh := make(chan *utils.MultigetJob, len(jobs))
	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = uuid.NewString()
		}
		if jobs[i].Metadata == nil {
			jobs[i].Metadata = make(map[string]any)
		}
		jobCh <- &jobs[i]
	}
	close(jobCh)

	var mu sync.Mutex
	var result *multierror.Error
	var wg sync.WaitGroup
	for range max(1, min(numWorkers, len(jobs))) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if err := processJob(job, outputMgr); err != nil {
					mu.Lock()
					result = multierror.Append(result, fmt.Errorf("%s: %w", job.URL, err))
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}

func processJob(job *utils.MultigetJob, outputMgr *output.Manager) error {
	funcID := outputMgr.Register(job.URL)
	logger := log.With().Str("op", "scheduler").Str("job", job.ID).Logger()

	downloader, exists := downloaderRegistry[job.JobType]
	if !exists {
		err := fmt.Errorf("unknown job type: %s", job.JobType)
		outputMgr.SetMessage(funcID, fmt.Sprintf("Unknown job type %s", job.JobType))
		outputMgr.ReportError(funcID, err)
		return err
	}

	outputMgr.SetStatus(funcID, output.StatusActive)
	outputMgr.SetMessage(funcID, fmt.Sprintf("Validating %s job", job.JobType))
	if err := downloader.ValidateJob(job); err != nil {
		outputMgr.SetMessage(funcID, fmt.Sprintf("Validation failed for %s", job.URL))
		outputMgr.ReportError(funcID, err)
		logger.Error().Err(err).Msg("Validation failed")
		return err
	}

	outputMgr.SetMessage(funcID, fmt.Sprintf("Planning %s", job.URL))
	if err := downloader.BuildJob(job); err != nil {
		outputMgr.SetMessage(funcID, fmt.Sprintf("Planning failed for %s", job.URL))
		outputMgr.ReportError(funcID, err)
		metrics.Downloads.WithLabelValues(buildFailureLabel(err)).Inc()
		logger.Error().Err(err).Msg("Build failed")
		return err
	}
	outputMgr.SetLabel(funcID, job.OutputPath)

	job.ProgressFunc = func(downloaded, total int64) {
		outputMgr.UpdateProgress(funcID, downloaded, total)
	}
	outputMgr.SetMessage(funcID, fmt.Sprintf("Downloading %s", job.OutputPath))
	if err := downloader.Download(job); err != nil {
		outputMgr.SetMessage(funcID, fmt.Sprintf("Download failed for %s", job.OutputPath))
		outputMgr.ReportError(funcID, err)
		logger.Error().Err(err).Msg("Download failed")
		return err
	}

	outputMgr.Complete(funcID, completionMessage(job))
	logger.Info().Str("output", job.OutputPath).Msg("Job completed")
	return nil
}

// completionMessage reports where the artifact landed, its size and the
// average rate over the whole transfer.
func completionMessage(job *utils.MultigetJob) string {
	size, _ := job.Metadata["bytesWritten"].(int64)
	seconds, _ := job.Metadata["totalTime"].(float64)
	return fmt.Sprintf("Saved %s (%s at %s)", job.OutputPath, utils.FormatBytes(uint64(size)), output.FormatSpeed(size, seconds))
}

// buildFailureLabel names the stage a job failed in before any fetch.
func buildFailureLabel(err error) string {
	if stage := engine.StageOf(err); stage != "" {
		return string(stage)
	}
	return string(engine.StagePlan)
}

// Plan validates and builds a single job without downloading it.
func Plan(job *utils.MultigetJob) (engine.Prepared, error) {
	downloader, exists := downloaderRegistry[job.JobType]
	if !exists {
		return engine.Prepared{}, fmt.Errorf("unknown job type: %s", job.JobType)
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	if err := downloader.ValidateJob(job); err != nil {
		return engine.Prepared{}, err
	}
	if err := downloader.BuildJob(job); err != nil {
		return engine.Prepared{}, err
	}
	prepared, _ := job.Metadata["prepared"].(engine.Prepared)
	return prepared, nil
}
