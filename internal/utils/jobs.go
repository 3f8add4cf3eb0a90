package utils

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/multiget/internal/engine"
)

// PrepareJob probes the source, fixes the plan and resolves the output path.
// The prepared plan is stored in job.Metadata["prepared"].
func PrepareJob(ctx context.Context, job *MultigetJob, client engine.RangeClient) error {
	prepared, err := engine.Prepare(ctx, client, job.Config())
	if err != nil {
		return err
	}
	if job.OutputPath == "" {
		outputPath, err := ResolveOutputPath(job.OutputDir, job.Overrides.OutputName, prepared.Probe.FileName, job.URL)
		if err != nil {
			return err
		}
		job.OutputPath = outputPath
	} else if existing, err := os.Stat(job.OutputPath); err == nil {
		if existing.Size() == prepared.Plan.EffectiveCutoff {
			return ErrFileExists
		}
		job.OutputPath = engine.RenewOutputPath(job.OutputPath)
	}
	job.Metadata["prepared"] = prepared
	log.Debug().Str("op", "utils/jobs").Str("output", job.OutputPath).Int64("cutoff", prepared.Plan.EffectiveCutoff).
		Int("segments", len(prepared.Segments)).Msg("Job built")
	return nil
}

// ExecuteJob downloads a prepared job. job.OutputPath is updated when the
// artifact had to move to a renamed sibling.
func ExecuteJob(ctx context.Context, job *MultigetJob, client engine.RangeClient) error {
	prepared, ok := job.Metadata["prepared"].(engine.Prepared)
	if !ok {
		return fmt.Errorf("job %s was not built", job.ID)
	}
	progressCh, wait := TrackProgress(job, prepared.Plan.EffectiveCutoff)
	result, err := engine.Execute(ctx, client, prepared, job.OutputPath, job.Options, progressCh)
	wait()
	if err != nil {
		return err
	}
	job.OutputPath = result.ArtifactPath
	job.Metadata["bytesWritten"] = result.BytesWritten
	log.Info().Str("op", "utils/jobs").Str("output", result.ArtifactPath).Int64("bytes", result.BytesWritten).
		Dur("elapsed", result.Elapsed).Msg("Download complete")
	return nil
}
