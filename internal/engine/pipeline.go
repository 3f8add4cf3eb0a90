package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/multiget/internal/metrics"
)

// Prepared is everything decided before the first byte is fetched.
type Prepared struct {
	Config   DownloadConfig
	Probe    ProbeResult
	Plan     DownloadPlan
	Segments []Segment
}

// Prepare validates cfg, probes the source and derives the plan and
// segments. No payload bytes are transferred.
func Prepare(ctx context.Context, client RangeClient, cfg DownloadConfig) (Prepared, error) {
	if err := cfg.Validate(); err != nil {
		return Prepared{}, err
	}
	probe := Probe(ctx, client, cfg.Source)
	plan, err := Reconcile(cfg, probe)
	if err != nil {
		if probe.Err != nil {
			log.Debug().Str("op", "engine/pipeline").AnErr("probe", probe.Err).Msg("Planning failed after probe failure")
		}
		return Prepared{}, err
	}
	segments, err := Partition(plan)
	if err != nil {
		return Prepared{}, err
	}
	log.Debug().Str("op", "engine/pipeline").Int64("cutoff", plan.EffectiveCutoff).Int("chunks", len(segments)).
		Int64("chunkSize", plan.ChunkSize).Msg("Plan ready")
	return Prepared{Config: cfg, Probe: probe, Plan: plan, Segments: segments}, nil
}

// Execute fetches the prepared segments and writes them to dest, or to a
// renamed sibling when dest is taken; Result.ArtifactPath holds the path
// used. Nothing is written unless every segment arrived intact.
func Execute(ctx context.Context, client RangeClient, p Prepared, dest string, opts Options, progress chan<- ProgressEvent) (Result, error) {
	start := time.Now()
	metrics.ActiveDownloads.Inc()
	payloads, err := RunAll(ctx, client, p.Config.Source, p.Segments, p.Plan.EffectiveCutoff, opts, progress)
	metrics.ActiveDownloads.Dec()
	if err != nil {
		metrics.Downloads.WithLabelValues(string(StageFetch)).Inc()
		return Result{}, err
	}
	final, written, err := WriteArtifact(dest, payloads, p.Plan.EffectiveCutoff)
	if err != nil {
		metrics.Downloads.WithLabelValues(string(StageWrite)).Inc()
		return Result{}, err
	}
	metrics.Downloads.WithLabelValues("success").Inc()
	return Result{
		ArtifactPath: final,
		BytesWritten: written,
		Plan:         p.Plan,
		Elapsed:      time.Since(start),
	}, nil
}
