package engine

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Reconcile combines the config and probe outcome into a DownloadPlan.
// It is pure: the same inputs always give the same plan.
func Reconcile(cfg DownloadConfig, probe ProbeResult) (DownloadPlan, error) {
	if err := cfg.validateSizes(); err != nil {
		return DownloadPlan{}, err
	}
	if !probe.Known && cfg.LimitMiB == 0 {
		return DownloadPlan{}, stageErr(StageConfig, ErrLimitRequired)
	}

	requested := int64(DefaultLimit)
	if cfg.LimitMiB > 0 {
		requested = cfg.LimitMiB * MiB
	}
	plan := DownloadPlan{
		TotalRemoteSize: -1,
		RequestedLimit:  requested,
		EffectiveCutoff: requested,
	}
	if probe.Known {
		plan.SizeKnown = true
		plan.TotalRemoteSize = probe.Size
		plan.EffectiveCutoff = min(requested, probe.Size)
	}
	if plan.EffectiveCutoff <= 0 {
		return DownloadPlan{}, stageErr(StagePlan, fmt.Errorf("%w: %d bytes", ErrZeroEffectiveCutoff, plan.EffectiveCutoff))
	}

	plan.ChunkCount = DefaultChunkCount
	if cfg.ChunkCount > 0 {
		plan.ChunkCount = cfg.ChunkCount
	}
	plan.ChunkSize = DefaultChunkSize
	if cfg.ChunkSizeMiB > 0 {
		plan.ChunkSize = cfg.ChunkSizeMiB * MiB
	}

	// count*size must close over the cutoff exactly (up to the last chunk's
	// rounding), so the size becomes ceil(cutoff/count) otherwise.
	count := int64(plan.ChunkCount)
	fitted := ceilDiv(plan.EffectiveCutoff, count)
	exact := plan.EffectiveCutoff%count == 0 && plan.ChunkSize == plan.EffectiveCutoff/count
	if !exact && plan.ChunkSize != fitted {
		log.Debug().Str("op", "engine/plan").Int64("from", plan.ChunkSize).Int64("to", fitted).
			Int64("cutoff", plan.EffectiveCutoff).Msg("Resizing chunk to fit cutoff")
		plan.ChunkSize = fitted
	}
	return plan, nil
}

// ceilDiv expects a > 0 and b > 0; it does not overflow for large b.
func ceilDiv(a, b int64) int64 {
	return (a-1)/b + 1
}
