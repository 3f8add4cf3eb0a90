package engine

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ProbeResult is the outcome of a size probe. A failed probe is not fatal;
// it only leaves the size unknown.
type ProbeResult struct {
	Size     int64
	Known    bool
	FileName string
	Err      error
}

// Probe issues one metadata request for source. It never retries.
func Probe(ctx context.Context, client RangeClient, source string) ProbeResult {
	info, err := client.Head(ctx, source)
	if err != nil {
		log.Warn().Str("op", "engine/probe").Err(err).Str("source", source).Msg("Size probe failed, size unknown")
		return ProbeResult{Size: -1, Err: stageErr(StageProbe, err)}
	}
	res := ProbeResult{Size: info.Size, Known: info.Size >= 0, FileName: info.FileName}
	if !res.Known {
		res.Size = -1
	}
	if !info.AcceptsRanges {
		log.Debug().Str("op", "engine/probe").Str("source", source).Msg("Server did not advertise byte ranges")
	}
	log.Debug().Str("op", "engine/probe").Int64("size", res.Size).Bool("known", res.Known).Msg("Probe complete")
	return res
}
