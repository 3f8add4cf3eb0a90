package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RunAll fetches every segment concurrently and returns the payloads indexed
// by segment index. It is all-or-nothing: the first failure cancels the
// remaining fetches and is returned as a fetch-stage error.
func RunAll(ctx context.Context, client RangeClient, source string, segments []Segment, total int64, opts Options, progress chan<- ProgressEvent) ([][]byte, error) {
	logger := log.With().Str("op", "engine/orchestrator").Logger()
	for i, seg := range segments {
		if seg.Index != i {
			return nil, stageErr(StagePlan, fmt.Errorf("%w: segment at position %d has index %d", ErrCoverage, i, seg.Index))
		}
	}
	payloads := make([][]byte, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	if opts.MaxConcurrent > 0 {
		g.SetLimit(opts.MaxConcurrent)
	}
	for _, seg := range segments {
		g.Go(func() error {
			fetchCtx := gctx
			if opts.FetchTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(gctx, opts.FetchTimeout)
				defer cancel()
			}
			payload, err := FetchSegment(fetchCtx, client, source, seg, total, progress)
			if err != nil {
				return err
			}
			payloads[seg.Index] = payload
			return nil
		})
	}
	logger.Debug().Int("segments", len(segments)).Int("limit", opts.MaxConcurrent).Msg("Fetches started")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Download aborted")
		return nil, stageErr(StageFetch, err)
	}
	return payloads, nil
}
