package engine

import "fmt"

// Partition splits the plan's cutoff into ordered, contiguous segments.
// Segments starting at or beyond the cutoff are dropped and the last one is
// clipped to cutoff-1.
func Partition(plan DownloadPlan) ([]Segment, error) {
	if plan.EffectiveCutoff <= 0 {
		return nil, stageErr(StagePlan, ErrZeroEffectiveCutoff)
	}
	if plan.ChunkCount <= 0 || plan.ChunkSize <= 0 {
		return nil, stageErr(StagePlan, fmt.Errorf("invalid plan: %d chunks of %d bytes", plan.ChunkCount, plan.ChunkSize))
	}
	// Only chunks that start below the cutoff are materialized, so the
	// capacity follows the cutoff rather than the requested count.
	segments := make([]Segment, 0, min(int64(plan.ChunkCount), ceilDiv(plan.EffectiveCutoff, plan.ChunkSize)))
	for i := range plan.ChunkCount {
		start := int64(i) * plan.ChunkSize
		if start >= plan.EffectiveCutoff {
			break
		}
		end := min(start+plan.ChunkSize-1, plan.EffectiveCutoff-1)
		segments = append(segments, Segment{Index: i, Start: start, End: end})
	}
	if err := VerifyCoverage(segments, plan.EffectiveCutoff); err != nil {
		return nil, stageErr(StagePlan, err)
	}
	return segments, nil
}

// VerifyCoverage checks that segments are indexed in order and cover exactly
// [0, cutoff) with no gap or overlap.
func VerifyCoverage(segments []Segment, cutoff int64) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrCoverage)
	}
	var next int64
	for i, seg := range segments {
		if seg.Index != i {
			return fmt.Errorf("%w: segment at position %d has index %d", ErrCoverage, i, seg.Index)
		}
		if seg.Start != next {
			return fmt.Errorf("%w: segment %d starts at %d, want %d", ErrCoverage, i, seg.Start, next)
		}
		if seg.End < seg.Start {
			return fmt.Errorf("%w: segment %d is empty", ErrCoverage, i)
		}
		next = seg.End + 1
	}
	if next != cutoff {
		return fmt.Errorf("%w: covered %d bytes, want %d", ErrCoverage, next, cutoff)
	}
	return nil
}
