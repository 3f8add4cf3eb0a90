package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/multiget/internal/metrics"
)

// FetchSegment downloads exactly the bytes of seg. A progress event is sent
// for every read so renderers can show live throughput. progress may be nil.
func FetchSegment(ctx context.Context, client RangeClient, source string, seg Segment, total int64, progress chan<- ProgressEvent) ([]byte, error) {
	logger := log.With().Str("op", "engine/fetch").Int("segment", seg.Index).Logger()
	start := time.Now()
	payload, err := fetchSegment(ctx, client, source, seg, total, progress)
	metrics.SegmentLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Segments.WithLabelValues("error").Inc()
		logger.Debug().Err(err).Msg("Segment fetch failed")
		return nil, &FetchError{Segment: seg, Err: err}
	}
	metrics.Segments.WithLabelValues("ok").Inc()
	logger.Debug().Int64("bytes", int64(len(payload))).Dur("took", time.Since(start)).Msg("Segment fetched")
	return payload, nil
}

func fetchSegment(ctx context.Context, client RangeClient, source string, seg Segment, total int64, progress chan<- ProgressEvent) ([]byte, error) {
	resp, err := client.GetRange(ctx, source, seg.Start, seg.End)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	expected := seg.Len()
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		if err := checkContentRange(resp.ContentRange, seg); err != nil {
			return nil, err
		}
	case resp.StatusCode == http.StatusOK && seg.Start == 0 && resp.ContentLength == expected:
		// Full-body answer that happens to be exactly this range.
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if resp.ContentLength >= 0 && resp.ContentLength != expected {
		return nil, fmt.Errorf("%w: declared %d bytes, want %d", ErrLengthMismatch, resp.ContentLength, expected)
	}

	payload := make([]byte, 0, expected)
	buffer := make([]byte, readBufferSize)
	// One extra byte is allowed through so an overlong body is detected.
	body := io.LimitReader(resp.Body, expected+1)
	for {
		n, readErr := body.Read(buffer)
		if n > 0 {
			payload = append(payload, buffer[:n]...)
			metrics.BytesReceived.Add(float64(n))
			if err := emit(ctx, progress, ProgressEvent{Delta: int64(n), Total: total}); err != nil {
				return nil, err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading body: %w", readErr)
		}
	}
	if int64(len(payload)) != expected {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(payload), expected)
	}
	return payload, nil
}

// checkContentRange accepts an absent header; a present one must name
// exactly the requested bytes.
func checkContentRange(header string, seg Segment) error {
	if header == "" {
		return nil
	}
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return fmt.Errorf("%w: malformed Content-Range %q", ErrRangeMismatch, header)
	}
	span, _, ok := strings.Cut(spec, "/")
	if !ok {
		return fmt.Errorf("%w: malformed Content-Range %q", ErrRangeMismatch, header)
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return fmt.Errorf("%w: malformed Content-Range %q", ErrRangeMismatch, header)
	}
	start, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed Content-Range %q", ErrRangeMismatch, header)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(last), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed Content-Range %q", ErrRangeMismatch, header)
	}
	if start != seg.Start || end != seg.End {
		return fmt.Errorf("%w: got %d-%d, want %d-%d", ErrRangeMismatch, start, end, seg.Start, seg.End)
	}
	return nil
}

func emit(ctx context.Context, progress chan<- ProgressEvent, ev ProgressEvent) error {
	if progress == nil {
		return nil
	}
	select {
	case progress <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
