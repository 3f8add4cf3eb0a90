package engine

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
	"time"
)

const MiB = 1024 * 1024

// maxMiB is the largest MiB count whose byte value fits in an int64.
const maxMiB = math.MaxInt64 / MiB

const (
	DefaultChunkCount = 4
	DefaultChunkSize  = 1 * MiB
	DefaultLimit      = 4 * MiB
	readBufferSize    = 32 * 1024
	TempDirName       = ".multiget-temp"
)

// DownloadConfig is the validated user input for one download. Zero values
// mean "not overridden".
type DownloadConfig struct {
	Source       string
	OutputName   string
	ChunkCount   int
	ChunkSizeMiB int64
	LimitMiB     int64
}

func (c DownloadConfig) Validate() error {
	if c.Source == "" {
		return stageErr(StageConfig, ErrMissingSource)
	}
	parsed, err := url.Parse(c.Source)
	if err != nil {
		return stageErr(StageConfig, fmt.Errorf("invalid source address: %w", err))
	}
	switch parsed.Scheme {
	case "http", "https", "s3":
	default:
		return stageErr(StageConfig, fmt.Errorf("unsupported scheme %q", parsed.Scheme))
	}
	if c.ChunkCount < 0 {
		return stageErr(StageConfig, fmt.Errorf("%w: chunk count %d", ErrInvalidOverride, c.ChunkCount))
	}
	return c.validateSizes()
}

func (c DownloadConfig) validateSizes() error {
	if c.ChunkSizeMiB < 0 || c.ChunkSizeMiB > maxMiB {
		return stageErr(StageConfig, fmt.Errorf("%w: chunk size %d MiB", ErrInvalidOverride, c.ChunkSizeMiB))
	}
	if c.LimitMiB < 0 || c.LimitMiB > maxMiB {
		return stageErr(StageConfig, fmt.Errorf("%w: download limit %d MiB", ErrInvalidOverride, c.LimitMiB))
	}
	return nil
}

// ResourceInfo is what a metadata request reports about the remote resource.
// Size is -1 when the endpoint does not report it.
type ResourceInfo struct {
	Size          int64
	FileName      string
	AcceptsRanges bool
}

// RangeResponse is the raw answer to a ranged request. ContentLength is -1
// when not declared. The caller owns Body.
type RangeResponse struct {
	StatusCode    int
	ContentLength int64
	// ContentRange is the raw "bytes start-end/size" value, empty if absent.
	ContentRange string
	Body         io.ReadCloser
}

// RangeClient is the transport the engine depends on. start and end are
// inclusive, as in the HTTP Range header.
type RangeClient interface {
	Head(ctx context.Context, source string) (ResourceInfo, error)
	GetRange(ctx context.Context, source string, start, end int64) (*RangeResponse, error)
}

// ProgressEvent carries a bytes-received delta and the total target.
type ProgressEvent struct {
	Delta int64
	Total int64
}

// DownloadPlan is computed once per download and never modified.
type DownloadPlan struct {
	TotalRemoteSize int64
	SizeKnown       bool
	RequestedLimit  int64
	EffectiveCutoff int64
	ChunkCount      int
	ChunkSize       int64
}

// Segment is one inclusive byte range of the source.
type Segment struct {
	Index int
	Start int64
	End   int64
}

func (s Segment) Len() int64 {
	return s.End - s.Start + 1
}

func (s Segment) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", s.Start, s.End)
}

// Options tunes execution without affecting the plan.
type Options struct {
	// MaxConcurrent caps parallel fetches; 0 fetches every segment at once.
	MaxConcurrent int
	// FetchTimeout bounds a single segment fetch; 0 disables it.
	FetchTimeout time.Duration
}

type Result struct {
	ArtifactPath string
	BytesWritten int64
	Plan         DownloadPlan
	Elapsed      time.Duration
}
