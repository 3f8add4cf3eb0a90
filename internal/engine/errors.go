package engine

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageConfig Stage = "config"
	StageProbe  Stage = "probe"
	StagePlan   Stage = "plan"
	StageFetch  Stage = "fetch"
	StageWrite  Stage = "write"
)

var (
	ErrMissingSource       = errors.New("source address is required")
	ErrInvalidOverride     = errors.New("overrides must be positive")
	ErrLimitRequired       = errors.New("remote size unknown and no download limit given")
	ErrZeroEffectiveCutoff = errors.New("effective cutoff is not positive")
	ErrCoverage            = errors.New("segments do not cover the effective cutoff")
	ErrUnexpectedStatus    = errors.New("unexpected status code")
	ErrLengthMismatch      = errors.New("payload length does not match range")
	ErrRangeMismatch       = errors.New("served range does not match request")
)

// Error reports which pipeline stage failed and why.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &Error{Stage: stage, Err: err}
}

// ConfigError marks err as a rejected user input.
func ConfigError(err error) error {
	return stageErr(StageConfig, err)
}

// StageOf returns the stage an error was raised in, or "" if it did not come
// from the engine.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// FetchError is a failed ranged request for one segment.
type FetchError struct {
	Segment Segment
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("segment %d (%s): %v", e.Segment.Index, e.Segment.RangeHeader(), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
