package xr

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/xr/internal/gpu"
)

var (
	// ErrNotReady is returned by Tick while the application is paused or
	// has no surface. No frame index is consumed.
	ErrNotReady = errors.New("xr: renderer not ready")

	// ErrClosed is returned by Tick after Close.
	ErrClosed = errors.New("xr: renderer closed")

	// ErrInvalidSession is returned by New for a zero session handle.
	ErrInvalidSession = errors.New("xr: invalid session")
)

// Fatal pipeline errors, re-exported for errors.Is checks.
var (
	ErrNoSuitableAdapter = gpu.ErrNoSuitableAdapter
	ErrSwapChainLength   = gpu.ErrSwapChainLength
	ErrFormatMismatch    = gpu.ErrFormatMismatch
	ErrDeviceLost        = gpu.ErrDeviceLost
	ErrLayoutMismatch    = gpu.ErrLayoutMismatch
)

// Stage names the step of a tick that failed.
type Stage uint8

const (
	StageReclaim Stage = iota
	StageRecord
	StageSubmit
	StageCompose
)

func (s Stage) String() string {
	switch s {
	case StageReclaim:
		return "reclaim"
	case StageRecord:
		return "record"
	case StageSubmit:
		return "submit"
	case StageCompose:
		return "compose"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// FrameError reports a failure while producing one eye of a frame.
type FrameError struct {
	FrameIndex uint64
	Eye        Eye
	Stage      Stage
	Err        error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("xr: frame %d, %s eye, %s: %v", e.FrameIndex, e.Eye, e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Fatal reports whether the frame loop must stop. Only a compositor
// rejection at the compose stage is recoverable.
func (e *FrameError) Fatal() bool { return e.Stage != StageCompose }

// IsFatal reports whether err must end the frame loop.
// Gating, cancellation and dropped frames are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotReady) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Fatal()
	}
	return true
}
