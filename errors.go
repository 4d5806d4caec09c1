package avplay

import (
	"errors"
	"fmt"
)

// Sentinel errors shared between the pipeline core and backends.
var (
	// ErrTryAgain is returned by a codec session when it needs more input
	// before it can produce a frame, or cannot accept input before pending
	// frames are drained. It is recovered internally and never surfaced.
	ErrTryAgain = errors.New("avplay: try again")

	// ErrEndOfStream is returned when the demuxer or a draining codec has no
	// more data.
	ErrEndOfStream = errors.New("avplay: end of stream")

	// ErrNotSeekable is returned synchronously by Seek when the source does
	// not support seeking. This is a usage error, never deferred to the loop.
	ErrNotSeekable = errors.New("avplay: source is not seekable")

	// ErrDecoderRunning is returned by operations that require exclusive
	// access to decode state while the worker goroutine is active.
	ErrDecoderRunning = errors.New("avplay: decode loop is running")

	// ErrClosed is returned by operations on a closed decoder.
	ErrClosed = errors.New("avplay: decoder is closed")

	// ErrCommandQueueFull is returned by Seek when the command mailbox is
	// saturated and the decode loop is not draining it (stopped or faulted).
	ErrCommandQueueFull = errors.New("avplay: command queue is full")

	// ErrNoStream is returned by setup when no usable stream of the required
	// kind exists in the container.
	ErrNoStream = errors.New("avplay: no usable stream found")
)

// SetupError is a fatal failure during open/probe/stream selection. The
// decoder transitions to StateFaulted; recovery requires an external restart
// which reruns setup.
type SetupError struct {
	Stage string // "open", "probe", "stream", "codec", "convert"
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("avplay: setup failed during %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// CodecOpenError reports a single decoder candidate that failed to open. The
// selector recovers by trying the next candidate; exhausting all candidates
// is fatal.
type CodecOpenError struct {
	Candidate string // decoder name, optionally with hardware target
	Hardware  bool
	Err       error
}

func (e *CodecOpenError) Error() string {
	return fmt.Sprintf("avplay: opening decoder %q failed: %v", e.Candidate, e.Err)
}

func (e *CodecOpenError) Unwrap() error { return e.Err }

// HardwareError reports a failure attributable to an active hardware decode
// context. An out-of-memory-class failure disables hardware decoding
// globally; any other cause disables acceleration for the current stream
// only. Both trigger an asynchronous codec rebuild and never fault the
// pipeline.
type HardwareError struct {
	OutOfMemory bool
	Err         error
}

func (e *HardwareError) Error() string {
	if e.OutOfMemory {
		return fmt.Sprintf("avplay: hardware decoder out of memory: %v", e.Err)
	}
	return fmt.Sprintf("avplay: hardware decoder failed: %v", e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }
