package avplay

import "log/slog"

// Config controls a Decoder. The zero value decodes the best video stream to
// RGBA with the default hardware preference order and no audio.
type Config struct {
	// Looping restarts playback from time zero when the input is exhausted
	// instead of transitioning to StateEndOfStream.
	Looping bool

	// PixelFormat is the presentable output format (default RGBA).
	PixelFormat PixelFormat

	// Hardware overrides the decoder candidate ranking; nil means
	// DefaultHardwareOrder. Software is always the final fallback.
	Hardware []HardwareKind

	// DisableHardware skips hardware candidates entirely.
	DisableHardware bool

	// Audio enables audio decoding and names the output format the consumer
	// expects. nil disables the audio path.
	Audio *AudioFormat

	// VideoDisabled selects audio-only operation: no video stream is
	// resolved and no video codec is opened.
	VideoDisabled bool

	// FormatHint optionally names the container format; empty means probe.
	FormatHint string

	// Allocate builds presentable buffers of the requested byte size. The
	// default is a plain make; embedders supply pinned or shared memory
	// here.
	Allocate func(size int) []byte

	// Logger receives pipeline logs; nil means slog.Default().
	Logger *slog.Logger
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Config) hardwareOrder() []HardwareKind {
	if c.DisableHardware {
		return nil
	}
	if c.Hardware != nil {
		return c.Hardware
	}
	return DefaultHardwareOrder
}
