package avplay

import "time"

// PixelFormat is the presentable pixel layout produced by the pipeline.
type PixelFormat int32

const (
	PixelFormatRGBA PixelFormat = iota
	PixelFormatBGRA
	PixelFormatRGB24
)

// BytesPerPixel returns the packed pixel size of the format.
func (f PixelFormat) BytesPerPixel() int {
	if f == PixelFormatRGB24 {
		return 3
	}
	return 4
}

// String returns the name of the pixel format.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA:
		return "rgba"
	case PixelFormatBGRA:
		return "bgra"
	case PixelFormatRGB24:
		return "rgb24"
	default:
		return "unknown"
	}
}

// SampleFormat is the audio sample encoding produced by the pipeline.
type SampleFormat int32

const (
	// SampleS16 is interleaved signed 16-bit.
	SampleS16 SampleFormat = iota
	// SampleF32 is interleaved 32-bit float.
	SampleF32
)

// BytesPerSample returns the size of one sample for one channel.
func (f SampleFormat) BytesPerSample() int {
	if f == SampleF32 {
		return 4
	}
	return 2
}

// AudioFormat describes the audio output the consumer expects.
type AudioFormat struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

// VideoBuffer is a presentable pixel buffer. Ownership transfers to the
// consumer with each decoded frame and returns to the pipeline via
// Decoder.ReturnFrames, after which the buffer is eligible for reuse.
type VideoBuffer struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Data   []byte
}

// VideoFrame is one decoded video frame: a presentation timestamp plus the
// buffer carrying its pixels.
type VideoFrame struct {
	Timestamp time.Duration
	Buffer    *VideoBuffer
}
