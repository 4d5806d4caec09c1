package avplay

import "time"

// HardwareKind identifies a hardware decode target, in the fixed performance
// preference order used when ranking decoder candidates.
type HardwareKind int32

const (
	HardwareCUDA HardwareKind = iota
	HardwareQSV
	HardwareVAAPI
	HardwareD3D11VA
	HardwareDXVA2
	HardwareVideoToolbox
	HardwareMediaCodec
)

// String returns the FFmpeg-style name of the hardware target.
func (k HardwareKind) String() string {
	switch k {
	case HardwareCUDA:
		return "cuda"
	case HardwareQSV:
		return "qsv"
	case HardwareVAAPI:
		return "vaapi"
	case HardwareD3D11VA:
		return "d3d11va"
	case HardwareDXVA2:
		return "dxva2"
	case HardwareVideoToolbox:
		return "videotoolbox"
	case HardwareMediaCodec:
		return "mediacodec"
	default:
		return "unknown"
	}
}

// DefaultHardwareOrder is the candidate ranking used when the caller does not
// request specific targets: fastest first, software is always appended last
// by the selector.
var DefaultHardwareOrder = []HardwareKind{
	HardwareCUDA,
	HardwareQSV,
	HardwareVAAPI,
	HardwareD3D11VA,
	HardwareDXVA2,
	HardwareVideoToolbox,
	HardwareMediaCodec,
}

// StreamInfo describes a selected stream, including the time-base factor
// needed to convert raw timestamps to wall-clock durations.
type StreamInfo struct {
	Index     int
	CodecName string

	// Video only.
	Width     int
	Height    int
	FrameRate float64

	// Audio only.
	SampleRate int
	Channels   int

	// TimeBase is the duration of one raw timestamp tick.
	TimeBase time.Duration

	// StartTime is the stream's first timestamp; frame times are reported
	// relative to it.
	StartTime time.Duration

	// Duration is the stream duration, or 0 if the container must be asked.
	Duration time.Duration
}

// FrameTime converts a raw stream timestamp to a wall-clock position.
func (s *StreamInfo) FrameTime(pts int64) time.Duration {
	return time.Duration(pts)*s.TimeBase - s.StartTime
}

// Packet is one demuxed chunk of compressed data. Packets are owned by the
// decode loop; Release must be called exactly once unless ownership was
// passed to SendPacket.
type Packet interface {
	StreamIndex() int
	Release()
}

// Frame is a decoded, possibly hardware-resident frame. PTS reports the
// best-effort timestamp when available, otherwise the raw presentation
// timestamp; ok is false when the frame carries no usable timestamp.
type Frame interface {
	PTS() (pts int64, ok bool)
	Release()
}

// CodecSession owns one decode session (codec context plus optional hardware
// device). At most one session is active per stream type; Recreate fully
// releases the previous native state before building its replacement.
type CodecSession interface {
	// SendPacket submits a packet. A nil packet starts draining buffered
	// frames (end-of-stream flush). ErrTryAgain means the packet was not
	// consumed and must be resubmitted after pending frames are received.
	SendPacket(pkt Packet) error

	// ReceiveFrame returns the next decoded frame, ErrTryAgain when more
	// input is needed, or ErrEndOfStream once a drain completes.
	ReceiveFrame() (Frame, error)

	// Flush discards buffered decoder state (after a seek or loop restart).
	Flush()

	// Recreate rebuilds the decode session, optionally without hardware
	// acceleration.
	Recreate(disableHardware bool) error

	HardwareAccelerated() bool
	Close() error
}

// VideoConverter turns raw decoded frames into presentable pixels: hardware
// frames are first transferred to host memory through a pooled buffer, then
// converted to the buffer's pixel format.
type VideoConverter interface {
	Convert(src Frame, dst *VideoBuffer) error
}

// AudioConverter resamples decoded audio into the configured output format.
// Passing a nil frame flushes the resampler's buffered state; the returned
// slice is valid only until the next call.
type AudioConverter interface {
	Resample(src Frame) ([]byte, error)
}

// Session is an opened, probed input with its selected streams.
type Session interface {
	// VideoStream and AudioStream return the selected streams, or nil when
	// absent or not requested.
	VideoStream() *StreamInfo
	AudioStream() *StreamInfo

	// Duration is derived from the stream duration when present, otherwise
	// from the container.
	Duration() time.Duration

	// ReadPacket returns the next packet or ErrEndOfStream.
	ReadPacket() (Packet, error)

	// Seek repositions the demuxer near target (keyframe before it).
	Seek(target time.Duration) error

	// OpenVideoCodec ranks hardware candidates in prefs order (software is
	// always the final fallback) and opens the first that succeeds.
	OpenVideoCodec(prefs []HardwareKind) (CodecSession, error)

	// OpenAudioCodec opens a software audio decode session.
	OpenAudioCodec() (CodecSession, error)

	// VideoConverter returns a converter producing the target pixel format.
	VideoConverter(target PixelFormat) (VideoConverter, error)

	// AudioConverter returns a resampler producing the target format.
	AudioConverter(target AudioFormat) (AudioConverter, error)

	// DisableHardware turns off hardware decoding for future candidate
	// selections: globally for every session when global is true, otherwise
	// for this session only.
	DisableHardware(global bool)

	Close() error
}

// SessionConfig carries open/probe options to the backend.
type SessionConfig struct {
	// FormatHint optionally names the container format ("mp4", "mkv", ...);
	// empty means probe.
	FormatHint string

	// WantVideo/WantAudio select which best streams to resolve.
	WantVideo bool
	WantAudio bool

	// IOBufferSize overrides the demuxer's read buffer size (0 = default).
	IOBufferSize int
}

// Backend opens media sessions. The production implementation lives in the
// ffmpeg subpackage.
type Backend interface {
	Open(src *SourceAdapter, cfg SessionConfig) (Session, error)
}
