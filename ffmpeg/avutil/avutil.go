//go:build !ios && !android && (amd64 || arm64)

// Package avutil provides bindings to FFmpeg's libavutil: frame management,
// error translation, dictionaries, rational math, and hardware device
// contexts.
package avutil

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/avplay/internal/bindings"
)

// Frame is an opaque FFmpeg AVFrame pointer.
type Frame = unsafe.Pointer

// Dictionary is an opaque FFmpeg AVDictionary pointer.
type Dictionary = unsafe.Pointer

var (
	avFrameAlloc func() unsafe.Pointer
	avFrameFree  func(frame *unsafe.Pointer)
	avFrameUnref func(frame unsafe.Pointer)

	avMalloc func(size uintptr) unsafe.Pointer
	avFree   func(ptr unsafe.Pointer)

	avDictSet  func(pm *unsafe.Pointer, key, value string, flags int32) int32
	avDictFree func(pm *unsafe.Pointer)

	avStrerror func(errnum int32, errbuf unsafe.Pointer, errbufSize uintptr) int32

	avLogSetLevel func(level int32)

	bindingsRegistered bool
)

func init() {
	registerBindings()
}

func registerBindings() {
	if bindingsRegistered {
		return
	}
	if err := bindings.Load(); err != nil {
		return // Calls fail later with ErrNotLoaded.
	}
	lib := bindings.LibAVUtil()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&avFrameAlloc, lib, "av_frame_alloc")
	purego.RegisterLibFunc(&avFrameFree, lib, "av_frame_free")
	purego.RegisterLibFunc(&avFrameUnref, lib, "av_frame_unref")

	purego.RegisterLibFunc(&avMalloc, lib, "av_malloc")
	purego.RegisterLibFunc(&avFree, lib, "av_free")

	purego.RegisterLibFunc(&avDictSet, lib, "av_dict_set")
	purego.RegisterLibFunc(&avDictFree, lib, "av_dict_free")

	purego.RegisterLibFunc(&avStrerror, lib, "av_strerror")

	purego.RegisterLibFunc(&avLogSetLevel, lib, "av_log_set_level")

	purego.RegisterLibFunc(&avPixFmtDescGet, lib, "av_pix_fmt_desc_get")

	registerHWBindings(lib)
	registerChannelLayoutBindings(lib)

	bindingsRegistered = true
}

// FrameAlloc allocates an AVFrame. Free with FrameFree.
func FrameAlloc() Frame {
	if avFrameAlloc == nil {
		return nil
	}
	return avFrameAlloc()
}

// FrameFree frees an AVFrame and nils the pointer. Safe with nil.
func FrameFree(frame *Frame) {
	if frame == nil || *frame == nil || avFrameFree == nil {
		return
	}
	avFrameFree(frame)
	*frame = nil
}

// FrameUnref drops all buffer references held by frame.
func FrameUnref(frame Frame) {
	if frame == nil || avFrameUnref == nil {
		return
	}
	avFrameUnref(frame)
}

// NoPTSValue marks a missing timestamp (AV_NOPTS_VALUE).
const NoPTSValue int64 = -9223372036854775808

// AVFrame field offsets for FFmpeg 6.x (avutil 58.x), verified with
// offsetof() on 58.29.100. Struct fields are not reachable without cgo, so
// accessors read through these.
const (
	offsetData       = 0   // uint8_t *data[8]
	offsetLinesize   = 64  // int linesize[8]
	offsetWidth      = 104 // int width
	offsetHeight     = 108 // int height
	offsetNbSamples  = 112 // int nb_samples
	offsetFormat     = 116 // int format
	offsetKeyFrame   = 120 // int key_frame
	offsetPts        = 136 // int64_t pts
	offsetPktDts     = 144 // int64_t pkt_dts
	offsetSampleRate = 216 // int sample_rate
)

// GetFrameWidth returns the frame width in pixels.
func GetFrameWidth(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetWidth))
}

// GetFrameHeight returns the frame height in pixels.
func GetFrameHeight(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetHeight))
}

// GetFrameFormat returns the pixel format (video) or sample format (audio).
func GetFrameFormat(frame Frame) int32 {
	if frame == nil {
		return -1
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetFormat))
}

// GetFramePTS returns the presentation timestamp, or NoPTSValue.
func GetFramePTS(frame Frame) int64 {
	if frame == nil {
		return NoPTSValue
	}
	return *(*int64)(unsafe.Pointer(uintptr(frame) + offsetPts))
}

// SetFramePTS sets the presentation timestamp.
func SetFramePTS(frame Frame, pts int64) {
	if frame == nil {
		return
	}
	*(*int64)(unsafe.Pointer(uintptr(frame) + offsetPts)) = pts
}

// GetFramePktDTS returns the decode timestamp of the packet that produced
// this frame, or NoPTSValue. Used as the presentation time when pts is unset.
func GetFramePktDTS(frame Frame) int64 {
	if frame == nil {
		return NoPTSValue
	}
	return *(*int64)(unsafe.Pointer(uintptr(frame) + offsetPktDts))
}

// GetFrameNbSamples returns the number of audio samples per channel.
func GetFrameNbSamples(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetNbSamples))
}

// GetFrameSampleRate returns the audio sample rate.
func GetFrameSampleRate(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetSampleRate))
}

// GetFrameKeyFrame returns 1 for key frames.
func GetFrameKeyFrame(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetKeyFrame))
}

// GetFrameData returns the data pointers for all planes.
func GetFrameData(frame Frame) [8]unsafe.Pointer {
	if frame == nil {
		return [8]unsafe.Pointer{}
	}
	return *(*[8]unsafe.Pointer)(unsafe.Pointer(uintptr(frame) + offsetData))
}

// GetFrameLinesize returns the linesizes for all planes.
func GetFrameLinesize(frame Frame) [8]int32 {
	if frame == nil {
		return [8]int32{}
	}
	return *(*[8]int32)(unsafe.Pointer(uintptr(frame) + offsetLinesize))
}

// Malloc allocates memory with FFmpeg's allocator.
func Malloc(size uintptr) unsafe.Pointer {
	if avMalloc == nil {
		return nil
	}
	return avMalloc(size)
}

// Free frees memory allocated by Malloc.
func Free(ptr unsafe.Pointer) {
	if ptr == nil || avFree == nil {
		return
	}
	avFree(ptr)
}

// DictSet sets a key-value pair in a dictionary.
func DictSet(dict *Dictionary, key, value string, flags int32) error {
	if avDictSet == nil {
		return bindings.ErrNotLoaded
	}
	ret := avDictSet(dict, key, value, flags)
	if ret < 0 {
		return NewError(ret, "av_dict_set")
	}
	return nil
}

// DictFree frees a dictionary.
func DictFree(dict *Dictionary) {
	if dict == nil || avDictFree == nil {
		return
	}
	avDictFree(dict)
}

// ErrorString returns FFmpeg's human-readable message for an error code.
func ErrorString(errnum int32) string {
	if avStrerror == nil {
		return "unknown error (FFmpeg not loaded)"
	}
	buf := make([]byte, 256)
	avStrerror(errnum, unsafe.Pointer(&buf[0]), 256)
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// Log levels (from libavutil/log.h).
const (
	LogQuiet   int32 = -8
	LogError   int32 = 16
	LogWarning int32 = 24
	LogInfo    int32 = 32
	LogDebug   int32 = 48
)

// LogSetLevel sets FFmpeg's global log threshold.
func LogSetLevel(level int32) {
	if avLogSetLevel == nil {
		return
	}
	avLogSetLevel(level)
}
