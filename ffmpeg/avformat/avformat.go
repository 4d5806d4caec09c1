//go:build !ios && !android && (amd64 || arm64)

// Package avformat provides bindings to FFmpeg's libavformat: container
// probing, demuxing, stream selection, seeking, and custom I/O contexts.
package avformat

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/avplay/ffmpeg/avcodec"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
	"github.com/obinnaokechukwu/avplay/internal/bindings"
)

// FormatContext is an opaque FFmpeg AVFormatContext pointer.
type FormatContext = unsafe.Pointer

// InputFormat is an opaque FFmpeg AVInputFormat pointer.
type InputFormat = unsafe.Pointer

// Stream is an opaque FFmpeg AVStream pointer.
type Stream = unsafe.Pointer

// IOContext is an opaque FFmpeg AVIOContext pointer.
type IOContext = unsafe.Pointer

var (
	avformatOpenInput      func(ctx *unsafe.Pointer, url string, fmt, options unsafe.Pointer) int32
	avformatCloseInput     func(ctx *unsafe.Pointer)
	avformatFindStreamInfo func(ctx unsafe.Pointer, options *unsafe.Pointer) int32
	avformatAllocContext   func() unsafe.Pointer
	avformatFreeContext    func(ctx unsafe.Pointer)

	avReadFrame  func(ctx, pkt unsafe.Pointer) int32
	avSeekFrame  func(ctx unsafe.Pointer, streamIndex int32, timestamp int64, flags int32) int32

	avFindBestStream  func(ctx unsafe.Pointer, mediaType, wanted, related int32, decoder *unsafe.Pointer, flags int32) int32
	avFindInputFormat func(shortName string) unsafe.Pointer

	avioAllocContext func(buffer unsafe.Pointer, bufferSize, writeFlag int32, opaque unsafe.Pointer, readCb, writeCb, seekCb uintptr) unsafe.Pointer
	avioContextFree  func(ctx *unsafe.Pointer)

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
		return
	}
	lib := bindings.LibAVFormat()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&avformatOpenInput, lib, "avformat_open_input")
	purego.RegisterLibFunc(&avformatCloseInput, lib, "avformat_close_input")
	purego.RegisterLibFunc(&avformatFindStreamInfo, lib, "avformat_find_stream_info")
	purego.RegisterLibFunc(&avformatAllocContext, lib, "avformat_alloc_context")
	purego.RegisterLibFunc(&avformatFreeContext, lib, "avformat_free_context")

	purego.RegisterLibFunc(&avReadFrame, lib, "av_read_frame")
	purego.RegisterLibFunc(&avSeekFrame, lib, "av_seek_frame")

	purego.RegisterLibFunc(&avFindBestStream, lib, "av_find_best_stream")
	purego.RegisterLibFunc(&avFindInputFormat, lib, "av_find_input_format")

	purego.RegisterLibFunc(&avioAllocContext, lib, "avio_alloc_context")
	purego.RegisterLibFunc(&avioContextFree, lib, "avio_context_free")

	bindingsRegistered = true
}

// AllocContext allocates an AVFormatContext, for use with custom I/O.
func AllocContext() FormatContext {
	if avformatAllocContext == nil {
		return nil
	}
	return avformatAllocContext()
}

// FreeContext frees an AVFormatContext that was never opened.
func FreeContext(ctx FormatContext) {
	if ctx == nil || avformatFreeContext == nil {
		return
	}
	avformatFreeContext(ctx)
}

// OpenInput opens and probes an input. With custom I/O the url is empty and
// the I/O context must already be attached via SetIOContext.
func OpenInput(ctx *FormatContext, url string, fmt InputFormat, options *avutil.Dictionary) error {
	if avformatOpenInput == nil {
		return bindings.ErrNotLoaded
	}
	var opts unsafe.Pointer
	if options != nil {
		opts = *options
	}
	ret := avformatOpenInput(ctx, url, fmt, opts)
	runtime.KeepAlive(url)
	if ret < 0 {
		return avutil.NewError(ret, "avformat_open_input")
	}
	return nil
}

// CloseInput closes an input and frees the context.
func CloseInput(ctx *FormatContext) {
	if ctx == nil || *ctx == nil || avformatCloseInput == nil {
		return
	}
	avformatCloseInput(ctx)
	*ctx = nil
}

// FindStreamInfo reads ahead to fill in stream parameters.
func FindStreamInfo(ctx FormatContext, options *avutil.Dictionary) error {
	if avformatFindStreamInfo == nil {
		return bindings.ErrNotLoaded
	}
	ret := avformatFindStreamInfo(ctx, options)
	if ret < 0 {
		return avutil.NewError(ret, "avformat_find_stream_info")
	}
	return nil
}

// ReadFrame reads the next packet from the container.
func ReadFrame(ctx FormatContext, pkt avcodec.Packet) error {
	if avReadFrame == nil {
		return bindings.ErrNotLoaded
	}
	ret := avReadFrame(ctx, pkt)
	if ret < 0 {
		return avutil.NewError(ret, "av_read_frame")
	}
	return nil
}

// Seek flags for SeekFrame.
const (
	SeekFlagBackward = 1 // land on the keyframe at or before the target
	SeekFlagByte     = 2
	SeekFlagAny      = 4
	SeekFlagFrame    = 8
)

// SeekFrame seeks the demuxer. timestamp is in the stream's time base when
// streamIndex >= 0, otherwise in AV_TIME_BASE units.
func SeekFrame(ctx FormatContext, streamIndex int32, timestamp int64, flags int32) error {
	if avSeekFrame == nil {
		return bindings.ErrNotLoaded
	}
	ret := avSeekFrame(ctx, streamIndex, timestamp, flags)
	if ret < 0 {
		return avutil.NewError(ret, "av_seek_frame")
	}
	return nil
}

// FindBestStream returns the best stream index of the given type, or < 0.
func FindBestStream(ctx FormatContext, mediaType avutil.MediaType, wanted, related int32, decoder *avcodec.Codec, flags int32) int32 {
	if avFindBestStream == nil {
		return -1
	}
	return avFindBestStream(ctx, int32(mediaType), wanted, related, decoder, flags)
}

// FindInputFormat resolves a demuxer by short name ("mp4", "matroska"), or
// nil when unknown.
func FindInputFormat(shortName string) InputFormat {
	if avFindInputFormat == nil {
		return nil
	}
	f := avFindInputFormat(shortName)
	runtime.KeepAlive(shortName)
	return f
}

// IOAllocContext builds an AVIOContext over callback pointers created with
// purego.NewCallback. buffer must come from avutil.Malloc; FFmpeg may
// replace it, and the current buffer belongs to the context afterwards.
func IOAllocContext(buffer unsafe.Pointer, bufferSize int, writable bool, opaque unsafe.Pointer, readCb, writeCb, seekCb uintptr) IOContext {
	if avioAllocContext == nil {
		return nil
	}
	var writeFlag int32
	if writable {
		writeFlag = 1
	}
	return avioAllocContext(buffer, int32(bufferSize), writeFlag, opaque, readCb, writeCb, seekCb)
}

// AVIOContext layout: av_class (0), buffer (8).
const offsetIOBuffer = 8

// IOContextFree releases a custom I/O context along with whatever buffer it
// currently holds, then nils the pointer.
func IOContextFree(ctx *IOContext) {
	if ctx == nil || *ctx == nil || avioContextFree == nil {
		return
	}
	// FFmpeg may have swapped the original buffer; free the current one.
	buf := *(*unsafe.Pointer)(unsafe.Pointer(uintptr(*ctx) + offsetIOBuffer))
	if buf != nil {
		avutil.Free(buf)
	}
	avioContextFree(ctx)
	*ctx = nil
}

// AVSeekSize is the whence value FFmpeg passes to a seek callback to ask for
// the total stream size instead of repositioning.
const AVSeekSize = 0x10000

// AVTimeBase is the time base of container-level timestamps (microseconds).
const AVTimeBase = 1000000

// AVFormatContext field offsets (FFmpeg 6.x / avformat 60.x), verified with
// offsetof() on 60.16.100.
const (
	offsetIOContext  = 32 // AVIOContext *pb
	offsetNumStreams = 44 // unsigned int nb_streams
	offsetStreams    = 48 // AVStream **streams
	offsetDuration   = 72 // int64_t duration
	offsetBitRate    = 80 // int64_t bit_rate
	offsetFlags      = 96 // int flags
)

// AVFMT_FLAG_CUSTOM_IO tells FFmpeg the caller owns the I/O context.
const FlagCustomIO = 0x0080

// GetNumStreams returns the number of streams.
func GetNumStreams(ctx FormatContext) int {
	if ctx == nil {
		return 0
	}
	return int(*(*uint32)(unsafe.Pointer(uintptr(ctx) + offsetNumStreams)))
}

// GetStream returns the stream at the given index, or nil.
func GetStream(ctx FormatContext, index int) Stream {
	if ctx == nil || index < 0 || index >= GetNumStreams(ctx) {
		return nil
	}
	streamsPtr := *(*unsafe.Pointer)(unsafe.Pointer(uintptr(ctx) + offsetStreams))
	if streamsPtr == nil {
		return nil
	}
	streamArray := (*[1024]unsafe.Pointer)(streamsPtr)
	return streamArray[index]
}

// GetDuration returns the container duration in AVTimeBase units, or
// avutil.NoPTSValue when unknown.
func GetDuration(ctx FormatContext) int64 {
	if ctx == nil {
		return 0
	}
	return *(*int64)(unsafe.Pointer(uintptr(ctx) + offsetDuration))
}

// GetBitRate returns the container bit rate.
func GetBitRate(ctx FormatContext) int64 {
	if ctx == nil {
		return 0
	}
	return *(*int64)(unsafe.Pointer(uintptr(ctx) + offsetBitRate))
}

// SetIOContext attaches a custom I/O context; call before OpenInput.
func SetIOContext(ctx FormatContext, pb IOContext) {
	if ctx == nil {
		return
	}
	*(*unsafe.Pointer)(unsafe.Pointer(uintptr(ctx) + offsetIOContext)) = pb
}

// AddFlags ors flags into the format context's flags field.
func AddFlags(ctx FormatContext, flags int32) {
	if ctx == nil {
		return
	}
	p := (*int32)(unsafe.Pointer(uintptr(ctx) + offsetFlags))
	*p |= flags
}

// AVStream field offsets (FFmpeg 6.x / avformat 60.x).
const (
	offsetStreamIndex        = 8  // int index
	offsetStreamCodecPar     = 16 // AVCodecParameters *codecpar
	offsetStreamTimeBase     = 32 // AVRational time_base
	offsetStreamStartTime    = 40 // int64_t start_time
	offsetStreamDuration     = 48 // int64_t duration
	offsetStreamAvgFrameRate = 88 // AVRational avg_frame_rate
)

// GetStreamIndex returns the stream index.
func GetStreamIndex(stream Stream) int32 {
	if stream == nil {
		return -1
	}
	return *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamIndex))
}

// GetStreamCodecPar returns the codec parameters of the stream.
func GetStreamCodecPar(stream Stream) avcodec.Parameters {
	if stream == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(stream) + offsetStreamCodecPar))
}

// GetStreamTimeBase returns the stream time base.
func GetStreamTimeBase(stream Stream) avutil.Rational {
	if stream == nil {
		return avutil.Rational{Num: 0, Den: 1}
	}
	num := *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamTimeBase))
	den := *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamTimeBase + 4))
	return avutil.NewRational(num, den)
}

// GetStreamStartTime returns the stream start time in time-base units, or
// avutil.NoPTSValue.
func GetStreamStartTime(stream Stream) int64 {
	if stream == nil {
		return avutil.NoPTSValue
	}
	return *(*int64)(unsafe.Pointer(uintptr(stream) + offsetStreamStartTime))
}

// GetStreamDuration returns the stream duration in time-base units, or
// avutil.NoPTSValue.
func GetStreamDuration(stream Stream) int64 {
	if stream == nil {
		return avutil.NoPTSValue
	}
	return *(*int64)(unsafe.Pointer(uintptr(stream) + offsetStreamDuration))
}

// GetStreamAvgFrameRate returns the average frame rate.
func GetStreamAvgFrameRate(stream Stream) avutil.Rational {
	if stream == nil {
		return avutil.Rational{}
	}
	num := *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamAvgFrameRate))
	den := *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamAvgFrameRate + 4))
	return avutil.NewRational(num, den)
}

// AVCodecParameters field offsets (FFmpeg 6.x / avcodec 60.x).
const (
	offsetCodecParType       = 0   // enum AVMediaType codec_type
	offsetCodecParCodecID    = 4   // enum AVCodecID codec_id
	offsetCodecParFormat     = 28  // int format
	offsetCodecParWidth      = 56  // int width
	offsetCodecParHeight     = 60  // int height
	offsetCodecParChannels   = 112 // int channels (legacy, kept in sync)
	offsetCodecParSampleRate = 116 // int sample_rate
)

// GetCodecParType returns the media type.
func GetCodecParType(par avcodec.Parameters) avutil.MediaType {
	if par == nil {
		return avutil.MediaTypeUnknown
	}
	return avutil.MediaType(*(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParType)))
}

// GetCodecParCodecID returns the codec ID.
func GetCodecParCodecID(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParCodecID))
}

// GetCodecParWidth returns the video width.
func GetCodecParWidth(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParWidth))
}

// GetCodecParHeight returns the video height.
func GetCodecParHeight(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParHeight))
}

// GetCodecParFormat returns the pixel format (video) or sample format
// (audio).
func GetCodecParFormat(par avcodec.Parameters) int32 {
	if par == nil {
		return -1
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParFormat))
}

// GetCodecParChannels returns the audio channel count.
func GetCodecParChannels(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParChannels))
}

// GetCodecParSampleRate returns the audio sample rate.
func GetCodecParSampleRate(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParSampleRate))
}
