//go:build !ios && !android && (amd64 || arm64)

package avutil

import "unsafe"

// PixelFormat represents FFmpeg pixel formats (from pixfmt.h).
type PixelFormat int32

const (
	PixelFormatNone    PixelFormat = -1
	PixelFormatYUV420P PixelFormat = 0
	PixelFormatRGB24   PixelFormat = 2
	PixelFormatBGR24   PixelFormat = 3
	PixelFormatNV12    PixelFormat = 23
	PixelFormatRGBA    PixelFormat = 26
	PixelFormatBGRA    PixelFormat = 28
)

// AVPixFmtDescriptor layout: name (8), nb_components/log2_chroma_w/
// log2_chroma_h plus padding (8), flags uint64 at offset 16.
const (
	pixFmtDescFlagsOffset = 16
	pixFmtFlagHWAccel     = 1 << 3 // AV_PIX_FMT_FLAG_HWACCEL
)

var avPixFmtDescGet func(fmt int32) unsafe.Pointer

// IsHardware reports whether the format is a device-memory surface format.
// Hardware frames must be transferred to host memory before conversion. The
// check goes through av_pix_fmt_desc_get because the hardware enum values
// shift between FFmpeg majors.
func (f PixelFormat) IsHardware() bool {
	if avPixFmtDescGet == nil || f < 0 {
		return false
	}
	desc := avPixFmtDescGet(int32(f))
	if desc == nil {
		return false
	}
	flags := *(*uint64)(unsafe.Pointer(uintptr(desc) + pixFmtDescFlagsOffset))
	return flags&pixFmtFlagHWAccel != 0
}

// MediaType represents FFmpeg media types.
type MediaType int32

const (
	MediaTypeUnknown    MediaType = -1
	MediaTypeVideo      MediaType = 0
	MediaTypeAudio      MediaType = 1
	MediaTypeData       MediaType = 2
	MediaTypeSubtitle   MediaType = 3
	MediaTypeAttachment MediaType = 4
)

// SampleFormat represents FFmpeg audio sample formats.
type SampleFormat int32

const (
	SampleFormatNone SampleFormat = -1
	SampleFormatU8   SampleFormat = 0
	SampleFormatS16  SampleFormat = 1
	SampleFormatS32  SampleFormat = 2
	SampleFormatFlt  SampleFormat = 3
	SampleFormatDbl  SampleFormat = 4
	SampleFormatU8P  SampleFormat = 5
	SampleFormatS16P SampleFormat = 6
	SampleFormatS32P SampleFormat = 7
	SampleFormatFltP SampleFormat = 8
	SampleFormatDblP SampleFormat = 9
)
