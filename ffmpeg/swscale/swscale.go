//go:build !ios && !android && (amd64 || arm64)

// Package swscale provides bindings to FFmpeg's libswscale for pixel format
// conversion and scaling.
package swscale

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
	"github.com/obinnaokechukwu/avplay/internal/bindings"
)

// Context is an opaque SwsContext pointer.
type Context = unsafe.Pointer

// Scaling algorithm flags.
const (
	FlagFastBilinear = 1
	FlagBilinear     = 2
	FlagBicubic      = 4
	FlagPoint        = 0x10
	FlagArea         = 0x20
	FlagLanczos      = 0x200
)

var (
	swsGetContext  func(srcW, srcH, srcFormat, dstW, dstH, dstFormat, flags int32, srcFilter, dstFilter, param unsafe.Pointer) uintptr
	swsScale       func(ctx unsafe.Pointer, srcSlice, srcStride unsafe.Pointer, srcSliceY, srcSliceH int32, dst, dstStride unsafe.Pointer) int32
	swsFreeContext func(ctx unsafe.Pointer)

	swsIsSupportedIn  func(format int32) int32
	swsIsSupportedOut func(format int32) int32

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
	lib := bindings.LibSWScale()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&swsGetContext, lib, "sws_getContext")
	purego.RegisterLibFunc(&swsScale, lib, "sws_scale")
	purego.RegisterLibFunc(&swsFreeContext, lib, "sws_freeContext")
	purego.RegisterLibFunc(&swsIsSupportedIn, lib, "sws_isSupportedInput")
	purego.RegisterLibFunc(&swsIsSupportedOut, lib, "sws_isSupportedOutput")

	bindingsRegistered = true
}

// GetContext creates a conversion context. Returns nil when the combination
// of formats and sizes is unsupported.
func GetContext(srcW, srcH int, srcFormat avutil.PixelFormat, dstW, dstH int, dstFormat avutil.PixelFormat, flags int32) Context {
	if swsGetContext == nil {
		return nil
	}
	return unsafe.Pointer(swsGetContext(
		int32(srcW), int32(srcH), int32(srcFormat),
		int32(dstW), int32(dstH), int32(dstFormat),
		flags, nil, nil, nil,
	))
}

// FreeContext frees a conversion context. Safe with nil.
func FreeContext(ctx Context) {
	if ctx == nil || swsFreeContext == nil {
		return
	}
	swsFreeContext(ctx)
}

// Scale converts srcSliceH rows starting at srcSliceY into dst. Plane
// pointers and strides are passed as fixed arrays matching AVFrame's layout.
// Returns the output height, negative on error.
func Scale(ctx Context, srcSlice *[8]unsafe.Pointer, srcStride *[8]int32, srcSliceY, srcSliceH int32, dst *[8]unsafe.Pointer, dstStride *[8]int32) int32 {
	if ctx == nil || swsScale == nil {
		return -1
	}
	return swsScale(ctx,
		unsafe.Pointer(srcSlice), unsafe.Pointer(srcStride),
		srcSliceY, srcSliceH,
		unsafe.Pointer(dst), unsafe.Pointer(dstStride),
	)
}

// IsSupportedInput reports whether the format can be converted from.
func IsSupportedInput(format avutil.PixelFormat) bool {
	return swsIsSupportedIn != nil && swsIsSupportedIn(int32(format)) > 0
}

// IsSupportedOutput reports whether the format can be converted to.
func IsSupportedOutput(format avutil.PixelFormat) bool {
	return swsIsSupportedOut != nil && swsIsSupportedOut(int32(format)) > 0
}
