//go:build !ios && !android && (amd64 || arm64)

// Package swresample provides bindings to FFmpeg's libswresample for audio
// resampling and sample format conversion.
package swresample

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
	"github.com/obinnaokechukwu/avplay/internal/bindings"
)

// Context is an opaque SwrContext pointer.
type Context = unsafe.Pointer

var (
	swrAlloc         func() uintptr
	swrInit          func(s uintptr) int32
	swrFree          func(s *unsafe.Pointer)
	swrConvert       func(s uintptr, out unsafe.Pointer, outCount int32, in unsafe.Pointer, inCount int32) int32
	swrGetDelay      func(s uintptr, base int64) int64
	swrGetOutSamples func(s uintptr, inSamples int32) int32
	swrIsInitialized func(s uintptr) int32

	// FFmpeg 5.1+ AVChannelLayout configuration.
	swrAllocSetOpts2 func(ps *unsafe.Pointer,
		outChLayout unsafe.Pointer, outFmt, outRate int32,
		inChLayout unsafe.Pointer, inFmt, inRate int32,
		logOffset int32, logCtx uintptr) int32

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
	lib := bindings.LibSWResample()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&swrAlloc, lib, "swr_alloc")
	purego.RegisterLibFunc(&swrInit, lib, "swr_init")
	purego.RegisterLibFunc(&swrFree, lib, "swr_free")
	purego.RegisterLibFunc(&swrConvert, lib, "swr_convert")
	purego.RegisterLibFunc(&swrGetDelay, lib, "swr_get_delay")
	purego.RegisterLibFunc(&swrGetOutSamples, lib, "swr_get_out_samples")
	purego.RegisterLibFunc(&swrIsInitialized, lib, "swr_is_initialized")
	purego.RegisterLibFunc(&swrAllocSetOpts2, lib, "swr_alloc_set_opts2")

	bindingsRegistered = true
}

// AllocSetOpts configures a resampling context. Channel layouts are pointers
// to AVChannelLayout structs; the codec context's layout pointer works
// directly for the input side.
func AllocSetOpts(outChLayout unsafe.Pointer, outFmt avutil.SampleFormat, outRate int,
	inChLayout unsafe.Pointer, inFmt avutil.SampleFormat, inRate int) (Context, error) {
	if swrAllocSetOpts2 == nil {
		return nil, bindings.ErrNotLoaded
	}
	var ctx unsafe.Pointer
	ret := swrAllocSetOpts2(&ctx,
		outChLayout, int32(outFmt), int32(outRate),
		inChLayout, int32(inFmt), int32(inRate),
		0, 0)
	if ret < 0 {
		return nil, avutil.NewError(ret, "swr_alloc_set_opts2")
	}
	return ctx, nil
}

// InitContext initializes a configured context.
func InitContext(s Context) error {
	if swrInit == nil {
		return bindings.ErrNotLoaded
	}
	ret := swrInit(uintptr(s))
	if ret < 0 {
		return avutil.NewError(ret, "swr_init")
	}
	return nil
}

// Free releases a context and nils the pointer.
func Free(s *Context) {
	if s == nil || *s == nil || swrFree == nil {
		return
	}
	swrFree(s)
	*s = nil
}

// Convert resamples audio. out and in point to arrays of per-channel data
// pointers; a nil in with inCount 0 flushes buffered samples. Returns the
// number of samples produced per channel.
func Convert(s Context, out unsafe.Pointer, outCount int, in unsafe.Pointer, inCount int) (int, error) {
	if swrConvert == nil {
		return 0, bindings.ErrNotLoaded
	}
	ret := swrConvert(uintptr(s), out, int32(outCount), in, int32(inCount))
	runtime.KeepAlive(out)
	runtime.KeepAlive(in)
	if ret < 0 {
		return 0, avutil.NewError(ret, "swr_convert")
	}
	return int(ret), nil
}

// GetDelay returns the resampler's buffered delay in units of the given
// time base (pass the output sample rate for a sample count).
func GetDelay(s Context, base int64) int64 {
	if swrGetDelay == nil {
		return 0
	}
	return swrGetDelay(uintptr(s), base)
}

// GetOutSamples returns an upper bound on the output sample count for the
// given input sample count, including buffered delay.
func GetOutSamples(s Context, inSamples int) int {
	if swrGetOutSamples == nil {
		return 0
	}
	return int(swrGetOutSamples(uintptr(s), int32(inSamples)))
}

// IsInitialized reports whether InitContext has run on the context.
func IsInitialized(s Context) bool {
	return swrIsInitialized != nil && swrIsInitialized(uintptr(s)) != 0
}
