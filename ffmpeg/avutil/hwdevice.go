//go:build !ios && !android && (amd64 || arm64)

package avutil

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/avplay/internal/bindings"
)

// HWDeviceType represents an FFmpeg hardware device type
// (enum AVHWDeviceType).
type HWDeviceType int32

const (
	HWDeviceTypeNone         HWDeviceType = 0
	HWDeviceTypeVDPAU        HWDeviceType = 1
	HWDeviceTypeCUDA         HWDeviceType = 2
	HWDeviceTypeVAAPI        HWDeviceType = 3
	HWDeviceTypeDXVA2        HWDeviceType = 4
	HWDeviceTypeQSV          HWDeviceType = 5
	HWDeviceTypeVideoToolbox HWDeviceType = 6
	HWDeviceTypeD3D11VA      HWDeviceType = 7
	HWDeviceTypeDRM          HWDeviceType = 8
	HWDeviceTypeOpenCL       HWDeviceType = 9
	HWDeviceTypeMediaCodec   HWDeviceType = 10
	HWDeviceTypeVulkan       HWDeviceType = 11
)

// HWDeviceContext is an AVBufferRef holding a hardware device context.
type HWDeviceContext = unsafe.Pointer

var (
	avHWDeviceCtxCreate       func(ctx *unsafe.Pointer, typ int32, device string, opts unsafe.Pointer, flags int32) int32
	avHWDeviceFindTypeByName  func(name string) int32
	avHWDeviceGetTypeName     func(typ int32) string
	avHWDeviceIterateTypes    func(prev int32) int32
	avHWFrameTransferData     func(dst, src unsafe.Pointer, flags int32) int32
	avBufferRef               func(buf unsafe.Pointer) unsafe.Pointer
	avBufferUnref             func(buf *unsafe.Pointer)
)

func registerHWBindings(lib uintptr) {
	purego.RegisterLibFunc(&avHWDeviceCtxCreate, lib, "av_hwdevice_ctx_create")
	purego.RegisterLibFunc(&avHWDeviceFindTypeByName, lib, "av_hwdevice_find_type_by_name")
	purego.RegisterLibFunc(&avHWDeviceGetTypeName, lib, "av_hwdevice_get_type_name")
	purego.RegisterLibFunc(&avHWDeviceIterateTypes, lib, "av_hwdevice_iterate_types")
	purego.RegisterLibFunc(&avHWFrameTransferData, lib, "av_hwframe_transfer_data")
	purego.RegisterLibFunc(&avBufferRef, lib, "av_buffer_ref")
	purego.RegisterLibFunc(&avBufferUnref, lib, "av_buffer_unref")
}

// HWDeviceCtxCreate opens a device of the given type. device optionally names
// the device node ("/dev/dri/renderD128" for VAAPI, a GPU ordinal for CUDA);
// empty picks the default.
func HWDeviceCtxCreate(typ HWDeviceType, device string) (HWDeviceContext, error) {
	if avHWDeviceCtxCreate == nil {
		return nil, bindings.ErrNotLoaded
	}
	var ctx unsafe.Pointer
	ret := avHWDeviceCtxCreate(&ctx, int32(typ), device, nil, 0)
	if ret < 0 {
		return nil, NewError(ret, "av_hwdevice_ctx_create")
	}
	return ctx, nil
}

// HWDeviceFindTypeByName maps a name like "cuda" or "vaapi" to its type.
func HWDeviceFindTypeByName(name string) HWDeviceType {
	if avHWDeviceFindTypeByName == nil {
		return HWDeviceTypeNone
	}
	return HWDeviceType(avHWDeviceFindTypeByName(name))
}

// HWDeviceGetTypeName returns the canonical name of a device type.
func HWDeviceGetTypeName(typ HWDeviceType) string {
	if avHWDeviceGetTypeName == nil {
		return ""
	}
	return avHWDeviceGetTypeName(int32(typ))
}

// HWDeviceIterateTypes enumerates the device types this FFmpeg build
// supports, starting after prev (use HWDeviceTypeNone to start).
func HWDeviceIterateTypes(prev HWDeviceType) HWDeviceType {
	if avHWDeviceIterateTypes == nil {
		return HWDeviceTypeNone
	}
	return HWDeviceType(avHWDeviceIterateTypes(int32(prev)))
}

// HWFrameTransferData copies a hardware frame's data into dst, a software
// frame in host memory. dst must be a freshly allocated or unreferenced
// frame.
func HWFrameTransferData(dst, src Frame, flags int32) error {
	if avHWFrameTransferData == nil {
		return bindings.ErrNotLoaded
	}
	ret := avHWFrameTransferData(dst, src, flags)
	if ret < 0 {
		return NewError(ret, "av_hwframe_transfer_data")
	}
	return nil
}

// BufferRef creates a new reference to an AVBufferRef.
func BufferRef(buf HWDeviceContext) HWDeviceContext {
	if avBufferRef == nil || buf == nil {
		return nil
	}
	return avBufferRef(buf)
}

// FreeBufferRef drops a buffer reference and nils the pointer.
func FreeBufferRef(buf *HWDeviceContext) {
	if buf == nil || *buf == nil || avBufferUnref == nil {
		return
	}
	avBufferUnref(buf)
	*buf = nil
}
