//go:build !ios && !android && (amd64 || arm64)

package ffmpeg

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/obinnaokechukwu/avplay"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
	"github.com/obinnaokechukwu/avplay/ffmpeg/swscale"
)

func mapPixelFormat(f avplay.PixelFormat) avutil.PixelFormat {
	switch f {
	case avplay.PixelFormatBGRA:
		return avutil.PixelFormatBGRA
	case avplay.PixelFormatRGB24:
		return avutil.PixelFormatRGB24
	default:
		return avutil.PixelFormatRGBA
	}
}

// videoConverter turns decoded frames into packed presentable pixels. The
// sws context is cached and rebuilt only when the source geometry or format
// changes (hardware fallback switches NV12 for YUV420P, for example).
type videoConverter struct {
	target avplay.PixelFormat

	sws    swscale.Context
	srcW   int32
	srcH   int32
	srcFmt avutil.PixelFormat
	dstW   int
	dstH   int

	// xfer stages hardware surfaces in host memory before conversion.
	xfer avutil.Frame
}

func (c *videoConverter) Convert(src avplay.Frame, dst *avplay.VideoBuffer) error {
	df, ok := src.(*decodedFrame)
	if !ok {
		return fmt.Errorf("ffmpeg: unexpected frame type %T", src)
	}
	frame := df.ptr

	srcFmt := avutil.PixelFormat(avutil.GetFrameFormat(frame))
	if srcFmt.IsHardware() {
		if c.xfer == nil {
			if c.xfer = avutil.FrameAlloc(); c.xfer == nil {
				return errors.New("ffmpeg: transfer frame allocation failed")
			}
		}
		avutil.FrameUnref(c.xfer)
		if err := avutil.HWFrameTransferData(c.xfer, frame, 0); err != nil {
			return &avplay.HardwareError{OutOfMemory: avutil.IsNoMem(err), Err: err}
		}
		frame = c.xfer
		srcFmt = avutil.PixelFormat(avutil.GetFrameFormat(frame))
	}

	srcW := avutil.GetFrameWidth(frame)
	srcH := avutil.GetFrameHeight(frame)
	if srcW <= 0 || srcH <= 0 {
		return errors.New("ffmpeg: decoded frame has no dimensions")
	}

	if c.sws == nil || srcW != c.srcW || srcH != c.srcH || srcFmt != c.srcFmt ||
		dst.Width != c.dstW || dst.Height != c.dstH {
		swscale.FreeContext(c.sws)
		c.sws = swscale.GetContext(int(srcW), int(srcH), srcFmt,
			dst.Width, dst.Height, mapPixelFormat(c.target), swscale.FlagBilinear)
		if c.sws == nil {
			return fmt.Errorf("ffmpeg: no conversion path from format %d to %s", srcFmt, c.target)
		}
		c.srcW, c.srcH, c.srcFmt = srcW, srcH, srcFmt
		c.dstW, c.dstH = dst.Width, dst.Height
	}

	srcData := avutil.GetFrameData(frame)
	srcLines := avutil.GetFrameLinesize(frame)

	var dstData [8]unsafe.Pointer
	var dstLines [8]int32
	dstData[0] = unsafe.Pointer(&dst.Data[0])
	dstLines[0] = int32(dst.Stride)

	out := swscale.Scale(c.sws, &srcData, &srcLines, 0, srcH, &dstData, &dstLines)
	runtime.KeepAlive(dst.Data)
	if out < 0 {
		return errors.New("ffmpeg: pixel conversion failed")
	}
	return nil
}

func (c *videoConverter) close() {
	swscale.FreeContext(c.sws)
	c.sws = nil
	avutil.FrameFree(&c.xfer)
}
