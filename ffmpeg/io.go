//go:build !ios && !android && (amd64 || arm64)

package ffmpeg

import (
	"errors"
	"io"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/avplay"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avformat"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
	"github.com/obinnaokechukwu/avplay/internal/handles"
)

// ioBufferSize is the demuxer read buffer handed to avio_alloc_context.
const ioBufferSize = 32 * 1024

// ioContext bridges an avplay source to an AVIOContext. The C side sees the
// handle id as its opaque pointer; callbacks resolve it back through the
// handles registry so no Go pointer ever crosses into FFmpeg.
type ioContext struct {
	avio   avformat.IOContext
	handle uintptr
	src    *avplay.SourceAdapter
}

// The callbacks are registered once and shared by every ioContext; purego
// callbacks are a finite resource and cannot be released.
var (
	ioCallbacksOnce sync.Once
	ioReadCB        uintptr
	ioSeekCB        uintptr
)

func initIOCallbacks() {
	ioCallbacksOnce.Do(func() {
		// int read_packet(void *opaque, uint8_t *buf, int buf_size)
		ioReadCB = purego.NewCallback(func(_ purego.CDecl, opaque unsafe.Pointer, buf *byte, bufSize int32) int32 {
			v := handles.Lookup(uintptr(opaque))
			if v == nil {
				return avutil.AVERROR_UNKNOWN
			}
			ctx := v.(*ioContext)

			n, err := ctx.src.Read(unsafe.Slice(buf, bufSize))
			if n > 0 {
				return int32(n)
			}
			if errors.Is(err, io.EOF) {
				return avutil.AVERROR_EOF
			}
			if err != nil {
				return avutil.AVERROR_UNKNOWN
			}
			return 0
		})

		// int64_t seek(void *opaque, int64_t offset, int whence)
		ioSeekCB = purego.NewCallback(func(_ purego.CDecl, opaque unsafe.Pointer, offset int64, whence int32) int64 {
			v := handles.Lookup(uintptr(opaque))
			if v == nil {
				return -1
			}
			ctx := v.(*ioContext)

			if whence == avformat.AVSeekSize {
				return ctx.src.Size()
			}
			pos, err := ctx.src.Seek(offset, int(whence))
			if err != nil {
				return -1
			}
			return pos
		})
	})
}

// newIOContext wires src into a read-only AVIOContext. The seek callback is
// only installed for seekable sources so FFmpeg treats pipes as streams.
func newIOContext(src *avplay.SourceAdapter, bufferSize int) (*ioContext, error) {
	if bufferSize <= 0 {
		bufferSize = ioBufferSize
	}
	initIOCallbacks()

	// FFmpeg owns the buffer from here; it may even replace it.
	buffer := avutil.Malloc(uintptr(bufferSize))
	if buffer == nil {
		return nil, errors.New("ffmpeg: I/O buffer allocation failed")
	}

	ctx := &ioContext{src: src}
	ctx.handle = handles.Register(ctx)

	var seekCB uintptr
	if src.Seekable() {
		seekCB = ioSeekCB
	}
	ctx.avio = avformat.IOAllocContext(buffer, bufferSize, false,
		unsafe.Pointer(ctx.handle), ioReadCB, 0, seekCB)
	if ctx.avio == nil {
		avutil.Free(buffer)
		handles.Unregister(ctx.handle)
		return nil, errors.New("ffmpeg: AVIOContext allocation failed")
	}
	return ctx, nil
}

func (c *ioContext) close() {
	if c.avio != nil {
		avformat.IOContextFree(&c.avio)
	}
	if c.handle != 0 {
		handles.Unregister(c.handle)
		c.handle = 0
	}
}
