package avplay

import "sync/atomic"

// bufferPool recycles presentable video buffers. Checkout and return go
// through a buffered channel; when the pool is momentarily empty a fresh
// buffer is allocated instead of blocking. Buffers are validated against the
// requested geometry before reuse and their backing storage is reallocated
// only on mismatch.
type bufferPool struct {
	idle        chan *VideoBuffer
	alloc       func(size int) []byte
	outstanding atomic.Int64
}

func newBufferPool(capacity int, alloc func(size int) []byte) *bufferPool {
	if alloc == nil {
		alloc = func(size int) []byte { return make([]byte, size) }
	}
	return &bufferPool{
		idle:  make(chan *VideoBuffer, capacity),
		alloc: alloc,
	}
}

// Get returns a buffer shaped for the requested frame geometry, reusing a
// returned buffer when one is available.
func (p *bufferPool) Get(width, height int, format PixelFormat) *VideoBuffer {
	stride := width * format.BytesPerPixel()
	size := stride * height

	var buf *VideoBuffer
	select {
	case buf = <-p.idle:
	default:
		buf = &VideoBuffer{}
	}

	buf.Width = width
	buf.Height = height
	buf.Stride = stride
	buf.Format = format
	if len(buf.Data) != size {
		buf.Data = p.alloc(size)
	}
	p.outstanding.Add(1)
	return buf
}

// Put returns a buffer for reuse. Buffers beyond the pool's capacity are
// dropped for the garbage collector.
func (p *bufferPool) Put(buf *VideoBuffer) {
	if buf == nil {
		return
	}
	p.outstanding.Add(-1)
	select {
	case p.idle <- buf:
	default:
	}
}

// Outstanding reports buffers currently checked out (held by the consumer or
// queued in the output). Useful for leak detection across start/stop cycles.
func (p *bufferPool) Outstanding() int64 {
	return p.outstanding.Load()
}
