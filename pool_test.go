package avplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPoolReusesIdentity(t *testing.T) {
	p := newBufferPool(4, nil)

	a := p.Get(320, 240, PixelFormatRGBA)
	require.Len(t, a.Data, 320*240*4)
	assert.Equal(t, 320*4, a.Stride)

	data := &a.Data[0]
	p.Put(a)

	b := p.Get(320, 240, PixelFormatRGBA)
	assert.Same(t, a, b, "same geometry must reuse the pooled buffer")
	assert.Same(t, data, &b.Data[0], "backing storage must not be reallocated")
}

func TestBufferPoolReallocatesOnGeometryChange(t *testing.T) {
	p := newBufferPool(4, nil)

	a := p.Get(320, 240, PixelFormatRGBA)
	p.Put(a)

	b := p.Get(640, 480, PixelFormatRGB24)
	assert.Same(t, a, b)
	assert.Len(t, b.Data, 640*480*3)
	assert.Equal(t, 640*3, b.Stride)
	assert.Equal(t, PixelFormatRGB24, b.Format)
}

func TestBufferPoolCustomAllocator(t *testing.T) {
	var calls int
	p := newBufferPool(4, func(size int) []byte {
		calls++
		return make([]byte, size)
	})

	a := p.Get(16, 16, PixelFormatRGBA)
	p.Put(a)
	p.Get(16, 16, PixelFormatRGBA)
	assert.Equal(t, 1, calls, "reuse must not hit the allocator")
}

func TestBufferPoolOutstanding(t *testing.T) {
	p := newBufferPool(2, nil)

	a := p.Get(8, 8, PixelFormatRGBA)
	b := p.Get(8, 8, PixelFormatRGBA)
	assert.EqualValues(t, 2, p.Outstanding())

	p.Put(a)
	p.Put(b)
	assert.Zero(t, p.Outstanding())

	// Returns beyond capacity are dropped, not double counted.
	c := p.Get(8, 8, PixelFormatRGBA)
	d := p.Get(8, 8, PixelFormatRGBA)
	e := p.Get(8, 8, PixelFormatRGBA)
	p.Put(c)
	p.Put(d)
	p.Put(e)
	assert.Zero(t, p.Outstanding())
	p.Put(nil)
	assert.Zero(t, p.Outstanding())
}
