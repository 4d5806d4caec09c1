package avplay

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceSeekableDetection(t *testing.T) {
	seekable := NewSource(bytes.NewReader([]byte("0123456789")))
	assert.True(t, seekable.Seekable())

	plain := NewSource(iotest(strings.NewReader("0123456789")))
	assert.False(t, plain.Seekable())
}

// iotest strips the Seeker from a reader.
func iotest(r io.Reader) io.Reader {
	return struct{ io.Reader }{r}
}

func TestSourceSizeProbeRestoresPosition(t *testing.T) {
	src := NewSource(bytes.NewReader([]byte("0123456789")))

	buf := make([]byte, 4)
	n, err := src.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	assert.EqualValues(t, 10, src.Size())
	assert.EqualValues(t, 10, src.Size(), "size is cached")

	// The probe must not disturb the read position.
	n, err = src.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "4567", string(buf[:n]))
}

func TestSourceSizeUnknownForPlainReader(t *testing.T) {
	src := NewSource(iotest(strings.NewReader("abc")))
	assert.EqualValues(t, -1, src.Size())
}

func TestSourceSeekNotSeekable(t *testing.T) {
	src := NewSource(iotest(strings.NewReader("abc")))
	_, err := src.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, ErrNotSeekable)
}
