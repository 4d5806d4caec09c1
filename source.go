package avplay

import "io"

// SourceAdapter wraps an arbitrary byte source behind read/seek callbacks.
// It is accessed only from the decode-loop goroutine; seekability is the one
// property exposed for synchronous validation from other goroutines.
type SourceAdapter struct {
	r        io.Reader
	seeker   io.Seeker
	size     int64
	sizeKnow bool
}

// NewSource wraps r. If r implements io.Seeker the source reports itself
// seekable and its size is probed lazily on first request.
func NewSource(r io.Reader) *SourceAdapter {
	s := &SourceAdapter{r: r, size: -1}
	if sk, ok := r.(io.Seeker); ok {
		s.seeker = sk
	}
	return s
}

// Seekable reports whether Seek is supported.
func (s *SourceAdapter) Seekable() bool { return s.seeker != nil }

// Read reads up to len(p) bytes. At end of input it returns 0, io.EOF.
func (s *SourceAdapter) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Seek repositions the source. Calling Seek on a non-seekable source is a
// usage error.
func (s *SourceAdapter) Seek(offset int64, whence int) (int64, error) {
	if s.seeker == nil {
		return 0, ErrNotSeekable
	}
	return s.seeker.Seek(offset, whence)
}

// Size returns the total length of the source, or -1 when unknown. The first
// call on a seekable source probes by seeking to the end and back.
func (s *SourceAdapter) Size() int64 {
	if s.sizeKnow {
		return s.size
	}
	s.sizeKnow = true
	if s.seeker == nil {
		return -1
	}
	cur, err := s.seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	end, err := s.seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}
	if _, err := s.seeker.Seek(cur, io.SeekStart); err != nil {
		return -1
	}
	s.size = end
	return end
}
