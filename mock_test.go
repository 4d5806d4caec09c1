package avplay

import (
	"sync"
	"time"
)

// The mock backend simulates a demuxer and codecs with deterministic content:
// a fixed number of frames at a fixed interval, pts equal to the frame index.
// It lets the pipeline tests exercise state transitions, seeking, hardware
// fallback, and looping without any native library.

type mockPacket struct {
	stream   int
	pts      int64
	released bool
}

func (p *mockPacket) StreamIndex() int { return p.stream }
func (p *mockPacket) Release()         { p.released = true }

type mockFrame struct {
	pts    int64
	hasPTS bool
}

func (f *mockFrame) PTS() (int64, bool) { return f.pts, f.hasPTS }
func (f *mockFrame) Release()           {}

// mockCodec is a one-in, one-out decode session with optional scripted
// failure on a specific packet timestamp.
type mockCodec struct {
	mu       sync.Mutex
	hardware bool
	queue    []int64
	draining bool

	failPTS int64 // fires failErr once when this pts is submitted
	failErr error

	recreates       int
	recreatedNoHW   bool
	flushes         int
	closed          bool
}

func (c *mockCodec) SendPacket(pkt Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pkt == nil {
		c.draining = true
		return nil
	}
	p := pkt.(*mockPacket)
	if c.failErr != nil && p.pts == c.failPTS {
		err := c.failErr
		c.failErr = nil
		return err
	}
	c.queue = append(c.queue, p.pts)
	return nil
}

func (c *mockCodec) ReceiveFrame() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		pts := c.queue[0]
		c.queue = c.queue[1:]
		return &mockFrame{pts: pts, hasPTS: true}, nil
	}
	if c.draining {
		c.draining = false
		return nil, ErrEndOfStream
	}
	return nil, ErrTryAgain
}

func (c *mockCodec) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
	c.draining = false
	c.flushes++
}

func (c *mockCodec) Recreate(disableHardware bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recreates++
	if disableHardware {
		c.hardware = false
		c.recreatedNoHW = true
	}
	c.failErr = nil
	return nil
}

func (c *mockCodec) HardwareAccelerated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hardware
}

func (c *mockCodec) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockCodec) stats() (recreates int, noHW bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recreates, c.recreatedNoHW
}

type mockVideoConverter struct{}

func (mockVideoConverter) Convert(src Frame, dst *VideoBuffer) error {
	f := src.(*mockFrame)
	if len(dst.Data) > 0 {
		dst.Data[0] = byte(f.pts)
	}
	return nil
}

// mockAudioConverter emits four bytes per frame and a fixed tail on flush.
type mockAudioConverter struct{}

var audioFlushTail = []byte{0xF0, 0xF1, 0xF2, 0xF3}

func (mockAudioConverter) Resample(src Frame) ([]byte, error) {
	if src == nil {
		return audioFlushTail, nil
	}
	f := src.(*mockFrame)
	b := byte(f.pts)
	return []byte{b, b, b, b}, nil
}

// mockSession demuxes `total` packets of one stream at `interval` per frame.
type mockSession struct {
	mu        sync.Mutex
	video     *StreamInfo
	audio     *StreamInfo
	codec     *mockCodec
	acodec    *mockCodec
	total     int
	pos       int
	interval  time.Duration
	seekSlack int // frames rewound before the seek target, like a keyframe

	audioCodecErr error // returned by OpenAudioCodec when set

	globalDisabled bool
	streamDisabled bool
	closed         bool
}

const testFrameInterval = time.Second / 30

func newVideoSession(frames int) *mockSession {
	return &mockSession{
		video: &StreamInfo{
			Index:     0,
			CodecName: "h264",
			Width:     320,
			Height:    240,
			FrameRate: 30,
			TimeBase:  testFrameInterval,
			Duration:  time.Duration(frames) * testFrameInterval,
		},
		codec:    &mockCodec{},
		total:    frames,
		interval: testFrameInterval,
	}
}

func newAudioSession(frames int) *mockSession {
	return &mockSession{
		audio: &StreamInfo{
			Index:      0,
			CodecName:  "aac",
			SampleRate: 44100,
			Channels:   2,
			TimeBase:   testFrameInterval,
			Duration:   time.Duration(frames) * testFrameInterval,
		},
		acodec:   &mockCodec{},
		total:    frames,
		interval: testFrameInterval,
	}
}

func (s *mockSession) VideoStream() *StreamInfo { return s.video }
func (s *mockSession) AudioStream() *StreamInfo { return s.audio }

func (s *mockSession) Duration() time.Duration {
	if s.video != nil {
		return s.video.Duration
	}
	return s.audio.Duration
}

func (s *mockSession) ReadPacket() (Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= s.total {
		return nil, ErrEndOfStream
	}
	p := &mockPacket{stream: 0, pts: int64(s.pos)}
	s.pos++
	return p, nil
}

func (s *mockSession) Seek(target time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := int(target/s.interval) - s.seekSlack
	if pos < 0 {
		pos = 0
	}
	s.pos = pos
	return nil
}

func (s *mockSession) OpenVideoCodec(prefs []HardwareKind) (CodecSession, error) {
	return s.codec, nil
}

func (s *mockSession) OpenAudioCodec() (CodecSession, error) {
	if s.audioCodecErr != nil {
		return nil, s.audioCodecErr
	}
	return s.acodec, nil
}

func (s *mockSession) VideoConverter(target PixelFormat) (VideoConverter, error) {
	return mockVideoConverter{}, nil
}

func (s *mockSession) AudioConverter(target AudioFormat) (AudioConverter, error) {
	return mockAudioConverter{}, nil
}

func (s *mockSession) DisableHardware(global bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if global {
		s.globalDisabled = true
	} else {
		s.streamDisabled = true
	}
}

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockSession) disabled() (global, stream bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalDisabled, s.streamDisabled
}

// mockBackend opens a fresh session per call through the factory, so restart
// after a fault truly reruns setup.
type mockBackend struct {
	mu      sync.Mutex
	factory func() *mockSession
	openErr error
	opens   int
	last    *mockSession
}

func (b *mockBackend) Open(src *SourceAdapter, cfg SessionConfig) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	if b.openErr != nil {
		return nil, &SetupError{Stage: "open", Err: b.openErr}
	}
	b.last = b.factory()
	return b.last, nil
}

func (b *mockBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

func (b *mockBackend) session() *mockSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
