package avplay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// backlogThreshold is the soft backpressure limit: once this many decoded
	// frames are waiting to be drained the loop reverts to Ready and idles.
	backlogThreshold = 3

	idleInterval        = time.Millisecond
	endOfStreamInterval = 50 * time.Millisecond

	outputQueueCapacity = 64
	mailboxCapacity     = 64
	framePoolCapacity   = 16
)

// Decoder drives the decode pipeline. One long-running worker goroutine owns
// every piece of demux/codec/conversion state; other goroutines interact only
// through the command mailbox, the output queues, and atomic status fields.
type Decoder struct {
	cfg     Config
	backend Backend
	src     *SourceAdapter
	log     *slog.Logger

	state         atomic.Int32
	lastFrameTime atomic.Int64 // time.Duration

	commands chan command
	frames   chan VideoFrame
	pool     *bufferPool

	faultMu  sync.Mutex
	faultErr error

	obsMu     sync.Mutex
	duration  time.Duration
	frameRate float64

	audioMu  sync.Mutex
	audioBuf []byte

	// Lifecycle, guarded by runMu. DecodeAudio holds runMu for its whole
	// inline decode so Start cannot race with it.
	runMu   sync.Mutex
	running bool
	closed  bool
	cancel  chan struct{}
	done    chan struct{}

	// Decode-loop-owned state. Touched only by the worker goroutine, or by
	// DecodeAudio while it holds runMu and no worker is active.
	session    Session
	video      CodecSession
	audio      CodecSession
	vconv      VideoConverter
	aconv      AudioConverter
	vinfo      *StreamInfo
	ainfo      *StreamInfo
	pending    Packet
	skipArmed  bool
	skipBefore time.Duration
}

// New builds a decoder over src using the given backend. No native resources
// are acquired until the first Start (or inline DecodeAudio).
func New(backend Backend, src io.Reader, cfg Config) (*Decoder, error) {
	if backend == nil {
		return nil, errors.New("avplay: backend cannot be nil")
	}
	if src == nil {
		return nil, errors.New("avplay: source cannot be nil")
	}
	if cfg.VideoDisabled && cfg.Audio == nil {
		return nil, errors.New("avplay: nothing to decode: video disabled and no audio format")
	}
	if cfg.Audio != nil {
		if cfg.Audio.SampleRate <= 0 || cfg.Audio.Channels <= 0 {
			return nil, fmt.Errorf("avplay: invalid audio format: rate=%d channels=%d",
				cfg.Audio.SampleRate, cfg.Audio.Channels)
		}
	}

	d := &Decoder{
		cfg:      cfg,
		backend:  backend,
		src:      NewSource(src),
		log:      cfg.logger(),
		commands: make(chan command, mailboxCapacity),
		frames:   make(chan VideoFrame, outputQueueCapacity),
		pool:     newBufferPool(framePoolCapacity, cfg.Allocate),
	}
	d.state.Store(int32(StateReady))
	return d, nil
}

// State returns the current pipeline state.
func (d *Decoder) State() DecoderState {
	return DecoderState(d.state.Load())
}

func (d *Decoder) setState(s DecoderState) {
	d.state.Store(int32(s))
}

// Err returns the error that faulted the pipeline, or nil.
func (d *Decoder) Err() error {
	d.faultMu.Lock()
	defer d.faultMu.Unlock()
	return d.faultErr
}

// Duration returns the media duration (stream duration when the container
// reports one per stream, otherwise the container duration). Zero until
// setup has run.
func (d *Decoder) Duration() time.Duration {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	return d.duration
}

// FrameRate returns the video stream's average frame rate, or 0.
func (d *Decoder) FrameRate() float64 {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	return d.frameRate
}

// LastFrameTime returns the timestamp of the most recently decoded video
// frame.
func (d *Decoder) LastFrameTime() time.Duration {
	return time.Duration(d.lastFrameTime.Load())
}

// CanSeek reports whether the underlying source supports seeking.
func (d *Decoder) CanSeek() bool { return d.src.Seekable() }

// Start spins up the decode worker. If the decoder previously stopped or
// faulted, setup is rerun from scratch.
func (d *Decoder) Start() error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.running {
		return ErrDecoderRunning
	}

	// Commands queued while no loop was running are stale; a restarted loop
	// must not replay them.
	drainCommands(d.commands)

	d.cancel = make(chan struct{})
	d.done = make(chan struct{})
	d.running = true
	go d.run(d.cancel, d.done)
	return nil
}

// Stop requests cancellation. It returns immediately; use Done to await loop
// exit, after which native resources have been released.
func (d *Decoder) Stop() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	d.stopLocked()
}

func (d *Decoder) stopLocked() {
	if !d.running {
		return
	}
	select {
	case <-d.cancel:
	default:
		close(d.cancel)
	}
}

// Done returns a channel closed when the worker goroutine has exited. If the
// decoder was never started the returned channel is already closed.
func (d *Decoder) Done() <-chan struct{} {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return d.done
}

// Close stops the worker, waits for it to exit, and marks the decoder
// unusable. Buffers still held by the consumer stay valid.
func (d *Decoder) Close() error {
	d.runMu.Lock()
	if d.closed {
		d.runMu.Unlock()
		return nil
	}
	d.stopLocked()
	done := d.done
	d.closed = true
	d.runMu.Unlock()

	if done != nil {
		<-done
	}
	// The loop releases native state on exit; a never-started decoder may
	// still hold a session from inline audio decoding.
	d.releaseLoopState()
	return nil
}

// Seek requests an asynchronous seek to target. Seeking a non-seekable
// source is a synchronous usage error. Seeks are executed by the decode loop
// in FIFO order; rapid bursts coalesce to the last target. Seek never blocks:
// when the mailbox is saturated because no loop is draining it, the request
// is rejected with ErrCommandQueueFull.
func (d *Decoder) Seek(target time.Duration) error {
	if !d.src.Seekable() {
		return ErrNotSeekable
	}
	d.runMu.Lock()
	closed := d.closed
	d.runMu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case d.commands <- seekCommand{target: target}:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Frames appends every decoded frame currently queued to dst and returns it.
// Ownership of the frame buffers transfers to the caller until ReturnFrames.
func (d *Decoder) Frames(dst []VideoFrame) []VideoFrame {
	for {
		select {
		case f := <-d.frames:
			dst = append(dst, f)
		default:
			return dst
		}
	}
}

// ReturnFrames hands consumed frame buffers back for reuse.
func (d *Decoder) ReturnFrames(frames ...VideoFrame) {
	for _, f := range frames {
		d.pool.Put(f.Buffer)
	}
}

// OutstandingBuffers reports presentable buffers currently checked out of the
// pool (queued or held by the consumer).
func (d *Decoder) OutstandingBuffers() int64 {
	return d.pool.Outstanding()
}

// DecodeAudio runs up to iterations decode steps inline on the calling
// goroutine and returns the accumulated resampled bytes. It is intended for
// audio-only use and must not be called while the worker is running; doing
// so returns ErrDecoderRunning. ErrEndOfStream is returned alongside any
// final bytes once the input is exhausted.
func (d *Decoder) DecodeAudio(iterations int) ([]byte, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if d.running {
		return nil, ErrDecoderRunning
	}
	if d.cfg.Audio == nil {
		return nil, errors.New("avplay: audio decoding not configured")
	}

	if d.session == nil {
		if err := d.prepare(); err != nil {
			// A partially built session must not survive into the next call;
			// recovery always reruns setup from scratch.
			d.releaseLoopState()
			d.fault(err)
			return nil, err
		}
		d.faultMu.Lock()
		d.faultErr = nil
		d.faultMu.Unlock()
		d.setState(StateReady)
	}

	for i := 0; i < iterations; i++ {
		if d.State() == StateEndOfStream {
			break
		}
		if err := d.step(); err != nil {
			d.fault(err)
			return d.takeAudio(), err
		}
	}
	buf := d.takeAudio()
	if d.State() == StateEndOfStream {
		return buf, ErrEndOfStream
	}
	return buf, nil
}

func (d *Decoder) takeAudio() []byte {
	d.audioMu.Lock()
	defer d.audioMu.Unlock()
	buf := d.audioBuf
	d.audioBuf = nil
	return buf
}

func (d *Decoder) appendAudio(b []byte) {
	if len(b) == 0 {
		return
	}
	d.audioMu.Lock()
	d.audioBuf = append(d.audioBuf, b...)
	d.audioMu.Unlock()
}

// run is the decode loop. It owns all decode state for its lifetime.
func (d *Decoder) run(cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		d.releaseLoopState()
		d.runMu.Lock()
		d.running = false
		d.runMu.Unlock()
	}()

	if d.session == nil {
		if err := d.prepare(); err != nil {
			d.fault(err)
			return
		}
	}
	d.faultMu.Lock()
	d.faultErr = nil
	d.faultMu.Unlock()
	d.setState(StateReady)

	for {
		select {
		case <-cancel:
			if d.State() != StateFaulted {
				d.setState(StateStopped)
			}
			return
		default:
		}

		canceled := false
		for _, c := range drainCommands(d.commands) {
			if err := d.execute(c); err != nil {
				d.fault(err)
				return
			}
			select {
			case <-cancel:
				canceled = true
			default:
			}
			if canceled {
				break
			}
		}
		if canceled {
			continue
		}

		switch d.State() {
		case StateReady, StateRunning:
			if len(d.frames) >= backlogThreshold {
				d.setState(StateReady)
				d.sleep(cancel, idleInterval)
				continue
			}
			if err := d.step(); err != nil {
				d.fault(err)
				return
			}
		case StateEndOfStream:
			d.sleep(cancel, endOfStreamInterval)
		default:
			return
		}
	}
}

func (d *Decoder) sleep(cancel <-chan struct{}, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-cancel:
	case <-t.C:
	}
}

func (d *Decoder) fault(err error) {
	d.log.Error("decode pipeline faulted", "error", err)
	d.faultMu.Lock()
	d.faultErr = err
	d.faultMu.Unlock()
	d.setState(StateFaulted)
}

// prepare opens the input, selects streams, and builds codec sessions and
// converters. Any failure is fatal for this attempt.
func (d *Decoder) prepare() error {
	sess, err := d.backend.Open(d.src, SessionConfig{
		FormatHint: d.cfg.FormatHint,
		WantVideo:  !d.cfg.VideoDisabled,
		WantAudio:  d.cfg.Audio != nil,
	})
	if err != nil {
		return err
	}
	d.session = sess
	d.skipArmed = false

	if !d.cfg.VideoDisabled {
		d.vinfo = sess.VideoStream()
		if d.vinfo == nil {
			return &SetupError{Stage: "stream", Err: ErrNoStream}
		}
		if d.video, err = sess.OpenVideoCodec(d.cfg.hardwareOrder()); err != nil {
			return &SetupError{Stage: "codec", Err: err}
		}
		if d.vconv, err = sess.VideoConverter(d.cfg.PixelFormat); err != nil {
			return &SetupError{Stage: "convert", Err: err}
		}
		d.log.Debug("video stream ready",
			"codec", d.vinfo.CodecName,
			"size", fmt.Sprintf("%dx%d", d.vinfo.Width, d.vinfo.Height),
			"hardware", d.video.HardwareAccelerated())
	}

	if d.cfg.Audio != nil {
		d.ainfo = sess.AudioStream()
		switch {
		case d.ainfo != nil:
			if d.audio, err = sess.OpenAudioCodec(); err != nil {
				return &SetupError{Stage: "codec", Err: err}
			}
			if d.aconv, err = sess.AudioConverter(*d.cfg.Audio); err != nil {
				return &SetupError{Stage: "convert", Err: err}
			}
		case d.cfg.VideoDisabled:
			// Audio-only operation with no audio stream is fatal.
			return &SetupError{Stage: "stream", Err: ErrNoStream}
		default:
			d.log.Warn("no audio stream; continuing with video only")
		}
	}

	d.obsMu.Lock()
	d.duration = sess.Duration()
	if d.vinfo != nil {
		d.frameRate = d.vinfo.FrameRate
	}
	d.obsMu.Unlock()
	return nil
}

// releaseLoopState tears down all native resources; safe to call twice.
func (d *Decoder) releaseLoopState() {
	if d.pending != nil {
		d.pending.Release()
		d.pending = nil
	}
	if d.video != nil {
		d.video.Close()
		d.video = nil
	}
	if d.audio != nil {
		d.audio.Close()
		d.audio = nil
	}
	if d.session != nil {
		d.session.Close()
		d.session = nil
	}
	d.vconv = nil
	d.aconv = nil
	d.vinfo = nil
	d.ainfo = nil
}

// execute runs one queued command on the loop goroutine.
func (d *Decoder) execute(c command) error {
	switch cmd := c.(type) {
	case seekCommand:
		return d.applySeek(cmd.target)
	case recreateCodecCommand:
		if d.video == nil {
			return nil
		}
		if err := d.video.Recreate(cmd.disableHardware); err != nil {
			return err
		}
		d.log.Debug("video codec rebuilt", "hardware", d.video.HardwareAccelerated())
		return nil
	default:
		return fmt.Errorf("avplay: unknown command %T", c)
	}
}

func (d *Decoder) applySeek(target time.Duration) error {
	if d.pending != nil {
		d.pending.Release()
		d.pending = nil
	}
	if d.video != nil {
		d.video.Flush()
	}
	if d.audio != nil {
		d.audio.Flush()
	}
	if err := d.session.Seek(target); err != nil {
		return err
	}
	d.skipArmed = true
	d.skipBefore = target
	d.setState(StateReady)
	return nil
}

// step performs one packet decode iteration: read a packet (unless a partial
// one is pending from a prior try-again), dispatch it by stream index, and
// collect any frames the codec can produce.
func (d *Decoder) step() error {
	if d.pending == nil {
		pkt, err := d.session.ReadPacket()
		if errors.Is(err, ErrEndOfStream) {
			return d.finishStream()
		}
		if err != nil {
			return err
		}
		d.pending = pkt
	}

	pkt := d.pending
	idx := pkt.StreamIndex()
	switch {
	case d.video != nil && idx == d.vinfo.Index:
		return d.decodeVideoPacket(pkt)
	case d.audio != nil && idx == d.ainfo.Index:
		return d.decodeAudioPacket(pkt)
	default:
		pkt.Release()
		d.pending = nil
		return nil
	}
}

func (d *Decoder) decodeVideoPacket(pkt Packet) error {
	err := d.video.SendPacket(pkt)
	switch {
	case err == nil:
		pkt.Release()
		d.pending = nil
		d.setState(StateRunning)
	case errors.Is(err, ErrTryAgain):
		// Keep the packet pending; it will be resubmitted next iteration.
	default:
		if d.isHardwareFailure(err) {
			return d.handleHardwareError(err)
		}
		return err
	}
	return d.receiveVideoFrames()
}

func (d *Decoder) receiveVideoFrames() error {
	for {
		f, err := d.video.ReceiveFrame()
		if errors.Is(err, ErrTryAgain) || errors.Is(err, ErrEndOfStream) {
			return nil
		}
		if err != nil {
			if d.isHardwareFailure(err) {
				return d.handleHardwareError(err)
			}
			return err
		}
		if err := d.emitVideoFrame(f); err != nil {
			return err
		}
	}
}

func (d *Decoder) emitVideoFrame(f Frame) error {
	pts, ok := f.PTS()
	if !ok {
		f.Release()
		return nil
	}
	ts := d.vinfo.FrameTime(pts)

	// Frames timestamped before a pending seek target are dropped silently.
	if d.skipArmed {
		if ts < d.skipBefore {
			f.Release()
			return nil
		}
		d.skipArmed = false
	}

	buf := d.pool.Get(d.vinfo.Width, d.vinfo.Height, d.cfg.PixelFormat)
	err := d.vconv.Convert(f, buf)
	f.Release()
	if err != nil {
		d.pool.Put(buf)
		if d.isHardwareFailure(err) {
			return d.handleHardwareError(err)
		}
		return err
	}

	d.frames <- VideoFrame{Timestamp: ts, Buffer: buf}
	d.lastFrameTime.Store(int64(ts))
	return nil
}

func (d *Decoder) decodeAudioPacket(pkt Packet) error {
	err := d.audio.SendPacket(pkt)
	switch {
	case err == nil:
		pkt.Release()
		d.pending = nil
		d.setState(StateRunning)
	case errors.Is(err, ErrTryAgain):
	default:
		return err
	}
	return d.receiveAudioFrames()
}

func (d *Decoder) receiveAudioFrames() error {
	for {
		f, err := d.audio.ReceiveFrame()
		if errors.Is(err, ErrTryAgain) || errors.Is(err, ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return err
		}
		b, rerr := d.aconv.Resample(f)
		f.Release()
		if rerr != nil {
			return rerr
		}
		d.appendAudio(b)
	}
}

// finishStream flushes both codecs and the resampler, then either loops back
// to time zero or parks in EndOfStream.
func (d *Decoder) finishStream() error {
	if d.video != nil {
		if err := d.drainVideo(); err != nil {
			return err
		}
	}
	if d.audio != nil {
		if err := d.drainAudio(); err != nil {
			return err
		}
		tail, err := d.aconv.Resample(nil)
		if err != nil {
			return err
		}
		d.appendAudio(tail)
	}

	if d.cfg.Looping {
		if err := d.session.Seek(0); err != nil {
			return err
		}
		if d.video != nil {
			d.video.Flush()
		}
		if d.audio != nil {
			d.audio.Flush()
		}
		d.skipArmed = false
		d.setState(StateReady)
		d.log.Debug("input exhausted; looping back to start")
		return nil
	}

	d.setState(StateEndOfStream)
	d.log.Debug("input exhausted; end of stream")
	return nil
}

func (d *Decoder) drainVideo() error {
	if err := d.video.SendPacket(nil); err != nil && !errors.Is(err, ErrTryAgain) {
		if d.isHardwareFailure(err) {
			return d.handleHardwareError(err)
		}
		return err
	}
	for {
		f, err := d.video.ReceiveFrame()
		if errors.Is(err, ErrEndOfStream) || errors.Is(err, ErrTryAgain) {
			return nil
		}
		if err != nil {
			if d.isHardwareFailure(err) {
				return d.handleHardwareError(err)
			}
			return err
		}
		if err := d.emitVideoFrame(f); err != nil {
			return err
		}
	}
}

func (d *Decoder) drainAudio() error {
	if err := d.audio.SendPacket(nil); err != nil && !errors.Is(err, ErrTryAgain) {
		return err
	}
	for {
		f, err := d.audio.ReceiveFrame()
		if errors.Is(err, ErrEndOfStream) || errors.Is(err, ErrTryAgain) {
			return nil
		}
		if err != nil {
			return err
		}
		b, rerr := d.aconv.Resample(f)
		f.Release()
		if rerr != nil {
			return rerr
		}
		d.appendAudio(b)
	}
}

func (d *Decoder) isHardwareFailure(err error) bool {
	var hw *HardwareError
	return errors.As(err, &hw)
}

// handleHardwareError downgrades hardware decoding and schedules an
// asynchronous codec rebuild. Hardware failures never fault the pipeline.
func (d *Decoder) handleHardwareError(err error) error {
	var hw *HardwareError
	errors.As(err, &hw)

	if hw.OutOfMemory {
		d.log.Warn("hardware decoder out of memory; disabling hardware decoding globally", "error", hw.Err)
		d.session.DisableHardware(true)
	} else {
		d.log.Warn("hardware decode failure; falling back to software for this stream", "error", hw.Err)
		d.session.DisableHardware(false)
	}
	d.enqueueCommand(recreateCodecCommand{disableHardware: true})
	return nil
}

func (d *Decoder) enqueueCommand(c command) {
	select {
	case d.commands <- c:
	default:
		// Mailbox full: execute-side pressure is extreme; drop duplicates of
		// rebuild requests rather than block the loop on itself.
	}
}
