package avplay

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBackend(frames int) *mockBackend {
	return &mockBackend{factory: func() *mockSession { return newVideoSession(frames) }}
}

// seekableSource is enough bytes for the SourceAdapter to treat as a file.
func seekableSource() io.Reader {
	return bytes.NewReader(make([]byte, 4096))
}

func waitState(t *testing.T, d *Decoder, want DecoderState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if d.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state never reached %v, still %v", want, d.State())
}

// collectTimestamps drains the output queue until n frames arrived or the
// timeout elapsed, returning buffers to the pool as it goes.
func collectTimestamps(d *Decoder, n int, timeout time.Duration) []time.Duration {
	deadline := time.Now().Add(timeout)
	var out []time.Duration
	var batch []VideoFrame
	for len(out) < n && time.Now().Before(deadline) {
		batch = d.Frames(batch[:0])
		for _, f := range batch {
			out = append(out, f.Timestamp)
		}
		d.ReturnFrames(batch...)
		if len(batch) == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	return out
}

func TestDecodeToEndOfStream(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())

	got := collectTimestamps(d, 30, 5*time.Second)
	require.Len(t, got, 30)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "timestamps must be non-decreasing")
	}
	assert.Equal(t, time.Duration(0), got[0])
	assert.Equal(t, 29*testFrameInterval, got[29])

	waitState(t, d, StateEndOfStream)
	assert.NoError(t, d.Err())
	assert.Equal(t, 29*testFrameInterval, d.LastFrameTime())
	assert.Equal(t, 30*testFrameInterval, d.Duration())
	assert.Equal(t, float64(30), d.FrameRate())
}

func TestStopTransitionsToStopped(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	d.Stop()
	<-d.Done()
	assert.Equal(t, StateStopped, d.State())
	assert.True(t, be.session().closed, "native session must be released on stop")
}

func TestBackpressureBoundsQueue(t *testing.T) {
	be := testBackend(300)
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())

	// Without a consumer the loop must park after a handful of frames
	// instead of decoding the whole input ahead.
	time.Sleep(50 * time.Millisecond)
	queued := len(d.Frames(nil))
	assert.LessOrEqual(t, queued, backlogThreshold+1)
	assert.Less(t, queued, 300)
}

func TestSeekDropsFramesBeforeTarget(t *testing.T) {
	be := &mockBackend{factory: func() *mockSession {
		s := newVideoSession(30)
		s.seekSlack = 3 // demuxer lands on a keyframe before the target
		return s
	}}
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	collectTimestamps(d, 30, 5*time.Second)
	waitState(t, d, StateEndOfStream)

	target := 15 * testFrameInterval
	require.NoError(t, d.Seek(target))

	got := collectTimestamps(d, 15, 5*time.Second)
	require.NotEmpty(t, got)
	assert.Equal(t, target, got[0], "frames before the seek target must be dropped")
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
}

func TestSeekNonSeekableSourceFailsSynchronously(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, iotest(strings.NewReader("not seekable")), Config{})
	require.NoError(t, err)
	defer d.Close()

	assert.False(t, d.CanSeek())
	assert.ErrorIs(t, d.Seek(time.Second), ErrNotSeekable)
}

func TestSeekFailsFastWhenMailboxFull(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	// No loop is draining the mailbox, so it eventually fills. The overflowing
	// request must be rejected immediately instead of blocking the caller.
	for i := 0; i < mailboxCapacity; i++ {
		require.NoError(t, d.Seek(time.Duration(i)*testFrameInterval))
	}
	assert.ErrorIs(t, d.Seek(0), ErrCommandQueueFull)
}

func TestStartDiscardsSeeksQueuedWhileStopped(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Seek(15*testFrameInterval))

	require.NoError(t, d.Start())
	got := collectTimestamps(d, 30, 5*time.Second)
	require.Len(t, got, 30)
	assert.Equal(t, time.Duration(0), got[0], "seeks queued before start must not replay")
}

func TestHardwareOOMDisablesGlobally(t *testing.T) {
	be := &mockBackend{factory: func() *mockSession {
		s := newVideoSession(30)
		s.codec.hardware = true
		s.codec.failPTS = 5
		s.codec.failErr = &HardwareError{OutOfMemory: true, Err: errors.New("device out of memory")}
		return s
	}}
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	got := collectTimestamps(d, 30, 5*time.Second)
	waitState(t, d, StateEndOfStream)

	require.NoError(t, d.Err(), "hardware failures must not fault the pipeline")
	require.Len(t, got, 30, "the failed packet must be resubmitted after the rebuild")

	sess := be.session()
	global, _ := sess.disabled()
	assert.True(t, global, "an out-of-memory failure disables hardware globally")
	recreates, noHW := sess.codec.stats()
	assert.GreaterOrEqual(t, recreates, 1)
	assert.True(t, noHW)
	assert.False(t, sess.codec.HardwareAccelerated())
}

func TestHardwareFailureFallsBackPerStream(t *testing.T) {
	be := &mockBackend{factory: func() *mockSession {
		s := newVideoSession(30)
		s.codec.hardware = true
		s.codec.failPTS = 5
		s.codec.failErr = &HardwareError{Err: errors.New("hw decode failed")}
		return s
	}}
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	got := collectTimestamps(d, 30, 5*time.Second)
	waitState(t, d, StateEndOfStream)

	require.NoError(t, d.Err())
	require.Len(t, got, 30)

	global, stream := be.session().disabled()
	assert.False(t, global, "a non-OOM failure must not disable hardware globally")
	assert.True(t, stream)
}

func TestLoopingRestartsFromZero(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{Looping: true})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	got := collectTimestamps(d, 45, 5*time.Second)
	require.Len(t, got, 45)

	// Timestamps wrap back to zero when the input loops.
	wrapped := false
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			wrapped = true
			assert.Equal(t, time.Duration(0), got[i])
		}
	}
	assert.True(t, wrapped, "looping decode must restart timestamps")
	assert.NotEqual(t, StateEndOfStream, d.State())
}

func TestSetupFailureFaultsAndRestartRecovers(t *testing.T) {
	be := testBackend(30)
	be.openErr = errors.New("container not recognized")
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	<-d.Done()
	assert.Equal(t, StateFaulted, d.State())

	var setup *SetupError
	require.ErrorAs(t, d.Err(), &setup)
	assert.Equal(t, "open", setup.Stage)

	// A restart reruns setup from scratch.
	be.mu.Lock()
	be.openErr = nil
	be.mu.Unlock()

	require.NoError(t, d.Start())
	got := collectTimestamps(d, 30, 5*time.Second)
	assert.Len(t, got, 30)
	waitState(t, d, StateEndOfStream)
}

func TestStartWhileRunningFails(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	assert.ErrorIs(t, d.Start(), ErrDecoderRunning)
}

func TestStartStopCyclesDoNotLeakBuffers(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Start())
		collectTimestamps(d, 10, 5*time.Second)
		d.Stop()
		<-d.Done()
	}
	require.NoError(t, d.Close())

	// Drain anything still queued and return it; nothing may stay checked out.
	d.ReturnFrames(d.Frames(nil)...)
	assert.Zero(t, d.OutstandingBuffers())
}

func TestCloseIsIdempotent(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)

	require.NoError(t, d.Start())
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Start(), ErrClosed)
	assert.ErrorIs(t, d.Seek(0), ErrClosed)
}

func TestDecodeAudioInline(t *testing.T) {
	be := &mockBackend{factory: func() *mockSession { return newAudioSession(30) }}
	d, err := New(be, seekableSource(), Config{
		VideoDisabled: true,
		Audio:         &AudioFormat{SampleRate: 44100, Channels: 2, Format: SampleS16},
	})
	require.NoError(t, err)
	defer d.Close()

	var all []byte
	for {
		buf, err := d.DecodeAudio(8)
		all = append(all, buf...)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
	}

	// 30 frames of 4 bytes each plus the resampler's flush tail.
	require.Len(t, all, 30*4+len(audioFlushTail))
	assert.Equal(t, audioFlushTail, all[30*4:])
	assert.Equal(t, StateEndOfStream, d.State())
}

func TestDecodeAudioRejectedWhileRunning(t *testing.T) {
	be := testBackend(30)
	d, err := New(be, seekableSource(), Config{
		Audio: &AudioFormat{SampleRate: 44100, Channels: 2, Format: SampleS16},
	})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	_, err = d.DecodeAudio(1)
	assert.ErrorIs(t, err, ErrDecoderRunning)
}

func TestDecodeAudioSetupFailureRerunsSetup(t *testing.T) {
	var calls int
	be := &mockBackend{factory: func() *mockSession {
		calls++
		s := newAudioSession(4)
		if calls == 1 {
			s.audioCodecErr = errors.New("decoder unavailable")
		}
		return s
	}}
	d, err := New(be, seekableSource(), Config{
		VideoDisabled: true,
		Audio:         &AudioFormat{SampleRate: 44100, Channels: 2, Format: SampleS16},
	})
	require.NoError(t, err)
	defer d.Close()

	_, err = d.DecodeAudio(1)
	var setup *SetupError
	require.ErrorAs(t, err, &setup)
	assert.Equal(t, "codec", setup.Stage)
	assert.Equal(t, StateFaulted, d.State())

	// The failed attempt must not leave a half-built session behind; the next
	// call reruns setup and decodes normally.
	var all []byte
	for {
		buf, err := d.DecodeAudio(8)
		all = append(all, buf...)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 2, be.openCount())
	require.Len(t, all, 4*4+len(audioFlushTail))
	assert.NoError(t, d.Err())
}

func TestNewValidatesConfig(t *testing.T) {
	be := testBackend(1)

	_, err := New(nil, seekableSource(), Config{})
	assert.Error(t, err)

	_, err = New(be, nil, Config{})
	assert.Error(t, err)

	_, err = New(be, seekableSource(), Config{VideoDisabled: true})
	assert.Error(t, err, "audio-less video-less config is useless")

	_, err = New(be, seekableSource(), Config{Audio: &AudioFormat{SampleRate: -1}})
	assert.Error(t, err)
}

func TestMissingVideoStreamFaults(t *testing.T) {
	be := &mockBackend{factory: func() *mockSession { return newAudioSession(30) }}
	d, err := New(be, seekableSource(), Config{})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Start())
	<-d.Done()
	assert.Equal(t, StateFaulted, d.State())
	assert.ErrorIs(t, d.Err(), ErrNoStream)
}
