//go:build !ios && !android && (amd64 || arm64)

package ffmpeg

import (
	"errors"
	"log/slog"
	"time"

	"github.com/obinnaokechukwu/avplay"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avcodec"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avformat"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
)

// session is one opened input: format context, custom I/O, and the selected
// streams. It is driven by a single goroutine; no locking inside.
type session struct {
	log *slog.Logger
	src *avplay.SourceAdapter

	io  *ioContext
	ctx avformat.FormatContext

	vinfo *avplay.StreamInfo
	ainfo *avplay.StreamInfo
	vpar  avcodec.Parameters
	apar  avcodec.Parameters

	// hwDisabled turns off hardware candidates for this session only; the
	// package-level hardwareOff switch covers the out-of-memory case.
	hwDisabled bool

	vconvs []*videoConverter
	aconvs []*audioConverter
}

func openSession(log *slog.Logger, src *avplay.SourceAdapter, cfg avplay.SessionConfig) (*session, error) {
	ioCtx, err := newIOContext(src, cfg.IOBufferSize)
	if err != nil {
		return nil, &avplay.SetupError{Stage: "open", Err: err}
	}

	fmtCtx := avformat.AllocContext()
	if fmtCtx == nil {
		ioCtx.close()
		return nil, &avplay.SetupError{Stage: "open", Err: errors.New("ffmpeg: format context allocation failed")}
	}
	avformat.SetIOContext(fmtCtx, ioCtx.avio)
	avformat.AddFlags(fmtCtx, avformat.FlagCustomIO)

	var inputFmt avformat.InputFormat
	if cfg.FormatHint != "" {
		if inputFmt = avformat.FindInputFormat(cfg.FormatHint); inputFmt == nil {
			avformat.FreeContext(fmtCtx)
			ioCtx.close()
			return nil, &avplay.SetupError{Stage: "open",
				Err: errors.New("ffmpeg: unknown container format " + cfg.FormatHint)}
		}
	}

	if err := avformat.OpenInput(&fmtCtx, "", inputFmt, nil); err != nil {
		avformat.FreeContext(fmtCtx)
		ioCtx.close()
		return nil, &avplay.SetupError{Stage: "open", Err: err}
	}
	if err := avformat.FindStreamInfo(fmtCtx, nil); err != nil {
		avformat.CloseInput(&fmtCtx)
		ioCtx.close()
		return nil, &avplay.SetupError{Stage: "probe", Err: err}
	}

	s := &session{log: log, src: src, io: ioCtx, ctx: fmtCtx}

	if cfg.WantVideo {
		if idx := avformat.FindBestStream(fmtCtx, avutil.MediaTypeVideo, -1, -1, nil, 0); idx >= 0 {
			stream := avformat.GetStream(fmtCtx, int(idx))
			s.vpar = avformat.GetStreamCodecPar(stream)
			s.vinfo = buildStreamInfo(stream, s.vpar)
		}
	}
	if cfg.WantAudio {
		if idx := avformat.FindBestStream(fmtCtx, avutil.MediaTypeAudio, -1, -1, nil, 0); idx >= 0 {
			stream := avformat.GetStream(fmtCtx, int(idx))
			s.apar = avformat.GetStreamCodecPar(stream)
			s.ainfo = buildStreamInfo(stream, s.apar)
		}
	}
	return s, nil
}

// buildStreamInfo flattens the demuxer's view of one stream into the
// backend-neutral description the pipeline works with.
func buildStreamInfo(stream avformat.Stream, par avcodec.Parameters) *avplay.StreamInfo {
	info := &avplay.StreamInfo{
		Index:     int(avformat.GetStreamIndex(stream)),
		CodecName: avcodec.GetCodecName(avcodec.FindDecoder(avformat.GetCodecParCodecID(par))),
	}

	tb := avformat.GetStreamTimeBase(stream)
	if tb.Den > 0 {
		info.TimeBase = time.Duration(int64(tb.Num) * int64(time.Second) / int64(tb.Den))
	}
	if st := avformat.GetStreamStartTime(stream); st != avutil.NoPTSValue {
		info.StartTime = time.Duration(st) * info.TimeBase
	}
	if dur := avformat.GetStreamDuration(stream); dur != avutil.NoPTSValue && dur > 0 {
		info.Duration = time.Duration(dur) * info.TimeBase
	}

	switch avformat.GetCodecParType(par) {
	case avutil.MediaTypeVideo:
		info.Width = int(avformat.GetCodecParWidth(par))
		info.Height = int(avformat.GetCodecParHeight(par))
		info.FrameRate = avformat.GetStreamAvgFrameRate(stream).Float64()
	case avutil.MediaTypeAudio:
		info.SampleRate = int(avformat.GetCodecParSampleRate(par))
		info.Channels = int(avformat.GetCodecParChannels(par))
	}
	return info
}

func (s *session) VideoStream() *avplay.StreamInfo { return s.vinfo }
func (s *session) AudioStream() *avplay.StreamInfo { return s.ainfo }

// Duration prefers the selected stream's own duration; containers that only
// track a global duration fall back to it.
func (s *session) Duration() time.Duration {
	for _, info := range []*avplay.StreamInfo{s.vinfo, s.ainfo} {
		if info != nil && info.Duration > 0 {
			return info.Duration
		}
	}
	if dur := avformat.GetDuration(s.ctx); dur != avutil.NoPTSValue && dur > 0 {
		return time.Duration(dur) * time.Microsecond
	}
	return 0
}

// packet owns one demuxed AVPacket. Packets outlive ReadPacket calls (the
// pipeline retains them across try-again cycles), so each gets its own
// allocation.
type packet struct {
	ptr avcodec.Packet
}

func (p *packet) StreamIndex() int {
	return int(avcodec.GetPacketStreamIndex(p.ptr))
}

func (p *packet) Release() {
	avcodec.PacketFree(&p.ptr)
}

func (s *session) ReadPacket() (avplay.Packet, error) {
	pkt := avcodec.PacketAlloc()
	if pkt == nil {
		return nil, errors.New("ffmpeg: packet allocation failed")
	}
	if err := avformat.ReadFrame(s.ctx, pkt); err != nil {
		avcodec.PacketFree(&pkt)
		if avutil.IsEOF(err) {
			return nil, avplay.ErrEndOfStream
		}
		return nil, err
	}
	return &packet{ptr: pkt}, nil
}

// Seek positions the demuxer on the keyframe at or before target. Timestamps
// go through the primary stream's time base when one is selected.
func (s *session) Seek(target time.Duration) error {
	info := s.vinfo
	if info == nil {
		info = s.ainfo
	}
	if info != nil && info.TimeBase > 0 {
		ticks := int64((target + info.StartTime) / info.TimeBase)
		return avformat.SeekFrame(s.ctx, int32(info.Index), ticks, avformat.SeekFlagBackward)
	}
	return avformat.SeekFrame(s.ctx, -1, target.Microseconds(), avformat.SeekFlagBackward)
}

func (s *session) OpenVideoCodec(prefs []avplay.HardwareKind) (avplay.CodecSession, error) {
	if s.vpar == nil {
		return nil, avplay.ErrNoStream
	}
	cs := newCodecSession(s, s.vpar, true, prefs)
	if err := cs.open(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *session) OpenAudioCodec() (avplay.CodecSession, error) {
	if s.apar == nil {
		return nil, avplay.ErrNoStream
	}
	cs := newCodecSession(s, s.apar, false, nil)
	if err := cs.open(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *session) VideoConverter(target avplay.PixelFormat) (avplay.VideoConverter, error) {
	c := &videoConverter{target: target}
	s.vconvs = append(s.vconvs, c)
	return c, nil
}

func (s *session) AudioConverter(target avplay.AudioFormat) (avplay.AudioConverter, error) {
	if s.apar == nil {
		return nil, avplay.ErrNoStream
	}
	c, err := newAudioConverter(s.apar, target)
	if err != nil {
		return nil, &avplay.SetupError{Stage: "convert", Err: err}
	}
	s.aconvs = append(s.aconvs, c)
	return c, nil
}

func (s *session) DisableHardware(global bool) {
	if global {
		hardwareOff.Store(true)
		return
	}
	s.hwDisabled = true
}

func (s *session) hardwareAllowed() bool {
	return !s.hwDisabled && !hardwareOff.Load()
}

func (s *session) Close() error {
	for _, c := range s.vconvs {
		c.close()
	}
	s.vconvs = nil
	for _, c := range s.aconvs {
		c.close()
	}
	s.aconvs = nil

	if s.ctx != nil {
		avformat.CloseInput(&s.ctx)
	}
	if s.io != nil {
		s.io.close()
		s.io = nil
	}
	return nil
}
