//go:build !ios && !android && (amd64 || arm64)

package ffmpeg

import (
	"errors"
	"fmt"

	"github.com/obinnaokechukwu/avplay"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avcodec"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avformat"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
)

// candidate is one decoder configuration to attempt: an optional dedicated
// wrapper decoder plus an optional hardware device.
type candidate struct {
	kind       avplay.HardwareKind
	name       string // wrapper decoder name, empty for the generic decoder
	deviceType avutil.HWDeviceType
	hardware   bool
}

// wrapperSuffix returns the decoder-name suffix for targets that ship
// dedicated wrapper decoders instead of hwaccel contexts.
func wrapperSuffix(kind avplay.HardwareKind) string {
	switch kind {
	case avplay.HardwareCUDA:
		return "_cuvid"
	case avplay.HardwareQSV:
		return "_qsv"
	case avplay.HardwareMediaCodec:
		return "_mediacodec"
	default:
		return ""
	}
}

// buildCandidates ranks hardware configurations in preference order. The
// software decoder is not included; open always appends it as the final
// fallback.
func buildCandidates(baseName string, prefs []avplay.HardwareKind) []candidate {
	var out []candidate
	for _, kind := range prefs {
		devType := avutil.HWDeviceFindTypeByName(kind.String())
		if devType == avutil.HWDeviceTypeNone {
			continue // this FFmpeg build does not know the target
		}
		c := candidate{kind: kind, deviceType: devType, hardware: true}
		if suffix := wrapperSuffix(kind); suffix != "" {
			c.name = baseName + suffix
		}
		out = append(out, c)
	}
	return out
}

// codecSession drives one AVCodecContext, rebuilding it on demand when
// hardware decoding is abandoned.
type codecSession struct {
	sess  *session
	par   avcodec.Parameters
	video bool
	prefs []avplay.HardwareKind

	baseName string

	ctx      avcodec.Context
	hwDev    avutil.HWDeviceContext
	hwActive bool
	hwKind   avplay.HardwareKind
	noHW     bool

	// frame is the single receive frame, unreferenced before each decode.
	frame avutil.Frame
	out   decodedFrame
}

func newCodecSession(s *session, par avcodec.Parameters, video bool, prefs []avplay.HardwareKind) *codecSession {
	return &codecSession{
		sess:     s,
		par:      par,
		video:    video,
		prefs:    prefs,
		baseName: avcodec.GetCodecName(avcodec.FindDecoder(avformat.GetCodecParCodecID(par))),
	}
}

// open tries each hardware candidate in order, then the software decoder.
// Hardware candidates failing is routine (missing driver, unsupported
// profile) and only logged.
func (cs *codecSession) open() error {
	if cs.video && !cs.noHW && cs.sess.hardwareAllowed() {
		for _, cand := range buildCandidates(cs.baseName, cs.prefs) {
			if err := cs.tryOpen(cand.name, cand.deviceType); err != nil {
				cs.sess.log.Debug("hardware decoder candidate failed",
					"target", cand.kind.String(),
					"decoder", cs.candidateFor(cand.name),
					"error", err)
				continue
			}
			cs.hwActive = true
			cs.hwKind = cand.kind
			cs.sess.log.Info("hardware decoding active",
				"target", cand.kind.String(), "decoder", cs.candidateFor(cand.name))
			return nil
		}
	}

	cs.hwActive = false
	if err := cs.tryOpen("", avutil.HWDeviceTypeNone); err != nil {
		return &avplay.CodecOpenError{Candidate: cs.baseName, Err: err}
	}
	return nil
}

// tryOpen builds a codec context for one candidate. On any failure the
// partial state is torn down and the session is untouched.
func (cs *codecSession) tryOpen(decoderName string, devType avutil.HWDeviceType) error {
	var codec avcodec.Codec
	if decoderName != "" {
		codec = avcodec.FindDecoderByName(decoderName)
	} else {
		codec = avcodec.FindDecoder(avformat.GetCodecParCodecID(cs.par))
	}
	if codec == nil {
		return fmt.Errorf("ffmpeg: decoder %q not available", cs.candidateFor(decoderName))
	}

	ctx := avcodec.AllocContext3(codec)
	if ctx == nil {
		return errors.New("ffmpeg: codec context allocation failed")
	}
	if err := avcodec.ParametersToContext(ctx, cs.par); err != nil {
		avcodec.FreeContext(&ctx)
		return err
	}

	var hwDev avutil.HWDeviceContext
	if devType != avutil.HWDeviceTypeNone {
		var err error
		hwDev, err = avutil.HWDeviceCtxCreate(devType, "")
		if err != nil {
			avcodec.FreeContext(&ctx)
			return err
		}
		avcodec.SetCtxHWDeviceCtx(ctx, hwDev)
	}

	if err := avcodec.Open2(ctx, codec, nil); err != nil {
		avcodec.FreeContext(&ctx)
		avutil.FreeBufferRef(&hwDev)
		return err
	}

	if cs.frame == nil {
		cs.frame = avutil.FrameAlloc()
		if cs.frame == nil {
			avcodec.FreeContext(&ctx)
			avutil.FreeBufferRef(&hwDev)
			return errors.New("ffmpeg: frame allocation failed")
		}
	}

	cs.ctx = ctx
	cs.hwDev = hwDev
	return nil
}

func (cs *codecSession) candidateFor(name string) string {
	if name != "" {
		return name
	}
	return cs.baseName
}

// translate maps an FFmpeg error to the pipeline's vocabulary. Failures on
// an active hardware context become HardwareError so the pipeline downgrades
// instead of faulting.
func (cs *codecSession) translate(err error) error {
	if err == nil {
		return nil
	}
	if avutil.IsAgain(err) {
		return avplay.ErrTryAgain
	}
	if avutil.IsEOF(err) {
		return avplay.ErrEndOfStream
	}
	if cs.hwActive {
		return &avplay.HardwareError{OutOfMemory: avutil.IsNoMem(err), Err: err}
	}
	return err
}

func (cs *codecSession) SendPacket(pkt avplay.Packet) error {
	var raw avcodec.Packet
	if pkt != nil {
		raw = pkt.(*packet).ptr
	}
	return cs.translate(avcodec.SendPacket(cs.ctx, raw))
}

func (cs *codecSession) ReceiveFrame() (avplay.Frame, error) {
	avutil.FrameUnref(cs.frame)
	if err := avcodec.ReceiveFrame(cs.ctx, cs.frame); err != nil {
		return nil, cs.translate(err)
	}
	cs.out = decodedFrame{ptr: cs.frame}
	return &cs.out, nil
}

func (cs *codecSession) Flush() {
	avcodec.FlushBuffers(cs.ctx)
}

// Recreate tears the native context down and reopens. disableHardware
// latches; once software-only, the session never tries hardware again.
func (cs *codecSession) Recreate(disableHardware bool) error {
	if disableHardware {
		cs.noHW = true
	}
	cs.closeNative()
	return cs.open()
}

func (cs *codecSession) HardwareAccelerated() bool {
	return cs.hwActive
}

func (cs *codecSession) closeNative() {
	if cs.ctx != nil {
		avcodec.FreeContext(&cs.ctx)
	}
	avutil.FreeBufferRef(&cs.hwDev)
	cs.hwActive = false
}

func (cs *codecSession) Close() error {
	cs.closeNative()
	avutil.FrameFree(&cs.frame)
	return nil
}

// decodedFrame wraps the session's receive frame. Valid until the next
// ReceiveFrame on the same session.
type decodedFrame struct {
	ptr avutil.Frame
}

// PTS prefers the presentation timestamp and falls back to the packet DTS
// for streams that never fill pts in.
func (f *decodedFrame) PTS() (int64, bool) {
	pts := avutil.GetFramePTS(f.ptr)
	if pts == avutil.NoPTSValue {
		pts = avutil.GetFramePktDTS(f.ptr)
	}
	return pts, pts != avutil.NoPTSValue
}

func (f *decodedFrame) Release() {
	avutil.FrameUnref(f.ptr)
}
