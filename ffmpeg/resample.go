//go:build !ios && !android && (amd64 || arm64)

package ffmpeg

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/obinnaokechukwu/avplay"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avcodec"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avformat"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
	"github.com/obinnaokechukwu/avplay/ffmpeg/swresample"
)

func mapSampleFormat(f avplay.SampleFormat) avutil.SampleFormat {
	if f == avplay.SampleF32 {
		return avutil.SampleFormatFlt
	}
	return avutil.SampleFormatS16
}

// audioConverter resamples decoded audio into the consumer's interleaved
// output format. The output buffer is reused; returned slices are valid only
// until the next Resample call.
type audioConverter struct {
	target avplay.AudioFormat
	swr    swresample.Context

	// Layouts are kept alive for the life of the converter; FFmpeg copies
	// them during setup but the pointers also feed reconfiguration.
	inLayout  *avutil.ChannelLayout
	outLayout *avutil.ChannelLayout

	frameSize int // bytes per output sample across all channels
	buf       []byte

	// passthrough copies samples straight out when the stream already
	// matches the requested interleaved format.
	passthrough bool
}

func newAudioConverter(par avcodec.Parameters, target avplay.AudioFormat) (*audioConverter, error) {
	inRate := int(avformat.GetCodecParSampleRate(par))
	inFmt := avutil.SampleFormat(avformat.GetCodecParFormat(par))
	inCh := int(avformat.GetCodecParChannels(par))
	if inRate <= 0 || inCh <= 0 {
		return nil, fmt.Errorf("ffmpeg: audio stream has no usable parameters: rate=%d channels=%d", inRate, inCh)
	}

	c := &audioConverter{
		target:    target,
		inLayout:  avutil.ChannelLayoutDefault(inCh),
		outLayout: avutil.ChannelLayoutDefault(target.Channels),
		frameSize: target.Channels * target.Format.BytesPerSample(),
	}

	if inRate == target.SampleRate && inCh == target.Channels &&
		inFmt == mapSampleFormat(target.Format) {
		c.passthrough = true
		return c, nil
	}

	swr, err := swresample.AllocSetOpts(
		c.outLayout.Pointer(), mapSampleFormat(target.Format), target.SampleRate,
		c.inLayout.Pointer(), inFmt, inRate,
	)
	if err != nil {
		return nil, err
	}
	if err := swresample.InitContext(swr); err != nil {
		swresample.Free(&swr)
		return nil, err
	}
	c.swr = swr
	return c, nil
}

func (c *audioConverter) Resample(src avplay.Frame) ([]byte, error) {
	if src == nil {
		if c.passthrough {
			return nil, nil // nothing buffered
		}
		return c.flush()
	}
	df, ok := src.(*decodedFrame)
	if !ok {
		return nil, fmt.Errorf("ffmpeg: unexpected frame type %T", src)
	}
	frame := df.ptr

	nb := int(avutil.GetFrameNbSamples(frame))
	if nb == 0 {
		return nil, nil
	}

	if c.passthrough {
		return c.copyInterleaved(frame, nb), nil
	}
	if c.swr == nil {
		return nil, errors.New("ffmpeg: resampler is closed")
	}
	outCap := swresample.GetOutSamples(c.swr, nb)
	if outCap <= 0 {
		outCap = nb
	}

	in := avutil.GetFrameData(frame)
	n, err := c.convert(outCap, unsafe.Pointer(&in), nb)
	runtime.KeepAlive(frame)
	if err != nil {
		return nil, err
	}
	return c.buf[:n*c.frameSize], nil
}

// flush drains delay buffered inside the resampler; called once at end of
// stream.
func (c *audioConverter) flush() ([]byte, error) {
	outCap := swresample.GetOutSamples(c.swr, 0)
	if outCap <= 0 {
		return nil, nil
	}
	n, err := c.convert(outCap, nil, 0)
	if err != nil {
		return nil, err
	}
	return c.buf[:n*c.frameSize], nil
}

func (c *audioConverter) convert(outCap int, in unsafe.Pointer, inCount int) (int, error) {
	if need := outCap * c.frameSize; cap(c.buf) < need {
		c.buf = make([]byte, need)
	}
	c.buf = c.buf[:cap(c.buf)]

	// Interleaved output is a single plane.
	var out [8]unsafe.Pointer
	out[0] = unsafe.Pointer(&c.buf[0])

	n, err := swresample.Convert(c.swr, unsafe.Pointer(&out), outCap, in, inCount)
	runtime.KeepAlive(c.buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// copyInterleaved lifts an already-matching packed frame into the reusable
// output buffer. Interleaved formats carry all channels in plane 0.
func (c *audioConverter) copyInterleaved(frame avutil.Frame, nb int) []byte {
	need := nb * c.frameSize
	if cap(c.buf) < need {
		c.buf = make([]byte, need)
	}
	c.buf = c.buf[:need]
	data := avutil.GetFrameData(frame)
	src := unsafe.Slice((*byte)(data[0]), need)
	copy(c.buf, src)
	runtime.KeepAlive(frame)
	return c.buf
}

func (c *audioConverter) close() {
	swresample.Free(&c.swr)
}
