//go:build !ios && !android && (amd64 || arm64)

package ffmpeg

import (
	"bytes"
	"errors"
	"testing"

	"github.com/obinnaokechukwu/avplay"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping FFmpeg-dependent test in short mode")
	}
	if err := Init(); err != nil {
		t.Skipf("FFmpeg libraries not available: %v", err)
	}
}

func TestWrapperSuffix(t *testing.T) {
	cases := []struct {
		kind avplay.HardwareKind
		want string
	}{
		{avplay.HardwareCUDA, "_cuvid"},
		{avplay.HardwareQSV, "_qsv"},
		{avplay.HardwareMediaCodec, "_mediacodec"},
		{avplay.HardwareVAAPI, ""},
		{avplay.HardwareVideoToolbox, ""},
	}
	for _, tc := range cases {
		if got := wrapperSuffix(tc.kind); got != tc.want {
			t.Errorf("wrapperSuffix(%s) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestMapPixelFormat(t *testing.T) {
	if mapPixelFormat(avplay.PixelFormatRGBA) == mapPixelFormat(avplay.PixelFormatBGRA) {
		t.Error("RGBA and BGRA must map to distinct FFmpeg formats")
	}
	if mapPixelFormat(avplay.PixelFormatRGB24) == mapPixelFormat(avplay.PixelFormatRGBA) {
		t.Error("RGB24 and RGBA must map to distinct FFmpeg formats")
	}
}

func TestOpenRejectsUnknownFormatHint(t *testing.T) {
	requireFFmpeg(t)

	b := New(nil)
	src := avplay.NewSource(bytes.NewReader(make([]byte, 1024)))
	_, err := b.Open(src, avplay.SessionConfig{
		FormatHint: "no-such-container-format",
		WantVideo:  true,
	})
	if err == nil {
		t.Fatal("expected error for unknown format hint")
	}
	var setup *avplay.SetupError
	if !errors.As(err, &setup) || setup.Stage != "open" {
		t.Fatalf("expected SetupError at open stage, got %v", err)
	}
}

func TestOpenGarbageInputFails(t *testing.T) {
	requireFFmpeg(t)

	garbage := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 2048)
	b := New(nil)
	_, err := b.Open(avplay.NewSource(bytes.NewReader(garbage)), avplay.SessionConfig{WantVideo: true})
	if err == nil {
		t.Fatal("expected probe failure for garbage input")
	}
	var setup *avplay.SetupError
	if !errors.As(err, &setup) {
		t.Fatalf("expected SetupError, got %v", err)
	}
}

func TestBuildCandidatesSkipsUnknownTargets(t *testing.T) {
	requireFFmpeg(t)

	cands := buildCandidates("h264", avplay.DefaultHardwareOrder)
	for _, c := range cands {
		if !c.hardware {
			t.Errorf("candidate %s not marked hardware", c.kind)
		}
	}
	// Wrapper names must derive from the base codec name.
	for _, c := range cands {
		if c.name != "" && c.name[:4] != "h264" {
			t.Errorf("wrapper decoder %q does not extend base name", c.name)
		}
	}
}

func TestIOContextLifecycle(t *testing.T) {
	requireFFmpeg(t)

	src := avplay.NewSource(bytes.NewReader(make([]byte, 4096)))
	ctx, err := newIOContext(src, 0)
	if err != nil {
		t.Fatalf("newIOContext: %v", err)
	}
	if ctx.avio == nil {
		t.Fatal("AVIOContext not allocated")
	}
	ctx.close()
	if ctx.avio != nil || ctx.handle != 0 {
		t.Error("close did not clear native state")
	}
	ctx.close() // idempotent
}
