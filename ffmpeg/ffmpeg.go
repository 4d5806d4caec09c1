//go:build !ios && !android && (amd64 || arm64)

// Package ffmpeg implements the avplay backend on FFmpeg's shared libraries,
// loaded at runtime through purego. No cgo is involved; the libraries are
// resolved with dlopen and struct fields are read through version-pinned
// offsets.
package ffmpeg

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/obinnaokechukwu/avplay"
	"github.com/obinnaokechukwu/avplay/ffmpeg/avutil"
	"github.com/obinnaokechukwu/avplay/internal/bindings"
)

// Backend opens decode sessions backed by libavformat and libavcodec.
type Backend struct {
	log *slog.Logger
}

// New returns a backend. A nil logger means slog.Default().
func New(log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{log: log}
}

// Init loads the FFmpeg shared libraries. Open calls it implicitly; calling
// it at startup surfaces missing-library errors early.
func Init() error {
	return bindings.Load()
}

// Available reports whether the FFmpeg libraries could be loaded.
func Available() bool {
	return bindings.Load() == nil
}

// Version returns the loaded avutil, avcodec, and avformat library versions
// in FFmpeg's packed major.minor.micro encoding, or zeros when the libraries
// are not loaded.
func Version() (utilVer, codecVer, formatVer uint32) {
	return bindings.AVUtilVersion(), bindings.AVCodecVersion(), bindings.AVFormatVersion()
}

// hardwareOff is the process-wide hardware kill switch. It latches after an
// out-of-memory failure in any session and is never reset.
var hardwareOff atomic.Bool

var logLevelOnce sync.Once

// Open probes src and resolves the requested streams.
func (b *Backend) Open(src *avplay.SourceAdapter, cfg avplay.SessionConfig) (avplay.Session, error) {
	if err := bindings.Load(); err != nil {
		return nil, &avplay.SetupError{Stage: "open", Err: err}
	}
	logLevelOnce.Do(func() {
		avutil.LogSetLevel(avutil.LogError)
	})
	return openSession(b.log, src, cfg)
}
