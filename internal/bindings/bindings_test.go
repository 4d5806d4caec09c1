//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"runtime"
	"strings"
	"testing"
)

func TestLibrarySearchPaths(t *testing.T) {
	paths := LibrarySearchPaths()
	if len(paths) == 0 {
		t.Error("LibrarySearchPaths should return at least one path")
	}
}

func TestFormatLibraryName(t *testing.T) {
	name := formatLibraryName("avcodec", 60)
	switch runtime.GOOS {
	case "darwin":
		if name != "libavcodec.60.dylib" {
			t.Errorf("unexpected name %q", name)
		}
	case "windows":
		if name != "avcodec-60.dll" {
			t.Errorf("unexpected name %q", name)
		}
	default:
		if name != "libavcodec.so.60" {
			t.Errorf("unexpected name %q", name)
		}
	}

	unversioned := formatLibraryName("avcodec", 0)
	if strings.Contains(unversioned, "60") {
		t.Errorf("unversioned name %q must not carry a version", unversioned)
	}
}

// Integration test: only meaningful when FFmpeg is installed.
func TestLoadFFmpeg(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping FFmpeg load test in short mode")
	}

	if err := Load(); err != nil {
		t.Skipf("FFmpeg not available: %v", err)
	}

	if !IsLoaded() {
		t.Error("IsLoaded should be true after successful Load")
	}

	ver := AVUtilVersion()
	if ver == 0 {
		t.Error("AVUtilVersion should return non-zero after Load")
	}
	t.Logf("FFmpeg loaded: avutil version %d.%d.%d",
		ver>>16, (ver>>8)&0xFF, ver&0xFF)
}
