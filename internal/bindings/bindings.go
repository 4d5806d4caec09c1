//go:build !ios && !android && (amd64 || arm64)

// Package bindings loads the FFmpeg shared libraries and hands out their
// dlopen handles for purego function registration.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// ErrNotLoaded is returned when FFmpeg functions are called before Load().
var ErrNotLoaded = errors.New("avplay: FFmpeg libraries not loaded; call ffmpeg.Init() first")

// ErrLibraryNotFound is returned when a required FFmpeg library cannot be found.
var ErrLibraryNotFound = errors.New("avplay: FFmpeg library not found")

// Is64Bit reports whether the platform is 64-bit. Only 64-bit platforms are
// supported due to purego limitations.
const Is64Bit = unsafe.Sizeof(uintptr(0)) == 8

var (
	libAVUtil     uintptr
	libAVCodec    uintptr
	libAVFormat   uintptr
	libSWScale    uintptr
	libSWResample uintptr

	loaded   bool
	loadOnce sync.Once
	loadErr  error
)

var (
	avutilVersion     func() uint32
	avcodecVersion    func() uint32
	avformatVersion   func() uint32
	swscaleVersion    func() uint32
	swresampleVersion func() uint32
)

// IsLoaded returns true if FFmpeg libraries have been successfully loaded.
func IsLoaded() bool {
	return loaded
}

// Load loads FFmpeg libraries and registers the version bindings. It is safe
// to call multiple times; subsequent calls are no-ops.
func Load() error {
	loadOnce.Do(func() {
		loadErr = doLoad()
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad() error {
	// Libraries must load in dependency order: avutil first, everything else
	// after. RTLD_GLOBAL is required because the FFmpeg libraries
	// cross-reference each other's symbols.
	var err error

	libAVUtil, err = loadLibrary("avutil", []int{59, 58, 57, 56})
	if err != nil {
		return fmt.Errorf("loading libavutil: %w", err)
	}

	libAVCodec, err = loadLibrary("avcodec", []int{61, 60, 59, 58})
	if err != nil {
		return fmt.Errorf("loading libavcodec: %w", err)
	}

	libAVFormat, err = loadLibrary("avformat", []int{61, 60, 59, 58})
	if err != nil {
		return fmt.Errorf("loading libavformat: %w", err)
	}

	libSWScale, err = loadLibrary("swscale", []int{8, 7, 6, 5})
	if err != nil {
		return fmt.Errorf("loading libswscale: %w", err)
	}

	libSWResample, err = loadLibrary("swresample", []int{5, 4, 3, 2})
	if err != nil {
		return fmt.Errorf("loading libswresample: %w", err)
	}

	purego.RegisterLibFunc(&avutilVersion, libAVUtil, "avutil_version")
	purego.RegisterLibFunc(&avcodecVersion, libAVCodec, "avcodec_version")
	purego.RegisterLibFunc(&avformatVersion, libAVFormat, "avformat_version")
	purego.RegisterLibFunc(&swscaleVersion, libSWScale, "swscale_version")
	purego.RegisterLibFunc(&swresampleVersion, libSWResample, "swresample_version")

	return nil
}

// loadLibrary attempts to load a library by trying versioned names across the
// platform search paths, then falls back to the system loader.
func loadLibrary(name string, versions []int) (uintptr, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range versions {
			lib, err := tryOpen(filepath.Join(searchPath, formatLibraryName(name, ver)))
			if err == nil {
				return lib, nil
			}
		}
		lib, err := tryOpen(filepath.Join(searchPath, formatLibraryName(name, 0)))
		if err == nil {
			return lib, nil
		}
	}

	// Bare names let the system loader resolve.
	for _, ver := range versions {
		lib, err := tryOpen(formatLibraryName(name, ver))
		if err == nil {
			return lib, nil
		}
	}
	lib, err := tryOpen(formatLibraryName(name, 0))
	if err == nil {
		return lib, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

func tryOpen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// formatLibraryName returns the platform-specific library filename.
// Linux: libavcodec.so.60, macOS: libavcodec.60.dylib, Windows: avcodec-60.dll.
func formatLibraryName(name string, version int) string {
	switch runtime.GOOS {
	case "darwin":
		if version > 0 {
			return fmt.Sprintf("lib%s.%d.dylib", name, version)
		}
		return fmt.Sprintf("lib%s.dylib", name)
	case "windows":
		if version > 0 {
			return fmt.Sprintf("%s-%d.dll", name, version)
		}
		return fmt.Sprintf("%s.dll", name)
	default:
		if version > 0 {
			return fmt.Sprintf("lib%s.so.%d", name, version)
		}
		return fmt.Sprintf("lib%s.so", name)
	}
}

// LibrarySearchPaths returns platform-specific library search paths.
func LibrarySearchPaths() []string {
	var paths []string

	switch runtime.GOOS {
	case "linux":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/local/lib",
			"/usr/lib",
			"/lib/x86_64-linux-gnu",
			"/lib",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib",
			"/usr/local/lib",
			"/opt/homebrew/opt/ffmpeg/lib",
			"/usr/local/opt/ffmpeg/lib",
		)

	case "windows":
		if winPath := os.Getenv("PATH"); winPath != "" {
			paths = append(paths, filepath.SplitList(winPath)...)
		}
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exe))
		}
		paths = append(paths,
			"C:\\ffmpeg\\bin",
			"C:\\Program Files\\ffmpeg\\bin",
		)

	case "freebsd":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/local/lib",
			"/usr/lib",
		)
	}

	return paths
}

// AVUtilVersion returns the avutil library version, or 0 when not loaded.
func AVUtilVersion() uint32 {
	if !loaded || avutilVersion == nil {
		return 0
	}
	return avutilVersion()
}

// AVCodecVersion returns the avcodec library version, or 0 when not loaded.
func AVCodecVersion() uint32 {
	if !loaded || avcodecVersion == nil {
		return 0
	}
	return avcodecVersion()
}

// AVFormatVersion returns the avformat library version, or 0 when not loaded.
func AVFormatVersion() uint32 {
	if !loaded || avformatVersion == nil {
		return 0
	}
	return avformatVersion()
}

// SWScaleVersion returns the swscale library version, or 0 when not loaded.
func SWScaleVersion() uint32 {
	if !loaded || swscaleVersion == nil {
		return 0
	}
	return swscaleVersion()
}

// SWResampleVersion returns the swresample library version, or 0 when not
// loaded.
func SWResampleVersion() uint32 {
	if !loaded || swresampleVersion == nil {
		return 0
	}
	return swresampleVersion()
}

// LibAVUtil returns the avutil library handle.
func LibAVUtil() uintptr { return libAVUtil }

// LibAVCodec returns the avcodec library handle.
func LibAVCodec() uintptr { return libAVCodec }

// LibAVFormat returns the avformat library handle.
func LibAVFormat() uintptr { return libAVFormat }

// LibSWScale returns the swscale library handle.
func LibSWScale() uintptr { return libSWScale }

// LibSWResample returns the swresample library handle.
func LibSWResample() uintptr { return libSWResample }
