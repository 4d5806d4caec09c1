//go:build !ios && !android && (amd64 || arm64)

package avutil

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// ChannelLayout mirrors AVChannelLayout (FFmpeg 5.1+). Instances built here
// live in Go memory and are only ever passed by pointer for the duration of
// a call.
type ChannelLayout struct {
	Order      int32
	NbChannels int32
	Mask       uint64
	Opaque     uintptr
}

var (
	avChannelLayoutDefault func(layout unsafe.Pointer, nbChannels int32)
	avChannelLayoutUninit  func(layout unsafe.Pointer)
)

func registerChannelLayoutBindings(lib uintptr) {
	purego.RegisterLibFunc(&avChannelLayoutDefault, lib, "av_channel_layout_default")
	purego.RegisterLibFunc(&avChannelLayoutUninit, lib, "av_channel_layout_uninit")
}

// ChannelLayoutDefault returns the canonical layout for a channel count
// (mono, stereo, 5.1, ...).
func ChannelLayoutDefault(nbChannels int) *ChannelLayout {
	cl := &ChannelLayout{}
	if avChannelLayoutDefault != nil {
		avChannelLayoutDefault(unsafe.Pointer(cl), int32(nbChannels))
	} else {
		cl.NbChannels = int32(nbChannels)
	}
	return cl
}

// Pointer returns the layout as an opaque pointer for binding calls.
func (cl *ChannelLayout) Pointer() unsafe.Pointer {
	return unsafe.Pointer(cl)
}
