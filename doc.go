// Package avplay implements a playback-oriented media decode pipeline:
// demuxing, decoder selection with automatic hardware fallback, pixel-format
// conversion, audio resampling, and buffer recycling, all driven by a single
// worker goroutine.
//
// The pipeline core in this package is backend-agnostic. The production
// backend in the ffmpeg subpackage binds FFmpeg's shared libraries through
// purego (no CGO); demuxing and codec work is delegated to it entirely.
//
// A Decoder is controlled from arbitrary goroutines (Start, Stop, Seek) but
// all decode and codec state is owned by the worker: external callers only
// enqueue commands or drain output queues. Consumers drain decoded video
// frames with Frames and hand the carriers back with ReturnFrames so their
// buffers can be recycled.
package avplay
