package process

import (
	"github.com/tphakala/simd/f32"

	"github.com/justyntemme/dspplug/pkg/framework/bus"
)

// ForwardInput copies each input buffer into the output buffer at the same
// position when their channel counts agree and silences every other output
// buffer. It reports whether all output was forwarded.
func ForwardInput(in, out *bus.Array, frames int) bool {
	forwarded := out.Len() > 0
	for i := range out.Len() {
		dst := &out.Buffers[i]
		n := min(frames*dst.Channels, len(dst.Data))
		if i < in.Len() && in.Buffers[i].Channels == dst.Channels && len(in.Buffers[i].Data) >= n {
			copy(dst.Data[:n], in.Buffers[i].Data[:n])
			continue
		}
		clear(dst.Data[:n])
		forwarded = false
	}
	return forwarded
}

// ProcessBuffers calls fn for each input/output buffer pair.
func (c *Context) ProcessBuffers(fn func(i int, in, out *bus.Buffer)) {
	n := min(c.In.Len(), c.Out.Len())
	for i := 0; i < n; i++ {
		fn(i, &c.In.Buffers[i], &c.Out.Buffers[i])
	}
}

// ProcessFrames calls fn once per frame of the main buffers with the
// frame's input and output channel slices.
func (c *Context) ProcessFrames(fn func(frame int, in, out []float32)) {
	src, dst := c.Main(), c.Output()
	if src == nil || dst == nil {
		return
	}
	for i := 0; i < c.Frames; i++ {
		fn(i, src.Data[i*src.Channels:(i+1)*src.Channels], dst.Data[i*dst.Channels:(i+1)*dst.Channels])
	}
}

// Scale writes src*gain into dst for frames frames of an interleaved
// buffer with channels channels.
func Scale(dst, src []float32, channels, frames int, gain float32) {
	n := frames * channels
	f32.Scale(dst[:n], src[:n], gain)
}

// Accumulate adds src into dst sample by sample.
func Accumulate(dst, src []float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
}

// ApplyRamp multiplies each frame of an interleaved buffer by the matching
// entry of ramp, which holds one gain per frame.
func ApplyRamp(dst, src []float32, channels int, ramp []float32) {
	for i, g := range ramp {
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			dst[base+ch] = src[base+ch] * g
		}
	}
}
