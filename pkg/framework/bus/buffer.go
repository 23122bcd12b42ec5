package bus

import (
	"fmt"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// Buffer is one interleaved multichannel buffer. Frame i of channel c is
// Data[i*Channels+c].
type Buffer struct {
	Channels int
	Mask     ChannelMask
	Data     []float32
}

// Frames returns how many whole frames Data holds.
func (b *Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Geometry returns the buffer's channel layout.
func (b *Buffer) Geometry() Geometry {
	return Geometry{Channels: b.Channels, Mask: b.Mask}
}

// EffectiveMask resolves a zero mask to the default for the channel count.
func (b *Buffer) EffectiveMask() ChannelMask {
	if b.Mask == 0 {
		return DefaultMask(b.Channels)
	}
	return b.Mask
}

// Array is the sequence of buffers handed to one side of a processing call.
// All buffers share SpeakerMode; each has its own geometry.
type Array struct {
	Buffers     []Buffer
	SpeakerMode SpeakerMode
}

// Len returns the number of buffers.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Buffers)
}

// Validate checks every buffer's geometry against the speaker mode and that
// each holds at least frames frames.
func (a *Array) Validate(frames int) error {
	if !a.SpeakerMode.valid() {
		return fmt.Errorf("speaker mode %d: %w", a.SpeakerMode, abi.ErrFormat)
	}
	for i := range a.Buffers {
		b := &a.Buffers[i]
		if err := validateGeometry(b.Geometry(), a.SpeakerMode); err != nil {
			return fmt.Errorf("buffer %d: %w", i, err)
		}
		if len(b.Data) < frames*b.Channels {
			return fmt.Errorf("buffer %d holds %d samples, need %d: %w",
				i, len(b.Data), frames*b.Channels, abi.ErrFormat)
		}
	}
	return nil
}

func validateGeometry(g Geometry, mode SpeakerMode) error {
	if g.Channels < 1 || g.Channels > MaxChannels {
		return fmt.Errorf("%d channels outside [1,%d]: %w", g.Channels, MaxChannels, abi.ErrFormat)
	}
	if g.Mask == 0 {
		if mode.Fixed() && g.Channels > mode.Channels() {
			return fmt.Errorf("%d channels exceed %s layout: %w", g.Channels, mode, abi.ErrFormat)
		}
		return nil
	}
	if g.Mask.Count() != g.Channels {
		return fmt.Errorf("mask %#x has %d speakers for %d channels: %w",
			uint32(g.Mask), g.Mask.Count(), g.Channels, abi.ErrFormat)
	}
	if mode.Fixed() && g.Mask&^mode.Mask() != 0 {
		return fmt.Errorf("mask %#x outside %s layout: %w", uint32(g.Mask), mode, abi.ErrFormat)
	}
	return nil
}

// Clear zeroes the first frames frames of every buffer.
func (a *Array) Clear(frames int) {
	for i := range a.Buffers {
		b := &a.Buffers[i]
		clear(b.Data[:min(frames*b.Channels, len(b.Data))])
	}
}

// CopyFrom copies frames frames of src into a. Both arrays must have the
// same shape.
func (a *Array) CopyFrom(src *Array, frames int) error {
	if !a.SameShape(src) {
		return fmt.Errorf("copy between different shapes: %w", abi.ErrFormat)
	}
	for i := range a.Buffers {
		n := frames * a.Buffers[i].Channels
		copy(a.Buffers[i].Data[:n], src.Buffers[i].Data[:n])
	}
	return nil
}

// EnsureData sizes every buffer to exactly frames frames, reusing existing
// capacity. It allocates only when a buffer grows past its capacity.
func (a *Array) EnsureData(frames int) {
	for i := range a.Buffers {
		b := &a.Buffers[i]
		n := frames * b.Channels
		if cap(b.Data) < n {
			b.Data = make([]float32, n)
			continue
		}
		b.Data = b.Data[:n]
	}
}

// Apply reshapes a to s. Buffer data is kept and must be resized with
// EnsureData afterwards.
func (a *Array) Apply(s Shape) {
	if cap(a.Buffers) < len(s.Buffers) {
		grown := make([]Buffer, len(s.Buffers))
		copy(grown, a.Buffers)
		a.Buffers = grown
	}
	a.Buffers = a.Buffers[:len(s.Buffers)]
	for i, g := range s.Buffers {
		a.Buffers[i].Channels = g.Channels
		a.Buffers[i].Mask = g.Mask
	}
	a.SpeakerMode = s.SpeakerMode
}

// Interleave writes planar channel data into the buffer. Channels without
// a plane are left untouched.
func (b *Buffer) Interleave(planes [][]float32) {
	frames := b.Frames()
	for c := 0; c < b.Channels && c < len(planes); c++ {
		p := planes[c]
		for i := 0; i < frames && i < len(p); i++ {
			b.Data[i*b.Channels+c] = p[i]
		}
	}
}

// Deinterleave splits the buffer into planes, which must hold one slice per
// channel with at least Frames samples each.
func (b *Buffer) Deinterleave(planes [][]float32) {
	frames := b.Frames()
	for c := 0; c < b.Channels && c < len(planes); c++ {
		p := planes[c]
		for i := 0; i < frames && i < len(p); i++ {
			p[i] = b.Data[i*b.Channels+c]
		}
	}
}
