// Package delay provides delay line implementations for audio effects
package delay

import (
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when the backing storage cannot hold a frame.
var ErrShortBuffer = errors.New("delay: buffer shorter than one frame")

// Line is an interleaved multichannel circular buffer. Its storage is
// supplied by the caller, usually from the host allocator, so the line
// never allocates.
type Line struct {
	buffer   []float32
	channels int
	frames   int
	writePos int // frame written next
}

// New creates a delay line over buf holding len(buf)/channels frames.
func New(buf []float32, channels int) (*Line, error) {
	if channels < 1 {
		return nil, fmt.Errorf("delay: %d channels", channels)
	}
	frames := len(buf) / channels
	if frames < 1 {
		return nil, ErrShortBuffer
	}
	return &Line{buffer: buf[:frames*channels], channels: channels, frames: frames}, nil
}

// FramesFor returns the capacity a line needs for a delay of maxMs at sampleRate.
func FramesFor(maxMs, sampleRate float64) int {
	return int(maxMs*sampleRate/1000.0) + 1
}

// Frames returns the longest delay the line can hold.
func (d *Line) Frames() int { return d.frames }

// Channels returns the interleave width.
func (d *Line) Channels() int { return d.channels }

// Buffer returns the backing storage so the caller can free it.
func (d *Line) Buffer() []float32 { return d.buffer }

// Reset clears the delay buffer
func (d *Line) Reset() {
	clear(d.buffer)
	d.writePos = 0
}

// Echo runs frames interleaved frames from in to out through a feedback
// echo delay frames long. The delayed signal is fed back into the line
// scaled by feedback and mixed into out at wet alongside the input at dry.
// in and out may alias.
func (d *Line) Echo(out, in []float32, frames, delay int, feedback, dry, wet float32) {
	delay = min(max(delay, 1), d.frames)
	ch := d.channels
	readPos := d.writePos - delay
	if readPos < 0 {
		readPos += d.frames
	}
	for i := 0; i < frames; i++ {
		r, w := readPos*ch, d.writePos*ch
		for c := 0; c < ch; c++ {
			x := in[i*ch+c]
			delayed := d.buffer[r+c]
			d.buffer[w+c] = x + delayed*feedback
			out[i*ch+c] = x*dry + delayed*wet
		}
		if readPos++; readPos == d.frames {
			readPos = 0
		}
		if d.writePos++; d.writePos == d.frames {
			d.writePos = 0
		}
	}
}

// Tap reads channel ch delay frames behind the write position with linear
// interpolation between neighbouring frames.
func (d *Line) Tap(ch int, delay float64) float32 {
	readPos := float64(d.writePos) - delay
	for readPos < 0 {
		readPos += float64(d.frames)
	}
	i := int(readPos) % d.frames
	frac := float32(readPos - float64(int(readPos)))
	s1 := d.buffer[i*d.channels+ch]
	s2 := d.buffer[((i+1)%d.frames)*d.channels+ch]
	return s1*(1.0-frac) + s2*frac
}
