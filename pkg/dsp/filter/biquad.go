// Package filter provides second-order IIR filters for interleaved audio.
package filter

import "math"

// MaxChannels is the widest interleaved buffer a Biquad keeps state for.
const MaxChannels = 32

// ButterworthQ gives a maximally flat passband.
const ButterworthQ = 1 / math.Sqrt2

// Biquad is a Direct Form I second-order section with per-channel state.
// The zero value passes audio through unchanged.
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32 // normalized by a0
	bypass     bool

	x1, x2 [MaxChannels]float32
	y1, y2 [MaxChannels]float32
}

// NewBiquad returns a pass-through filter.
func NewBiquad() *Biquad {
	return &Biquad{b0: 1}
}

// Reset clears the filter state.
func (b *Biquad) Reset() {
	b.x1, b.x2 = [MaxChannels]float32{}, [MaxChannels]float32{}
	b.y1, b.y2 = [MaxChannels]float32{}, [MaxChannels]float32{}
}

// SetCoefficients sets the coefficients directly, normalizing by a0.
func (b *Biquad) SetCoefficients(b0, b1, b2, a0, a1, a2 float64) {
	inv := 1 / a0
	b.b0, b.b1, b.b2 = float32(b0*inv), float32(b1*inv), float32(b2*inv)
	b.a1, b.a2 = float32(a1*inv), float32(a2*inv)
	b.bypass = false
}

// SetBypass makes Process copy its input.
func (b *Biquad) SetBypass() {
	b.bypass = true
	b.Reset()
}

// Bypassed reports whether the filter passes audio unchanged.
func (b *Biquad) Bypassed() bool { return b.bypass }

// SetLowpass configures a lowpass at frequency Hz.
func (b *Biquad) SetLowpass(sampleRate, frequency, q float64) {
	cos, alpha := prewarp(sampleRate, frequency, q)
	b.SetCoefficients((1-cos)/2, 1-cos, (1-cos)/2, 1+alpha, -2*cos, 1-alpha)
}

// SetHighpass configures a highpass at frequency Hz.
func (b *Biquad) SetHighpass(sampleRate, frequency, q float64) {
	cos, alpha := prewarp(sampleRate, frequency, q)
	b.SetCoefficients((1+cos)/2, -(1 + cos), (1+cos)/2, 1+alpha, -2*cos, 1-alpha)
}

func prewarp(sampleRate, frequency, q float64) (cos, alpha float64) {
	omega := 2 * math.Pi * min(frequency, sampleRate*0.49) / sampleRate
	return math.Cos(omega), math.Sin(omega) / (2 * q)
}

// Process filters frames frames of interleaved src into dst. dst and src
// may be the same slice. Channels past MaxChannels are copied unfiltered.
func (b *Biquad) Process(dst, src []float32, channels, frames int) {
	n := frames * channels
	if b.bypass {
		copy(dst[:n], src[:n])
		return
	}
	for ch := 0; ch < channels; ch++ {
		if ch >= MaxChannels {
			for i := ch; i < n; i += channels {
				dst[i] = src[i]
			}
			continue
		}
		x1, x2, y1, y2 := b.x1[ch], b.x2[ch], b.y1[ch], b.y2[ch]
		for i := ch; i < n; i += channels {
			x0 := src[i]
			y0 := b.b0*x0 + b.b1*x1 + b.b2*x2 - b.a1*y1 - b.a2*y2
			x2, x1 = x1, x0
			y2, y1 = y1, y0
			dst[i] = y0
		}
		b.x1[ch], b.x2[ch], b.y1[ch], b.y2[ch] = x1, x2, y1, y2
	}
}
