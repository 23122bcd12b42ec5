// Package oscillator provides audio oscillators for synthesis
package oscillator

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Waveform selects the shape an Oscillator produces.
type Waveform int32

const (
	Sine Waveform = iota
	Square
	SawUp
	SawDown
	Triangle
	Noise
)

// WaveformNames are the display names in Waveform order.
var WaveformNames = []string{"Sine", "Square", "Saw Up", "Saw Down", "Triangle", "Noise"}

func (w Waveform) String() string {
	if w >= 0 && int(w) < len(WaveformNames) {
		return WaveformNames[w]
	}
	return fmt.Sprintf("waveform(%d)", int32(w))
}

// Oscillator generates periodic waveforms
type Oscillator struct {
	sampleRate float64
	frequency  float64
	phase      float64
	phaseInc   float64
	noise      *rand.Rand
}

// New creates a new oscillator at 440 Hz
func New(sampleRate float64) *Oscillator {
	return &Oscillator{
		sampleRate: sampleRate,
		frequency:  440.0,
		phaseInc:   440.0 / sampleRate,
		noise:      rand.New(rand.NewPCG(0x5eed, uint64(sampleRate))),
	}
}

// SetFrequency sets the oscillator frequency
func (o *Oscillator) SetFrequency(freq float64) {
	o.frequency = freq
	o.phaseInc = freq / o.sampleRate
}

// Frequency returns the current frequency in Hz.
func (o *Oscillator) Frequency() float64 { return o.frequency }

// SetPhase sets the oscillator phase (0-1)
func (o *Oscillator) SetPhase(phase float64) {
	o.phase = phase - math.Floor(phase)
}

// Phase returns the phase of the next sample in [0,1).
func (o *Oscillator) Phase() float64 { return o.phase }

// Seek places the phase where it would be after running for sample samples
// from phase zero at the current frequency.
func (o *Oscillator) Seek(sample uint64) {
	// the product loses precision after hours at high rates; reduce first
	period := o.sampleRate / math.Max(o.frequency, 1e-9)
	o.SetPhase(math.Mod(float64(sample), period) / period)
}

// Reset resets the oscillator phase to 0
func (o *Oscillator) Reset() {
	o.phase = 0.0
}

// updatePhase advances the phase and wraps it
func (o *Oscillator) updatePhase() {
	o.phase += o.phaseInc
	if o.phase >= 1.0 {
		o.phase -= math.Floor(o.phase)
	}
}

// Next returns one sample of w in [-1,1] and advances the phase.
func (o *Oscillator) Next(w Waveform) float32 {
	p := o.phase
	var v float64
	switch w {
	case Square:
		v = 1
		if p >= 0.5 {
			v = -1
		}
	case SawUp:
		v = 2*p - 1
	case SawDown:
		v = 1 - 2*p
	case Triangle:
		if p < 0.5 {
			v = 4*p - 1
		} else {
			v = 3 - 4*p
		}
	case Noise:
		v = o.noise.Float64()*2 - 1
	default:
		v = math.Sin(2.0 * math.Pi * p)
	}
	o.updatePhase()
	return float32(v)
}

// Fill writes frames samples of w scaled by level to every channel of an
// interleaved buffer.
func (o *Oscillator) Fill(out []float32, channels, frames int, w Waveform, level float32) {
	for i := 0; i < frames; i++ {
		v := o.Next(w) * level
		frame := out[i*channels : (i+1)*channels]
		for c := range frame {
			frame[c] = v
		}
	}
}
