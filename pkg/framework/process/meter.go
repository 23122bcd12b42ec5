package process

import (
	"math"
	"sync"

	"github.com/tphakala/simd/f32"

	"github.com/justyntemme/dspplug/pkg/framework/bus"
)

// Levels is a per-channel peak and RMS snapshot of one buffer.
type Levels struct {
	Channels  int
	NumFrames int
	Peak      [bus.MaxChannels]float32
	RMS       [bus.MaxChannels]float32
}

// Meter measures the first buffer of an array after each block. Measure
// runs on the processing thread; Snapshot may be called from any thread.
type Meter struct {
	plane   []float32
	mu      sync.Mutex
	current Levels
	enabled bool
}

// NewMeter creates a disabled meter whose scratch plane holds maxFrames
// samples.
func NewMeter(maxFrames int) *Meter {
	return &Meter{plane: make([]float32, maxFrames)}
}

// SetEnabled turns measurement on or off.
func (m *Meter) SetEnabled(on bool) {
	m.mu.Lock()
	m.enabled = on
	if !on {
		m.current = Levels{}
	}
	m.mu.Unlock()
}

// Enabled reports whether the meter is measuring.
func (m *Meter) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Measure records the levels of a's first buffer over frames frames. A
// reader holding the lock makes the measurement skip this block rather
// than wait.
func (m *Meter) Measure(a *bus.Array, frames int) {
	if !m.mu.TryLock() {
		return
	}
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	if a.Len() == 0 || frames <= 0 {
		m.current = Levels{}
		return
	}
	b := &a.Buffers[0]
	frames = min(frames, b.Frames())
	if frames > len(m.plane) {
		frames = len(m.plane)
	}
	lv := Levels{Channels: min(b.Channels, bus.MaxChannels), NumFrames: frames}
	plane := m.plane[:frames]
	for ch := 0; ch < lv.Channels; ch++ {
		var peak float32
		for i := range plane {
			s := b.Data[i*b.Channels+ch]
			plane[i] = s
			if s < 0 {
				s = -s
			}
			peak = max(peak, s)
		}
		lv.Peak[ch] = peak
		if frames > 0 {
			lv.RMS[ch] = float32(math.Sqrt(float64(f32.DotProductUnsafe(plane, plane)) / float64(frames)))
		}
	}
	m.current = lv
}

// Snapshot returns the most recent measurement.
func (m *Meter) Snapshot() Levels {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
