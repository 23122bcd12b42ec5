package param

import "math"

// SmoothingType selects the ramp shape a Smoother follows.
type SmoothingType int

const (
	// LinearSmoothing steps by a constant amount per sample.
	LinearSmoothing SmoothingType = iota
	// ExponentialSmoothing is a one-pole lowpass on the target.
	ExponentialSmoothing
	// LogarithmicSmoothing steps by a constant ratio, for frequencies.
	LogarithmicSmoothing
)

// logFloor keeps logarithmic ramps away from log(0).
const logFloor = 0.001

// Smoother ramps a value towards a target one sample at a time so that
// parameter changes do not produce zipper noise. It is owned by the
// processing thread and is not safe for concurrent use.
type Smoother struct {
	kind      SmoothingType
	current   float64
	target    float64
	rate      float64 // samples for linear/log, pole for exponential
	threshold float64
	active    bool
	step      float64 // linear step or log-domain step
	logPos    float64
	logEnd    float64
}

// NewSmoother creates a smoother. rate is the ramp length in samples for
// linear and logarithmic smoothing and the pole (0.9-0.999) for exponential.
func NewSmoother(kind SmoothingType, rate float64) *Smoother {
	return &Smoother{kind: kind, rate: rate, threshold: 1e-4}
}

// SetTime sets the rate so a change settles in about ms milliseconds at the
// given sample rate. Exponential smoothing reaches -60 dB in that time.
func (s *Smoother) SetTime(sampleRate, ms float64) {
	samples := max(sampleRate*ms/1000, 1)
	if s.kind == ExponentialSmoothing {
		s.rate = math.Exp(-6.908 / samples)
		return
	}
	s.rate = samples
}

// SetThreshold sets how close to the target counts as arrived.
func (s *Smoother) SetThreshold(threshold float64) { s.threshold = threshold }

// Reset jumps to value and stops any ramp in progress.
func (s *Smoother) Reset(value float64) {
	s.current, s.target = value, value
	s.active = false
}

// SetTarget starts a ramp from the current value. Changes smaller than the
// threshold are ignored.
func (s *Smoother) SetTarget(target float64) {
	if math.Abs(target-s.target) < s.threshold {
		return
	}
	s.target = target
	s.active = true
	if s.rate <= 0 {
		s.current = target
		s.active = false
		return
	}
	switch s.kind {
	case LinearSmoothing:
		s.step = (target - s.current) / s.rate
	case LogarithmicSmoothing:
		s.logPos = math.Log(max(s.current, logFloor))
		s.logEnd = math.Log(max(target, logFloor))
		s.step = (s.logEnd - s.logPos) / s.rate
	}
}

// Next advances one sample and returns the smoothed value.
func (s *Smoother) Next() float64 {
	if !s.active {
		return s.current
	}
	switch s.kind {
	case ExponentialSmoothing:
		s.current += (s.target - s.current) * (1 - s.rate)
		if math.Abs(s.current-s.target) < s.threshold {
			s.finish()
		}
	case LinearSmoothing:
		s.current += s.step
		if (s.step > 0 && s.current >= s.target) || (s.step <= 0 && s.current <= s.target) {
			s.finish()
		}
	case LogarithmicSmoothing:
		s.logPos += s.step
		if (s.step > 0 && s.logPos >= s.logEnd) || (s.step <= 0 && s.logPos <= s.logEnd) {
			s.finish()
		} else {
			s.current = math.Exp(s.logPos)
		}
	}
	return s.current
}

func (s *Smoother) finish() {
	s.current = s.target
	s.active = false
}

// Fill writes the next len(dst) values. Processing code fills a ramp once
// per block and applies it with a vector multiply.
func (s *Smoother) Fill(dst []float32) {
	if !s.active {
		v := float32(s.current)
		for i := range dst {
			dst[i] = v
		}
		return
	}
	for i := range dst {
		dst[i] = float32(s.Next())
	}
}

// Current returns the last value without advancing.
func (s *Smoother) Current() float64 { return s.current }

// Target returns the value being ramped to.
func (s *Smoother) Target() float64 { return s.target }

// IsSmoothing reports whether a ramp is in progress.
func (s *Smoother) IsSmoothing() bool { return s.active }
