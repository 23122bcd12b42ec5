// Package envelope tracks signal levels for dynamics processing.
package envelope

import "math"

// Follower implements a peak envelope follower with separate attack and
// release times. It is owned by the processing thread.
type Follower struct {
	sampleRate  float64
	attack      float64
	release     float64
	attackCoef  float64
	releaseCoef float64
	envelope    float64
}

// NewFollower creates a follower with a 1 ms attack and 100 ms release.
func NewFollower(sampleRate float64) *Follower {
	f := &Follower{
		sampleRate: sampleRate,
		attack:     0.001,
		release:    0.1,
	}
	f.updateCoefficients()
	return f
}

// SetAttack sets the attack time
func (f *Follower) SetAttack(seconds float64) {
	f.attack = math.Max(0.0001, seconds)
	f.updateCoefficients()
}

// SetRelease sets the release time
func (f *Follower) SetRelease(seconds float64) {
	f.release = math.Max(0.0001, seconds)
	f.updateCoefficients()
}

// Release returns the release time in seconds.
func (f *Follower) Release() float64 { return f.release }

func (f *Follower) updateCoefficients() {
	f.attackCoef = coef(f.attack, f.sampleRate)
	f.releaseCoef = coef(f.release, f.sampleRate)
}

// coef is the one-pole coefficient that covers 63% of a step in seconds.
func coef(seconds, sampleRate float64) float64 {
	return math.Exp(-1.0 / (seconds * sampleRate))
}

// Reset drops the envelope to zero.
func (f *Follower) Reset() { f.envelope = 0 }

// Level returns the current envelope.
func (f *Follower) Level() float32 { return float32(f.envelope) }

// Follow processes a single sample
func (f *Follower) Follow(input float32) float32 {
	return f.step(math.Abs(float64(input)))
}

func (f *Follower) step(level float64) float32 {
	if level > f.envelope {
		f.envelope = level + (f.envelope-level)*f.attackCoef
	} else {
		f.envelope = level + (f.envelope-level)*f.releaseCoef
	}
	return float32(f.envelope)
}

// FollowFrames tracks the loudest channel of each frame of an interleaved
// buffer and writes one envelope value per frame into out.
func (f *Follower) FollowFrames(in []float32, channels, frames int, out []float32) {
	for i := 0; i < frames; i++ {
		var peak float64
		for _, x := range in[i*channels : (i+1)*channels] {
			peak = math.Max(peak, math.Abs(float64(x)))
		}
		out[i] = f.step(peak)
	}
}

// Idle advances the follower over frames frames of silence.
func (f *Follower) Idle(frames int) {
	f.envelope *= math.Pow(f.releaseCoef, float64(frames))
}
