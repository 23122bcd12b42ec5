// Package pan builds the channel mixing matrices and distance attenuation
// gains the host offers plugins. Matrices are row-major by output channel:
// the gain from input channel i to output channel o is matrix[o*hop+i].
package pan

import (
	"math"
)

// Law represents different panning laws
type Law int

const (
	// Linear uses linear panning (constant power not maintained)
	Linear Law = iota
	// ConstantPower uses sine/cosine panning (maintains constant power)
	ConstantPower
	// Balanced uses -4.5dB center compensation
	Balanced
)

// MonoToStereo pans a mono signal to stereo.
// pan: -1.0 = hard left, 0.0 = center, 1.0 = hard right
// Returns left and right gains.
func MonoToStereo(pan float32, law Law) (left, right float32) {
	pan = clamp(pan, -1, 1)
	switch law {
	case Linear:
		return linearPan(pan)
	case Balanced:
		return balancedPan(pan)
	default:
		return constantPowerPan(pan)
	}
}

// Balance returns the gains that attenuate one side of a stereo pair,
// leaving the other at unity.
func Balance(balance float32) (left, right float32) {
	balance = clamp(balance, -1, 1)
	left, right = 1, 1
	if balance < 0 {
		right = 1 + balance
	} else if balance > 0 {
		left = 1 - balance
	}
	return left, right
}

func linearPan(pan float32) (left, right float32) {
	return (1 - pan) * 0.5, (1 + pan) * 0.5
}

func constantPowerPan(pan float32) (left, right float32) {
	angle := float64(pan+1) * math.Pi / 4
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// balancedPan is constant power with the center dipped towards -4.5dB.
func balancedPan(pan float32) (left, right float32) {
	left, right = constantPowerPan(pan)
	compensation := 1 - (1-pan*pan)*0.159
	return left * compensation, right * compensation
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
