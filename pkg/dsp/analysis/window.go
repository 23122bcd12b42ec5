package analysis

import (
	"fmt"
	"math"
)

// Window selects an analysis window shape.
type Window int32

const (
	WindowRect Window = iota
	WindowTriangle
	WindowHamming
	WindowHanning
	WindowBlackman
	WindowBlackmanHarris
)

// WindowNames are the display names in Window order.
var WindowNames = []string{"Rect", "Triangle", "Hamming", "Hanning", "Blackman", "Blackman-Harris"}

func (w Window) String() string {
	if w >= 0 && int(w) < len(WindowNames) {
		return WindowNames[w]
	}
	return fmt.Sprintf("window(%d)", int32(w))
}

// Fill writes the len(dst)-point window into dst and returns the sum of
// its coefficients, which normalises magnitudes.
func (w Window) Fill(dst []float32) float32 {
	size := len(dst)
	if size == 1 {
		dst[0] = 1
		return 1
	}
	n := float64(size - 1)
	var sum float64
	for i := range dst {
		x := float64(i) / n
		var v float64
		switch w {
		case WindowTriangle:
			v = 1.0 - math.Abs(2.0*x-1.0)
		case WindowHamming:
			v = 0.54 - 0.46*math.Cos(2.0*math.Pi*x)
		case WindowHanning:
			v = 0.5 * (1.0 - math.Cos(2.0*math.Pi*x))
		case WindowBlackman:
			v = 0.42 - 0.5*math.Cos(2.0*math.Pi*x) + 0.08*math.Cos(4.0*math.Pi*x)
			v = math.Max(v, 0)
		case WindowBlackmanHarris:
			a0, a1, a2, a3 := 0.35875, 0.48829, 0.14128, 0.01168
			v = a0 - a1*math.Cos(2.0*math.Pi*x) + a2*math.Cos(4.0*math.Pi*x) - a3*math.Cos(6.0*math.Pi*x)
		default:
			v = 1.0
		}
		dst[i] = float32(v)
		sum += v
	}
	return float32(sum)
}

// FloorPowerOfTwo returns the largest power of two not above n, or 0.
func FloorPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p <= n/2 {
		p <<= 1
	}
	return p
}
