// Package gain converts between decibels and linear amplitude and applies
// gain to interleaved sample buffers.
package gain

import (
	"math"

	"github.com/tphakala/simd/f32"
)

// MinDB is the level treated as silence. Level parameters bottom out here.
const MinDB = -80.0

// LinearToDb converts a linear amplitude value to decibels.
// Returns MinDB for values at or below the silence floor.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return MinDB
	}
	return max(20.0*math.Log10(linear), MinDB)
}

// DbToLinear converts a decibel value to linear amplitude.
// Values <= MinDB return 0.
func DbToLinear(db float64) float64 {
	if db <= MinDB {
		return 0
	}
	return math.Pow(10.0, db/20.0)
}

// LinearToDb32 is the float32 version of LinearToDb.
func LinearToDb32(linear float32) float32 {
	return float32(LinearToDb(float64(linear)))
}

// DbToLinear32 is the float32 version of DbToLinear.
func DbToLinear32(db float32) float32 {
	return float32(DbToLinear(float64(db)))
}

// ApplyBuffer scales buffer in place.
func ApplyBuffer(buffer []float32, gain float32) {
	if gain == 1 {
		return
	}
	f32.Scale(buffer, buffer, gain)
}

// Fade fills ramp with a linear move from start towards end, reaching end
// on the sample after the last one so consecutive blocks join without a
// step.
func Fade(ramp []float32, start, end float32) {
	if len(ramp) == 0 {
		return
	}
	step := (end - start) / float32(len(ramp))
	for i := range ramp {
		ramp[i] = start + step*float32(i)
	}
}

// Unity reports whether g is close enough to 1 that applying it would not
// change a 24-bit signal.
func Unity(g float32) bool {
	return math.Abs(float64(g)-1) < 1e-7
}
