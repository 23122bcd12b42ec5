package pan

import (
	"fmt"
	"math"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// Rolloff selects a distance attenuation model.
type Rolloff int32

const (
	RolloffLinearSquared Rolloff = iota
	RolloffLinear
	RolloffInverse
	RolloffInverseTapered
	RolloffCustom
)

var rolloffNames = [...]string{
	RolloffLinearSquared:  "Linear Squared",
	RolloffLinear:         "Linear",
	RolloffInverse:        "Inverse",
	RolloffInverseTapered: "Inverse Tapered",
	RolloffCustom:         "Custom",
}

// RolloffNames lists the display names in model order.
func RolloffNames() []string {
	return append([]string(nil), rolloffNames[:]...)
}

func (r Rolloff) String() string {
	if r >= 0 && int(r) < len(rolloffNames) {
		return rolloffNames[r]
	}
	return fmt.Sprintf("rolloff(%d)", int32(r))
}

// CurvePoint is one (distance, gain) pair of a custom rolloff curve.
type CurvePoint struct {
	Distance float32
	Gain     float32
}

// Curve is a custom rolloff, linearly interpolated between points and held
// flat beyond its ends. Points must be sorted by distance.
type Curve []CurvePoint

// Validate checks the curve is usable.
func (c Curve) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("rolloff curve is empty: %w", abi.ErrInvalidParam)
	}
	for i, p := range c {
		if p.Distance < 0 || p.Gain < 0 || math.IsNaN(float64(p.Distance)) || math.IsNaN(float64(p.Gain)) {
			return fmt.Errorf("rolloff curve point %d out of range: %w", i, abi.ErrInvalidParam)
		}
		if i > 0 && p.Distance <= c[i-1].Distance {
			return fmt.Errorf("rolloff curve distances not increasing at %d: %w", i, abi.ErrInvalidParam)
		}
	}
	return nil
}

// At evaluates the curve at distance.
func (c Curve) At(distance float32) float32 {
	if len(c) == 0 {
		return 1
	}
	if distance <= c[0].Distance {
		return c[0].Gain
	}
	for i := 1; i < len(c); i++ {
		if distance <= c[i].Distance {
			a, b := c[i-1], c[i]
			t := (distance - a.Distance) / (b.Distance - a.Distance)
			return a.Gain + t*(b.Gain-a.Gain)
		}
	}
	return c[len(c)-1].Gain
}

// RolloffGain evaluates the attenuation at distance for a source audible
// at full level up to minDistance and attenuating until maxDistance. The
// custom model reads curve; the others ignore it.
func RolloffGain(r Rolloff, distance, minDistance, maxDistance float32, curve Curve) (float32, error) {
	if minDistance < 0 || maxDistance < minDistance {
		return 0, fmt.Errorf("rolloff distances min %g max %g: %w", minDistance, maxDistance, abi.ErrInvalidParam)
	}
	if math.IsNaN(float64(distance)) {
		return 0, fmt.Errorf("rolloff distance is NaN: %w", abi.ErrInvalidParam)
	}
	distance = max(distance, 0)

	switch r {
	case RolloffLinear:
		return linearRolloff(distance, minDistance, maxDistance), nil
	case RolloffLinearSquared:
		g := linearRolloff(distance, minDistance, maxDistance)
		return g * g, nil
	case RolloffInverse:
		return inverseRolloff(distance, minDistance, maxDistance), nil
	case RolloffInverseTapered:
		g := linearRolloff(distance, minDistance, maxDistance)
		return min(inverseRolloff(distance, minDistance, maxDistance), g*g), nil
	case RolloffCustom:
		if len(curve) == 0 {
			return 0, fmt.Errorf("custom rolloff without a curve: %w", abi.ErrUnsupported)
		}
		return curve.At(distance), nil
	}
	return 0, fmt.Errorf("rolloff model %d: %w", int32(r), abi.ErrInvalidParam)
}

func linearRolloff(d, lo, hi float32) float32 {
	switch {
	case d <= lo:
		return 1
	case d >= hi:
		return 0
	}
	return (hi - d) / (hi - lo)
}

// inverseRolloff halves the level per doubling of distance past lo and
// stops attenuating at hi.
func inverseRolloff(d, lo, hi float32) float32 {
	if d <= lo {
		return 1
	}
	d = min(d, hi)
	return lo / d
}
