package param

import (
	"fmt"
	"math"
	"strings"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// MappingKind selects how a float parameter is laid out on a UI control.
type MappingKind int32

const (
	// MappingLinear spreads values evenly across the control.
	MappingLinear MappingKind = iota
	// MappingAuto lets the host pick a curve from the range and unit.
	MappingAuto
	// MappingPiecewise uses the descriptor's own (position, value) points.
	MappingPiecewise
)

// Point pairs a control position with the parameter value shown there.
type Point struct {
	Position float32
	Value    float32
}

// Mapping relates control positions to parameter values. It shapes display
// and automation curves only; it never clamps.
type Mapping struct {
	Kind   MappingKind
	Points []Point
}

// autoPoints is the resolution of host-generated logarithmic curves.
const autoPoints = 9

// Validate checks the mapping against the float range it belongs to.
func (m Mapping) Validate(min, max float32) error {
	switch m.Kind {
	case MappingLinear, MappingAuto:
		if len(m.Points) != 0 {
			return fmt.Errorf("%s mapping must not carry points: %w", m.Kind, abi.ErrInvalidParam)
		}
		return nil
	case MappingPiecewise:
	default:
		return fmt.Errorf("mapping kind %d: %w", m.Kind, abi.ErrInvalidParam)
	}

	if len(m.Points) < 2 {
		return fmt.Errorf("piecewise mapping needs at least 2 points, has %d: %w", len(m.Points), abi.ErrInvalidParam)
	}
	for i := 1; i < len(m.Points); i++ {
		prev, cur := m.Points[i-1], m.Points[i]
		if !(cur.Position > prev.Position) {
			return fmt.Errorf("piecewise positions not increasing at point %d: %w", i, abi.ErrInvalidParam)
		}
		if cur.Value < prev.Value {
			return fmt.Errorf("piecewise values not monotonic at point %d: %w", i, abi.ErrInvalidParam)
		}
	}
	first, last := m.Points[0], m.Points[len(m.Points)-1]
	if first.Value != min || last.Value != max {
		return fmt.Errorf("piecewise endpoints [%v,%v] do not match range [%v,%v]: %w",
			first.Value, last.Value, min, max, abi.ErrInvalidParam)
	}
	return nil
}

// Resolve turns linear and auto mappings into explicit points over control
// positions [0,1]. Piecewise mappings are returned unchanged.
func (m Mapping) Resolve(min, max float32, label string) Mapping {
	switch m.Kind {
	case MappingPiecewise:
		return m
	case MappingAuto:
		if wantsLog(min, max, label) {
			return logMapping(min, max)
		}
	}
	return Mapping{Kind: MappingPiecewise, Points: []Point{{0, min}, {1, max}}}
}

func wantsLog(min, max float32, label string) bool {
	if min <= 0 || max <= min {
		return false
	}
	return strings.EqualFold(label, "hz") || max/min >= 100
}

func logMapping(min, max float32) Mapping {
	points := make([]Point, autoPoints)
	lmin, lmax := math.Log(float64(min)), math.Log(float64(max))
	for i := range points {
		pos := float64(i) / float64(autoPoints-1)
		points[i] = Point{
			Position: float32(pos),
			Value:    float32(math.Exp(lmin + pos*(lmax-lmin))),
		}
	}
	points[0].Value = min
	points[autoPoints-1].Value = max
	return Mapping{Kind: MappingPiecewise, Points: points}
}

// ValueAt returns the value shown at position. The mapping must be resolved.
func (m Mapping) ValueAt(position float32) float32 {
	pts := m.Points
	if len(pts) == 0 {
		return 0
	}
	if position <= pts[0].Position {
		return pts[0].Value
	}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		if position <= b.Position {
			t := (position - a.Position) / (b.Position - a.Position)
			return a.Value + t*(b.Value-a.Value)
		}
	}
	return pts[len(pts)-1].Value
}

// PositionOf is the inverse of ValueAt. On a flat segment it returns the
// segment's first position.
func (m Mapping) PositionOf(value float32) float32 {
	pts := m.Points
	if len(pts) == 0 {
		return 0
	}
	if value <= pts[0].Value {
		return pts[0].Position
	}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		if value <= b.Value {
			if b.Value == a.Value {
				return a.Position
			}
			t := (value - a.Value) / (b.Value - a.Value)
			return a.Position + t*(b.Position-a.Position)
		}
	}
	return pts[len(pts)-1].Position
}

func (k MappingKind) String() string {
	switch k {
	case MappingLinear:
		return "linear"
	case MappingAuto:
		return "auto"
	case MappingPiecewise:
		return "piecewise"
	default:
		return fmt.Sprintf("mapping(%d)", int32(k))
	}
}
