package pan

import (
	"math"

	"github.com/justyntemme/dspplug/pkg/framework/bus"
)

// position is where one channel of a layout sits. Angles are degrees
// clockwise from straight ahead, left negative.
type position struct {
	angle  float32
	lfe    bool
	height bool
}

// layout is the channel positions of a speaker mode in channel order.
type layout struct {
	n   int
	pos [bus.MaxChannels]position
}

// speakerAngle places s within mode. Quad and 7.1 spread their side
// speakers differently from 5.1.
func speakerAngle(mode bus.SpeakerMode, s bus.Speaker) float32 {
	switch s {
	case bus.SpeakerFrontLeft:
		if mode == bus.SpeakerModeQuad {
			return -45
		}
		return -30
	case bus.SpeakerFrontRight:
		if mode == bus.SpeakerModeQuad {
			return 45
		}
		return 30
	case bus.SpeakerSurroundLeft:
		switch mode {
		case bus.SpeakerModeQuad:
			return -135
		case bus.SpeakerMode7Point1, bus.SpeakerMode7Point1Point4:
			return -90
		}
		return -110
	case bus.SpeakerSurroundRight:
		switch mode {
		case bus.SpeakerModeQuad:
			return 135
		case bus.SpeakerMode7Point1, bus.SpeakerMode7Point1Point4:
			return 90
		}
		return 110
	case bus.SpeakerBackLeft:
		return -150
	case bus.SpeakerBackRight:
		return 150
	case bus.SpeakerTopFrontLeft:
		return -45
	case bus.SpeakerTopFrontRight:
		return 45
	case bus.SpeakerTopBackLeft:
		return -135
	case bus.SpeakerTopBackRight:
		return 135
	}
	return 0
}

// layoutOf returns the positions for a fixed speaker mode. Mono is a single
// center channel.
func layoutOf(mode bus.SpeakerMode) layout {
	var l layout
	if mode == bus.SpeakerModeMono {
		l.n = 1
		return l
	}
	mask := mode.Mask()
	for s := bus.SpeakerFrontLeft; s <= bus.SpeakerTopBackRight; s++ {
		if !mask.Has(s) {
			continue
		}
		l.pos[l.n] = position{
			angle:  speakerAngle(mode, s),
			lfe:    s == bus.SpeakerLowFrequency,
			height: s >= bus.SpeakerTopFrontLeft,
		}
		l.n++
	}
	return l
}

// wrap folds an angle into (-180, 180].
func wrap(a float32) float32 {
	r := math.Remainder(float64(a), 360)
	if r <= -180 {
		r += 360
	}
	return float32(r)
}
