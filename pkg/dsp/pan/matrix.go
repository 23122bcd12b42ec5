package pan

import (
	"fmt"
	"math"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
)

// SurroundFlags modify SumSurround.
type SurroundFlags int32

const (
	SurroundDefault SurroundFlags = 0
	// SurroundRotationNotBiased applies rotation after the source image has
	// been narrowed by extent instead of before.
	SurroundRotationNotBiased SurroundFlags = 1
)

// spreadStep is the widest arc one extent sample covers, in degrees.
const spreadStep = 15

// gains holds one matrix column.
type gains [bus.MaxChannels]float32

// prepare checks the matrix can hold rows x cols at hop and zeroes it.
func prepare(rows, cols, hop int, matrix []float32) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("pan matrix %dx%d: %w", rows, cols, abi.ErrFormat)
	}
	if hop < cols {
		return fmt.Errorf("matrix hop %d below %d input channels: %w", hop, cols, abi.ErrInvalidParam)
	}
	if len(matrix) < (rows-1)*hop+cols {
		return fmt.Errorf("matrix of %d entries too small for %dx%d at hop %d: %w",
			len(matrix), rows, cols, hop, abi.ErrInvalidParam)
	}
	for o := 0; o < rows; o++ {
		clear(matrix[o*hop : o*hop+cols])
	}
	return nil
}

func fixed(mode bus.SpeakerMode) error {
	if !mode.Fixed() {
		return fmt.Errorf("speaker mode %s has no layout: %w", mode, abi.ErrFormat)
	}
	return nil
}

// SumMono downmixes every channel of source into one output channel. Main
// channels are summed at equal power; the LFE channel is weighted by
// lowFrequencyGain.
func SumMono(source bus.SpeakerMode, lowFrequencyGain, overallGain float32, hop int, matrix []float32) error {
	if err := fixed(source); err != nil {
		return err
	}
	src := layoutOf(source)
	if err := prepare(1, src.n, hop, matrix); err != nil {
		return err
	}
	main := 0
	for i := 0; i < src.n; i++ {
		if !src.pos[i].lfe {
			main++
		}
	}
	g := overallGain / float32(math.Sqrt(float64(max(main, 1))))
	for i := 0; i < src.n; i++ {
		if src.pos[i].lfe {
			matrix[i] = lowFrequencyGain * overallGain
		} else {
			matrix[i] = g
		}
	}
	return nil
}

// SumStereo mixes source into a stereo pair. A mono source is panned at
// constant power; wider sources are folded to their side and balanced by
// pan. Center and LFE channels feed both sides at -3dB, rear channels at
// -3dB to their side.
func SumStereo(source bus.SpeakerMode, pan, lowFrequencyGain, overallGain float32, hop int, matrix []float32) error {
	if err := fixed(source); err != nil {
		return err
	}
	src := layoutOf(source)
	if err := prepare(2, src.n, hop, matrix); err != nil {
		return err
	}
	left, right := matrix[:src.n], matrix[hop:hop+src.n]

	if src.n == 1 {
		l, r := MonoToStereo(pan, ConstantPower)
		left[0], right[0] = l*overallGain, r*overallGain
		return nil
	}

	bl, br := Balance(pan)
	for i := 0; i < src.n; i++ {
		p := src.pos[i]
		var l, r float32
		switch {
		case p.lfe:
			l = math.Sqrt2 / 2 * lowFrequencyGain
			r = l
		case p.angle == 0:
			l, r = math.Sqrt2/2, math.Sqrt2/2
		case p.angle < 0:
			l = 1
		default:
			r = 1
		}
		if !p.lfe && (p.angle <= -90 || p.angle >= 90) {
			l *= math.Sqrt2 / 2
			r *= math.Sqrt2 / 2
		}
		left[i] = l * bl * overallGain
		right[i] = r * br * overallGain
	}
	return nil
}

// SumSurround places each source channel around the target layout. The
// source image is narrowed to extent degrees around direction and turned by
// rotation. LFE goes to the target LFE channel, if any, at lowFrequencyGain.
func SumSurround(source, target bus.SpeakerMode, direction, extent, rotation, lowFrequencyGain, overallGain float32,
	hop int, matrix []float32, flags SurroundFlags) error {
	if err := fixed(source); err != nil {
		return err
	}
	if err := fixed(target); err != nil {
		return err
	}
	if err := finite(direction, extent, rotation); err != nil {
		return err
	}
	src, dst := layoutOf(source), layoutOf(target)
	if err := prepare(dst.n, src.n, hop, matrix); err != nil {
		return err
	}

	extent = clamp(extent, 0, 360)
	main := 0
	for i := 0; i < src.n; i++ {
		if !src.pos[i].lfe {
			main++
		}
	}
	width := extent / float32(max(main, 1))

	var col gains
	for i := 0; i < src.n; i++ {
		p := src.pos[i]
		if p.lfe {
			routeLFE(&dst, i, lowFrequencyGain*overallGain, hop, matrix)
			continue
		}
		var theta float32
		if flags&SurroundRotationNotBiased != 0 {
			theta = direction + rotation + p.angle*extent/360
		} else {
			theta = direction + (p.angle+rotation)*extent/360
		}
		spread(&dst, theta, width, &col)
		writeColumn(&dst, &col, i, overallGain, hop, matrix)
	}
	return nil
}

// SumMonoToSurround spreads one channel over extent degrees around
// direction in the target layout.
func SumMonoToSurround(target bus.SpeakerMode, direction, extent, lowFrequencyGain, overallGain float32,
	hop int, matrix []float32) error {
	if err := fixed(target); err != nil {
		return err
	}
	if err := finite(direction, extent); err != nil {
		return err
	}
	dst := layoutOf(target)
	if err := prepare(dst.n, 1, hop, matrix); err != nil {
		return err
	}
	var col gains
	spread(&dst, direction, clamp(extent, 0, 360), &col)
	writeColumn(&dst, &col, 0, overallGain, hop, matrix)
	routeLFE(&dst, 0, lowFrequencyGain*overallGain, hop, matrix)
	return nil
}

// SumStereoToSurround places a stereo pair either side of direction, each
// half covering half of extent.
func SumStereoToSurround(target bus.SpeakerMode, direction, extent, rotation, lowFrequencyGain, overallGain float32,
	hop int, matrix []float32) error {
	if err := fixed(target); err != nil {
		return err
	}
	if err := finite(direction, extent, rotation); err != nil {
		return err
	}
	dst := layoutOf(target)
	if err := prepare(dst.n, 2, hop, matrix); err != nil {
		return err
	}
	extent = clamp(extent, 0, 360)
	center := direction + rotation

	var col gains
	spread(&dst, center-extent/4, extent/2, &col)
	writeColumn(&dst, &col, 0, overallGain, hop, matrix)
	spread(&dst, center+extent/4, extent/2, &col)
	writeColumn(&dst, &col, 1, overallGain, hop, matrix)

	lfe := lowFrequencyGain * overallGain * math.Sqrt2 / 2
	routeLFE(&dst, 0, lfe, hop, matrix)
	routeLFE(&dst, 1, lfe, hop, matrix)
	return nil
}

func writeColumn(dst *layout, col *gains, in int, overallGain float32, hop int, matrix []float32) {
	for o := 0; o < dst.n; o++ {
		matrix[o*hop+in] = col[o] * overallGain
	}
}

func routeLFE(dst *layout, in int, gain float32, hop int, matrix []float32) {
	for o := 0; o < dst.n; o++ {
		if dst.pos[o].lfe {
			matrix[o*hop+in] = gain
		}
	}
}

// spread computes unit-power gains for a source covering width degrees
// centered on theta, by averaging the power of point sources sampled
// across the arc.
func spread(dst *layout, theta, width float32, out *gains) {
	*out = gains{}
	if width <= 0 {
		point(dst, theta, out)
		return
	}
	n := int(math.Ceil(float64(width / spreadStep)))
	var acc gains
	var g gains
	for k := 0; k < n; k++ {
		a := theta - width/2 + (float32(k)+0.5)*width/float32(n)
		point(dst, a, &g)
		for o := 0; o < dst.n; o++ {
			acc[o] += g[o] * g[o]
		}
	}
	for o := 0; o < dst.n; o++ {
		out[o] = float32(math.Sqrt(float64(acc[o] / float32(n))))
	}
}

// point pans a point source at theta between the two ground speakers
// around it at constant power.
func point(dst *layout, theta float32, out *gains) {
	*out = gains{}

	var ring [bus.MaxChannels]int
	n := 0
	for o := 0; o < dst.n; o++ {
		p := dst.pos[o]
		if p.lfe || p.height {
			continue
		}
		// insertion sort by angle
		j := n
		for j > 0 && dst.pos[ring[j-1]].angle > p.angle {
			ring[j] = ring[j-1]
			j--
		}
		ring[j] = o
		n++
	}
	switch n {
	case 0:
		return
	case 1:
		out[ring[0]] = 1
		return
	}

	theta = wrap(theta)
	if math.IsNaN(float64(theta)) {
		return
	}
	for k := 0; k < n; k++ {
		a := dst.pos[ring[k]].angle
		b := dst.pos[ring[(k+1)%n]].angle
		span := arc(a, b)
		off := arc(a, theta)
		if off == 360 {
			off = 0
		}
		if off > span {
			continue
		}
		frac := float64(off / span)
		out[ring[k]] = float32(math.Cos(frac * math.Pi / 2))
		out[ring[(k+1)%n]] = float32(math.Sin(frac * math.Pi / 2))
		return
	}
}

// arc is the clockwise distance from a to b in (0, 360].
func arc(a, b float32) float32 {
	d := math.Mod(float64(b)-float64(a), 360)
	if d <= 0 {
		d += 360
	}
	return float32(d)
}

// finite rejects NaN and infinite angles.
func finite(angles ...float32) error {
	for _, a := range angles {
		if math.IsNaN(float64(a)) || math.IsInf(float64(a), 0) {
			return fmt.Errorf("angle %v: %w", a, abi.ErrInvalidParam)
		}
	}
	return nil
}
