// Package spatial positions a voice in the mixer's speaker layout from 3D
// attributes. The input is upmixed at Query to the mixer layout, panned
// towards the source direction and attenuated by distance rolloff.
package spatial

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/pan"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// Name is the registered plugin name.
const Name = "Spatial"

const (
	ParamAttributes = iota
	ParamAttributesMulti
	ParamMinDistance
	ParamMaxDistance
	ParamRolloff
	ParamExtent
	ParamOverallGain
)

const maxDistance = 10000

var params = param.MustTable(
	param.Position3D().MustBuild(),
	param.Position3DMulti().MustBuild(),
	param.Float("Min Distance", 0, maxDistance, 1).Label("m").MustBuild(),
	param.Float("Max Distance", 0, maxDistance, 20).Label("m").MustBuild(),
	param.Choice("Rolloff", int32(pan.RolloffInverse), pan.RolloffNames()...).MustBuild(),
	param.Float("Extent", 0, 360, 0).Label("deg").
		Description("Width of the source image around its direction").MustBuild(),
	param.OverallGain().MustBuild(),
)

// Plugin implements the spatial callbacks.
type Plugin struct {
	plugin.Base
}

type instance struct {
	plugin.Values
	shape bus.Shape

	mu       sync.Mutex
	attrs    abi.Attributes3DParam
	multi    abi.Attributes3DMulti
	useMulti bool

	// prev and cur are MaxChannels square halves of matrices, which comes
	// from the host allocator
	matrices  []float32
	prev, cur []float32
	primed    int // input channels prev was built for, 0 when unset
	gain      atomic.Uint32
}

// Descriptor returns the plugin's descriptor.
func Descriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       Name,
		Version:    0x00010000,
		NumInputs:  1,
		NumOutputs: 1,
		Params:     params,
		Callbacks:  &Plugin{Base: plugin.NewBase(params)},
	}
}

const matrixSize = bus.MaxChannels * bus.MaxChannels

func (p *Plugin) Create(s *plugin.State) error {
	buf, err := s.Functions.AllocFloats(2*matrixSize, abi.MemoryPlugin, "spatial matrices")
	if err != nil {
		return err
	}
	mixer, _ := s.Functions.SpeakerModes()
	inst := &instance{
		Values: p.NewValues(),
		shape: bus.Shape{
			SpeakerMode: mixer,
			Buffers:     []bus.Geometry{{Channels: mixer.Channels(), Mask: mixer.Mask()}},
		},
		matrices: buf,
		prev:     buf[:matrixSize],
		cur:      buf[matrixSize:],
	}
	// a source one metre ahead until told otherwise
	inst.attrs.Relative = abi.Attributes3D{
		Position: abi.Vector{Z: 1},
		Forward:  abi.Vector{Z: 1},
		Up:       abi.Vector{Y: 1},
	}
	inst.attrs.Absolute = inst.attrs.Relative
	inst.gain.Store(math.Float32bits(1))
	s.PluginData = inst
	return nil
}

func (p *Plugin) Release(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	s.Functions.FreeFloats(inst.matrices, abi.MemoryPlugin, "spatial matrices")
	inst.matrices, inst.prev, inst.cur = nil, nil, nil
	return nil
}

func (p *Plugin) Reset(s *plugin.State) error {
	s.PluginData.(*instance).primed = 0
	return nil
}

func (p *Plugin) Process(s *plugin.State, ctx *process.Context) error {
	inst := s.PluginData.(*instance)
	in := ctx.Main()
	if ctx.Op == process.Query {
		if _, err := sourceMode(ctx.In.SpeakerMode, in.Channels); err != nil {
			return err
		}
		ctx.Out.Apply(inst.shape)
		return nil
	}

	out := ctx.Output()
	if err := inst.build(s, ctx.In.SpeakerMode, in.Channels, inst.cur); err != nil {
		return err
	}
	if inst.primed != in.Channels {
		copy(inst.prev, inst.cur)
		inst.primed = in.Channels
	}
	mix(out.Data, in.Data, inst.prev, inst.cur, in.Channels, out.Channels, ctx.Frames)
	inst.prev, inst.cur = inst.cur, inst.prev
	return nil
}

// sourceMode resolves the layout the input is panned from.
func sourceMode(mode bus.SpeakerMode, channels int) (bus.SpeakerMode, error) {
	switch {
	case channels == 1:
		return bus.SpeakerModeMono, nil
	case channels == 2:
		return bus.SpeakerModeStereo, nil
	case mode.Fixed() && mode.Channels() == channels:
		return mode, nil
	}
	return mode, fmt.Errorf("cannot pan %d channels in %s: %w", channels, mode, abi.ErrFormat)
}

// build writes the panning matrix for the current source position,
// row-major by output channel with one entry per input channel.
func (inst *instance) build(s *plugin.State, mode bus.SpeakerMode, channels int, matrix []float32) error {
	src, err := sourceMode(mode, channels)
	if err != nil {
		return err
	}
	direction, g, err := inst.locate(s)
	if err != nil {
		return err
	}
	inst.gain.Store(math.Float32bits(g))

	target := inst.shape.SpeakerMode
	extent := inst.Store.Float(ParamExtent)
	p := s.Functions.Pan()
	switch src {
	case bus.SpeakerModeMono:
		return p.SumMonoToSurroundMatrix(target, direction, extent, 1, g, channels, matrix)
	case bus.SpeakerModeStereo:
		if extent == 0 {
			extent = 90
		}
		return p.SumStereoToSurroundMatrix(target, direction, extent, 0, 1, g, channels, matrix)
	}
	if extent == 0 {
		extent = 360
	}
	return p.SumSurroundMatrix(src, target, direction, extent, 0, 1, g, channels, matrix, pan.SurroundDefault)
}

// locate returns the source direction in degrees and the rolloff gain.
// With several listeners the gain is the weighted sum over listeners and
// the direction is taken from the heaviest one.
func (inst *instance) locate(s *plugin.State) (float32, float32, error) {
	inst.mu.Lock()
	attrs, multi, useMulti := inst.attrs, inst.multi, inst.useMulti
	inst.mu.Unlock()

	rolloff := pan.Rolloff(inst.Store.Int(ParamRolloff))
	lo, hi := inst.Store.Float(ParamMinDistance), inst.Store.Float(ParamMaxDistance)
	gainAt := func(v abi.Vector) (float32, error) {
		return s.Functions.Pan().RolloffGain(rolloff, length(v), lo, max(lo, hi))
	}

	if !useMulti {
		rel := attrs.Relative.Position
		if listeners := s.Functions.ListenerAttributes(); len(listeners) > 0 {
			rel = Relative(listeners[0], attrs.Absolute.Position)
		}
		g, err := gainAt(rel)
		return Direction(rel), g, err
	}

	var total, heaviest float32
	var direction float32
	for i := 0; i < int(multi.NumListeners); i++ {
		rel, w := multi.Relative[i].Position, multi.Weight[i]
		g, err := gainAt(rel)
		if err != nil {
			return 0, 0, err
		}
		total += g * w
		if w > heaviest {
			heaviest, direction = w, Direction(rel)
		}
	}
	return direction, total, nil
}

// mix applies a matrix that moves linearly from prev to cur across the
// block.
func mix(out, in, prev, cur []float32, inCh, outCh, frames int) {
	for f := 0; f < frames; f++ {
		t := float32(f+1) / float32(frames)
		src := in[f*inCh : (f+1)*inCh]
		dst := out[f*outCh : (f+1)*outCh]
		for o := range dst {
			var acc float32
			row := o * inCh
			for i, x := range src {
				m := prev[row+i] + (cur[row+i]-prev[row+i])*t
				acc += m * x
			}
			dst[o] = acc
		}
	}
}

// Relative expresses the world position pos in listener's frame:
// x right, y up, z forward.
func Relative(listener abi.Attributes3D, pos abi.Vector) abi.Vector {
	d := sub(pos, listener.Position)
	fwd := normalize(listener.Forward)
	up := normalize(listener.Up)
	right := cross(up, fwd)
	return abi.Vector{X: dot(d, right), Y: dot(d, up), Z: dot(d, fwd)}
}

// Direction is the azimuth of a listener-relative position in degrees,
// clockwise from straight ahead with left negative.
func Direction(v abi.Vector) float32 {
	if v.X == 0 && v.Z == 0 {
		return 0
	}
	return float32(math.Atan2(float64(v.X), float64(v.Z)) * 180 / math.Pi)
}

func sub(a, b abi.Vector) abi.Vector { return abi.Vector{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z} }
func dot(a, b abi.Vector) float32    { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func length(v abi.Vector) float32    { return float32(math.Sqrt(float64(dot(v, v)))) }

func cross(a, b abi.Vector) abi.Vector {
	return abi.Vector{X: a.Y*b.Z - a.Z*b.Y, Y: a.Z*b.X - a.X*b.Z, Z: a.X*b.Y - a.Y*b.X}
}

func normalize(v abi.Vector) abi.Vector {
	l := length(v)
	if l == 0 {
		return v
	}
	return abi.Vector{X: v.X / l, Y: v.Y / l, Z: v.Z / l}
}

func (p *Plugin) SetParameterData(s *plugin.State, index int, data []byte) error {
	inst := s.PluginData.(*instance)
	switch index {
	case ParamAttributes:
		var a abi.Attributes3DParam
		if err := abi.Decode(data, &a); err != nil {
			return err
		}
		inst.mu.Lock()
		inst.attrs, inst.useMulti = a, false
		inst.mu.Unlock()
		return nil
	case ParamAttributesMulti:
		var m abi.Attributes3DMulti
		if err := abi.Decode(data, &m); err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return err
		}
		inst.mu.Lock()
		inst.multi, inst.useMulti = m, true
		inst.mu.Unlock()
		return nil
	}
	return fmt.Errorf("spatial data parameter %d: %w", index, abi.ErrReadOnly)
}

func (p *Plugin) GetParameterData(s *plugin.State, index int) ([]byte, string, error) {
	inst := s.PluginData.(*instance)
	inst.mu.Lock()
	defer inst.mu.Unlock()
	var data []byte
	var err error
	switch index {
	case ParamAttributes:
		data, err = abi.Encode(nil, &inst.attrs)
	case ParamAttributesMulti:
		data, err = abi.Encode(nil, &inst.multi)
	case ParamOverallGain:
		g := abi.OverallGain{Linear: math.Float32frombits(inst.gain.Load())}
		data, err = abi.Encode(nil, &g)
	default:
		return nil, "", fmt.Errorf("spatial data parameter %d: %w", index, abi.ErrInvalidIndex)
	}
	return data, "", err
}
