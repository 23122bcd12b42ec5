// Package gain is a two-input gain stage. The main input is scaled and,
// in Sum mode, mixed with the auxiliary input, which follows the gain only
// while the inputs are linked.
package gain

import (
	"github.com/justyntemme/dspplug/pkg/abi"
	dspgain "github.com/justyntemme/dspplug/pkg/dsp/gain"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// Name is the registered plugin name.
const Name = "Gain"

const (
	ParamGain = iota
	ParamMode
	ParamLinked
)

// Modes of ParamMode.
const (
	ModeSum int32 = iota
	ModeMain
)

const smoothingMs = 20

var params = param.MustTable(
	param.Decibels("Gain", dspgain.MinDB, 10, 0).
		Description("Level applied to the main input").MustBuild(),
	param.Choice("Mode", ModeSum, "Sum", "Main").
		Description("Mix the auxiliary input in or output the main input only").MustBuild(),
	param.Toggle("Linked", true).
		Description("Apply the gain to the auxiliary input too").MustBuild(),
)

// Plugin implements the gain callbacks.
type Plugin struct {
	plugin.Base
}

type instance struct {
	plugin.Values
	smoother *param.Smoother
}

// Descriptor returns the plugin's descriptor.
func Descriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       Name,
		Version:    0x00010000,
		NumInputs:  2,
		NumOutputs: 1,
		Params:     params,
		Callbacks:  &Plugin{Base: plugin.NewBase(params)},
	}
}

func (p *Plugin) Create(s *plugin.State) error {
	inst := &instance{
		Values:   p.NewValues(),
		smoother: param.NewSmoother(param.LinearSmoothing, 0),
	}
	inst.smoother.SetTime(float64(s.Functions.SampleRate()), smoothingMs)
	inst.smoother.Reset(1)
	s.PluginData = inst
	return nil
}

// Reset jumps to the current gain so a fresh voice does not ramp in.
func (p *Plugin) Reset(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	inst.smoother.Reset(float64(inst.level()))
	return nil
}

func (inst *instance) level() float32 {
	return dspgain.DbToLinear32(inst.Store.Float(ParamGain))
}

func (p *Plugin) Process(s *plugin.State, ctx *process.Context) error {
	inst := s.PluginData.(*instance)
	mode := inst.Store.Int(ParamMode)
	inst.smoother.SetTarget(float64(inst.level()))

	if ctx.Op == process.Query {
		if mode == ModeMain && !inst.smoother.IsSmoothing() && dspgain.Unity(float32(inst.smoother.Current())) {
			return abi.ErrDontProcess
		}
		return nil
	}

	in, out := ctx.Main(), ctx.Output()
	ch, frames := in.Channels, ctx.Frames
	n := ch * frames
	if frames == 0 {
		return nil
	}

	// one gain per frame, applied to every channel
	ramp := ctx.WorkBuffer(frames)
	smoothing := inst.smoother.IsSmoothing()
	inst.smoother.Fill(ramp)
	apply := func(dst, src []float32) {
		if smoothing {
			process.ApplyRamp(dst, src, ch, ramp)
			return
		}
		process.Scale(dst, src, ch, frames, ramp[0])
	}
	apply(out.Data[:n], in.Data[:n])

	aux := ctx.Aux(0)
	if mode != ModeSum || aux == nil || aux.Channels != ch {
		return nil
	}
	if !inst.Store.Bool(ParamLinked) {
		process.Accumulate(out.Data[:n], aux.Data[:n])
		return nil
	}
	scaled := ctx.TempBuffer(n)
	apply(scaled, aux.Data[:n])
	process.Accumulate(out.Data[:n], scaled)
	return nil
}
