// Package tone is a test-tone generator with no inputs.
package tone

import (
	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/gain"
	"github.com/justyntemme/dspplug/pkg/dsp/oscillator"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// Name is the registered plugin name.
const Name = "Tone"

const (
	ParamWaveform = iota
	ParamRate
	ParamLevel
)

var params = param.MustTable(
	param.Choice("Waveform", int32(oscillator.Sine), oscillator.WaveformNames...).MustBuild(),
	param.Frequency("Rate", 1, 22000, 220).MustBuild(),
	param.Decibels("Level", gain.MinDB, 0, -6).MustBuild(),
)

// Plugin implements the tone callbacks.
type Plugin struct {
	plugin.Base
}

type instance struct {
	plugin.Values
	osc   *oscillator.Oscillator
	level *param.Smoother

	// seek holds a timeline position waiting for the next block.
	seek    uint64
	seeking bool
	// origin is the host clock at timeline position zero.
	origin int64
}

// Descriptor returns the plugin's descriptor.
func Descriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       Name,
		Version:    0x00010000,
		NumOutputs: 1,
		Params:     params,
		Callbacks:  &Plugin{Base: plugin.NewBase(params)},
	}
}

func (p *Plugin) Create(s *plugin.State) error {
	sr := float64(s.Functions.SampleRate())
	inst := &instance{
		Values: p.NewValues(),
		osc:    oscillator.New(sr),
		level:  param.NewSmoother(param.ExponentialSmoothing, 0),
	}
	inst.level.SetTime(sr, 10)
	s.PluginData = inst
	return nil
}

func (p *Plugin) Reset(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	inst.osc.Reset()
	inst.level.Reset(float64(gain.DbToLinear32(inst.Store.Float(ParamLevel))))
	inst.seek, inst.seeking = 0, true
	return nil
}

// SetPosition re-seats the phase where a tone started at position zero
// would be. It takes effect on the next block.
func (p *Plugin) SetPosition(s *plugin.State, pos uint64) error {
	inst := s.PluginData.(*instance)
	inst.seek, inst.seeking = pos, true
	return nil
}

// position maps a host clock value onto the timeline.
func (inst *instance) position(clock uint64) uint64 {
	return uint64(int64(clock) - inst.origin)
}

func (p *Plugin) Process(s *plugin.State, ctx *process.Context) error {
	if ctx.Op == process.Query {
		return nil
	}
	inst := s.PluginData.(*instance)
	inst.osc.SetFrequency(float64(inst.Store.Float(ParamRate)))
	clock, _, _ := s.Functions.Clock()
	if inst.seeking {
		inst.origin = int64(clock) - int64(inst.seek)
		inst.osc.Seek(inst.position(clock))
		inst.seeking = false
		s.Logf(debug.LogLevelDebug, "tone at %d samples, clock %d", inst.seek, clock)
	}

	out := ctx.Output()
	frames := ctx.Frames
	inst.osc.Fill(out.Data, out.Channels, frames, oscillator.Waveform(inst.Store.Int(ParamWaveform)), 1)

	inst.level.SetTarget(float64(gain.DbToLinear32(inst.Store.Float(ParamLevel))))
	if !inst.level.IsSmoothing() {
		gain.ApplyBuffer(out.Data[:frames*out.Channels], float32(inst.level.Current()))
		return nil
	}
	ramp := ctx.WorkBuffer(frames)
	inst.level.Fill(ramp)
	process.ApplyRamp(out.Data, out.Data, out.Channels, ramp)
	return nil
}
