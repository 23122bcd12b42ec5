// Package ducker lowers its input while a sidechain signal is above a
// threshold, the way music ducks under dialogue.
package ducker

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/envelope"
	"github.com/justyntemme/dspplug/pkg/dsp/filter"
	"github.com/justyntemme/dspplug/pkg/dsp/gain"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// Name is the registered plugin name.
const Name = "Ducker"

const (
	ParamThreshold = iota
	ParamDepth
	ParamRelease
	ParamSidechain
	ParamHighpass
)

// kneeDB is how far above the threshold the full depth is reached.
const kneeDB = 6

var params = param.MustTable(
	param.Decibels("Threshold", gain.MinDB, 0, -30).
		Description("Sidechain level that starts the ducking").MustBuild(),
	param.Decibels("Depth", gain.MinDB, 0, -12).
		Description("Gain applied while the sidechain is loud").MustBuild(),
	param.Milliseconds("Release", 1, 5000, 300).MustBuild(),
	param.SidechainEnable().MustBuild(),
	param.Float("SC Highpass", 0, 1000, 0).Label("Hz").
		Description("Filters the sidechain before detection, 0 is off").MustBuild(),
)

// Plugin implements the ducker callbacks.
type Plugin struct {
	plugin.Base
}

type instance struct {
	plugin.Values
	follower *envelope.Follower
	highpass *filter.Biquad
	cutoff   float32
	env      []float32 // one level per frame
	side     []float32 // filtered sidechain
	enabled  atomic.Int32
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
	block := s.Functions.BlockSize()
	// one block of envelope followed by one block of the widest sidechain
	scratch, err := s.Functions.AllocFloats(block*(1+filter.MaxChannels), abi.MemoryPlugin, "ducker scratch")
	if err != nil {
		return err
	}
	inst := &instance{
		Values:   p.NewValues(),
		follower: envelope.NewFollower(float64(s.Functions.SampleRate())),
		highpass: filter.NewBiquad(),
		env:      scratch[:block],
		side:     scratch[block:],
	}
	inst.highpass.SetBypass()
	s.PluginData = inst
	return nil
}

func (p *Plugin) Release(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	s.Functions.FreeFloats(inst.env[:cap(inst.env)], abi.MemoryPlugin, "ducker scratch")
	inst.env, inst.side = nil, nil
	return nil
}

func (p *Plugin) Reset(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	inst.follower.Reset()
	inst.highpass.Reset()
	return nil
}

// filterSidechain returns the sidechain after the optional highpass.
func (inst *instance) filterSidechain(s *plugin.State, length int) []float32 {
	if cutoff := inst.Store.Float(ParamHighpass); cutoff != inst.cutoff {
		inst.cutoff = cutoff
		if cutoff <= 0 {
			inst.highpass.SetBypass()
		} else {
			inst.highpass.SetHighpass(float64(s.Functions.SampleRate()), float64(cutoff), filter.ButterworthQ)
		}
	}
	if inst.highpass.Bypassed() || s.SidechainChannels > filter.MaxChannels {
		return s.Sidechain
	}
	side := inst.side[:length*s.SidechainChannels]
	inst.highpass.Process(side, s.Sidechain, s.SidechainChannels, length)
	return side
}

// Gain returns the linear gain for a sidechain envelope. The reduction
// grows from nothing at the threshold to depth kneeDB above it.
func Gain(level, thresholdDB, depthDB float32) float32 {
	over := (gain.LinearToDb32(level) - thresholdDB) / kneeDB
	if over <= 0 {
		return 1
	}
	return gain.DbToLinear32(depthDB * min(over, 1))
}

func (p *Plugin) Read(s *plugin.State, in, out []float32, length, inChannels int, outChannels *int) error {
	inst := s.PluginData.(*instance)
	if release := float64(inst.Store.Float(ParamRelease)) / 1000; math.Abs(release-inst.follower.Release()) > 1e-9 {
		inst.follower.SetRelease(release)
	}
	n := length * inChannels
	if s.Sidechain == nil {
		inst.follower.Idle(length)
		copy(out[:n], in[:n])
		return nil
	}

	env := inst.env[:length]
	inst.follower.FollowFrames(inst.filterSidechain(s, length), s.SidechainChannels, length, env)
	threshold, depth := inst.Store.Float(ParamThreshold), inst.Store.Float(ParamDepth)
	for i, level := range env {
		g := Gain(level, threshold, depth)
		for c := i * inChannels; c < (i+1)*inChannels; c++ {
			out[c] = in[c] * g
		}
	}
	return nil
}

// SetParameterData records the sidechain switch. The host starts or stops
// filling State.Sidechain from the payload itself.
func (p *Plugin) SetParameterData(s *plugin.State, index int, data []byte) error {
	if index != ParamSidechain {
		return fmt.Errorf("ducker data parameter %d: %w", index, abi.ErrInvalidIndex)
	}
	var sc abi.Sidechain
	if err := abi.Decode(data, &sc); err != nil {
		return err
	}
	s.PluginData.(*instance).enabled.Store(sc.Enable)
	return nil
}

func (p *Plugin) GetParameterData(s *plugin.State, index int) ([]byte, string, error) {
	if index != ParamSidechain {
		return nil, "", fmt.Errorf("ducker data parameter %d: %w", index, abi.ErrInvalidIndex)
	}
	sc := abi.Sidechain{Enable: s.PluginData.(*instance).enabled.Load()}
	data, err := abi.Encode(nil, &sc)
	display := "Off"
	if sc.Enable != 0 {
		display = "On"
	}
	return data, display, err
}
