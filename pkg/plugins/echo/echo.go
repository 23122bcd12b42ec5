// Package echo is a feedback echo. It keeps processing after its input
// goes idle until the repeats have decayed below -80 dB.
package echo

import (
	"fmt"
	"math"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/delay"
	"github.com/justyntemme/dspplug/pkg/dsp/gain"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// Name is the registered plugin name.
const Name = "Echo"

const (
	ParamDelay = iota
	ParamFeedback
	ParamDry
	ParamWet
	ParamOverallGain
)

const (
	maxDelayMs = 5000
	// maxRepeats bounds the tail when feedback never decays.
	maxRepeats = 1000
	// tailFloor is the repeat level at which the tail is considered gone.
	tailFloor = 1e-4
)

var params = param.MustTable(
	param.Milliseconds("Delay", 10, maxDelayMs, 500).MustBuild(),
	param.Percent("Feedback", 50).
		Description("Level of each repeat relative to the one before").MustBuild(),
	param.Decibels("Dry", gain.MinDB, 10, 0).MustBuild(),
	param.Decibels("Wet", gain.MinDB, 10, 0).MustBuild(),
	param.OverallGain().MustBuild(),
)

// Plugin implements the echo callbacks.
type Plugin struct {
	plugin.Base
}

type instance struct {
	plugin.Values
	line     *delay.Line
	tailLeft int64
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

// TailRepeats returns how many repeats it takes feedback to fall below
// -80 dB.
func TailRepeats(feedback float64) int {
	switch {
	case feedback <= 0:
		return 0
	case feedback >= 1:
		return maxRepeats
	}
	return min(int(math.Ceil(math.Log(tailFloor)/math.Log(feedback))), maxRepeats)
}

// TailFrames is how long the echo keeps sounding after its input stops.
func TailFrames(delayFrames int, feedback float64) int64 {
	return int64(delayFrames) * int64(TailRepeats(feedback)+1)
}

func (p *Plugin) Create(s *plugin.State) error {
	s.PluginData = &instance{Values: p.NewValues()}
	return nil
}

func (p *Plugin) Release(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	if inst.line != nil {
		s.Functions.FreeFloats(inst.line.Buffer(), abi.MemoryDSPBuffer, "echo line")
		inst.line = nil
	}
	return nil
}

func (p *Plugin) Reset(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	if inst.line != nil {
		inst.line.Reset()
	}
	inst.tailLeft = 0
	return nil
}

// ensureLine sizes the delay line for channels, replacing it when the
// input width changes.
func (inst *instance) ensureLine(s *plugin.State, channels int) error {
	if inst.line != nil && inst.line.Channels() == channels {
		return nil
	}
	frames := delay.FramesFor(maxDelayMs, float64(s.Functions.SampleRate()))
	buf, err := s.Functions.AllocFloats(frames*channels, abi.MemoryDSPBuffer, "echo line")
	if err != nil {
		return err
	}
	if inst.line != nil {
		s.Functions.FreeFloats(inst.line.Buffer(), abi.MemoryDSPBuffer, "echo line")
	}
	line, err := delay.New(buf, channels)
	if err != nil {
		s.Functions.FreeFloats(buf, abi.MemoryDSPBuffer, "echo line")
		return fmt.Errorf("echo line: %w", err)
	}
	inst.line = line
	return nil
}

func (inst *instance) delayFrames(sampleRate int) int {
	return int(float64(inst.Store.Float(ParamDelay)) * float64(sampleRate) / 1000)
}

func (inst *instance) feedback() float32 {
	return inst.Store.Float(ParamFeedback) / 100
}

func (p *Plugin) Read(s *plugin.State, in, out []float32, length, inChannels int, outChannels *int) error {
	inst := s.PluginData.(*instance)
	if err := inst.ensureLine(s, inChannels); err != nil {
		return err
	}
	inst.line.Echo(out, in, length, inst.delayFrames(s.Functions.SampleRate()), inst.feedback(),
		gain.DbToLinear32(inst.Store.Float(ParamDry)), gain.DbToLinear32(inst.Store.Float(ParamWet)))
	return nil
}

// ShouldIProcess keeps the echo running for its tail once the input goes
// idle, then clears the line and lets the host bypass it.
func (p *Plugin) ShouldIProcess(s *plugin.State, idle bool, length int, _ bus.ChannelMask, _ int, _ bus.SpeakerMode) error {
	inst := s.PluginData.(*instance)
	if !idle {
		inst.tailLeft = TailFrames(inst.delayFrames(s.Functions.SampleRate()), float64(inst.feedback()))
		return nil
	}
	if inst.tailLeft > 0 {
		inst.tailLeft -= int64(length)
		return nil
	}
	if inst.line != nil {
		inst.line.Reset()
	}
	return abi.ErrDontProcess
}

func (p *Plugin) SetParameterData(s *plugin.State, index int, _ []byte) error {
	return fmt.Errorf("echo data parameter %d: %w", index, abi.ErrReadOnly)
}

// GetParameterData reports the dry level as the direct gain and the wet
// level as the parallel gain.
func (p *Plugin) GetParameterData(s *plugin.State, index int) ([]byte, string, error) {
	if index != ParamOverallGain {
		return nil, "", fmt.Errorf("echo data parameter %d: %w", index, abi.ErrInvalidIndex)
	}
	st, err := p.Store(s)
	if err != nil {
		return nil, "", err
	}
	g := abi.OverallGain{
		Linear:         gain.DbToLinear32(st.Float(ParamDry)),
		LinearAdditive: gain.DbToLinear32(st.Float(ParamWet)),
	}
	data, err := abi.Encode(nil, &g)
	return data, "", err
}
