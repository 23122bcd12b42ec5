// Package plugin defines what a DSP plugin hands to a host: a static
// Descriptor, a callbacks value whose optional capabilities are discovered
// once at registration, and the per-instance State every callback receives.
package plugin

import (
	"fmt"
	"strings"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
)

// Descriptor describes one plugin type. It is immutable once registered.
type Descriptor struct {
	SDKVersion uint32
	Name       string // at most 31 bytes
	Version    uint32 // plugin writer's version
	NumInputs  int
	NumOutputs int
	Params     *param.Table

	// UserData is returned to instances by Services.UserData.
	UserData any
	// Callbacks implements any of the capability interfaces below.
	Callbacks any
}

// Validate checks the descriptor the way the host does at registration.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("nil descriptor: %w", abi.ErrInvalidParam)
	}
	if d.SDKVersion == 0 || d.SDKVersion > abi.SDKVersion {
		return fmt.Errorf("%s: sdk version %d, host supports %d: %w",
			d.Name, d.SDKVersion, abi.SDKVersion, abi.ErrPluginVersion)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("plugin name is empty: %w", abi.ErrInvalidParam)
	}
	if _, err := abi.NewName(d.Name); err != nil {
		return err
	}
	if d.NumInputs < 0 {
		return fmt.Errorf("%s: %d input buffers: %w", d.Name, d.NumInputs, abi.ErrInvalidParam)
	}
	if d.NumOutputs < 0 || d.NumOutputs > 1 {
		return fmt.Errorf("%s: %d output buffers, want 0 or 1: %w", d.Name, d.NumOutputs, abi.ErrInvalidParam)
	}
	for i, p := range d.Params.All() {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%s: parameter %d: %w", d.Name, i, err)
		}
	}
	return nil
}

// Creator allocates private state into State.PluginData. A failure aborts
// instantiation.
type Creator interface {
	Create(s *State) error
}

// Releaser frees everything Create allocated. It is the last call an
// instance receives.
type Releaser interface {
	Release(s *State) error
}

// Resetter clears history such as delay lines and filter memory.
type Resetter interface {
	Reset(s *State) error
}

// Processor is the multi-buffer processing callback. ctx.Op says whether
// the call negotiates the output shape or produces audio.
type Processor interface {
	Process(s *State, ctx *process.Context) error
}

// Reader is the single-format processing callback over the first input and
// output buffer. outChannels starts at inChannels.
type Reader interface {
	Read(s *State, in, out []float32, length, inChannels int, outChannels *int) error
}

// Positioner is told about timeline seeks.
type Positioner interface {
	SetPosition(s *State, pos uint64) error
}

// IdleChecker decides before each block whether processing is needed. Any
// non-nil error bypasses the node for that block.
type IdleChecker interface {
	ShouldIProcess(s *State, inputsIdle bool, length int, mask bus.ChannelMask, channels int, mode bus.SpeakerMode) error
}

// FloatParams serves float parameter calls.
type FloatParams interface {
	SetParameterFloat(s *State, index int, value float32) error
	GetParameterFloat(s *State, index int) (float32, string, error)
}

// IntParams serves int parameter calls.
type IntParams interface {
	SetParameterInt(s *State, index int, value int32) error
	GetParameterInt(s *State, index int) (int32, string, error)
}

// BoolParams serves bool parameter calls.
type BoolParams interface {
	SetParameterBool(s *State, index int, value bool) error
	GetParameterBool(s *State, index int) (bool, string, error)
}

// DataParams serves data parameter calls. Slices passed in or returned are
// only valid for the duration of the call.
type DataParams interface {
	SetParameterData(s *State, index int, data []byte) error
	GetParameterData(s *State, index int) ([]byte, string, error)
}

// SystemRegisterer sets up state shared by every instance on one system.
// The State it receives carries only SystemObject and Functions.
type SystemRegisterer interface {
	SystemRegister(s *State) error
}

// SystemDeregisterer tears down what SystemRegister set up.
type SystemDeregisterer interface {
	SystemDeregister(s *State) error
}

// SystemMixer is told when the system's mixer starts and finishes a mix.
type SystemMixer interface {
	SystemMix(s *State, stage MixStage) error
}

// MixStage identifies the point in a mix update a SystemMix call is for.
type MixStage int32

const (
	MixPreMix MixStage = iota
	MixPostMix
	MixMidMix
)

func (m MixStage) String() string {
	switch m {
	case MixPreMix:
		return "pre-mix"
	case MixPostMix:
		return "post-mix"
	case MixMidMix:
		return "mid-mix"
	}
	return fmt.Sprintf("mixstage(%d)", int32(m))
}
