package plugin

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
)

var testParams = param.MustTable(
	param.Decibels("Gain", -80, 10, 0).MustBuild(),
	param.Choice("Mode", 0, "Sum", "Main").MustBuild(),
	param.Toggle("Linked", true).MustBuild(),
)

type readerOnly struct{ Base }

func (readerOnly) Read(*State, []float32, []float32, int, int, *int) error { return nil }

type both struct{ readerOnly }

func (both) Process(*State, *process.Context) error { return nil }
func (both) Create(*State) error                    { return nil }
func (both) SystemMix(*State, MixStage) error       { return nil }

func TestResolve(t *testing.T) {
	d := Resolve(readerOnly{NewBase(testParams)})
	assert.True(t, d.Caps.Has(CapRead|CapFloatParams|CapIntParams|CapBoolParams))
	assert.False(t, d.Caps.Has(CapProcess))
	assert.False(t, d.Caps.Has(CapDataParams))
	assert.Nil(t, d.Create)
	assert.NotNil(t, d.Read)

	d = Resolve(both{})
	assert.True(t, d.Caps.Has(CapProcess|CapCreate|CapSystemMix))
	assert.False(t, d.Caps.Has(CapRead), "process takes precedence over read")
	assert.Nil(t, d.Read)

	assert.Equal(t, Capabilities(0), Resolve(nil).Caps)
	assert.Equal(t, "none", Capabilities(0).String())
	assert.Equal(t, "create|process", (CapCreate | CapProcess).String())
}

func validDescriptor() *Descriptor {
	return &Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       "Gain",
		Version:    0x00010000,
		NumInputs:  2,
		NumOutputs: 1,
		Params:     testParams,
		Callbacks:  readerOnly{NewBase(testParams)},
	}
}

func TestDescriptorValidate(t *testing.T) {
	require.NoError(t, validDescriptor().Validate())

	tests := []struct {
		name   string
		mutate func(*Descriptor)
		want   error
	}{
		{"NewerSDK", func(d *Descriptor) { d.SDKVersion = abi.SDKVersion + 1 }, abi.ErrPluginVersion},
		{"ZeroSDK", func(d *Descriptor) { d.SDKVersion = 0 }, abi.ErrPluginVersion},
		{"EmptyName", func(d *Descriptor) { d.Name = " " }, abi.ErrInvalidParam},
		{"LongName", func(d *Descriptor) { d.Name = strings.Repeat("x", 32) }, abi.ErrInvalidParam},
		{"NegativeInputs", func(d *Descriptor) { d.NumInputs = -1 }, abi.ErrInvalidParam},
		{"TwoOutputs", func(d *Descriptor) { d.NumOutputs = 2 }, abi.ErrInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(d)
			assert.ErrorIs(t, d.Validate(), tt.want)
		})
	}

	var nilDesc *Descriptor
	assert.ErrorIs(t, nilDesc.Validate(), abi.ErrInvalidParam)
}

type instance struct {
	Values
}

func TestBase(t *testing.T) {
	base := NewBase(testParams)
	s := &State{PluginData: &instance{base.NewValues()}}

	require.NoError(t, base.SetParameterFloat(s, 0, 6))
	v, display, err := base.GetParameterFloat(s, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(6), v)
	assert.Equal(t, "6.00 dB", display)

	require.NoError(t, base.SetParameterFloat(s, 0, 50))
	v, _, _ = base.GetParameterFloat(s, 0)
	assert.Equal(t, float32(10), v, "clamped to max")

	require.NoError(t, base.SetParameterInt(s, 1, 1))
	iv, display, err := base.GetParameterInt(s, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), iv)
	assert.Equal(t, "Main", display)

	bv, display, err := base.GetParameterBool(s, 2)
	require.NoError(t, err)
	assert.True(t, bv)
	assert.Equal(t, "On", display)

	assert.ErrorIs(t, base.SetParameterFloat(s, 5, 1), abi.ErrInvalidIndex)
	assert.ErrorIs(t, base.SetParameterInt(s, 0, 1), abi.ErrParamType)
	_, _, err = base.GetParameterBool(s, 0)
	assert.ErrorIs(t, err, abi.ErrParamType)

	assert.ErrorIs(t, base.SetParameterFloat(&State{}, 0, 1), abi.ErrInvalidState)
	assert.ErrorIs(t, base.SetParameterFloat(nil, 0, 1), abi.ErrInvalidParam)
}

func TestMarshalBinary(t *testing.T) {
	d := validDescriptor()
	buf, err := d.MarshalBinary()
	require.NoError(t, err)

	le := binary.LittleEndian
	assert.Equal(t, abi.SDKVersion, le.Uint32(buf[0:]))
	assert.Equal(t, "Gain", strings.TrimRight(string(buf[4:36]), "\x00"))
	assert.Equal(t, uint32(0x00010000), le.Uint32(buf[36:]))
	assert.Equal(t, uint32(2), le.Uint32(buf[40:]))
	assert.Equal(t, uint32(1), le.Uint32(buf[44:]))
	assert.Equal(t, uint32(3), le.Uint32(buf[48:]))

	// first parameter: float gain
	p := buf[52:]
	assert.Equal(t, uint32(param.TypeFloat), le.Uint32(p))
	assert.Equal(t, "Gain", strings.TrimRight(string(p[4:20]), "\x00"))
	assert.Equal(t, "dB", strings.TrimRight(string(p[20:36]), "\x00"))
	assert.Equal(t, byte(0), p[36], "not read-only")
	descLen := int(le.Uint16(p[37:]))
	bounds := p[39+descLen:]
	assert.Equal(t, float32(-80), math.Float32frombits(le.Uint32(bounds)))
	assert.Equal(t, float32(10), math.Float32frombits(le.Uint32(bounds[4:])))
	assert.Equal(t, float32(0), math.Float32frombits(le.Uint32(bounds[8:])))

	d.Name = ""
	_, err = d.MarshalBinary()
	assert.Error(t, err)
}

type logServices struct {
	Services
	lines []string
}

func (l *logServices) Log(level debug.LogLevel, file string, line int, function, format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf("%s %s %s", level, function, fmt.Sprintf(format, args...)))
}

func TestStateLogf(t *testing.T) {
	svc := &logServices{}
	s := &State{Functions: svc}
	s.Logf(debug.LogLevelWarn, "tail %d", 3)

	require.Len(t, svc.lines, 1)
	assert.Contains(t, svc.lines[0], "WARN")
	assert.Contains(t, svc.lines[0], "TestStateLogf")
	assert.Contains(t, svc.lines[0], "tail 3")

	var nilState *State
	assert.NotPanics(t, func() { nilState.Logf(debug.LogLevelError, "x") })
}

func TestMixStageString(t *testing.T) {
	assert.Equal(t, "pre-mix", MixPreMix.String())
	assert.Equal(t, "mid-mix", MixMidMix.String())
	assert.Equal(t, "mixstage(7)", MixStage(7).String())
}
