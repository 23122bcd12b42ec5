package host

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

var probeParams = param.MustTable(
	param.Decibels("Gain", -80, 10, 0).MustBuild(),
	param.Choice("Mode", 0, "Sum", "Main").MustBuild(),
	param.Toggle("Linked", true).MustBuild(),
	param.Decibels("Level", -80, 0, -80).ReadOnly().MustBuild(),
	param.SidechainEnable().MustBuild(),
)

const (
	probeGain = iota
	probeMode
	probeLinked
	probeLevel
	probeSidechain
)

// probe records every callback the host makes. Hooks replace the default
// behaviour of halving the main input.
type probe struct {
	plugin.Base

	failCreate  error
	allocCreate int
	leak        bool
	skipIdle    bool

	query   func(s *plugin.State, ctx *process.Context) error
	perform func(s *plugin.State, ctx *process.Context) error

	creates, releases, resets int
	queries, performs         int
	positions                 []uint64
	registers, deregisters    int
	mixes                     []plugin.MixStage
	failRegister              error
}

type probeInstance struct {
	plugin.Values
	buf       []byte
	sidechain []byte
}

func newProbe() *probe { return &probe{Base: plugin.NewBase(probeParams)} }

func probeDescriptor(p *probe) *plugin.Descriptor {
	return &plugin.Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       "Probe",
		Version:    0x00010000,
		NumInputs:  2,
		NumOutputs: 1,
		Params:     probeParams,
		UserData:   "probe-data",
		Callbacks:  p,
	}
}

func (p *probe) Create(s *plugin.State) error {
	inst := &probeInstance{Values: p.NewValues()}
	if p.allocCreate > 0 {
		buf, err := s.Functions.Alloc(p.allocCreate, abi.MemoryPlugin, "probe")
		if err != nil {
			return err
		}
		inst.buf = buf
	}
	p.creates++
	if p.failCreate != nil {
		return p.failCreate
	}
	s.PluginData = inst
	return nil
}

func (p *probe) Release(s *plugin.State) error {
	p.releases++
	inst := s.PluginData.(*probeInstance)
	if !p.leak {
		s.Functions.Free(inst.buf, abi.MemoryPlugin, "probe")
	}
	return nil
}

func (p *probe) Reset(*plugin.State) error {
	p.resets++
	return nil
}

func (p *probe) Process(s *plugin.State, ctx *process.Context) error {
	if ctx.Op == process.Query {
		p.queries++
		if p.query != nil {
			return p.query(s, ctx)
		}
		return nil
	}
	p.performs++
	if p.perform != nil {
		return p.perform(s, ctx)
	}
	in, out := ctx.Main(), ctx.Output()
	process.Scale(out.Data, in.Data, in.Channels, ctx.Frames, 0.5)
	return nil
}

func (p *probe) SetPosition(_ *plugin.State, pos uint64) error {
	p.positions = append(p.positions, pos)
	return nil
}

func (p *probe) ShouldIProcess(_ *plugin.State, idle bool, _ int, _ bus.ChannelMask, _ int, _ bus.SpeakerMode) error {
	if p.skipIdle && idle {
		return abi.ErrDontProcess
	}
	return nil
}

func (p *probe) SetParameterData(s *plugin.State, index int, data []byte) error {
	inst := s.PluginData.(*probeInstance)
	inst.sidechain = append(inst.sidechain[:0], data...)
	return nil
}

func (p *probe) GetParameterData(s *plugin.State, index int) ([]byte, string, error) {
	return s.PluginData.(*probeInstance).sidechain, "", nil
}

func (p *probe) SystemRegister(s *plugin.State) error {
	p.registers++
	return p.failRegister
}

func (p *probe) SystemDeregister(*plugin.State) error {
	p.deregisters++
	return nil
}

func (p *probe) SystemMix(_ *plugin.State, stage plugin.MixStage) error {
	p.mixes = append(p.mixes, stage)
	return nil
}

// plain only serves the parameter calls Base provides.
type plain struct{ plugin.Base }

func (p plain) Create(s *plugin.State) error {
	v := p.NewValues()
	s.PluginData = &v
	return nil
}

func newTestSystem(t *testing.T, opts ...Option) *System {
	t.Helper()
	opts = append([]Option{WithLogger(debug.Discard()), WithBlockSize(256)}, opts...)
	sys, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	return sys
}

func newProbeInstance(t *testing.T, p *probe, opts ...Option) (*System, *Instance) {
	t.Helper()
	sys := newTestSystem(t, opts...)
	require.NoError(t, sys.Register(probeDescriptor(p)))
	inst, err := sys.Create("Probe")
	require.NoError(t, err)
	return sys, inst
}

func fill(a *bus.Array, v float32) {
	for i := range a.Buffers {
		for j := range a.Buffers[i].Data {
			a.Buffers[i].Data[j] = v
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(WithLogger(debug.Discard()), WithSpeakerModes(bus.SpeakerModeRaw, bus.SpeakerModeStereo))
	assert.ErrorIs(t, err, abi.ErrInvalidParam)

	_, err = New(WithLogger(debug.Discard()), WithFFTSizes(100))
	assert.ErrorIs(t, err, abi.ErrInvalidParam)

	_, err = New(WithLogger(debug.Discard()), WithMemoryBudget(abi.MemoryPlugin, -1))
	assert.ErrorIs(t, err, abi.ErrInvalidParam)

	_, err = New(WithLogger(debug.Discard()), WithCustomRolloff(nil))
	assert.NoError(t, err, "an empty curve leaves custom rolloff unconfigured")

	cfg := DefaultConfig()
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, bus.SpeakerModeStereo, cfg.MixerMode)
}

func TestLifecycle(t *testing.T) {
	p := newProbe()
	_, inst := newProbeInstance(t, p)

	assert.Equal(t, 1, p.creates)
	assert.Equal(t, LifecycleCreated, inst.Lifecycle())
	assert.Equal(t, "Probe", inst.PluginName())
	assert.NotZero(t, inst.Handle())

	in := bus.NewStereo(64)
	out := &bus.Array{}
	outcome, err := inst.Process(64, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, process.Processed, outcome)
	assert.Equal(t, LifecycleActive, inst.Lifecycle())
	assert.Equal(t, 1, p.resets, "reset before first use")

	_, err = inst.Process(64, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, 1, p.resets)

	require.NoError(t, inst.Reset())
	require.NoError(t, inst.Reset())
	assert.Equal(t, 3, p.resets)
	assert.Equal(t, LifecycleCreated, inst.Lifecycle())

	_, err = inst.Process(64, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, 3, p.resets, "an explicit reset is not repeated")
	assert.Equal(t, LifecycleActive, inst.Lifecycle())

	require.NoError(t, inst.Release())
	assert.Equal(t, 1, p.releases)
	assert.Equal(t, LifecycleReleased, inst.Lifecycle())

	assert.ErrorIs(t, inst.Release(), abi.ErrInvalidState)
	assert.Equal(t, 1, p.releases, "release runs once")
	_, err = inst.Process(64, in, out, false)
	assert.ErrorIs(t, err, abi.ErrInvalidState)
	assert.ErrorIs(t, inst.Reset(), abi.ErrInvalidState)
	assert.ErrorIs(t, inst.SetPosition(10), abi.ErrInvalidState)
	assert.ErrorIs(t, inst.SetParameterFloat(probeGain, 1), abi.ErrInvalidState)
	_, _, err = inst.GetParameterFloat(probeGain)
	assert.ErrorIs(t, err, abi.ErrInvalidState)
}

func TestCreateFailure(t *testing.T) {
	p := newProbe()
	p.failCreate = errors.New("no device")
	p.allocCreate = 128
	sys := newTestSystem(t)
	require.NoError(t, sys.Register(probeDescriptor(p)))

	inst, err := sys.Create("Probe")
	require.Error(t, err)
	assert.Nil(t, inst)
	assert.Contains(t, err.Error(), "no device")
	assert.Equal(t, 0, p.releases)
	assert.Zero(t, sys.Memory().Total(), "allocations of a failed create are reclaimed")

	// the type has no live instances left
	require.NoError(t, sys.Deregister("Probe"))
}

func TestMemoryBudget(t *testing.T) {
	p := newProbe()
	p.allocCreate = 200
	sys := newTestSystem(t, WithMemoryBudget(abi.MemoryPlugin, 256))
	require.NoError(t, sys.Register(probeDescriptor(p)))

	first, err := sys.Create("Probe")
	require.NoError(t, err)
	assert.Equal(t, int64(200), sys.Memory().Total())
	assert.Equal(t, int64(200), first.Memory().Total())

	_, err = sys.Create("Probe")
	assert.ErrorIs(t, err, abi.ErrMemory)

	require.NoError(t, first.Release())
	assert.Zero(t, sys.Memory().Total())

	second, err := sys.Create("Probe")
	require.NoError(t, err)
	require.NoError(t, second.Release())

	for _, u := range sys.Memory() {
		if u.Kind == abi.MemoryPlugin {
			assert.Equal(t, int64(200), u.Peak)
		}
	}

	t.Run("ReallocNearLimit", func(t *testing.T) {
		sys, inst := newProbeInstance(t, newProbe(), WithMemoryBudget(abi.MemoryPlugin, 256))
		buf, err := inst.svc.Alloc(150, abi.MemoryPlugin, "window")
		require.NoError(t, err)
		buf[149] = 3

		buf, err = inst.svc.Realloc(buf, 250, abi.MemoryPlugin, "window")
		require.NoError(t, err, "old and new block never count together")
		assert.Equal(t, byte(3), buf[149])
		assert.Equal(t, int64(250), sys.Memory().Total())

		_, err = inst.svc.Realloc(buf, 257, abi.MemoryPlugin, "window")
		assert.ErrorIs(t, err, abi.ErrMemory)
		assert.Equal(t, int64(250), sys.Memory().Total())
		assert.Equal(t, int64(250), inst.Memory().Total())

		inst.svc.Free(buf, abi.MemoryPlugin, "window")
		assert.Zero(t, sys.Memory().Total())
	})
}

func TestReleaseReclaimsLeaks(t *testing.T) {
	p := newProbe()
	p.allocCreate = 100
	p.leak = true
	sys, inst := newProbeInstance(t, p)

	assert.Len(t, inst.Memory().Outstanding(), 1)
	require.NoError(t, inst.Release())
	assert.Zero(t, sys.Memory().Total())
	assert.Empty(t, inst.Memory().Outstanding())
}

func TestParameterDispatch(t *testing.T) {
	_, inst := newProbeInstance(t, newProbe())

	require.NoError(t, inst.SetParameterFloat(probeGain, 6))
	v, display, err := inst.GetParameterFloat(probeGain)
	require.NoError(t, err)
	assert.Equal(t, float32(6), v)
	assert.Equal(t, "6.00 dB", display)

	assert.ErrorIs(t, inst.SetParameterFloat(5, 1), abi.ErrInvalidIndex)
	assert.ErrorIs(t, inst.SetParameterFloat(-1, 1), abi.ErrInvalidIndex)
	v, _, _ = inst.GetParameterFloat(probeGain)
	assert.Equal(t, float32(6), v, "failed set leaves the value unchanged")

	assert.ErrorIs(t, inst.SetParameterInt(probeGain, 1), abi.ErrParamType)
	_, _, err = inst.GetParameterBool(probeMode)
	assert.ErrorIs(t, err, abi.ErrParamType)

	assert.ErrorIs(t, inst.SetParameterFloat(probeLevel, -10), abi.ErrReadOnly)
	v, _, err = inst.GetParameterFloat(probeLevel)
	require.NoError(t, err)
	assert.Equal(t, float32(-80), v)

	require.NoError(t, inst.SetParameterInt(probeMode, 1))
	iv, display, err := inst.GetParameterInt(probeMode)
	require.NoError(t, err)
	assert.Equal(t, int32(1), iv)
	assert.Equal(t, "Main", display)

	require.NoError(t, inst.SetParameterBool(probeLinked, false))
	bv, _, err := inst.GetParameterBool(probeLinked)
	require.NoError(t, err)
	assert.False(t, bv)
}

func TestParameterUnsupported(t *testing.T) {
	table := param.MustTable(
		param.Percent("Mix", 50).MustBuild(),
		param.Data("Blob", abi.DataUser).MustBuild(),
	)
	sys := newTestSystem(t)
	require.NoError(t, sys.Register(&plugin.Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       "Plain",
		NumInputs:  1,
		NumOutputs: 1,
		Params:     table,
		Callbacks:  plain{plugin.NewBase(table)},
	}))
	inst, err := sys.Create("Plain")
	require.NoError(t, err)

	require.NoError(t, inst.SetParameterFloat(0, 25))
	assert.ErrorIs(t, inst.SetParameterData(1, []byte{1}), abi.ErrUnsupported)
	_, _, err = inst.GetParameterData(1)
	assert.ErrorIs(t, err, abi.ErrUnsupported)
}

func TestSidechainParameter(t *testing.T) {
	p := newProbe()
	var got []float32
	var channels int
	p.perform = func(s *plugin.State, ctx *process.Context) error {
		got = append([]float32(nil), s.Sidechain...)
		channels = s.SidechainChannels
		return nil
	}
	_, inst := newProbeInstance(t, p)

	in := bus.NewSidechained(16)
	fill(in, 0.25)
	out := &bus.Array{}

	_, err := inst.Process(16, in, out, false)
	require.NoError(t, err)
	assert.Empty(t, got, "sidechain is off by default")

	enable, err := abi.Encode(nil, &abi.Sidechain{Enable: 1})
	require.NoError(t, err)
	require.NoError(t, inst.SetParameterData(probeSidechain, enable))
	data, _, err := inst.GetParameterData(probeSidechain)
	require.NoError(t, err)
	assert.Equal(t, enable, data)

	_, err = inst.Process(16, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, 2, channels)
	require.Len(t, got, 32)
	assert.Equal(t, float32(0.25), got[0])

	assert.ErrorIs(t, inst.SetParameterData(probeSidechain, []byte{1, 2, 3}), abi.ErrInvalidParam)
}

func TestSystemRegistry(t *testing.T) {
	p := newProbe()
	sys := newTestSystem(t)
	require.NoError(t, sys.Register(probeDescriptor(p)))
	assert.Equal(t, 1, p.registers)

	assert.ErrorIs(t, sys.Register(probeDescriptor(p)), abi.ErrAlreadyRegistered)
	assert.Equal(t, 1, p.registers, "system register runs once per system")

	bad := probeDescriptor(newProbe())
	bad.Name = "Newer"
	bad.SDKVersion = abi.SDKVersion + 1
	assert.ErrorIs(t, sys.Register(bad), abi.ErrPluginVersion)

	failing := newProbe()
	failing.failRegister = errors.New("no shared state")
	desc := probeDescriptor(failing)
	desc.Name = "Failing"
	assert.Error(t, sys.Register(desc))
	_, err := sys.Lookup("Failing")
	assert.ErrorIs(t, err, abi.ErrNotFound)

	_, err = sys.Create("Missing")
	assert.ErrorIs(t, err, abi.ErrNotFound)

	d, err := sys.Lookup("Probe")
	require.NoError(t, err)
	assert.Equal(t, "Probe", d.Name)
	require.Len(t, sys.Descriptors(), 1)

	caps, err := sys.Capabilities("Probe")
	require.NoError(t, err)
	assert.True(t, caps.Has(plugin.CapProcess|plugin.CapDataParams|plugin.CapSystemMix))
	assert.False(t, caps.Has(plugin.CapRead))

	require.NoError(t, sys.Mix(plugin.MixPreMix))
	require.NoError(t, sys.Mix(plugin.MixPostMix))
	assert.Equal(t, []plugin.MixStage{plugin.MixPreMix, plugin.MixPostMix}, p.mixes)

	inst, err := sys.Create("Probe")
	require.NoError(t, err)
	assert.ErrorIs(t, sys.Deregister("Probe"), abi.ErrInvalidState)
	require.NoError(t, inst.Release())
	require.NoError(t, sys.Deregister("Probe"))
	assert.Equal(t, 1, p.deregisters)
	assert.ErrorIs(t, sys.Deregister("Probe"), abi.ErrNotFound)
}

func TestCloseDeregisters(t *testing.T) {
	p := newProbe()
	sys, err := New(WithLogger(debug.Discard()))
	require.NoError(t, err)
	require.NoError(t, sys.Register(probeDescriptor(p)))

	require.NoError(t, sys.Close())
	require.NoError(t, sys.Close())
	assert.Equal(t, 1, p.deregisters)

	_, err = sys.Create("Probe")
	assert.ErrorIs(t, err, abi.ErrInvalidState)
	assert.ErrorIs(t, sys.Register(probeDescriptor(newProbe())), abi.ErrInvalidState)
}

func TestPluginLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.New(&buf, "", debug.FlagLevel)
	sys, err := New(WithLogger(logger))
	require.NoError(t, err)

	p := newProbe()
	p.perform = func(s *plugin.State, ctx *process.Context) error {
		s.Logf(debug.LogLevelWarn, "clipped %d samples", 3)
		return nil
	}
	require.NoError(t, sys.Register(probeDescriptor(p)))
	inst, err := sys.Create("Probe")
	require.NoError(t, err)
	_, err = inst.Process(8, bus.NewStereo(8), &bus.Array{}, false)
	require.NoError(t, err)
	require.NoError(t, inst.Release())

	require.NoError(t, sys.Close())
	assert.Contains(t, buf.String(), "clipped 3 samples")
	assert.Zero(t, sys.DroppedLogs())
}

func TestConcurrentParameters(t *testing.T) {
	_, inst := newProbeInstance(t, newProbe())
	in := bus.NewStereo(32)
	out := &bus.Array{}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; n < 200; n++ {
			_ = inst.SetParameterFloat(probeGain, float32(n%10))
			_, _, _ = inst.GetParameterFloat(probeGain)
		}
	}()
	for n := 0; n < 200; n++ {
		_, err := inst.Process(32, in, out, false)
		require.NoError(t, err)
	}
	wg.Wait()
	require.NoError(t, inst.Release())
}
