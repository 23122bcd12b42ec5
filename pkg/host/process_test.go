package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

var surround51 = bus.Shape{
	SpeakerMode: bus.SpeakerMode5Point1,
	Buffers:     []bus.Geometry{{Channels: 6, Mask: bus.Mask5Point1}},
}

func TestProcessHalvesInput(t *testing.T) {
	_, inst := newProbeInstance(t, newProbe())
	in := bus.NewStereo(64)
	fill(in, 1)
	out := &bus.Array{}

	outcome, err := inst.Process(64, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, process.Processed, outcome)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, 2, out.Buffers[0].Channels)
	assert.Len(t, out.Buffers[0].Data, 128)
	assert.Equal(t, float32(0.5), out.Buffers[0].Data[127])
}

func TestQueryCommitsShape(t *testing.T) {
	p := newProbe()
	var performShape bus.Shape
	p.query = func(_ *plugin.State, ctx *process.Context) error {
		ctx.Out.Apply(surround51)
		return nil
	}
	p.perform = func(_ *plugin.State, ctx *process.Context) error {
		performShape = ctx.Out.Shape()
		out := ctx.Output()
		assert.Len(t, out.Data, ctx.Frames*6, "data sized to the committed shape")
		for i := range out.Data {
			out.Data[i] = 1
		}
		return nil
	}
	_, inst := newProbeInstance(t, p)

	out := &bus.Array{}
	outcome, err := inst.Process(32, bus.NewStereo(32), out, false)
	require.NoError(t, err)
	assert.Equal(t, process.Processed, outcome)
	assert.Equal(t, 1, p.queries)
	assert.Equal(t, 1, p.performs)
	assert.True(t, performShape.Equal(surround51))
	assert.True(t, out.Matches(surround51))
	assert.Equal(t, float32(1), out.Buffers[0].Data[32*6-1])
}

func TestQueryDeclinePassesThrough(t *testing.T) {
	p := newProbe()
	p.query = func(_ *plugin.State, ctx *process.Context) error {
		ctx.Out.Apply(surround51)
		return abi.ErrDontProcess
	}
	_, inst := newProbeInstance(t, p)

	in := bus.NewStereo(16)
	for i := range in.Buffers[0].Data {
		in.Buffers[0].Data[i] = float32(i)
	}
	out := &bus.Array{}
	outcome, err := inst.Process(16, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, process.PassThrough, outcome)
	assert.Equal(t, 0, p.performs, "no perform after a declined query")
	assert.True(t, out.SameShape(in), "shape changes of a declined query are undone")
	assert.Equal(t, in.Buffers[0].Data, out.Buffers[0].Data)
}

func TestInvalidCommittedShape(t *testing.T) {
	p := newProbe()
	p.query = func(_ *plugin.State, ctx *process.Context) error {
		ctx.Out.Buffers[0].Channels = 3
		ctx.Out.Buffers[0].Mask = bus.MaskStereo
		return nil
	}
	_, inst := newProbeInstance(t, p)

	outcome, err := inst.Process(16, bus.NewStereo(16), &bus.Array{}, false)
	assert.ErrorIs(t, err, abi.ErrFormat)
	assert.Equal(t, process.Silenced, outcome)
	assert.Equal(t, 0, p.performs)
}

func TestPerformReshapeSilences(t *testing.T) {
	p := newProbe()
	p.perform = func(_ *plugin.State, ctx *process.Context) error {
		ctx.Out.Buffers[0].Channels = 1
		ctx.Out.Buffers[0].Mask = bus.MaskMono
		return nil
	}
	_, inst := newProbeInstance(t, p)

	out := bus.NewStereo(16)
	fill(out, 1)
	outcome, err := inst.Process(16, bus.NewStereo(16), out, false)
	assert.ErrorIs(t, err, abi.ErrFormatChanged)
	assert.Equal(t, process.Silenced, outcome)
	assert.Equal(t, 2, out.Buffers[0].Channels, "committed shape restored")
	assert.Equal(t, make([]float32, 32), out.Buffers[0].Data)
}

func TestPerformErrorSilences(t *testing.T) {
	p := newProbe()
	p.perform = func(_ *plugin.State, ctx *process.Context) error {
		for i := range ctx.Output().Data {
			ctx.Output().Data[i] = 9
		}
		return abi.ErrSilence
	}
	_, inst := newProbeInstance(t, p)

	out := &bus.Array{}
	outcome, err := inst.Process(16, bus.NewStereo(16), out, false)
	require.NoError(t, err, "plugin failures are not host errors")
	assert.Equal(t, process.Silenced, outcome)
	assert.Equal(t, make([]float32, 32), out.Buffers[0].Data)
}

func TestPanicIsRecovered(t *testing.T) {
	p := newProbe()
	p.perform = func(*plugin.State, *process.Context) error {
		panic("index out of range")
	}
	_, inst := newProbeInstance(t, p)

	in := bus.NewStereo(16)
	fill(in, 1)
	out := &bus.Array{}
	outcome, err := inst.Process(16, in, out, false)
	assert.ErrorIs(t, err, abi.ErrInternal)
	assert.Equal(t, process.Silenced, outcome)
	assert.Equal(t, make([]float32, 32), out.Buffers[0].Data)

	p.perform = nil
	outcome, err = inst.Process(16, in, out, false)
	require.NoError(t, err, "the instance survives a panic")
	assert.Equal(t, process.Processed, outcome)
	assert.Equal(t, float32(0.5), out.Buffers[0].Data[0])
	require.NoError(t, inst.Release())
}

func TestShouldIProcessBypasses(t *testing.T) {
	p := newProbe()
	p.skipIdle = true
	_, inst := newProbeInstance(t, p)

	in := bus.NewStereo(16)
	fill(in, 0.25)
	out := &bus.Array{}

	outcome, err := inst.Process(16, in, out, true)
	require.NoError(t, err)
	assert.Equal(t, process.Bypassed, outcome)
	assert.Equal(t, 0, p.queries)
	assert.Equal(t, float32(0.25), out.Buffers[0].Data[0])

	outcome, err = inst.Process(16, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, process.Processed, outcome)
	assert.Equal(t, float32(0.125), out.Buffers[0].Data[0])
}

func TestSetPositionDeliveredBeforeNextBlock(t *testing.T) {
	p := newProbe()
	_, inst := newProbeInstance(t, p)

	require.NoError(t, inst.SetPosition(48000))
	assert.True(t, inst.RepositionPending())
	assert.Empty(t, p.positions, "no plugin call until the next block")

	_, err := inst.Process(16, bus.NewStereo(16), &bus.Array{}, false)
	require.NoError(t, err)
	assert.False(t, inst.RepositionPending())
	assert.Equal(t, []uint64{48000}, p.positions)

	_, err = inst.Process(16, bus.NewStereo(16), &bus.Array{}, false)
	require.NoError(t, err)
	assert.Len(t, p.positions, 1)
}

func TestClockAdvances(t *testing.T) {
	p := newProbe()
	var clocks []uint64
	var lengths []int
	p.perform = func(s *plugin.State, _ *process.Context) error {
		clock, _, length := s.Functions.Clock()
		clocks = append(clocks, clock)
		lengths = append(lengths, length)
		return nil
	}
	_, inst := newProbeInstance(t, p)

	in := bus.NewStereo(64)
	out := &bus.Array{}
	for range 3 {
		_, err := inst.Process(64, in, out, false)
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{0, 64, 128}, clocks)
	assert.Equal(t, []int{64, 64, 64}, lengths)
	assert.Equal(t, uint64(192), inst.Clock())
}

func TestRejectsMalformedBlocks(t *testing.T) {
	_, inst := newProbeInstance(t, newProbe())

	_, err := inst.Process(1024, bus.NewStereo(1024), &bus.Array{}, false)
	assert.ErrorIs(t, err, abi.ErrInvalidParam, "longer than the block size")

	_, err = inst.Process(16, bus.NewStereo(16), nil, false)
	assert.ErrorIs(t, err, abi.ErrInvalidParam)

	_, err = inst.Process(16, bus.NewMulti(3, 2, 16), &bus.Array{}, false)
	assert.ErrorIs(t, err, abi.ErrFormat, "more inputs than declared")

	_, err = inst.Process(16, &bus.Array{SpeakerMode: bus.SpeakerModeStereo}, &bus.Array{}, false)
	assert.ErrorIs(t, err, abi.ErrFormat, "effects need an input")

	short := bus.NewStereo(8)
	_, err = inst.Process(16, short, &bus.Array{}, false)
	assert.ErrorIs(t, err, abi.ErrFormat)
}

func TestMetering(t *testing.T) {
	_, inst := newProbeInstance(t, newProbe(), WithMetering(true))
	in := bus.NewStereo(64)
	fill(in, 1)

	_, err := inst.Process(64, in, &bus.Array{}, false)
	require.NoError(t, err)

	inLv, outLv := inst.InputLevels(), inst.OutputLevels()
	assert.Equal(t, 2, inLv.Channels)
	assert.InDelta(t, 1, inLv.Peak[0], 1e-6)
	assert.InDelta(t, 0.5, outLv.Peak[1], 1e-6)
	assert.InDelta(t, 0.5, outLv.RMS[0], 1e-6)
	assert.GreaterOrEqual(t, inst.CPULoad(), 0.0)
	assert.NotEqual(t, "No measurements recorded", inst.Profile())

	inst.SetMetering(false)
	assert.Zero(t, inst.InputLevels().Channels)
}

// tone is a Read generator that always produces mono.
type tone struct{}

func (tone) Read(_ *plugin.State, in, out []float32, length, inChannels int, outChannels *int) error {
	for _, s := range in {
		if s != 0 {
			return abi.ErrInvalidParam
		}
	}
	if inChannels != 2 {
		return abi.ErrFormat
	}
	*outChannels = 1
	for i := 0; i < length; i++ {
		out[i] = float32(i)
	}
	return nil
}

func TestGeneratorRead(t *testing.T) {
	sys := newTestSystem(t)
	require.NoError(t, sys.Register(&plugin.Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       "Ramp",
		NumOutputs: 1,
		Callbacks:  tone{},
	}))
	inst, err := sys.Create("Ramp")
	require.NoError(t, err)

	out := &bus.Array{}
	outcome, err := inst.Process(8, nil, out, true)
	require.NoError(t, err)
	assert.Equal(t, process.Processed, outcome)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, 1, out.Buffers[0].Channels)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, out.Buffers[0].Data)
}

func TestPassThroughWithoutProcessing(t *testing.T) {
	sys := newTestSystem(t)
	require.NoError(t, sys.Register(&plugin.Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       "Wire",
		NumInputs:  1,
		NumOutputs: 1,
	}))
	inst, err := sys.Create("Wire")
	require.NoError(t, err)

	in := bus.NewStereo(4)
	fill(in, 0.75)
	out := &bus.Array{}
	outcome, err := inst.Process(4, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, process.PassThrough, outcome)
	assert.Equal(t, in.Buffers[0].Data, out.Buffers[0].Data)
}

// upmix is a Read effect that copies its input into every channel of a
// 5.1 frame.
type upmix struct{}

func (upmix) Read(_ *plugin.State, in, out []float32, length, inChannels int, outChannels *int) error {
	*outChannels = 6
	for f := 0; f < length; f++ {
		for c := 0; c < 6; c++ {
			out[f*6+c] = in[f*inChannels]
		}
	}
	return nil
}

func TestReadWideningKeepsValidLayout(t *testing.T) {
	sys := newTestSystem(t)
	require.NoError(t, sys.Register(&plugin.Descriptor{
		SDKVersion: abi.SDKVersion,
		Name:       "Upmix",
		NumInputs:  1,
		NumOutputs: 1,
		Callbacks:  upmix{},
	}))
	inst, err := sys.Create("Upmix")
	require.NoError(t, err)

	in := bus.NewStereo(8)
	fill(in, 0.5)
	out := &bus.Array{}
	outcome, err := inst.Process(8, in, out, false)
	require.NoError(t, err)
	assert.Equal(t, process.Processed, outcome)
	assert.Equal(t, 6, out.Buffers[0].Channels)
	assert.Equal(t, bus.SpeakerMode5Point1, out.SpeakerMode)
	require.NoError(t, out.Validate(8))
	assert.Equal(t, float32(0.5), out.Buffers[0].Data[47])

	// the widened output can be fed straight into the next stage
	_, err = inst.Process(8, out, &bus.Array{}, false)
	require.NoError(t, err)
}
