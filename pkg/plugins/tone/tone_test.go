package tone

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dspplug/pkg/dsp/oscillator"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/plugins/internal/testhost"
)

func TestGeneratesTone(t *testing.T) {
	_, inst := testhost.New(t, Descriptor())
	require.NoError(t, inst.SetParameterInt(ParamWaveform, int32(oscillator.Square)))
	require.NoError(t, inst.SetParameterFloat(ParamLevel, -6.0206))

	out := &bus.Array{}
	outcome, err := inst.Process(64, nil, out, false)
	require.NoError(t, err)
	assert.Equal(t, process.Processed, outcome)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, 2, out.Buffers[0].Channels, "stereo mixer layout")
	for i, v := range out.Buffers[0].Data {
		assert.InDelta(t, 0.5, v, 1e-4, "sample %d", i)
	}

	_, display, err := inst.GetParameterInt(ParamWaveform)
	require.NoError(t, err)
	assert.Equal(t, "Square", display)
}

func TestSetPositionReseatsPhase(t *testing.T) {
	_, inst := testhost.New(t, Descriptor())
	require.NoError(t, inst.SetParameterFloat(ParamRate, 1000))
	require.NoError(t, inst.SetParameterFloat(ParamLevel, 0))

	out := testhost.Run(t, inst, nil, 100, 1)
	assert.NotZero(t, out.Buffers[0].Data[198])

	// a 1 kHz period is 48 samples; 12 samples in is the crest
	require.NoError(t, inst.SetPosition(12))
	out = testhost.Run(t, inst, nil, 100, 1)
	assert.InDelta(t, 1, out.Buffers[0].Data[0], 1e-5)
	assert.InDelta(t, 1, out.Buffers[0].Data[1], 1e-5)

	require.NoError(t, inst.SetPosition(48*1000))
	out = testhost.Run(t, inst, nil, 100, 1)
	assert.InDelta(t, 0, out.Buffers[0].Data[0], 1e-5)
}

func TestLevelChangeIsSmoothed(t *testing.T) {
	_, inst := testhost.New(t, Descriptor())
	require.NoError(t, inst.SetParameterInt(ParamWaveform, int32(oscillator.Square)))
	require.NoError(t, inst.SetParameterFloat(ParamLevel, -6.0206))
	testhost.Run(t, inst, nil, 16, 1)

	require.NoError(t, inst.SetParameterFloat(ParamLevel, 0))
	out := testhost.Run(t, inst, nil, 16, 1)
	first := out.Buffers[0].Data[0]
	assert.Greater(t, first, float32(0.5))
	assert.Less(t, first, float32(0.6))

	out = testhost.Run(t, inst, nil, 256, 4)
	assert.InDelta(t, 1, math.Abs(float64(out.Buffers[0].Data[0])), 1e-3)
}
