package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/host"
	"github.com/justyntemme/dspplug/pkg/plugins/internal/testhost"
)

// sine fills a stereo array with a 1.5 kHz tone on the left channel and
// silence on the right, continuing from frame offset.
func sine(a *bus.Array, frames, offset int) {
	for i := 0; i < frames; i++ {
		t := float64(offset+i) / 48000
		a.Buffers[0].Data[2*i] = float32(0.5 * math.Sin(2*math.Pi*1500*t))
		a.Buffers[0].Data[2*i+1] = 0
	}
}

func spectrumOf(t *testing.T, inst *host.Instance) abi.FFT {
	t.Helper()
	data, _, err := inst.GetParameterData(ParamSpectrum)
	require.NoError(t, err)
	var f abi.FFT
	require.NoError(t, f.UnmarshalBinary(data))
	return f
}

func TestSpectrum(t *testing.T) {
	_, inst := testhost.New(t, Descriptor())
	require.NoError(t, inst.SetParameterInt(ParamWindowSize, 1000))
	v, _, err := inst.GetParameterInt(ParamWindowSize)
	require.NoError(t, err)
	assert.Equal(t, int32(1000), v)

	before := spectrumOf(t, inst)
	assert.Equal(t, int32(512), before.Length)
	assert.Equal(t, int32(2), before.NumChannels, "one channel per mixer speaker")
	assert.Equal(t, make([]float32, 512), before.Spectrum[0])

	const frames = 200
	in := bus.NewStereo(frames)
	out := &bus.Array{}
	for block := range 3 {
		sine(in, frames, block*frames)
		outcome, err := inst.Process(frames, in, out, false)
		require.NoError(t, err)
		assert.Equal(t, process.Processed, outcome)
		assert.Equal(t, in.Buffers[0].Data, out.Buffers[0].Data, "audio passes unchanged")
	}

	// 600 frames fill one 512-point window
	f := spectrumOf(t, inst)
	assert.Equal(t, int32(512), f.Length)
	assert.Equal(t, int32(2), f.NumChannels)
	left, right := f.Spectrum[0], f.Spectrum[1]
	assert.Len(t, left, 512)
	assert.Greater(t, left[16], float32(0.2), "1.5 kHz sits on bin 16")
	assert.InDelta(t, left[16], left[512-16], 1e-6)
	assert.Less(t, right[16], float32(1e-6))

	hz, display, err := inst.GetParameterFloat(ParamDominant)
	require.NoError(t, err)
	assert.InDelta(t, 1500, hz, 20)
	assert.Contains(t, display, "kHz")

	assert.ErrorIs(t, inst.SetParameterFloat(ParamDominant, 10), abi.ErrReadOnly)
	assert.ErrorIs(t, inst.SetParameterData(ParamSpectrum, nil), abi.ErrReadOnly)
}

func TestWindowChangeReallocates(t *testing.T) {
	sys, inst := testhost.New(t, Descriptor())
	require.NoError(t, inst.SetParameterInt(ParamWindowSize, 128))
	in := bus.NewStereo(128)
	sine(in, 128, 0)
	_, err := inst.Process(128, in, &bus.Array{}, false)
	require.NoError(t, err)
	small := inst.Memory().Total()
	assert.Equal(t, int32(128), spectrumOf(t, inst).Length)

	require.NoError(t, inst.SetParameterInt(ParamWindowSize, 256))
	require.NoError(t, inst.SetParameterInt(ParamWindowType, 0))
	for range 2 {
		_, err = inst.Process(128, in, &bus.Array{}, false)
		require.NoError(t, err)
	}
	assert.Greater(t, inst.Memory().Total(), small)
	assert.Equal(t, int32(256), spectrumOf(t, inst).Length)

	require.NoError(t, inst.Release())
	assert.Zero(t, sys.Memory().Total())
}

func TestSilentSpectrumBeforeFirstWindow(t *testing.T) {
	_, inst := testhost.New(t, Descriptor(), host.WithSpeakerModes(bus.SpeakerMode5Point1, bus.SpeakerModeStereo))

	f := spectrumOf(t, inst)
	assert.Equal(t, int32(2048), f.Length, "default window")
	assert.Equal(t, int32(6), f.NumChannels)

	// a partial window publishes the input's geometry with no magnitudes
	in := bus.NewMono(testhost.BlockSize)
	testhost.Fill(in, 0.5)
	_, err := inst.Process(testhost.BlockSize, in, &bus.Array{}, false)
	require.NoError(t, err)

	f = spectrumOf(t, inst)
	assert.Equal(t, int32(2048), f.Length)
	require.Equal(t, int32(1), f.NumChannels)
	assert.Equal(t, make([]float32, 2048), f.Spectrum[0])

	v, _, err := inst.GetParameterFloat(ParamDominant)
	require.NoError(t, err)
	assert.Zero(t, v)
}
