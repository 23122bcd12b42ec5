package host

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/pan"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
)

func TestServicesAllocation(t *testing.T) {
	sys, inst := newProbeInstance(t, newProbe())
	svc := inst.svc

	buf, err := svc.Alloc(100, abi.MemoryDSPBuffer, "scratch")
	require.NoError(t, err)
	assert.Len(t, buf, 100)

	usage := func(s MemoryStats, kind abi.MemoryType) MemoryUsage {
		for _, u := range s {
			if u.Kind == kind {
				return u
			}
		}
		return MemoryUsage{}
	}
	assert.Equal(t, MemoryUsage{Kind: abi.MemoryDSPBuffer, Bytes: 100, Blocks: 1, Peak: 100},
		usage(inst.Memory(), abi.MemoryDSPBuffer))

	buf[99] = 7
	buf, err = svc.Realloc(buf, 300, abi.MemoryDSPBuffer, "scratch")
	require.NoError(t, err)
	assert.Len(t, buf, 300)
	assert.Equal(t, byte(7), buf[99], "contents survive a realloc")
	u := usage(sys.Memory(), abi.MemoryDSPBuffer)
	assert.Equal(t, int64(300), u.Bytes)
	assert.Equal(t, int64(1), u.Blocks)

	svc.Free(buf, abi.MemoryDSPBuffer, "scratch")
	assert.Zero(t, sys.Memory().Total())

	floats, err := svc.AllocFloats(10, abi.MemoryPersistent, "delay line")
	require.NoError(t, err)
	assert.Equal(t, int64(40), usage(inst.Memory(), abi.MemoryPersistent).Bytes)
	svc.FreeFloats(floats, abi.MemoryPersistent, "delay line")
	assert.Zero(t, inst.Memory().Total())

	_, err = svc.Alloc(-1, abi.MemoryNormal, "bad")
	assert.ErrorIs(t, err, abi.ErrInvalidParam)

	other, err := svc.Alloc(8, abi.MemoryType(0x4000), "odd")
	require.NoError(t, err)
	assert.Equal(t, int64(8), usage(inst.Memory(), abi.MemoryType(0xFFFFFFFF)).Bytes)
	svc.Free(other, abi.MemoryType(0x4000), "odd")
}

func TestServicesSystemInfo(t *testing.T) {
	sys, inst := newProbeInstance(t, newProbe(),
		WithSampleRate(44100),
		WithSpeakerModes(bus.SpeakerMode5Point1, bus.SpeakerModeStereo))
	svc := inst.svc

	assert.Equal(t, 44100, svc.SampleRate())
	assert.Equal(t, 256, svc.BlockSize())
	mixer, output := svc.SpeakerModes()
	assert.Equal(t, bus.SpeakerMode5Point1, mixer)
	assert.Equal(t, bus.SpeakerModeStereo, output)
	assert.Equal(t, "probe-data", svc.UserData())

	assert.Empty(t, svc.ListenerAttributes())
	listeners := []abi.Attributes3D{
		{Position: abi.Vector{X: 1}},
		{Position: abi.Vector{Z: 2}},
	}
	require.NoError(t, sys.SetListeners(listeners))
	listeners[0].Position.X = 9
	got := svc.ListenerAttributes()
	require.Len(t, got, 2)
	assert.Equal(t, float32(1), got[0].Position.X, "listeners are copied")

	assert.ErrorIs(t, sys.SetListeners(make([]abi.Attributes3D, abi.MaxListeners+1)), abi.ErrInvalidParam)
}

func TestDFT(t *testing.T) {
	const size = 64
	d := newDFT([]int{size})

	// channel 1 of an interleaved stereo buffer holds a cosine on bin 4
	signal := make([]float32, 2*size)
	for i := 0; i < size; i++ {
		signal[2*i] = 1
		signal[2*i+1] = float32(math.Cos(2 * math.Pi * 4 * float64(i) / size))
	}
	bins := make([]complex64, size/2+1)
	require.NoError(t, d.FFTReal(size, signal[1:], bins, nil, 2))

	for k, c := range bins {
		mag := math.Hypot(float64(real(c)), float64(imag(c)))
		if k == 4 {
			assert.InDelta(t, size/2, mag, 1e-3)
		} else {
			assert.InDelta(t, 0, mag, 1e-3, "bin %d", k)
		}
	}

	back := make([]float32, size)
	require.NoError(t, d.InverseFFTReal(size, bins, back, nil, 1))
	for i := range back {
		assert.InDelta(t, signal[2*i+1], back[i], 1e-5)
	}

	window := make([]float32, size)
	for i := range window {
		window[i] = 0.5
	}
	require.NoError(t, d.FFTReal(size, signal[:size], bins, window, 1))

	assert.ErrorIs(t, d.FFTReal(48, signal, bins, nil, 1), abi.ErrInvalidParam)
	assert.ErrorIs(t, d.FFTReal(size, signal, bins[:10], nil, 1), abi.ErrInvalidParam)
	assert.ErrorIs(t, d.FFTReal(size, signal, bins, nil, 0), abi.ErrInvalidParam)
	assert.ErrorIs(t, d.FFTReal(size, signal[:size], bins, nil, 2), abi.ErrInvalidParam)
	assert.ErrorIs(t, d.FFTReal(size, signal, bins, window[:8], 1), abi.ErrInvalidParam)
	assert.ErrorIs(t, d.InverseFFTReal(size, bins, back[:10], nil, 1), abi.ErrInvalidParam)

	assert.ErrorIs(t, d.Plan(48), abi.ErrInvalidParam)
	require.NoError(t, d.Plan(2048))
	assert.Contains(t, d.plans, 2048)

	// sizes outside the pre-planned set are planned on first use
	bins8 := make([]complex64, 5)
	require.NoError(t, d.FFTReal(8, signal, bins8, nil, 1))
}

func TestPanService(t *testing.T) {
	curve := pan.Curve{{Distance: 0, Gain: 1}, {Distance: 10, Gain: 0.5}}
	_, inst := newProbeInstance(t, newProbe(), WithCustomRolloff(curve))
	p := inst.svc.Pan()

	g, err := p.RolloffGain(pan.RolloffCustom, 5, 1, 20)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, g, 1e-6)

	g, err = p.RolloffGain(pan.RolloffLinear, 10, 0, 20)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, g, 1e-6)

	// the default mode resolves to the stereo mixer
	m := make([]float32, 2)
	require.NoError(t, p.SumMonoMatrix(bus.SpeakerModeDefault, 1, 1, 2, m))
	assert.InDelta(t, 1/math.Sqrt2, m[0], 1e-6)
	assert.InDelta(t, 1/math.Sqrt2, m[1], 1e-6)

	m = make([]float32, 6*1)
	require.NoError(t, p.SumMonoToSurroundMatrix(bus.SpeakerMode5Point1, 0, 0, 0, 1, 1, m))

	_, plainInst := newProbeInstance(t, newProbe())
	_, err = plainInst.svc.Pan().RolloffGain(pan.RolloffCustom, 5, 1, 20)
	assert.ErrorIs(t, err, abi.ErrUnsupported)
}

func TestLedgerPeak(t *testing.T) {
	l := newLedger(map[abi.MemoryType]int64{abi.MemoryNormal: 100})
	require.NoError(t, l.reserve(abi.MemoryNormal, 60))
	assert.ErrorIs(t, l.reserve(abi.MemoryNormal, 50), abi.ErrMemory)
	l.release(abi.MemoryNormal, 60)
	require.NoError(t, l.reserve(abi.MemoryNormal, 30))

	s := l.stats()
	assert.Equal(t, int64(30), s[0].Bytes)
	assert.Equal(t, int64(60), s[0].Peak)
	assert.Equal(t, int64(30), s.Total())
	assert.Len(t, s.Outstanding(), 1)

	// a resize only needs room for the difference
	require.NoError(t, l.resize(abi.MemoryNormal, 30, 90))
	assert.ErrorIs(t, l.resize(abi.MemoryNormal, 90, 101), abi.ErrMemory)
	s = l.stats()
	assert.Equal(t, int64(90), s[0].Bytes, "a failed resize keeps the old block")
	assert.Equal(t, int64(1), s[0].Blocks)
	assert.Equal(t, int64(90), s[0].Peak)
	require.NoError(t, l.resize(abi.MemoryNormal, 90, 10))
	assert.Equal(t, int64(10), l.stats()[0].Bytes)
}
