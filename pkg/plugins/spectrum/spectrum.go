// Package spectrum is a metering effect. Audio passes through unchanged
// while every full window of input is transformed with the host DFT; the
// latest magnitude spectrum and its dominant frequency are published as
// read-only parameters.
package spectrum

import (
	"fmt"
	"sync"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/analysis"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// Name is the registered plugin name.
const Name = "Spectrum"

const (
	ParamWindowSize = iota
	ParamWindowType
	ParamSpectrum
	ParamDominant
)

const (
	minWindow = 128
	maxWindow = 16384
)

var params = param.MustTable(
	param.Int("Window Size", minWindow, maxWindow, 2048).Label("samples").
		Description("Transform length, rounded down to a power of two").MustBuild(),
	param.Choice("Window Type", int32(analysis.WindowHanning), analysis.WindowNames...).MustBuild(),
	param.Spectrum().MustBuild(),
	param.Float("Dominant Freq", 0, 96000, 0).Label("Hz").ReadOnly().
		Description("Frequency of the strongest bin in the last window").MustBuild(),
)

// Plugin implements the spectrum callbacks.
type Plugin struct {
	plugin.Base
}

// analyzer collects interleaved input until a window is full. Its sample
// storage is one host allocation carved into ring, window and magnitudes.
type analyzer struct {
	size      int
	channels  int
	kind      analysis.Window
	block     []float32
	ring      []float32
	window    []float32
	windowSum float32
	mags      [][]float32
	bins      []complex64
	filled    int
}

type instance struct {
	plugin.Values
	a analyzer

	mu       sync.Mutex
	snapshot []byte // encoded abi.FFT, grown with Services.Realloc
	fft      abi.FFT
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

func (p *Plugin) Create(s *plugin.State) error {
	inst := &instance{Values: p.NewValues()}
	if err := s.Functions.DFT().Plan(inst.windowSize()); err != nil {
		return err
	}
	s.PluginData = inst
	return nil
}

// SetParameterInt plans the transform for a new window size here so the
// processing thread never builds one.
func (p *Plugin) SetParameterInt(s *plugin.State, index int, value int32) error {
	if err := p.Base.SetParameterInt(s, index, value); err != nil {
		return err
	}
	if index != ParamWindowSize {
		return nil
	}
	inst := s.PluginData.(*instance)
	return s.Functions.DFT().Plan(inst.windowSize())
}

func (inst *instance) windowSize() int {
	return analysis.FloorPowerOfTwo(int(inst.Store.Int(ParamWindowSize)))
}

func (p *Plugin) Release(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	s.Functions.FreeFloats(inst.a.block, abi.MemoryDSPBuffer, "spectrum")
	inst.a = analyzer{}
	inst.mu.Lock()
	s.Functions.Free(inst.snapshot, abi.MemoryPlugin, "spectrum snapshot")
	inst.snapshot = nil
	inst.mu.Unlock()
	return nil
}

func (p *Plugin) Reset(s *plugin.State) error {
	inst := s.PluginData.(*instance)
	inst.a.filled = 0
	return nil
}

// configure reallocates the analyzer when the window length or input
// width changes and refills the window when its shape changes.
func (a *analyzer) configure(s *plugin.State, size, channels int, kind analysis.Window) (resized bool, err error) {
	if size != a.size || channels != a.channels {
		n := size*channels + size + size*channels
		block, err := s.Functions.AllocFloats(n, abi.MemoryDSPBuffer, "spectrum")
		if err != nil {
			return false, err
		}
		s.Functions.FreeFloats(a.block, abi.MemoryDSPBuffer, "spectrum")
		*a = analyzer{size: size, channels: channels, kind: -1, block: block}
		a.ring, block = block[:size*channels], block[size*channels:]
		a.window, block = block[:size], block[size:]
		a.mags = make([][]float32, channels)
		for c := range a.mags {
			a.mags[c], block = block[:size], block[size:]
		}
		a.bins = make([]complex64, size/2+1)
		resized = true
	}
	if kind != a.kind {
		a.kind = kind
		a.windowSum = kind.Fill(a.window)
	}
	return resized, nil
}

func (p *Plugin) Process(s *plugin.State, ctx *process.Context) error {
	if ctx.Op == process.Query {
		return nil
	}
	inst := s.PluginData.(*instance)
	ctx.PassThrough()

	in := ctx.Main()
	kind := analysis.Window(inst.Store.Int(ParamWindowType))
	resized, err := inst.a.configure(s, inst.windowSize(), in.Channels, kind)
	if err != nil {
		s.Logf(debug.LogLevelWarn, "spectrum analyzer: %v", err)
		return nil
	}
	if resized {
		// a new geometry publishes silence until its first window fills
		if err := inst.publish(s); err != nil {
			return err
		}
	}

	a := &inst.a
	ch := a.channels
	for frame := 0; frame < ctx.Frames; {
		n := min(ctx.Frames-frame, a.size-a.filled)
		copy(a.ring[a.filled*ch:(a.filled+n)*ch], in.Data[frame*ch:(frame+n)*ch])
		a.filled += n
		frame += n
		if a.filled == a.size {
			if err := inst.analyze(s); err != nil {
				return err
			}
			a.filled = 0
		}
	}
	return nil
}

// analyze transforms the full ring, one channel at a time, and publishes
// the result.
func (inst *instance) analyze(s *plugin.State) error {
	a := &inst.a
	dft := s.Functions.DFT()
	var peak float64
	var level float32
	for c := 0; c < a.channels; c++ {
		if err := dft.FFTReal(a.size, a.ring[c:], a.bins, a.window, a.channels); err != nil {
			return fmt.Errorf("spectrum channel %d: %w", c, err)
		}
		analysis.Magnitudes(a.mags[c], a.bins, a.size, a.windowSum)
		if bin, l := analysis.PeakBin(a.mags[c], a.size); l > level {
			peak, level = bin, l
		}
	}
	hz := analysis.BinFrequency(peak, a.size, float64(s.Functions.SampleRate()))
	_ = inst.Store.SetFloat(ParamDominant, float32(hz))
	return inst.publish(s)
}

func (inst *instance) publish(s *plugin.State) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.fft = abi.FFT{Length: int32(inst.a.size), NumChannels: int32(inst.a.channels), Spectrum: inst.a.mags}
	if n := inst.fft.EncodedSize(); len(inst.snapshot) != n {
		buf, err := s.Functions.Realloc(inst.snapshot, n, abi.MemoryPlugin, "spectrum snapshot")
		if err != nil {
			return err
		}
		inst.snapshot = buf
	}
	_, err := inst.fft.AppendBinary(inst.snapshot[:0])
	return err
}

func (p *Plugin) SetParameterData(s *plugin.State, index int, _ []byte) error {
	return fmt.Errorf("spectrum data parameter %d: %w", index, abi.ErrReadOnly)
}

// GetParameterData returns a copy of the last published spectrum. Before
// the first block it is a silent spectrum of the window size, one channel
// per mixer speaker.
func (p *Plugin) GetParameterData(s *plugin.State, index int) ([]byte, string, error) {
	if index != ParamSpectrum {
		return nil, "", fmt.Errorf("spectrum data parameter %d: %w", index, abi.ErrInvalidIndex)
	}
	inst := s.PluginData.(*instance)
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.snapshot == nil {
		mixer, _ := s.Functions.SpeakerModes()
		silent := abi.FFT{Length: int32(inst.windowSize()), NumChannels: int32(max(mixer.Channels(), 1))}
		silent.Spectrum = make([][]float32, silent.NumChannels)
		for c := range silent.Spectrum {
			silent.Spectrum[c] = make([]float32, silent.Length)
		}
		data, err := silent.AppendBinary(nil)
		return data, "", err
	}
	return append([]byte(nil), inst.snapshot...), "", nil
}
