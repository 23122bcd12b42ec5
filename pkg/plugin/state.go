package plugin

import (
	"runtime"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/pan"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
)

// State is the per-instance context passed to every callback. The host
// owns every field except PluginData, which belongs to the plugin and is
// never inspected by the host.
type State struct {
	Instance   uint64
	PluginData any

	ChannelMask       bus.ChannelMask
	SourceSpeakerMode bus.SpeakerMode

	// Sidechain holds the mixed sidechain signal for the current block,
	// interleaved, when the plugin has enabled its sidechain parameter.
	Sidechain         []float32
	SidechainChannels int

	Functions    Services
	SystemObject int
}

// Logf logs through the host with the caller's location.
func (s *State) Logf(level debug.LogLevel, format string, args ...any) {
	if s == nil || s.Functions == nil {
		return
	}
	var function string
	pc, file, line, ok := runtime.Caller(1)
	if ok {
		if f := runtime.FuncForPC(pc); f != nil {
			function = f.Name()
		}
	}
	s.Functions.Log(level, file, line, function, format, args...)
}

// Services is the host service table. Every method is safe to call from
// the processing thread.
type Services interface {
	// Alloc returns a zeroed block of size bytes accounted under kind.
	Alloc(size int, kind abi.MemoryType, source string) ([]byte, error)
	// Realloc resizes buf, keeping its contents up to the smaller length.
	Realloc(buf []byte, size int, kind abi.MemoryType, source string) ([]byte, error)
	Free(buf []byte, kind abi.MemoryType, source string)
	// AllocFloats is Alloc for sample buffers.
	AllocFloats(n int, kind abi.MemoryType, source string) ([]float32, error)
	FreeFloats(buf []float32, kind abi.MemoryType, source string)

	SampleRate() int
	BlockSize() int
	SpeakerModes() (mixer, output bus.SpeakerMode)
	// Clock returns the sample clock of the current block and the valid
	// input subrange.
	Clock() (clock uint64, offset, length int)
	// ListenerAttributes returns absolute listener positions in left-handed
	// coordinates. The slice is only valid during the call.
	ListenerAttributes() []abi.Attributes3D
	UserData() any

	DFT() DFT
	Pan() Pan

	// Log never blocks. Messages are dropped when the host's queue is full.
	Log(level debug.LogLevel, file string, line int, function, format string, args ...any)
}

// DFT transforms real signals. signal is read or written at stride hop so
// one channel of an interleaved buffer can be used in place. window may be
// nil for a rectangular window. dft holds size/2+1 bins.
type DFT interface {
	// Plan prepares transforms of size so later calls of that size do not
	// allocate. Call it outside the processing callback.
	Plan(size int) error
	FFTReal(size int, signal []float32, dft []complex64, window []float32, hop int) error
	InverseFFTReal(size int, dft []complex64, signal []float32, window []float32, hop int) error
}

// Pan builds mixing matrices against the system's speaker layouts. Matrices
// are row-major by output channel with hop entries per row. Angles are in
// degrees.
type Pan interface {
	SumMonoMatrix(source bus.SpeakerMode, lowFrequencyGain, overallGain float32, hop int, matrix []float32) error
	SumStereoMatrix(source bus.SpeakerMode, pan, lowFrequencyGain, overallGain float32, hop int, matrix []float32) error
	SumSurroundMatrix(source, target bus.SpeakerMode, direction, extent, rotation, lowFrequencyGain, overallGain float32,
		hop int, matrix []float32, flags pan.SurroundFlags) error
	SumMonoToSurroundMatrix(target bus.SpeakerMode, direction, extent, lowFrequencyGain, overallGain float32,
		hop int, matrix []float32) error
	SumStereoToSurroundMatrix(target bus.SpeakerMode, direction, extent, rotation, lowFrequencyGain, overallGain float32,
		hop int, matrix []float32) error
	RolloffGain(rolloff pan.Rolloff, distance, minDistance, maxDistance float32) (float32, error)
}
