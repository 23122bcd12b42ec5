package host

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/pan"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// services is the host service table of one instance. Allocation is
// accounted against the system budget and the instance's own ledger so
// leaks can be reported at release.
type services struct {
	sys      *System
	userData any
	own      *ledger

	// clock state, written by the processing thread before each callback
	clock  atomic.Uint64
	offset atomic.Int64
	length atomic.Int64

	dft    *dft
	panner panner
}

var _ plugin.Services = (*services)(nil)

func newServices(sys *System, userData any) *services {
	return &services{
		sys:      sys,
		userData: userData,
		own:      newLedger(nil),
		dft:      newDFT(sys.cfg.FFTSizes),
		panner:   panner{sys: sys},
	}
}

func (s *services) account(kind abi.MemoryType, n int64) error {
	if err := s.sys.memory.reserve(kind, n); err != nil {
		return err
	}
	// the instance ledger has no budget and cannot fail
	_ = s.own.reserve(kind, n)
	return nil
}

func (s *services) unaccount(kind abi.MemoryType, n int64) {
	s.sys.memory.release(kind, n)
	s.own.release(kind, n)
}

func (s *services) Alloc(size int, kind abi.MemoryType, source string) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("alloc of %d bytes for %s: %w", size, source, abi.ErrInvalidParam)
	}
	if err := s.account(kind, int64(size)); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return make([]byte, size), nil
}

func (s *services) Realloc(buf []byte, size int, kind abi.MemoryType, source string) ([]byte, error) {
	if buf == nil {
		return s.Alloc(size, kind, source)
	}
	if size < 0 {
		return nil, fmt.Errorf("realloc to %d bytes for %s: %w", size, source, abi.ErrInvalidParam)
	}
	if err := s.sys.memory.resize(kind, int64(cap(buf)), int64(size)); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	_ = s.own.resize(kind, int64(cap(buf)), int64(size))
	out := make([]byte, size)
	copy(out, buf)
	return out, nil
}

func (s *services) Free(buf []byte, kind abi.MemoryType, source string) {
	if buf == nil {
		return
	}
	s.unaccount(kind, int64(cap(buf)))
}

const floatSize = int64(unsafe.Sizeof(float32(0)))

func (s *services) AllocFloats(n int, kind abi.MemoryType, source string) ([]float32, error) {
	if n < 0 {
		return nil, fmt.Errorf("alloc of %d samples for %s: %w", n, source, abi.ErrInvalidParam)
	}
	if err := s.account(kind, int64(n)*floatSize); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return make([]float32, n), nil
}

func (s *services) FreeFloats(buf []float32, kind abi.MemoryType, source string) {
	if buf == nil {
		return
	}
	s.unaccount(kind, int64(cap(buf))*floatSize)
}

func (s *services) SampleRate() int { return s.sys.cfg.SampleRate }
func (s *services) BlockSize() int  { return s.sys.cfg.BlockSize }

func (s *services) SpeakerModes() (mixer, output bus.SpeakerMode) {
	return s.sys.cfg.MixerMode, s.sys.cfg.OutputMode
}

func (s *services) Clock() (clock uint64, offset, length int) {
	return s.clock.Load(), int(s.offset.Load()), int(s.length.Load())
}

func (s *services) setBlock(clock uint64, offset, length int) {
	s.clock.Store(clock)
	s.offset.Store(int64(offset))
	s.length.Store(int64(length))
}

func (s *services) ListenerAttributes() []abi.Attributes3D {
	return s.sys.Listeners()
}

func (s *services) UserData() any   { return s.userData }
func (s *services) DFT() plugin.DFT { return s.dft }
func (s *services) Pan() plugin.Pan { return &s.panner }

func (s *services) Log(level debug.LogLevel, file string, line int, function, format string, args ...any) {
	s.sys.log.Log(level, file, line, function, format, args...)
}

// stats returns the instance's outstanding allocations.
func (s *services) stats() MemoryStats { return s.own.stats() }

// panner binds the pan package to the system's speaker layouts and custom
// rolloff curve.
type panner struct {
	sys *System
}

func (p *panner) resolve(mode bus.SpeakerMode) bus.SpeakerMode {
	if mode == bus.SpeakerModeDefault {
		return p.sys.cfg.MixerMode
	}
	return mode
}

func (p *panner) SumMonoMatrix(source bus.SpeakerMode, lowFrequencyGain, overallGain float32, hop int, matrix []float32) error {
	return pan.SumMono(p.resolve(source), lowFrequencyGain, overallGain, hop, matrix)
}

func (p *panner) SumStereoMatrix(source bus.SpeakerMode, position, lowFrequencyGain, overallGain float32, hop int, matrix []float32) error {
	return pan.SumStereo(p.resolve(source), position, lowFrequencyGain, overallGain, hop, matrix)
}

func (p *panner) SumSurroundMatrix(source, target bus.SpeakerMode, direction, extent, rotation, lowFrequencyGain, overallGain float32,
	hop int, matrix []float32, flags pan.SurroundFlags) error {
	return pan.SumSurround(p.resolve(source), p.resolve(target), direction, extent, rotation,
		lowFrequencyGain, overallGain, hop, matrix, flags)
}

func (p *panner) SumMonoToSurroundMatrix(target bus.SpeakerMode, direction, extent, lowFrequencyGain, overallGain float32,
	hop int, matrix []float32) error {
	return pan.SumMonoToSurround(p.resolve(target), direction, extent, lowFrequencyGain, overallGain, hop, matrix)
}

func (p *panner) SumStereoToSurroundMatrix(target bus.SpeakerMode, direction, extent, rotation, lowFrequencyGain, overallGain float32,
	hop int, matrix []float32) error {
	return pan.SumStereoToSurround(p.resolve(target), direction, extent, rotation, lowFrequencyGain, overallGain, hop, matrix)
}

func (p *panner) RolloffGain(rolloff pan.Rolloff, distance, minDistance, maxDistance float32) (float32, error) {
	return pan.RolloffGain(rolloff, distance, minDistance, maxDistance, p.sys.cfg.RolloffCurve)
}
