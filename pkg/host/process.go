package host

import (
	"errors"
	"fmt"
	"time"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/framework/process"
)

// Process runs one block of length frames from in to out.
//
// The output array is offered to the plugin with the main input's
// geometry (or, for generators, its current geometry or the mixer layout)
// and then negotiated: a Processor is queried first and may reshape out
// or decline; the shape it settles on is held fixed for the Perform call.
// A Reader always gets the first buffers interleaved. Plugins that
// implement neither pass their input through.
//
// Plugin failures never escape as panics and never leave stale audio in
// out: they silence the block and, where the host rather than the plugin
// is at fault, return an error.
func (i *Instance) Process(length int, in, out *bus.Array, inputsIdle bool) (outcome process.Outcome, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released() {
		return process.Silenced, i.errReleased()
	}
	if in, inputsIdle, err = i.checkBlock(length, in, out, inputsIdle); err != nil {
		return process.Silenced, err
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.EnsureData(length)
			out.Clear(length)
			outcome = process.Silenced
			err = fmt.Errorf("%s process panicked: %v: %w", i.desc.Name, r, abi.ErrInternal)
		}
		elapsed := time.Since(start)
		i.load.Record(elapsed, length, float64(i.sys.cfg.SampleRate))
		i.profiler.Record(outcome.String(), elapsed)
		i.clock += uint64(length)
	}()

	if i.Lifecycle() == LifecycleCreated {
		if i.needsReset {
			if err := i.reset(); err != nil {
				i.logger.Warn("%v", err)
			}
		}
		i.life.Store(int32(LifecycleActive))
	}
	i.deliverPosition()
	i.svc.setBlock(i.clock, 0, length)
	i.propose(in, out)
	i.prepareState(in, out, length)
	i.inMeter.Measure(in, length)

	outcome, err = i.run(length, in, out, inputsIdle)
	i.outMeter.Measure(out, length)
	return outcome, err
}

// checkBlock validates a processing call and substitutes the empty input
// array for generators.
func (i *Instance) checkBlock(length int, in, out *bus.Array, idle bool) (*bus.Array, bool, error) {
	if length < 0 || length > i.sys.cfg.BlockSize {
		return in, idle, fmt.Errorf("block of %d frames, limit %d: %w", length, i.sys.cfg.BlockSize, abi.ErrInvalidParam)
	}
	if out == nil {
		return in, idle, fmt.Errorf("nil output array: %w", abi.ErrInvalidParam)
	}
	if i.desc.NumInputs == 0 {
		return &i.noInput, false, nil
	}
	if in.Len() == 0 || in.Len() > i.desc.NumInputs {
		return in, idle, fmt.Errorf("%s takes 1 to %d input buffers, got %d: %w",
			i.desc.Name, i.desc.NumInputs, in.Len(), abi.ErrFormat)
	}
	if err := in.Validate(length); err != nil {
		return in, idle, fmt.Errorf("%s input: %w", i.desc.Name, err)
	}
	return in, idle, nil
}

// propose gives out the geometry the plugin starts negotiating from.
func (i *Instance) propose(in, out *bus.Array) {
	p := &i.proposal
	p.Buffers = p.Buffers[:0]
	switch {
	case i.desc.NumOutputs == 0:
		p.SpeakerMode = in.SpeakerMode
	case in.Len() > 0:
		p.SpeakerMode = in.SpeakerMode
		p.Buffers = append(p.Buffers, in.Buffers[0].Geometry())
	case out.Len() > 0 && out.Buffers[0].Channels > 0:
		p.SpeakerMode = out.SpeakerMode
		p.Buffers = append(p.Buffers, out.Buffers[0].Geometry())
	default:
		mode := i.sys.cfg.MixerMode
		p.SpeakerMode = mode
		p.Buffers = append(p.Buffers, bus.Geometry{Channels: mode.Channels()})
	}
	out.Apply(*p)
}

// prepareState fills the per-block fields of the plugin state.
func (i *Instance) prepareState(in, out *bus.Array, length int) {
	st := &i.state
	st.SourceSpeakerMode = in.SpeakerMode
	switch {
	case in.Len() > 0:
		st.ChannelMask = in.Buffers[0].EffectiveMask()
	case out.Len() > 0:
		st.ChannelMask = out.Buffers[0].EffectiveMask()
		st.SourceSpeakerMode = out.SpeakerMode
	default:
		st.ChannelMask = 0
	}

	st.Sidechain, st.SidechainChannels = nil, 0
	if !i.sidechain.Load() || in.Len() < 2 {
		return
	}
	first := &in.Buffers[1]
	n := length * first.Channels
	if in.Len() == 2 {
		st.Sidechain, st.SidechainChannels = first.Data[:n], first.Channels
		return
	}
	// several sidechain inputs are summed into the scratch buffer
	mixed := i.side[:n]
	copy(mixed, first.Data[:n])
	for k := 2; k < in.Len(); k++ {
		if b := &in.Buffers[k]; b.Channels == first.Channels {
			process.Accumulate(mixed, b.Data[:n])
		}
	}
	st.Sidechain, st.SidechainChannels = mixed, first.Channels
}

func (i *Instance) run(length int, in, out *bus.Array, idle bool) (process.Outcome, error) {
	if sip := i.d.ShouldIProcess; sip != nil {
		channels, mode := i.proposal.Channels(), i.state.SourceSpeakerMode
		if in.Len() > 0 {
			channels = in.Buffers[0].Channels
		}
		if err := sip.ShouldIProcess(&i.state, idle, length, i.state.ChannelMask, channels, mode); err != nil {
			out.EnsureData(length)
			process.ForwardInput(in, out, length)
			return process.Bypassed, nil
		}
	}

	switch {
	case i.d.Process != nil:
		return i.perform(length, in, out, idle)
	case i.d.Read != nil:
		return i.read(length, in, out)
	}
	out.EnsureData(length)
	process.ForwardInput(in, out, length)
	return process.PassThrough, nil
}

// perform runs the Query/Perform exchange with a Processor.
func (i *Instance) perform(length int, in, out *bus.Array, idle bool) (process.Outcome, error) {
	ctx := i.ctx
	ctx.Begin(process.Query, length, in, out, idle)
	if err := i.d.Process.Process(&i.state, ctx); err != nil {
		if !errors.Is(err, abi.ErrDontProcess) {
			i.state.Logf(debug.LogLevelDebug, "query declined: %v", err)
		}
		out.Apply(i.proposal)
		out.EnsureData(length)
		process.ForwardInput(in, out, length)
		return process.PassThrough, nil
	}

	out.CaptureShape(&i.committed)
	if err := i.checkShape(); err != nil {
		out.Apply(i.proposal)
		out.EnsureData(length)
		out.Clear(length)
		return process.Silenced, err
	}
	out.EnsureData(length)

	ctx.Begin(process.Perform, length, in, out, idle)
	err := i.d.Process.Process(&i.state, ctx)
	if !out.Matches(i.committed) {
		out.Apply(i.committed)
		out.EnsureData(length)
		out.Clear(length)
		return process.Silenced, fmt.Errorf("%s reshaped its output during perform: %w",
			i.desc.Name, abi.ErrFormatChanged)
	}
	if err != nil {
		if !errors.Is(err, abi.ErrSilence) {
			i.state.Logf(debug.LogLevelDebug, "perform failed: %v", err)
		}
		out.Clear(length)
		return process.Silenced, nil
	}
	return process.Processed, nil
}

// checkShape validates the output shape committed at Query.
func (i *Instance) checkShape() error {
	s := i.committed
	if len(s.Buffers) != i.desc.NumOutputs {
		return fmt.Errorf("%s committed %d output buffers, declared %d: %w",
			i.desc.Name, len(s.Buffers), i.desc.NumOutputs, abi.ErrFormat)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%s output: %w", i.desc.Name, err)
	}
	return nil
}

// read runs a Reader over the first input and output buffers.
func (i *Instance) read(length int, in, out *bus.Array) (process.Outcome, error) {
	var src []float32
	inChannels := i.proposal.Channels()
	if in.Len() > 0 {
		b := &in.Buffers[0]
		inChannels = b.Channels
		src = b.Data[:length*inChannels]
	} else {
		// generators read silence shaped like their output
		inChannels = max(inChannels, 1)
		src = i.readIn[:length*inChannels]
		clear(src)
	}

	outChannels := inChannels
	dst := i.readOut[:length*bus.MaxChannels]
	if err := i.d.Read.Read(&i.state, src, dst, length, inChannels, &outChannels); err != nil {
		out.EnsureData(length)
		if errors.Is(err, abi.ErrDontProcess) {
			process.ForwardInput(in, out, length)
			return process.PassThrough, nil
		}
		if !errors.Is(err, abi.ErrSilence) {
			i.state.Logf(debug.LogLevelDebug, "read failed: %v", err)
		}
		out.Clear(length)
		return process.Silenced, nil
	}
	if outChannels < 1 || outChannels > bus.MaxChannels {
		out.EnsureData(length)
		out.Clear(length)
		return process.Silenced, fmt.Errorf("%s read produced %d channels: %w", i.desc.Name, outChannels, abi.ErrFormat)
	}

	if out.Len() > 0 {
		b := &out.Buffers[0]
		if b.Channels != outChannels {
			b.Channels, b.Mask = outChannels, 0
			if out.SpeakerMode.Fixed() && outChannels > out.SpeakerMode.Channels() {
				out.SpeakerMode = bus.ModeForChannels(outChannels)
			}
		}
		out.EnsureData(length)
		copy(b.Data, dst[:length*outChannels])
	}
	return process.Processed, nil
}
