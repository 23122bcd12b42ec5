// Package process holds the vocabulary of one processing call: the
// two-phase Query/Perform operation, the context handed to plugins and the
// helpers hosts and plugins share for forwarding and silencing audio.
package process

import (
	"fmt"

	"github.com/justyntemme/dspplug/pkg/framework/bus"
)

// Operation selects the phase of a processing call.
type Operation int32

const (
	// Perform asks the plugin to write audio into the committed output.
	Perform Operation = 0
	// Query asks the plugin whether it will process and, if so, which output
	// shape it wants. No audio is read or written.
	Query Operation = 1
)

func (o Operation) String() string {
	switch o {
	case Perform:
		return "perform"
	case Query:
		return "query"
	default:
		return fmt.Sprintf("operation(%d)", int32(o))
	}
}

// Outcome reports what a host processing call did to the output.
type Outcome int

const (
	// Processed means the plugin wrote the output.
	Processed Outcome = iota
	// PassThrough means the plugin declined at Query and input was forwarded.
	PassThrough
	// Bypassed means the idle check declined the block; input was forwarded
	// when shapes allowed, otherwise the output is silent.
	Bypassed
	// Silenced means the plugin failed or asked for silence; output is zero.
	Silenced
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return "processed"
	case PassThrough:
		return "pass-through"
	case Bypassed:
		return "bypassed"
	case Silenced:
		return "silenced"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Context is everything a plugin sees in one processing call. The host owns
// one per instance and reuses it across calls so the processing path does
// not allocate.
type Context struct {
	Op         Operation
	Frames     int
	In         *bus.Array // geometry is read-only
	Out        *bus.Array // geometry may change only during Query
	InputsIdle bool
	SampleRate float64

	// Pre-allocated work buffers
	workBuffer []float32
	tempBuffer []float32
}

// NewContext creates a context whose work buffers hold maxFrames frames of
// maxChannels channels.
func NewContext(maxFrames, maxChannels int, sampleRate float64) *Context {
	n := maxFrames * max(maxChannels, 1)
	return &Context{
		SampleRate: sampleRate,
		workBuffer: make([]float32, n),
		tempBuffer: make([]float32, n),
	}
}

// Begin prepares the context for one call.
func (c *Context) Begin(op Operation, frames int, in, out *bus.Array, idle bool) {
	c.Op = op
	c.Frames = frames
	c.In = in
	c.Out = out
	c.InputsIdle = idle
}

// NumSamples returns the interleaved sample count of the main input for
// this block: Frames times its channel count. Generators have none.
func (c *Context) NumSamples() int {
	if m := c.Main(); m != nil {
		return c.Frames * m.Channels
	}
	return 0
}

// Main returns the first input buffer, or nil for generators.
func (c *Context) Main() *bus.Buffer {
	if c.In.Len() == 0 {
		return nil
	}
	return &c.In.Buffers[0]
}

// Aux returns input buffer i+1, the i-th auxiliary input, or nil.
func (c *Context) Aux(i int) *bus.Buffer {
	if i+1 >= c.In.Len() {
		return nil
	}
	return &c.In.Buffers[i+1]
}

// Output returns the first output buffer, or nil.
func (c *Context) Output() *bus.Buffer {
	if c.Out.Len() == 0 {
		return nil
	}
	return &c.Out.Buffers[0]
}

// WorkBuffer returns a slice of the pre-allocated work buffer sized to
// n samples - no allocation while n fits.
func (c *Context) WorkBuffer(n int) []float32 {
	if n > len(c.workBuffer) {
		c.workBuffer = make([]float32, n)
	}
	return c.workBuffer[:n]
}

// TempBuffer is a second scratch buffer like WorkBuffer.
func (c *Context) TempBuffer(n int) []float32 {
	if n > len(c.tempBuffer) {
		c.tempBuffer = make([]float32, n)
	}
	return c.tempBuffer[:n]
}

// PassThrough forwards input to output for this call.
func (c *Context) PassThrough() bool {
	return ForwardInput(c.In, c.Out, c.Frames)
}

// Clear zeros the output for this call.
func (c *Context) Clear() {
	c.Out.Clear(c.Frames)
}
