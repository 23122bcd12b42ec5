// Package testhost runs reference plugins inside a real host for tests.
package testhost

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/host"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// BlockSize is the host block size used by New.
const BlockSize = 256

// New registers desc on a fresh system and creates one instance. The
// system is closed when the test ends.
func New(t testing.TB, desc *plugin.Descriptor, opts ...host.Option) (*host.System, *host.Instance) {
	t.Helper()
	opts = append([]host.Option{host.WithLogger(debug.Discard()), host.WithBlockSize(BlockSize)}, opts...)
	sys, err := host.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	require.NoError(t, sys.Register(desc))
	inst, err := sys.Create(desc.Name)
	require.NoError(t, err)
	return sys, inst
}

// Fill sets every sample of every buffer in a to v.
func Fill(a *bus.Array, v float32) {
	for i := range a.Buffers {
		for j := range a.Buffers[i].Data {
			a.Buffers[i].Data[j] = v
		}
	}
}

// Run processes blocks blocks of frames frames and returns the output of
// the last one.
func Run(t testing.TB, inst *host.Instance, in *bus.Array, frames, blocks int) *bus.Array {
	t.Helper()
	out := &bus.Array{}
	for range blocks {
		_, err := inst.Process(frames, in, out, false)
		require.NoError(t, err)
	}
	return out
}
