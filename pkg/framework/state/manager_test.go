package state

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/param"
)

// fakeTarget keeps values in a param.Store and custom data in a map.
type fakeTarget struct {
	name  string
	store *param.Store
	data  map[int][]byte
}

func newFake(name string, descs ...param.Descriptor) *fakeTarget {
	return &fakeTarget{
		name:  name,
		store: param.NewStore(param.MustTable(descs...)),
		data:  map[int][]byte{},
	}
}

func (f *fakeTarget) PluginName() string       { return f.name }
func (f *fakeTarget) Parameters() *param.Table { return f.store.Table() }

func (f *fakeTarget) GetParameterFloat(i int) (float32, string, error) {
	v, err := f.store.GetFloat(i)
	return v, "", err
}

func (f *fakeTarget) GetParameterInt(i int) (int32, string, error) {
	v, err := f.store.GetInt(i)
	return v, "", err
}

func (f *fakeTarget) GetParameterBool(i int) (bool, string, error) {
	v, err := f.store.GetBool(i)
	return v, "", err
}

func (f *fakeTarget) GetParameterData(i int) ([]byte, string, error) {
	return f.data[i], "", nil
}

func (f *fakeTarget) SetParameterFloat(i int, v float32) error { return f.store.SetFloat(i, v) }
func (f *fakeTarget) SetParameterInt(i int, v int32) error     { return f.store.SetInt(i, v) }
func (f *fakeTarget) SetParameterBool(i int, v bool) error     { return f.store.SetBool(i, v) }

func (f *fakeTarget) SetParameterData(i int, data []byte) error {
	f.data[i] = append([]byte(nil), data...)
	return nil
}

func echoParams() []param.Descriptor {
	return []param.Descriptor{
		param.Milliseconds("Delay", 10, 5000, 500).MustBuild(),
		param.Percent("Feedback", 50).MustBuild(),
		param.Choice("Mode", 0, "A", "B", "C").MustBuild(),
		param.Toggle("Freeze", false).MustBuild(),
		param.Data("Impulse", 3).MustBuild(),
		param.OverallGain().MustBuild(),
		param.Float("Level", 0, 1, 0).ReadOnly().MustBuild(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	src := newFake("Echo", echoParams()...)
	require.NoError(t, src.SetParameterFloat(0, 750))
	require.NoError(t, src.SetParameterFloat(1, 25))
	require.NoError(t, src.SetParameterInt(2, 2))
	require.NoError(t, src.SetParameterBool(3, true))
	require.NoError(t, src.SetParameterData(4, []byte{1, 2, 3}))
	require.NoError(t, src.store.SetFloat(6, 0.9))

	m := NewManager(nil)
	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf, src))

	dst := newFake("Echo", echoParams()...)
	require.NoError(t, m.Load(bytes.NewReader(buf.Bytes()), dst))

	assert.Equal(t, float32(750), dst.store.Float(0))
	assert.Equal(t, float32(25), dst.store.Float(1))
	assert.Equal(t, int32(2), dst.store.Int(2))
	assert.True(t, dst.store.Bool(3))
	assert.Equal(t, []byte{1, 2, 3}, dst.data[4])
	// read-only values are not part of a preset
	assert.Equal(t, float32(0), dst.store.Float(6))
	_, hasGain := dst.data[5]
	assert.False(t, hasGain)
}

func TestLoadSkipsChangedParameters(t *testing.T) {
	old := newFake("Echo",
		param.Milliseconds("Delay", 10, 5000, 500).MustBuild(),
		param.Percent("Wet", 50).MustBuild(),
		param.Percent("Retired", 10).MustBuild(),
	)
	require.NoError(t, old.SetParameterFloat(0, 100))
	require.NoError(t, old.SetParameterFloat(1, 80))
	require.NoError(t, old.SetParameterFloat(2, 90))

	m := NewManager(nil)
	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf, old))

	// index 1 was renamed and index 2 is now an int
	current := newFake("Echo",
		param.Milliseconds("Delay", 10, 5000, 500).MustBuild(),
		param.Percent("Dry", 50).MustBuild(),
		param.Int("Retired", 0, 10, 0).MustBuild(),
	)
	require.NoError(t, m.Load(&buf, current))

	assert.Equal(t, float32(100), current.store.Float(0))
	assert.Equal(t, float32(50), current.store.Float(1))
	assert.Equal(t, int32(0), current.store.Int(2))
}

func TestLoadErrors(t *testing.T) {
	m := NewManager(nil)
	src := newFake("Echo", echoParams()...)
	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf, src))
	preset := buf.Bytes()

	t.Run("BadMagic", func(t *testing.T) {
		bad := append([]byte("XXXXXX"), preset[len(magic):]...)
		err := m.Load(bytes.NewReader(bad), newFake("Echo", echoParams()...))
		assert.ErrorIs(t, err, abi.ErrFormat)
	})

	t.Run("OtherPlugin", func(t *testing.T) {
		err := m.Load(bytes.NewReader(preset), newFake("Gain", echoParams()...))
		assert.ErrorIs(t, err, abi.ErrInvalidParam)
	})

	t.Run("NewerVersion", func(t *testing.T) {
		newer := append([]byte(nil), preset...)
		newer[len(magic)] = 9
		err := m.Load(bytes.NewReader(newer), newFake("Echo", echoParams()...))
		assert.ErrorIs(t, err, abi.ErrPluginVersion)
	})

	t.Run("Truncated", func(t *testing.T) {
		err := m.Load(bytes.NewReader(preset[:len(preset)-2]), newFake("Echo", echoParams()...))
		assert.Error(t, err)
	})
}
