// Package state saves and restores plugin parameter values as presets. It
// goes through the same indexed get/set calls a host uses, so it works for
// any plugin without plugin cooperation.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/framework/param"
)

const magic = "DSPPRE"

// maxDataLen bounds a custom data record read back from a preset.
const maxDataLen = 1 << 20

// Target is a live instance whose parameters can be read and written.
type Target interface {
	PluginName() string
	Parameters() *param.Table
	GetParameterFloat(index int) (float32, string, error)
	GetParameterInt(index int) (int32, string, error)
	GetParameterBool(index int) (bool, string, error)
	GetParameterData(index int) ([]byte, string, error)
	SetParameterFloat(index int, v float32) error
	SetParameterInt(index int, v int32) error
	SetParameterBool(index int, v bool) error
	SetParameterData(index int, data []byte) error
}

// Manager handles preset saving and loading
type Manager struct {
	version uint32
	logger  *debug.Logger
}

// NewManager creates a new state manager
func NewManager(logger *debug.Logger) *Manager {
	if logger == nil {
		logger = debug.Discard()
	}
	return &Manager{version: 1, logger: logger}
}

// saved reports whether a parameter belongs in a preset. Read-only values
// and host-reserved data are produced at run time, not configured.
func saved(d param.Descriptor) bool {
	if d.IsReadOnly() {
		return false
	}
	if b, ok := d.Data(); ok && b.DataType.Reserved() {
		return false
	}
	return true
}

// Save writes every writable parameter of t. Records carry index, type and
// name so Load can skip parameters that no longer match.
func (m *Manager) Save(w io.Writer, t Target) error {
	table := t.Parameters()

	var buf []byte
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint32(buf, m.version)
	buf = appendString(buf, t.PluginName())

	var records []byte
	count := int32(0)
	for i, d := range table.All() {
		if !saved(d) {
			continue
		}
		rec, err := m.record(t, i, d)
		if err != nil {
			return fmt.Errorf("save parameter %d (%s): %w", i, d.Name, err)
		}
		records = append(records, rec...)
		count++
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(count))
	buf = append(buf, records...)

	_, err := w.Write(buf)
	return err
}

func (m *Manager) record(t Target, index int, d param.Descriptor) ([]byte, error) {
	var rec []byte
	rec = binary.LittleEndian.AppendUint32(rec, uint32(index))
	rec = binary.LittleEndian.AppendUint32(rec, uint32(d.Type()))
	rec = appendString(rec, d.Name)

	switch d.Type() {
	case param.TypeFloat:
		v, _, err := t.GetParameterFloat(index)
		if err != nil {
			return nil, err
		}
		rec, _ = binary.Append(rec, binary.LittleEndian, v)
	case param.TypeInt:
		v, _, err := t.GetParameterInt(index)
		if err != nil {
			return nil, err
		}
		rec, _ = binary.Append(rec, binary.LittleEndian, v)
	case param.TypeBool:
		v, _, err := t.GetParameterBool(index)
		if err != nil {
			return nil, err
		}
		rec, _ = binary.Append(rec, binary.LittleEndian, v)
	case param.TypeData:
		v, _, err := t.GetParameterData(index)
		if err != nil {
			return nil, err
		}
		rec = binary.LittleEndian.AppendUint32(rec, uint32(len(v)))
		rec = append(rec, v...)
	}
	return rec, nil
}

// Load applies a preset to t. Records whose index, type or name no longer
// match the plugin are skipped and logged, so presets survive parameter
// additions. A preset for a different plugin is rejected.
func (m *Manager) Load(r io.Reader, t Target) error {
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("read preset header: %w", err)
	}
	if string(header) != magic {
		return fmt.Errorf("invalid preset format: %w", abi.ErrFormat)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version > m.version {
		return fmt.Errorf("preset version %d is newer than supported version %d: %w",
			version, m.version, abi.ErrPluginVersion)
	}

	name, err := readString(r)
	if err != nil {
		return err
	}
	if name != t.PluginName() {
		return fmt.Errorf("preset is for %q, not %q: %w", name, t.PluginName(), abi.ErrInvalidParam)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}

	table := t.Parameters()
	for n := uint32(0); n < count; n++ {
		var head struct {
			Index uint32
			Type  int32
		}
		if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		pname, err := readString(r)
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		apply, err := m.readValue(r, t, int(head.Index), param.Type(head.Type))
		if err != nil {
			return fmt.Errorf("record %d (%s): %w", n, pname, err)
		}

		d, err := table.At(int(head.Index))
		if err != nil || d.Name != pname || d.Type() != param.Type(head.Type) || !saved(d) {
			m.logger.Warn("preset: skipping %q at index %d", pname, head.Index)
			continue
		}
		if err := apply(); err != nil {
			if errors.Is(err, abi.ErrReadOnly) {
				continue
			}
			return fmt.Errorf("restore %s: %w", pname, err)
		}
	}
	return nil
}

// readValue consumes one value and returns the call that applies it.
func (m *Manager) readValue(r io.Reader, t Target, index int, typ param.Type) (func() error, error) {
	switch typ {
	case param.TypeFloat:
		var v float32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return func() error { return t.SetParameterFloat(index, v) }, nil
	case param.TypeInt:
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return func() error { return t.SetParameterInt(index, v) }, nil
	case param.TypeBool:
		var v bool
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return func() error { return t.SetParameterBool(index, v) }, nil
	case param.TypeData:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		if n > maxDataLen {
			return nil, fmt.Errorf("data record of %d bytes: %w", n, abi.ErrFormat)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		return func() error { return t.SetParameterData(index, data) }, nil
	}
	return nil, fmt.Errorf("parameter type %d: %w", typ, abi.ErrFormat)
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
