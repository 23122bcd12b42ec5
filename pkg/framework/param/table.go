package param

import (
	"fmt"
	"strings"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// Table is the ordered, validated descriptor sequence of one plugin. The
// position of a descriptor is its parameter index. A Table is immutable
// once built and safe to share between threads.
type Table struct {
	descs    []Descriptor
	byName   map[string]int
	reserved map[abi.DataType]int
}

// NewTable validates descs and fixes their order as the index space.
func NewTable(descs ...Descriptor) (*Table, error) {
	t := &Table{
		descs:    make([]Descriptor, len(descs)),
		byName:   make(map[string]int, len(descs)),
		reserved: make(map[abi.DataType]int),
	}
	copy(t.descs, descs)

	for i, d := range t.descs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		key := strings.ToLower(d.Name)
		if prev, dup := t.byName[key]; dup {
			return nil, fmt.Errorf("parameter %d: name %q already used by parameter %d: %w",
				i, d.Name, prev, abi.ErrInvalidParam)
		}
		t.byName[key] = i

		if b, ok := d.Data(); ok && b.DataType.Reserved() {
			if prev, dup := t.reserved[b.DataType]; dup {
				return nil, fmt.Errorf("parameter %d: %s already declared by parameter %d: %w",
					i, b.DataType, prev, abi.ErrInvalidParam)
			}
			t.reserved[b.DataType] = i
		}
	}
	return t, nil
}

// MustTable is NewTable for static plugin definitions.
func MustTable(descs ...Descriptor) *Table {
	t, err := NewTable(descs...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of parameters.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.descs)
}

// At returns the descriptor at index.
func (t *Table) At(index int) (Descriptor, error) {
	if index < 0 || index >= t.Len() {
		return Descriptor{}, fmt.Errorf("parameter index %d of %d: %w", index, t.Len(), abi.ErrInvalidIndex)
	}
	return t.descs[index], nil
}

// All returns a copy of the descriptors in index order.
func (t *Table) All() []Descriptor {
	if t == nil {
		return nil
	}
	out := make([]Descriptor, len(t.descs))
	copy(out, t.descs)
	return out
}

// Lookup finds a parameter index by case-insensitive name. It is meant for
// control-side tools; processing code addresses parameters by index only.
func (t *Table) Lookup(name string) (int, bool) {
	if t == nil {
		return -1, false
	}
	i, ok := t.byName[strings.ToLower(name)]
	if !ok {
		return -1, false
	}
	return i, true
}

// Reserved returns the index of the parameter declaring a host-reserved
// data type.
func (t *Table) Reserved(dt abi.DataType) (int, bool) {
	if t == nil {
		return -1, false
	}
	i, ok := t.reserved[dt]
	if !ok {
		return -1, false
	}
	return i, true
}
