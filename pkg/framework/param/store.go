package param

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// Store holds the current value of every float, int and bool parameter of a
// Table. Each value lives in its own 64-bit slot and is read and written
// atomically, so the control thread can set values while the processing
// thread reads them without locks. Data parameters have no slot; plugins
// keep those themselves.
type Store struct {
	table   *Table
	slots   []atomic.Uint64
	version atomic.Uint64
}

// NewStore creates a store with every value at its default.
func NewStore(t *Table) *Store {
	s := &Store{
		table: t,
		slots: make([]atomic.Uint64, t.Len()),
	}
	s.Reset()
	return s
}

// Table returns the descriptors the store was built from.
func (s *Store) Table() *Table { return s.table }

// Reset returns every value to its default.
func (s *Store) Reset() {
	for i := range s.slots {
		d := s.table.descs[i]
		switch b := d.Bounds.(type) {
		case FloatBounds:
			s.slots[i].Store(floatBits(b.Default))
		case IntBounds:
			s.slots[i].Store(intBits(b.Default))
		case BoolBounds:
			s.slots[i].Store(boolBits(b.Default))
		}
	}
	s.version.Add(1)
}

// Version increases on every successful set. Processing code compares it
// against a cached copy to notice changes cheaply.
func (s *Store) Version() uint64 { return s.version.Load() }

func (s *Store) lookup(index int, want Type) (Descriptor, error) {
	d, err := s.table.At(index)
	if err != nil {
		return d, err
	}
	if d.Type() != want {
		return d, fmt.Errorf("parameter %d (%s) is %s, not %s: %w", index, d.Name, d.Type(), want, abi.ErrParamType)
	}
	return d, nil
}

// SetFloat stores v clamped to the parameter's range.
func (s *Store) SetFloat(index int, v float32) error {
	d, err := s.lookup(index, TypeFloat)
	if err != nil {
		return err
	}
	if math.IsNaN(float64(v)) {
		return fmt.Errorf("parameter %d (%s) set to NaN: %w", index, d.Name, abi.ErrInvalidParam)
	}
	b := d.Bounds.(FloatBounds)
	s.slots[index].Store(floatBits(min(max(v, b.Min), b.Max)))
	s.version.Add(1)
	return nil
}

// SetInt stores v clamped to the parameter's range.
func (s *Store) SetInt(index int, v int32) error {
	d, err := s.lookup(index, TypeInt)
	if err != nil {
		return err
	}
	b := d.Bounds.(IntBounds)
	s.slots[index].Store(intBits(min(max(v, b.Min), b.Max)))
	s.version.Add(1)
	return nil
}

// SetBool stores v.
func (s *Store) SetBool(index int, v bool) error {
	if _, err := s.lookup(index, TypeBool); err != nil {
		return err
	}
	s.slots[index].Store(boolBits(v))
	s.version.Add(1)
	return nil
}

// GetFloat returns a float value after checking index and type.
func (s *Store) GetFloat(index int) (float32, error) {
	if _, err := s.lookup(index, TypeFloat); err != nil {
		return 0, err
	}
	return s.Float(index), nil
}

// GetInt returns an int value after checking index and type.
func (s *Store) GetInt(index int) (int32, error) {
	if _, err := s.lookup(index, TypeInt); err != nil {
		return 0, err
	}
	return s.Int(index), nil
}

// GetBool returns a bool value after checking index and type.
func (s *Store) GetBool(index int) (bool, error) {
	if _, err := s.lookup(index, TypeBool); err != nil {
		return false, err
	}
	return s.Bool(index), nil
}

// Float reads a float slot without checks. For processing code that indexes
// its own constants.
func (s *Store) Float(index int) float32 {
	return float32(math.Float64frombits(s.slots[index].Load()))
}

// Int reads an int slot without checks.
func (s *Store) Int(index int) int32 {
	return int32(int64(s.slots[index].Load()))
}

// Bool reads a bool slot without checks.
func (s *Store) Bool(index int) bool {
	return s.slots[index].Load() != 0
}

// Display formats the current value of a float, int or bool parameter.
func (s *Store) Display(index int) string {
	d, err := s.table.At(index)
	if err != nil {
		return ""
	}
	switch b := d.Bounds.(type) {
	case FloatBounds:
		return FormatFloat(d.Label, s.Float(index))
	case IntBounds:
		return FormatInt(b, d.Label, s.Int(index))
	case BoolBounds:
		return FormatBool(b, s.Bool(index))
	}
	return ""
}

func floatBits(v float32) uint64 { return math.Float64bits(float64(v)) }
func intBits(v int32) uint64     { return uint64(int64(v)) }

func boolBits(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}
