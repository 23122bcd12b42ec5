// Package param describes plugin parameters: typed, self-describing metadata
// addressed by a dense zero-based index, plus the lock-free value storage
// plugins use to share values between the control and processing threads.
package param

import (
	"fmt"
	"math"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// Type is the parameter type tag.
type Type int32

const (
	TypeFloat Type = iota
	TypeInt
	TypeBool
	TypeData
)

func (t Type) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeData:
		return "data"
	default:
		return fmt.Sprintf("type(%d)", int32(t))
	}
}

// Bounds is the type-specific half of a descriptor. It is one of
// FloatBounds, IntBounds, BoolBounds or DataBounds.
type Bounds interface {
	Type() Type
	validate() error
}

// FloatBounds describes a float parameter.
type FloatBounds struct {
	Min, Max, Default float32
	Mapping           Mapping
}

// IntBounds describes an int parameter. When GoesToInf is set the Max value
// stands for infinity. ValueNames, if present, names every value in
// [Min, Max].
type IntBounds struct {
	Min, Max, Default int32
	GoesToInf         bool
	ValueNames        []string
}

// BoolBounds describes a bool parameter. ValueNames, if present, holds the
// names for false and true.
type BoolBounds struct {
	Default    bool
	ValueNames []string
}

// DataBounds describes an opaque data parameter.
type DataBounds struct {
	DataType abi.DataType
}

func (FloatBounds) Type() Type { return TypeFloat }
func (IntBounds) Type() Type   { return TypeInt }
func (BoolBounds) Type() Type  { return TypeBool }
func (DataBounds) Type() Type  { return TypeData }

func (b FloatBounds) validate() error {
	if isBad(b.Min) || isBad(b.Max) || isBad(b.Default) {
		return fmt.Errorf("float bounds must be finite: %w", abi.ErrInvalidParam)
	}
	if b.Min > b.Max {
		return fmt.Errorf("float min %v > max %v: %w", b.Min, b.Max, abi.ErrInvalidParam)
	}
	if b.Default < b.Min || b.Default > b.Max {
		return fmt.Errorf("float default %v outside [%v,%v]: %w", b.Default, b.Min, b.Max, abi.ErrInvalidParam)
	}
	return b.Mapping.Validate(b.Min, b.Max)
}

func (b IntBounds) validate() error {
	if b.Min > b.Max {
		return fmt.Errorf("int min %d > max %d: %w", b.Min, b.Max, abi.ErrInvalidParam)
	}
	if b.Default < b.Min || b.Default > b.Max {
		return fmt.Errorf("int default %d outside [%d,%d]: %w", b.Default, b.Min, b.Max, abi.ErrInvalidParam)
	}
	if b.ValueNames != nil && int64(len(b.ValueNames)) != int64(b.Max)-int64(b.Min)+1 {
		return fmt.Errorf("int has %d value names for %d values: %w",
			len(b.ValueNames), int64(b.Max)-int64(b.Min)+1, abi.ErrInvalidParam)
	}
	return nil
}

func (b BoolBounds) validate() error {
	if b.ValueNames != nil && len(b.ValueNames) != 2 {
		return fmt.Errorf("bool needs 2 value names, has %d: %w", len(b.ValueNames), abi.ErrInvalidParam)
	}
	return nil
}

func (b DataBounds) validate() error { return nil }

func isBad(f float32) bool {
	return math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)
}

// Descriptor is the metadata for one exposed control.
type Descriptor struct {
	Name        string // at most 15 bytes
	Label       string // unit label, at most 15 bytes
	Description string
	ReadOnly    bool
	Bounds      Bounds
}

// Type returns the descriptor's type tag.
func (d Descriptor) Type() Type {
	if d.Bounds == nil {
		return -1
	}
	return d.Bounds.Type()
}

// IsReadOnly reports whether set calls must be rejected, either because the
// descriptor says so or because its reserved data kind is plugin-produced.
func (d Descriptor) IsReadOnly() bool {
	if d.ReadOnly {
		return true
	}
	if b, ok := d.Bounds.(DataBounds); ok {
		return b.DataType.ReadOnly()
	}
	return false
}

// Float returns the float bounds, or false if d is not a float parameter.
func (d Descriptor) Float() (FloatBounds, bool) {
	b, ok := d.Bounds.(FloatBounds)
	return b, ok
}

// Int returns the int bounds, or false if d is not an int parameter.
func (d Descriptor) Int() (IntBounds, bool) {
	b, ok := d.Bounds.(IntBounds)
	return b, ok
}

// Bool returns the bool bounds, or false if d is not a bool parameter.
func (d Descriptor) Bool() (BoolBounds, bool) {
	b, ok := d.Bounds.(BoolBounds)
	return b, ok
}

// Data returns the data bounds, or false if d is not a data parameter.
func (d Descriptor) Data() (DataBounds, bool) {
	b, ok := d.Bounds.(DataBounds)
	return b, ok
}

// Validate checks the name and label sizes and the type-specific bounds.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("parameter name is empty: %w", abi.ErrInvalidParam)
	}
	if _, err := abi.NewLabel(d.Name); err != nil {
		return err
	}
	if _, err := abi.NewLabel(d.Label); err != nil {
		return err
	}
	if d.Bounds == nil {
		return fmt.Errorf("parameter %q has no bounds: %w", d.Name, abi.ErrInvalidParam)
	}
	if err := d.Bounds.validate(); err != nil {
		return fmt.Errorf("parameter %q: %w", d.Name, err)
	}
	return nil
}
