package param

import (
	"fmt"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// Builder provides a fluent API for creating descriptors
type Builder struct {
	desc Descriptor
	err  error
}

// Float starts a float descriptor with a linear mapping
func Float(name string, min, max, def float32) *Builder {
	return &Builder{desc: Descriptor{
		Name:   name,
		Bounds: FloatBounds{Min: min, Max: max, Default: def},
	}}
}

// Int starts an int descriptor
func Int(name string, min, max, def int32) *Builder {
	return &Builder{desc: Descriptor{
		Name:   name,
		Bounds: IntBounds{Min: min, Max: max, Default: def},
	}}
}

// Bool starts a bool descriptor
func Bool(name string, def bool) *Builder {
	return &Builder{desc: Descriptor{
		Name:   name,
		Bounds: BoolBounds{Default: def},
	}}
}

// Data starts a data descriptor
func Data(name string, dataType abi.DataType) *Builder {
	return &Builder{desc: Descriptor{
		Name:   name,
		Bounds: DataBounds{DataType: dataType},
	}}
}

// Label sets the unit label
func (b *Builder) Label(label string) *Builder {
	b.desc.Label = label
	return b
}

// Description sets the help text
func (b *Builder) Description(text string) *Builder {
	b.desc.Description = text
	return b
}

// ReadOnly marks the parameter as read-only
func (b *Builder) ReadOnly() *Builder {
	b.desc.ReadOnly = true
	return b
}

// AutoMapping lets the host choose the control curve
func (b *Builder) AutoMapping() *Builder {
	return b.mapping(Mapping{Kind: MappingAuto})
}

// Piecewise sets an explicit control curve
func (b *Builder) Piecewise(points ...Point) *Builder {
	return b.mapping(Mapping{Kind: MappingPiecewise, Points: points})
}

func (b *Builder) mapping(m Mapping) *Builder {
	fb, ok := b.desc.Bounds.(FloatBounds)
	if !ok {
		b.fail("mapping on %s parameter", b.desc.Type())
		return b
	}
	fb.Mapping = m
	b.desc.Bounds = fb
	return b
}

// GoesToInf marks the int maximum as standing for infinity
func (b *Builder) GoesToInf() *Builder {
	ib, ok := b.desc.Bounds.(IntBounds)
	if !ok {
		b.fail("goes-to-inf on %s parameter", b.desc.Type())
		return b
	}
	ib.GoesToInf = true
	b.desc.Bounds = ib
	return b
}

// ValueNames sets display names for int or bool values
func (b *Builder) ValueNames(names ...string) *Builder {
	switch bounds := b.desc.Bounds.(type) {
	case IntBounds:
		bounds.ValueNames = names
		b.desc.Bounds = bounds
	case BoolBounds:
		bounds.ValueNames = names
		b.desc.Bounds = bounds
	default:
		b.fail("value names on %s parameter", b.desc.Type())
	}
	return b
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("parameter %q: "+format+": %w", append([]any{b.desc.Name}, append(args, abi.ErrInvalidParam)...)...)
	}
}

// Build validates and returns the descriptor
func (b *Builder) Build() (Descriptor, error) {
	if b.err != nil {
		return Descriptor{}, b.err
	}
	if err := b.desc.Validate(); err != nil {
		return Descriptor{}, err
	}
	return b.desc, nil
}

// MustBuild is Build for static tables; it panics on an invalid descriptor
func (b *Builder) MustBuild() Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
