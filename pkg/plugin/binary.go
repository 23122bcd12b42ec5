package plugin

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/param"
)

var le = binary.LittleEndian

// MarshalBinary writes the descriptor in the registration layout: fixed
// header fields, then each parameter as type, fixed name and label,
// read-only flag, length-prefixed description and a type payload. Every
// field is little-endian and sequential.
func (d *Descriptor) MarshalBinary() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	name, _ := abi.NewName(d.Name)

	buf := make([]byte, 0, 64+d.Params.Len()*64)
	buf = le.AppendUint32(buf, d.SDKVersion)
	buf = append(buf, name[:]...)
	buf = le.AppendUint32(buf, d.Version)
	buf = le.AppendUint32(buf, uint32(int32(d.NumInputs)))
	buf = le.AppendUint32(buf, uint32(int32(d.NumOutputs)))
	buf = le.AppendUint32(buf, uint32(int32(d.Params.Len())))

	var err error
	for i, p := range d.Params.All() {
		if buf, err = appendParam(buf, p); err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
	}
	return buf, nil
}

func appendParam(buf []byte, p param.Descriptor) ([]byte, error) {
	name, err := abi.NewLabel(p.Name)
	if err != nil {
		return nil, err
	}
	label, err := abi.NewLabel(p.Label)
	if err != nil {
		return nil, err
	}
	buf = le.AppendUint32(buf, uint32(p.Type()))
	buf = append(buf, name[:]...)
	buf = append(buf, label[:]...)
	buf = appendBool(buf, p.IsReadOnly())
	if buf, err = appendString(buf, p.Description); err != nil {
		return nil, err
	}

	switch b := p.Bounds.(type) {
	case param.FloatBounds:
		buf = appendFloat(buf, b.Min)
		buf = appendFloat(buf, b.Max)
		buf = appendFloat(buf, b.Default)
		buf = le.AppendUint32(buf, uint32(b.Mapping.Kind))
		buf = le.AppendUint32(buf, uint32(len(b.Mapping.Points)))
		for _, pt := range b.Mapping.Points {
			buf = appendFloat(buf, pt.Position)
			buf = appendFloat(buf, pt.Value)
		}
	case param.IntBounds:
		buf = le.AppendUint32(buf, uint32(b.Min))
		buf = le.AppendUint32(buf, uint32(b.Max))
		buf = le.AppendUint32(buf, uint32(b.Default))
		buf = appendBool(buf, b.GoesToInf)
		if buf, err = appendNames(buf, b.ValueNames); err != nil {
			return nil, err
		}
	case param.BoolBounds:
		buf = appendBool(buf, b.Default)
		if buf, err = appendNames(buf, b.ValueNames); err != nil {
			return nil, err
		}
	case param.DataBounds:
		buf = le.AppendUint32(buf, uint32(b.DataType))
	}
	return buf, nil
}

func appendFloat(buf []byte, v float32) []byte {
	return le.AppendUint32(buf, math.Float32bits(v))
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendString(buf []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, fmt.Errorf("string of %d bytes: %w", len(s), abi.ErrInvalidParam)
	}
	buf = le.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

func appendNames(buf []byte, names []string) ([]byte, error) {
	buf = le.AppendUint32(buf, uint32(len(names)))
	var err error
	for _, n := range names {
		if buf, err = appendString(buf, n); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
