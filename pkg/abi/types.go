package abi

import (
	"bytes"
	"fmt"
)

// SDKVersion is the plugin SDK revision this module implements. Descriptors
// built for a newer revision are rejected at registration.
const SDKVersion uint32 = 110

// Fixed sizes at the registration boundary.
const (
	NameLength        = 32 // plugin display name, NUL terminated
	ParamNameLength   = 16 // parameter name and unit label, NUL terminated
	ValueStringLength = 32 // display string returned by parameter getters
	MaxChannelWidth   = 32
	MaxListeners      = 8
)

// Name is the fixed-size plugin name as laid out in a descriptor.
type Name [NameLength]byte

// Label is the fixed-size parameter name or unit label.
type Label [ParamNameLength]byte

// NewName converts s, rejecting strings that do not fit with a terminator.
func NewName(s string) (Name, error) {
	var n Name
	if len(s) >= NameLength {
		return n, fmt.Errorf("name %q longer than %d bytes: %w", s, NameLength-1, ErrInvalidParam)
	}
	copy(n[:], s)
	return n, nil
}

// NewLabel converts s, rejecting strings that do not fit with a terminator.
func NewLabel(s string) (Label, error) {
	var l Label
	if len(s) >= ParamNameLength {
		return l, fmt.Errorf("label %q longer than %d bytes: %w", s, ParamNameLength-1, ErrInvalidParam)
	}
	copy(l[:], s)
	return l, nil
}

func (n Name) String() string  { return cstring(n[:]) }
func (l Label) String() string { return cstring(l[:]) }

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// TruncateValueString bounds a display string to what fits in the host's
// value-string buffer, cutting on a rune boundary.
func TruncateValueString(s string) string {
	if len(s) < ValueStringLength {
		return s
	}
	cut := ValueStringLength - 1
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// MemoryType tags host allocations so real-time use can be accounted for
// separately from general heap use.
type MemoryType uint32

const (
	MemoryNormal     MemoryType = 0x00000000
	MemoryDSPBuffer  MemoryType = 0x00000008
	MemoryPlugin     MemoryType = 0x00000010
	MemoryPersistent MemoryType = 0x00200000
)

func (m MemoryType) String() string {
	switch m {
	case MemoryNormal:
		return "normal"
	case MemoryDSPBuffer:
		return "dsp-buffer"
	case MemoryPlugin:
		return "plugin"
	case MemoryPersistent:
		return "persistent"
	default:
		return fmt.Sprintf("memory(0x%x)", uint32(m))
	}
}

// Vector is a left-handed 3D vector.
type Vector struct {
	X, Y, Z float32
}

// Attributes3D describes the position and orientation of a sound or listener.
type Attributes3D struct {
	Position Vector
	Velocity Vector
	Forward  Vector
	Up       Vector
}
