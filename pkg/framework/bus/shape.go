package bus

import (
	"fmt"
	"strings"
)

// Geometry is the channel layout of one buffer.
type Geometry struct {
	Channels int
	Mask     ChannelMask
}

// Shape is the geometry of an array without its sample data. During Query
// a plugin writes the output shape it wants; the host commits it and holds
// the plugin to it for the matching Perform.
type Shape struct {
	SpeakerMode SpeakerMode
	Buffers     []Geometry
}

// Shape copies the array's geometry.
func (a *Array) Shape() Shape {
	s := Shape{SpeakerMode: a.SpeakerMode, Buffers: make([]Geometry, len(a.Buffers))}
	for i := range a.Buffers {
		s.Buffers[i] = a.Buffers[i].Geometry()
	}
	return s
}

// CaptureShape copies the array's geometry into dst, reusing its storage.
func (a *Array) CaptureShape(dst *Shape) {
	dst.SpeakerMode = a.SpeakerMode
	dst.Buffers = dst.Buffers[:0]
	for i := range a.Buffers {
		dst.Buffers = append(dst.Buffers, a.Buffers[i].Geometry())
	}
}

// Matches reports whether the array currently has shape s.
func (a *Array) Matches(s Shape) bool {
	if a.SpeakerMode != s.SpeakerMode || len(a.Buffers) != len(s.Buffers) {
		return false
	}
	for i := range a.Buffers {
		if a.Buffers[i].Geometry() != s.Buffers[i] {
			return false
		}
	}
	return true
}

// SameShape reports whether two arrays have the same geometry.
func (a *Array) SameShape(b *Array) bool {
	if a.SpeakerMode != b.SpeakerMode || len(a.Buffers) != len(b.Buffers) {
		return false
	}
	for i := range a.Buffers {
		if a.Buffers[i].Geometry() != b.Buffers[i].Geometry() {
			return false
		}
	}
	return true
}

// Equal reports whether two shapes are identical.
func (s Shape) Equal(o Shape) bool {
	if s.SpeakerMode != o.SpeakerMode || len(s.Buffers) != len(o.Buffers) {
		return false
	}
	for i := range s.Buffers {
		if s.Buffers[i] != o.Buffers[i] {
			return false
		}
	}
	return true
}

// Validate checks every geometry against the speaker mode.
func (s Shape) Validate() error {
	for i, g := range s.Buffers {
		if err := validateGeometry(g, s.SpeakerMode); err != nil {
			return fmt.Errorf("buffer %d: %w", i, err)
		}
	}
	return nil
}

// Channels returns the channel count of the first buffer, or 0.
func (s Shape) Channels() int {
	if len(s.Buffers) == 0 {
		return 0
	}
	return s.Buffers[0].Channels
}

func (s Shape) String() string {
	var sb strings.Builder
	sb.WriteString(s.SpeakerMode.String())
	sb.WriteByte('[')
	for i, g := range s.Buffers {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%dch", g.Channels)
		if g.Mask != 0 {
			fmt.Fprintf(&sb, "/%#x", uint32(g.Mask))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
