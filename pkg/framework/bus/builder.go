package bus

import (
	"errors"
	"fmt"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// Builder provides a fluent API for building buffer arrays
type Builder struct {
	mode   SpeakerMode
	geoms  []Geometry
	errors []error
}

// NewBuilder creates a builder for an array in the given speaker mode
func NewBuilder(mode SpeakerMode) *Builder {
	return &Builder{mode: mode}
}

// WithBuffer adds a buffer with an explicit mask; 0 means default layout
func (b *Builder) WithBuffer(channels int, mask ChannelMask) *Builder {
	g := Geometry{Channels: channels, Mask: mask}
	if err := validateGeometry(g, b.mode); err != nil {
		b.errors = append(b.errors, fmt.Errorf("buffer %d: %w", len(b.geoms), err))
	}
	b.geoms = append(b.geoms, g)
	return b
}

// WithChannels adds a buffer with the default layout for its channel count
func (b *Builder) WithChannels(channels int) *Builder {
	return b.WithBuffer(channels, 0)
}

// WithMono is a convenience method for adding a mono buffer
func (b *Builder) WithMono() *Builder {
	return b.WithBuffer(1, MaskMono)
}

// WithStereo is a convenience method for adding a stereo buffer
func (b *Builder) WithStereo() *Builder {
	return b.WithBuffer(2, MaskStereo)
}

// WithLayout adds a buffer carrying every speaker of mode
func (b *Builder) WithLayout(mode SpeakerMode) *Builder {
	if !mode.Fixed() {
		b.errors = append(b.errors, fmt.Errorf("layout %s has no channels: %w", mode, abi.ErrFormat))
		return b
	}
	return b.WithBuffer(mode.Channels(), mode.Mask())
}

// Shape returns the validated shape
func (b *Builder) Shape() (Shape, error) {
	if !b.mode.valid() {
		b.errors = append(b.errors, fmt.Errorf("speaker mode %d: %w", b.mode, abi.ErrFormat))
	}
	if len(b.errors) > 0 {
		return Shape{}, errors.Join(b.errors...)
	}
	geoms := make([]Geometry, len(b.geoms))
	copy(geoms, b.geoms)
	return Shape{SpeakerMode: b.mode, Buffers: geoms}, nil
}

// Build returns an array sized for frames frames
func (b *Builder) Build(frames int) (*Array, error) {
	s, err := b.Shape()
	if err != nil {
		return nil, err
	}
	return NewArray(s, frames), nil
}

// MustBuild returns the built array or panics on error
func (b *Builder) MustBuild(frames int) *Array {
	a, err := b.Build(frames)
	if err != nil {
		panic(err)
	}
	return a
}

// NewArray allocates an array of shape s holding frames frames
func NewArray(s Shape, frames int) *Array {
	a := &Array{}
	a.Apply(s)
	a.EnsureData(frames)
	return a
}
