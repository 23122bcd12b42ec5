package bus

// Common array templates for plugin inputs and outputs

// NewMono creates a single mono buffer
func NewMono(frames int) *Array {
	return NewBuilder(SpeakerModeMono).WithMono().MustBuild(frames)
}

// NewStereo creates a single stereo buffer
func NewStereo(frames int) *Array {
	return NewBuilder(SpeakerModeStereo).WithStereo().MustBuild(frames)
}

// NewSurround creates a single buffer carrying every speaker of mode.
// Modes without a layout fall back to stereo.
func NewSurround(mode SpeakerMode, frames int) *Array {
	if !mode.Fixed() {
		return NewStereo(frames)
	}
	return NewBuilder(mode).WithLayout(mode).MustBuild(frames)
}

// NewSidechained creates a stereo main buffer followed by a stereo
// sidechain buffer
func NewSidechained(frames int) *Array {
	return NewBuilder(SpeakerModeStereo).WithStereo().WithStereo().MustBuild(frames)
}

// NewMulti creates count buffers of channels channels each in raw mode
func NewMulti(count, channels, frames int) *Array {
	b := NewBuilder(SpeakerModeRaw)
	for i := 0; i < count; i++ {
		b.WithChannels(channels)
	}
	return b.MustBuild(frames)
}

// NewEmpty creates an array with no buffers, as given to generators
func NewEmpty(mode SpeakerMode) *Array {
	return &Array{SpeakerMode: mode}
}
