// Package bus models the buffer arrays exchanged on every processing call:
// interleaved float buffers, each with its own channel count and speaker
// mask, grouped under one speaker mode.
package bus

import (
	"fmt"
	"math/bits"
)

// SpeakerMode is the speaker layout shared by all buffers of an array.
type SpeakerMode int32

const (
	// SpeakerModeDefault defers to the system's configured layout.
	SpeakerModeDefault SpeakerMode = iota
	// SpeakerModeRaw carries channels with no speaker meaning.
	SpeakerModeRaw
	SpeakerModeMono
	SpeakerModeStereo
	SpeakerModeQuad
	SpeakerModeSurround
	SpeakerMode5Point1
	SpeakerMode7Point1
	SpeakerMode7Point1Point4
)

// Speaker identifies one loudspeaker position.
type Speaker int32

const (
	SpeakerFrontLeft Speaker = iota
	SpeakerFrontRight
	SpeakerFrontCenter
	SpeakerLowFrequency
	SpeakerSurroundLeft
	SpeakerSurroundRight
	SpeakerBackLeft
	SpeakerBackRight
	SpeakerTopFrontLeft
	SpeakerTopFrontRight
	SpeakerTopBackLeft
	SpeakerTopBackRight
)

// ChannelMask is a bitfield of the speakers a buffer's channels feed. Zero
// means the default layout for the buffer's channel count.
type ChannelMask uint32

const (
	MaskFrontLeft     ChannelMask = 0x00000001
	MaskFrontRight    ChannelMask = 0x00000002
	MaskFrontCenter   ChannelMask = 0x00000004
	MaskLowFrequency  ChannelMask = 0x00000008
	MaskSurroundLeft  ChannelMask = 0x00000010
	MaskSurroundRight ChannelMask = 0x00000020
	MaskBackLeft      ChannelMask = 0x00000040
	MaskBackRight     ChannelMask = 0x00000080
	MaskBackCenter    ChannelMask = 0x00000100
	MaskTopFrontLeft  ChannelMask = 0x00000200
	MaskTopFrontRight ChannelMask = 0x00000400
	MaskTopBackLeft   ChannelMask = 0x00000800
	MaskTopBackRight  ChannelMask = 0x00001000

	MaskMono     = MaskFrontLeft
	MaskStereo   = MaskFrontLeft | MaskFrontRight
	MaskLRC      = MaskStereo | MaskFrontCenter
	MaskQuad     = MaskStereo | MaskSurroundLeft | MaskSurroundRight
	MaskSurround = MaskLRC | MaskSurroundLeft | MaskSurroundRight
	Mask5Point1  = MaskSurround | MaskLowFrequency
	Mask7Point1  = Mask5Point1 | MaskBackLeft | MaskBackRight

	Mask7Point1Point4 = Mask7Point1 | MaskTopFrontLeft | MaskTopFrontRight |
		MaskTopBackLeft | MaskTopBackRight
)

// MaxChannels is the widest buffer the protocol carries.
const MaxChannels = 32

var modeInfo = [...]struct {
	name     string
	channels int
	mask     ChannelMask
}{
	SpeakerModeDefault:       {"default", 0, 0},
	SpeakerModeRaw:           {"raw", 0, 0},
	SpeakerModeMono:          {"mono", 1, MaskMono},
	SpeakerModeStereo:        {"stereo", 2, MaskStereo},
	SpeakerModeQuad:          {"quad", 4, MaskQuad},
	SpeakerModeSurround:      {"surround", 5, MaskSurround},
	SpeakerMode5Point1:       {"5.1", 6, Mask5Point1},
	SpeakerMode7Point1:       {"7.1", 8, Mask7Point1},
	SpeakerMode7Point1Point4: {"7.1.4", 12, Mask7Point1Point4},
}

func (m SpeakerMode) valid() bool { return m >= 0 && int(m) < len(modeInfo) }

// Channels returns the channel count of a speaker layout, or 0 for the
// default and raw modes, which have none.
func (m SpeakerMode) Channels() int {
	if !m.valid() {
		return 0
	}
	return modeInfo[m].channels
}

// Mask returns every speaker the mode contains.
func (m SpeakerMode) Mask() ChannelMask {
	if !m.valid() {
		return 0
	}
	return modeInfo[m].mask
}

// Fixed reports whether the mode names a concrete speaker layout.
func (m SpeakerMode) Fixed() bool { return m.Channels() > 0 }

func (m SpeakerMode) String() string {
	if !m.valid() {
		return fmt.Sprintf("speakermode(%d)", int32(m))
	}
	return modeInfo[m].name
}

// ParseSpeakerMode accepts the names String returns.
func ParseSpeakerMode(s string) (SpeakerMode, error) {
	for m := range modeInfo {
		if modeInfo[m].name == s {
			return SpeakerMode(m), nil
		}
	}
	return 0, fmt.Errorf("unknown speaker mode %q", s)
}

// ModeForChannels returns the fixed layout with the given channel count, or
// raw when there is none.
func ModeForChannels(channels int) SpeakerMode {
	for m := SpeakerModeMono; m.valid(); m++ {
		if m.Channels() == channels {
			return m
		}
	}
	return SpeakerModeRaw
}

// DefaultMask returns the conventional mask for a channel count. Counts
// with no standard layout get the lowest channels bits.
func DefaultMask(channels int) ChannelMask {
	if channels <= 0 {
		return 0
	}
	if m := ModeForChannels(channels); m.Fixed() {
		return m.Mask()
	}
	if channels >= MaxChannels {
		return ^ChannelMask(0)
	}
	return ChannelMask(1)<<channels - 1
}

// Count returns the number of speakers in the mask.
func (c ChannelMask) Count() int { return bits.OnesCount32(uint32(c)) }

// Has reports whether speaker s is present.
func (c ChannelMask) Has(s Speaker) bool { return c&speakerBit(s) != 0 }

// Speakers lists the speakers in the mask in channel order. Channel order
// follows bit order, skipping MaskBackCenter which has no Speaker value.
func (c ChannelMask) Speakers() []Speaker {
	out := make([]Speaker, 0, c.Count())
	for s := SpeakerFrontLeft; s <= SpeakerTopBackRight; s++ {
		if c&speakerBit(s) != 0 {
			out = append(out, s)
		}
	}
	return out
}

// speakerBit maps a Speaker to its mask bit. The top speakers sit above
// MaskBackCenter.
func speakerBit(s Speaker) ChannelMask {
	if s >= SpeakerTopFrontLeft {
		return 1 << (s + 1)
	}
	return 1 << s
}
