package bus

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// ToFloat32Buffer wraps the buffer's samples in a go-audio buffer without
// copying.
func (b *Buffer) ToFloat32Buffer(sampleRate int) *audio.Float32Buffer {
	return &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: b.Channels,
		},
		Data:           b.Data,
		SourceBitDepth: 32,
	}
}

// FromFloat32Buffer wraps a go-audio buffer's samples without copying. The
// mask is left at the default for the channel count.
func FromFloat32Buffer(src *audio.Float32Buffer) (Buffer, error) {
	if src == nil || src.Format == nil || src.Format.NumChannels < 1 {
		return Buffer{}, fmt.Errorf("go-audio buffer without format: %w", abi.ErrFormat)
	}
	return Buffer{Channels: src.Format.NumChannels, Data: src.Data}, nil
}

// FromIntBuffer converts PCM integers to float samples in [-1,1) using the
// buffer's source bit depth. go-audio's own conversion does not rescale.
func FromIntBuffer(src *audio.IntBuffer) (Buffer, error) {
	if src == nil || src.Format == nil || src.Format.NumChannels < 1 {
		return Buffer{}, fmt.Errorf("go-audio buffer without format: %w", abi.ErrFormat)
	}
	depth := src.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}
	scale := 1 / float32(int64(1)<<(depth-1))
	out := Buffer{Channels: src.Format.NumChannels, Data: make([]float32, len(src.Data))}
	for i, v := range src.Data {
		out.Data[i] = float32(v) * scale
	}
	return out, nil
}

// ToIntBuffer converts float samples to clipped PCM integers of bitDepth
// bits, ready for a WAV encoder.
func (b *Buffer) ToIntBuffer(sampleRate, bitDepth int) *audio.IntBuffer {
	full := float64(int64(1) << (bitDepth - 1))
	out := &audio.IntBuffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: b.Channels,
		},
		Data:           make([]int, len(b.Data)),
		SourceBitDepth: bitDepth,
	}
	for i, v := range b.Data {
		s := math.Round(float64(v) * full)
		out.Data[i] = int(min(max(s, -full), full-1))
	}
	return out
}
