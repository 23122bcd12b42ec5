package abi

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType tags a data parameter. Non-negative values are plugin-defined;
// negative values are reserved kinds the host interprets.
type DataType int32

const (
	DataUser              DataType = 0
	DataOverallGain       DataType = -1
	DataAttributes3D      DataType = -2
	DataSidechain         DataType = -3
	DataFFT               DataType = -4
	DataAttributes3DMulti DataType = -5
)

// Reserved reports whether t is a host-reserved kind.
func (t DataType) Reserved() bool { return t < 0 }

// ReadOnly reports whether the host-reserved kind is produced by the plugin
// and must never be set.
func (t DataType) ReadOnly() bool {
	return t == DataOverallGain || t == DataFFT
}

func (t DataType) String() string {
	switch t {
	case DataOverallGain:
		return "overall-gain"
	case DataAttributes3D:
		return "3d-attributes"
	case DataSidechain:
		return "sidechain"
	case DataFFT:
		return "fft"
	case DataAttributes3DMulti:
		return "3d-attributes-multi"
	}
	if t >= 0 {
		return fmt.Sprintf("user(%d)", int32(t))
	}
	return fmt.Sprintf("reserved(%d)", int32(t))
}

var order = binary.LittleEndian

// OverallGain reports how much the plugin scales its signal so the host can
// account for it when virtualizing voices.
type OverallGain struct {
	Linear         float32 // gain on the direct path
	LinearAdditive float32 // gain on parallel paths
}

// Attributes3DParam is the single-listener 3D position payload.
type Attributes3DParam struct {
	Relative Attributes3D // relative to the listener
	Absolute Attributes3D // world coordinates
}

// Attributes3DMulti is the multi-listener 3D position payload.
type Attributes3DMulti struct {
	NumListeners int32
	Relative     [MaxListeners]Attributes3D
	Weight       [MaxListeners]float32
	Absolute     Attributes3D
}

// Sidechain toggles mixing of sidechain inputs into State.Sidechain.
type Sidechain struct {
	Enable int32
}

// fixed-size payloads share one codec.
type fixedPayload interface {
	OverallGain | Attributes3DParam | Attributes3DMulti | Sidechain
}

// Encode appends the sequential little-endian layout of v to dst.
func Encode[T fixedPayload](dst []byte, v *T) ([]byte, error) {
	return binary.Append(dst, order, v)
}

// Decode reads a payload from data, which must be exactly the payload size.
func Decode[T fixedPayload](data []byte, v *T) error {
	if len(data) != binary.Size(v) {
		return fmt.Errorf("payload is %d bytes, want %d: %w", len(data), binary.Size(v), ErrInvalidParam)
	}
	_, err := binary.Decode(data, order, v)
	return err
}

// Validate checks listener count and weights.
func (m *Attributes3DMulti) Validate() error {
	if m.NumListeners < 1 || m.NumListeners > MaxListeners {
		return fmt.Errorf("listener count %d outside [1,%d]: %w", m.NumListeners, MaxListeners, ErrInvalidParam)
	}
	for i := 0; i < int(m.NumListeners); i++ {
		if w := m.Weight[i]; w < 0 || w > 1 || math.IsNaN(float64(w)) {
			return fmt.Errorf("listener %d weight %v outside [0,1]: %w", i, w, ErrInvalidParam)
		}
	}
	return nil
}

// FFT is a spectrum snapshot: one magnitude array per channel, each Length long.
type FFT struct {
	Length      int32
	NumChannels int32
	Spectrum    [][]float32
}

const fftHeaderSize = 8

// EncodedSize is the byte length of the FFT layout.
func (f *FFT) EncodedSize() int {
	return fftHeaderSize + int(f.Length)*int(f.NumChannels)*4
}

// AppendBinary writes length, channel count and the channel-major magnitudes.
func (f *FFT) AppendBinary(dst []byte) ([]byte, error) {
	if f.NumChannels < 0 || f.NumChannels > MaxChannelWidth || int(f.NumChannels) > len(f.Spectrum) {
		return dst, fmt.Errorf("fft channel count %d: %w", f.NumChannels, ErrInvalidParam)
	}
	dst = order.AppendUint32(dst, uint32(f.Length))
	dst = order.AppendUint32(dst, uint32(f.NumChannels))
	for ch := 0; ch < int(f.NumChannels); ch++ {
		bins := f.Spectrum[ch]
		if len(bins) < int(f.Length) {
			return dst, fmt.Errorf("fft channel %d has %d bins, want %d: %w", ch, len(bins), f.Length, ErrInvalidParam)
		}
		for _, v := range bins[:f.Length] {
			dst = order.AppendUint32(dst, math.Float32bits(v))
		}
	}
	return dst, nil
}

// UnmarshalBinary parses the layout written by AppendBinary.
func (f *FFT) UnmarshalBinary(data []byte) error {
	if len(data) < fftHeaderSize {
		return fmt.Errorf("fft payload too short: %w", ErrInvalidParam)
	}
	length := int32(order.Uint32(data[0:]))
	channels := int32(order.Uint32(data[4:]))
	if length < 0 || channels < 0 || channels > MaxChannelWidth {
		return fmt.Errorf("fft header length=%d channels=%d: %w", length, channels, ErrInvalidParam)
	}
	want := fftHeaderSize + int(length)*int(channels)*4
	if len(data) != want {
		return fmt.Errorf("fft payload is %d bytes, want %d: %w", len(data), want, ErrInvalidParam)
	}
	f.Length, f.NumChannels = length, channels
	f.Spectrum = make([][]float32, channels)
	off := fftHeaderSize
	for ch := range f.Spectrum {
		bins := make([]float32, length)
		for i := range bins {
			bins[i] = math.Float32frombits(order.Uint32(data[off:]))
			off += 4
		}
		f.Spectrum[ch] = bins
	}
	return nil
}
