package debug

import (
	"fmt"
	"math"
)

// AudioAnalyzer provides utilities for analyzing audio buffers.
type AudioAnalyzer struct {
	clippingThreshold float32
	dcThreshold       float32
	silenceThreshold  float32
}

// NewAudioAnalyzer creates a new audio analyzer with default settings.
func NewAudioAnalyzer() *AudioAnalyzer {
	return &AudioAnalyzer{
		clippingThreshold: 0.99,
		dcThreshold:       0.01,
		silenceThreshold:  0.0001,
	}
}

// AnalysisResult contains the results of audio buffer analysis.
type AnalysisResult struct {
	Samples        int
	Peak           float32
	RMS            float32
	DC             float32
	Clipping       bool
	ClippedSamples int
	Silent         bool
	HasNaN         bool
	NaNCount       int
	ZeroCrossings  int
}

// Analyze measures every stride-th sample of buffer starting at offset.
// A stride of 1 analyzes a mono buffer; channel c of an interleaved buffer
// with n channels is Analyze(buf, c, n).
func (a *AudioAnalyzer) Analyze(buffer []float32, offset, stride int) AnalysisResult {
	result := AnalysisResult{}
	if stride < 1 {
		stride = 1
	}

	var sum, sumSquares float64
	var last float32
	first := true
	for i := offset; i < len(buffer); i += stride {
		sample := buffer[i]
		if math.IsNaN(float64(sample)) || math.IsInf(float64(sample), 0) {
			result.HasNaN = true
			result.NaNCount++
			continue
		}
		result.Samples++

		abs := float32(math.Abs(float64(sample)))
		result.Peak = max(result.Peak, abs)
		if abs >= a.clippingThreshold {
			result.Clipping = true
			result.ClippedSamples++
		}

		sum += float64(sample)
		sumSquares += float64(sample) * float64(sample)

		if !first && (last < 0) != (sample < 0) {
			result.ZeroCrossings++
		}
		last, first = sample, false
	}

	if result.Samples > 0 {
		result.RMS = float32(math.Sqrt(sumSquares / float64(result.Samples)))
		result.DC = float32(sum / float64(result.Samples))
	}
	result.Silent = result.RMS < a.silenceThreshold
	return result
}

// AnalyzeInterleaved analyzes each channel of an interleaved buffer.
func (a *AudioAnalyzer) AnalyzeInterleaved(buffer []float32, channels int) []AnalysisResult {
	out := make([]AnalysisResult, channels)
	for ch := range out {
		out[ch] = a.Analyze(buffer, ch, channels)
	}
	return out
}

// Issues lists the problems a result shows, labelled with name.
func (a *AudioAnalyzer) Issues(r AnalysisResult, name string) []string {
	var issues []string
	if r.HasNaN {
		issues = append(issues, fmt.Sprintf("%s: contains %d NaN or Inf values", name, r.NaNCount))
	}
	if r.Clipping {
		issues = append(issues, fmt.Sprintf("%s: clipping detected (%d samples)", name, r.ClippedSamples))
	}
	if math.Abs(float64(r.DC)) > float64(a.dcThreshold) {
		issues = append(issues, fmt.Sprintf("%s: DC offset detected (%.3f)", name, r.DC))
	}
	if r.Peak > 1.0 {
		issues = append(issues, fmt.Sprintf("%s: peak exceeds 1.0 (%.3f)", name, r.Peak))
	}
	return issues
}

// HasNonFinite reports whether any sample is NaN or infinite. It does not
// allocate and is cheap enough to guard processing output.
func HasNonFinite(buffer []float32) bool {
	for _, s := range buffer {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return true
		}
	}
	return false
}
