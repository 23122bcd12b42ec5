package analysis

import "math"

// Magnitudes fills dst, which holds size entries, with the amplitude
// spectrum of a size-point real transform. bins holds the size/2+1
// non-negative frequency bins; the upper half of dst mirrors the lower
// so entry k always sits at k*sampleRate/size. windowSum normalises a
// full-scale sinusoid to 1.
func Magnitudes(dst []float32, bins []complex64, size int, windowSum float32) {
	half := size / 2
	norm := 1.0 / float64(max(windowSum, 1e-12))
	for k := 0; k <= half && k < len(bins); k++ {
		c := bins[k]
		m := math.Hypot(float64(real(c)), float64(imag(c))) * norm
		if k != 0 && k != half {
			m *= 2
		}
		dst[k] = float32(m)
	}
	for k := half + 1; k < size; k++ {
		dst[k] = dst[size-k]
	}
}

// PeakBin returns the position of the strongest bin in mags[1:size/2],
// refined between neighbours by parabolic interpolation, and its level.
// DC is ignored. The position is 0 when every bin is silent.
func PeakBin(mags []float32, size int) (bin float64, level float32) {
	half := min(size/2, len(mags)-1)
	best := 0
	for k := 1; k < half; k++ {
		if mags[k] > level {
			best, level = k, mags[k]
		}
	}
	if best == 0 {
		return 0, 0
	}
	a, b, c := float64(mags[best-1]), float64(level), float64(mags[best+1])
	if d := a - 2*b + c; d != 0 {
		return float64(best) + 0.5*(a-c)/d, level
	}
	return float64(best), level
}

// BinFrequency converts a bin position to Hz.
func BinFrequency(bin float64, size int, sampleRate float64) float64 {
	if size == 0 {
		return 0
	}
	return bin * sampleRate / float64(size)
}
