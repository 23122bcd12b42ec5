// Package analysis provides the spectral helpers behind spectrum metering:
// analysis windows, magnitude normalisation and peak picking over the
// half-spectrum of a real transform.
package analysis
