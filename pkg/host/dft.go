package host

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/justyntemme/dspplug/pkg/abi"
)

const (
	minFFTSize = 2
	maxFFTSize = 1 << 16
)

func checkFFTSize(n int) error {
	if n < minFFTSize || n > maxFFTSize || bits.OnesCount(uint(n)) != 1 {
		return fmt.Errorf("fft size %d is not a power of two in [%d,%d]: %w",
			n, minFFTSize, maxFFTSize, abi.ErrInvalidParam)
	}
	return nil
}

// fftPlan holds a gonum transform with its working buffers.
type fftPlan struct {
	fft   *fourier.FFT
	seq   []float64
	coeff []complex128
	scale float64 // 1/size, gonum does not normalize the inverse
}

func newPlan(size int) *fftPlan {
	return &fftPlan{
		fft:   fourier.NewFFT(size),
		seq:   make([]float64, size),
		coeff: make([]complex128, size/2+1),
		scale: 1 / float64(size),
	}
}

// dft implements plugin.DFT with one cached plan per size.
type dft struct {
	mu    sync.Mutex
	plans map[int]*fftPlan
}

func newDFT(sizes []int) *dft {
	d := &dft{plans: make(map[int]*fftPlan)}
	for _, n := range sizes {
		d.plans[n] = newPlan(n)
	}
	return d
}

func (d *dft) plan(size int) (*fftPlan, error) {
	if err := checkFFTSize(size); err != nil {
		return nil, err
	}
	p, ok := d.plans[size]
	if !ok {
		p = newPlan(size)
		d.plans[size] = p
	}
	return p, nil
}

// Plan builds the plan for size ahead of its first transform.
func (d *dft) Plan(size int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.plan(size)
	return err
}

func checkStrided(name string, n, size, hop int) error {
	if hop < 1 {
		return fmt.Errorf("%s hop %d: %w", name, hop, abi.ErrInvalidParam)
	}
	if n < (size-1)*hop+1 {
		return fmt.Errorf("%s of %d samples too short for %d points at hop %d: %w",
			name, n, size, hop, abi.ErrInvalidParam)
	}
	return nil
}

func checkTransform(size int, dftLen int, window []float32) error {
	if dftLen < size/2+1 {
		return fmt.Errorf("dft holds %d bins, need %d: %w", dftLen, size/2+1, abi.ErrInvalidParam)
	}
	if window != nil && len(window) < size {
		return fmt.Errorf("window of %d samples for size %d: %w", len(window), size, abi.ErrInvalidParam)
	}
	return nil
}

// FFTReal transforms size samples of signal, read every hop samples.
func (d *dft) FFTReal(size int, signal []float32, out []complex64, window []float32, hop int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.plan(size)
	if err != nil {
		return err
	}
	if err := checkStrided("signal", len(signal), size, hop); err != nil {
		return err
	}
	if err := checkTransform(size, len(out), window); err != nil {
		return err
	}

	for i := range p.seq {
		s := float64(signal[i*hop])
		if window != nil {
			s *= float64(window[i])
		}
		p.seq[i] = s
	}
	p.coeff = p.fft.Coefficients(p.coeff, p.seq)
	for k, c := range p.coeff {
		out[k] = complex64(c)
	}
	return nil
}

// InverseFFTReal rebuilds size samples from size/2+1 bins and writes them
// every hop samples of signal, applying window when given.
func (d *dft) InverseFFTReal(size int, in []complex64, signal []float32, window []float32, hop int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.plan(size)
	if err != nil {
		return err
	}
	if err := checkStrided("signal", len(signal), size, hop); err != nil {
		return err
	}
	if err := checkTransform(size, len(in), window); err != nil {
		return err
	}

	for k := range p.coeff {
		p.coeff[k] = complex128(in[k])
	}
	p.seq = p.fft.Sequence(p.seq, p.coeff)
	f64.Scale(p.seq, p.seq, p.scale)
	for i, s := range p.seq {
		if window != nil {
			s *= float64(window[i])
		}
		signal[i*hop] = float32(s)
	}
	return nil
}
