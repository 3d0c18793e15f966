package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp. go-dsp handles arbitrary lengths (Bluestein for
// non powers of two), so callers never need to pad for correctness.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// RealMagnitude returns |X[k]| for k in [0, n/2], the one-sided spectrum
// of a real signal of length n
func (f *FFT) RealMagnitude(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	spectrum := fft.FFTReal(x)
	bins := len(x)/2 + 1
	magnitude := make([]float64, bins)
	for k := range bins {
		magnitude[k] = cmplx.Abs(spectrum[k])
	}
	return magnitude
}

// Autocorrelation returns r[k] = sum_n x[n]*x[n+k] for k in [0, len(x)),
// the non-negative half of the full linear autocorrelation. It is computed
// through the power spectrum of the signal zero padded to a power of two
// no shorter than 2*len(x)-1, which avoids circular wrap-around.
func (f *FFT) Autocorrelation(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return []float64{}
	}

	size := 1
	for size < 2*n-1 {
		size <<= 1
	}

	padded := make([]complex128, size)
	for i, v := range x {
		padded[i] = complex(v, 0)
	}

	spectrum := fft.FFT(padded)
	for i, c := range spectrum {
		spectrum[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}

	inverse := fft.IFFT(spectrum)
	corr := make([]float64, n)
	for k := range n {
		corr[k] = real(inverse[k])
	}
	return corr
}
