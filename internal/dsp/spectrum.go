package dsp

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// SpectrumResult holds the positive-frequency half of a discrete Fourier
// transform: ascending frequencies in Hz and the matching magnitudes.
type SpectrumResult struct {
	Frequencies []float64
	Magnitudes  []float64
}

// Len returns the number of retained spectrum bins.
func (s *SpectrumResult) Len() int {
	return len(s.Frequencies)
}

// Spectrum computes the DFT of the signal and keeps the first floor(N/2)
// bins. Sample spacing is taken from the first interval of the time axis;
// a missing or degenerate time axis falls back to unit spacing. A signal of
// one sample or fewer yields an empty result.
func Spectrum(signal, times []float64) *SpectrumResult {
	n := len(signal)
	if n <= 1 {
		return &SpectrumResult{}
	}

	d := 1.0
	if len(times) >= 2 {
		if dt := times[1] - times[0]; dt != 0 {
			d = dt
		}
	}

	coeffs := fft.FFTReal(signal)

	half := n / 2
	result := SpectrumResult{
		Frequencies: make([]float64, half),
		Magnitudes:  make([]float64, half),
	}
	for i := 0; i < half; i++ {
		result.Frequencies[i] = float64(i) / (float64(n) * d)
		result.Magnitudes[i] = cmplx.Abs(coeffs[i])
	}
	return &result
}
