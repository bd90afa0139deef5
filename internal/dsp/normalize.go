// Package dsp implements the post-processing pipeline applied to averaged
// scope captures: differential normalization against a reference signal,
// moving-average smoothing, summary statistics and a magnitude spectrum.
package dsp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

const (
	// normalizeGain scales the reference average in the denominator of the
	// normalization formula.
	normalizeGain = 0.0045

	// zeroRefEpsilon replaces the denominator when the reference average is
	// exactly zero. Carried over from the measurement procedure; note that a
	// very small but non-zero reference average still passes through and can
	// blow up the division.
	zeroRefEpsilon = 1e-9
)

// ErrInsufficientData is returned when a pipeline stage is given too little
// input to operate on.
var ErrInsufficientData = errors.New("insufficient data")

// Reference is a voltage sequence loaded from a previously saved artifact.
// It is read-only for the duration of one measurement cycle and replaced
// wholesale on reload.
type Reference struct {
	Volts []float64
}

// Avg returns the arithmetic mean of the reference samples, the REF_AVG
// scalar used by Normalize. Returns zero for an empty reference.
func (r *Reference) Avg() float64 {
	if len(r.Volts) == 0 {
		return 0
	}
	return stat.Mean(r.Volts, nil)
}

// Normalize combines the base (output disabled) and read (output enabled)
// captures with the reference:
//
//	out[i] = (read[i] - base[i] - refAvg) / (0.0045 * refAvg)
//
// All three inputs are truncated to their common minimum length first; no
// resampling is performed. refAvg is the mean of the truncated reference
// slice. A zero denominator falls back to a small epsilon instead of
// failing.
func Normalize(base, read, ref []float64) ([]float64, error) {
	n := min(len(base), len(read), len(ref))
	if n == 0 {
		return nil, fmt.Errorf("normalizing: %w", ErrInsufficientData)
	}

	refAvg := stat.Mean(ref[:n], nil)

	denom := normalizeGain * refAvg
	if denom == 0 {
		denom = zeroRefEpsilon
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = (read[i] - base[i] - refAvg) / denom
	}
	return out, nil
}
