package dsp

// DefaultWindow is the moving-average window applied to normalized signals.
const DefaultWindow = 256

// Smooth applies a valid-mode moving average of the given window: only
// positions fully covered by the window produce output, so the result has
// len(signal)-window+1 samples. Signals no longer than the window are
// returned verbatim, which is the documented degradation for short captures.
func Smooth(signal []float64, window int) []float64 {
	if window <= 1 || len(signal) <= window {
		return signal
	}

	out := make([]float64, len(signal)-window+1)

	var sum float64
	for _, v := range signal[:window] {
		sum += v
	}
	out[0] = sum / float64(window)

	for i := window; i < len(signal); i++ {
		sum += signal[i] - signal[i-window]
		out[i-window+1] = sum / float64(window)
	}
	return out
}
