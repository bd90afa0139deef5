package acquire

// Calibration holds the scope scaling factors retrieved once per acquisition.
// They convert raw integer codes into physical units and may change between
// acquisitions if the instrument settings change.
type Calibration struct {
	XIncrement  float64 // seconds per sample
	XOrigin     float64 // time of the first sample in seconds
	YMultiplier float64 // volts per code step
	YOffset     float64 // code offset subtracted before scaling
	YZero       float64 // voltage added after scaling
}

// Waveform is a single calibrated acquisition: contiguous voltage samples
// with a monotonically increasing time axis of the same length.
type Waveform struct {
	Times []float64 // seconds
	Volts []float64 // volts
}

// Len returns the number of samples in the waveform.
func (w *Waveform) Len() int {
	return len(w.Volts)
}

// Convert applies the calibration to raw scope codes:
//
//	volts[i] = (raw[i] - YOffset) * YMultiplier + YZero
//	times[i] = i * XIncrement + XOrigin
func Convert(raw []int, cal Calibration) *Waveform {
	w := Waveform{
		Times: make([]float64, len(raw)),
		Volts: make([]float64, len(raw)),
	}
	for i, code := range raw {
		w.Volts[i] = (float64(code)-cal.YOffset)*cal.YMultiplier + cal.YZero
		w.Times[i] = float64(i)*cal.XIncrement + cal.XOrigin
	}
	return &w
}
