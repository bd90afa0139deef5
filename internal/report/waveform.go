package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/akulov/labbench/internal/acquire"
)

const timestampLayout = "20060102_150405"

// WriteWaveformCSV saves a raw averaged waveform in the two-column layout
// reference signals are loaded back from.
func WriteWaveformCSV(w io.Writer, wf *acquire.Waveform) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Time (s)", "Voltage (V)"}); err != nil {
		return err
	}
	for i := range wf.Volts {
		if err := cw.Write([]string{formatFloat(wf.Times[i]), formatFloat(wf.Volts[i])}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WaveformFilename names a raw waveform save after its capture phase,
// generator settings and timestamp.
func WaveformFilename(phase string, freqHz, offsetV float64, ts time.Time) string {
	return fmt.Sprintf("%s_%dHz_%gV_avg_%s.csv", phase, int(freqHz), offsetV, ts.Format(timestampLayout))
}

// ArtifactBasename names the processed CSV/image pair for one cycle.
func ArtifactBasename(ts time.Time) string {
	return "processed_" + ts.Format(timestampLayout)
}
