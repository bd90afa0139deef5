// Package report produces and reads back the artifacts of a measurement
// cycle: the processed CSV, the raw averaged-waveform CSVs, the reference
// signal loader and the rendered two-panel chart.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/akulov/labbench/internal/dsp"
)

// Artifact is the persisted view of one processed cycle: the smoothed
// normalized signal over time and its magnitude spectrum, plus summary
// statistics.
type Artifact struct {
	Stats       dsp.Summary
	Times       []float64
	Signal      []float64
	Frequencies []float64
	Magnitudes  []float64
}

const dataHeader = "Time,Processed_Signal,Frequency,FFT_Magnitude"

// WriteCSV writes the artifact in its canonical layout: a Statistics block
// of key,value lines, a blank separator, a Data marker, the fixed header
// row, then one row per index up to the longer of the two column pairs.
// Rows past the end of the shorter pair carry empty fields; this ragged
// layout is what downstream consumers parse.
func WriteCSV(w io.Writer, a *Artifact) error {
	if _, err := fmt.Fprintln(w, "Statistics"); err != nil {
		return err
	}
	for _, item := range a.Stats.Items() {
		if _, err := fmt.Fprintf(w, "%s,%s\n", item.Key, formatFloat(item.Value)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\nData\n%s\n", dataHeader); err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	rows := max(len(a.Times), len(a.Frequencies))
	record := make([]string, 4)
	for i := 0; i < rows; i++ {
		record[0], record[1], record[2], record[3] = "", "", "", ""
		if i < len(a.Times) {
			record[0] = formatFloat(a.Times[i])
		}
		if i < len(a.Signal) {
			record[1] = formatFloat(a.Signal[i])
		}
		if i < len(a.Frequencies) {
			record[2] = formatFloat(a.Frequencies[i])
		}
		if i < len(a.Magnitudes) {
			record[3] = formatFloat(a.Magnitudes[i])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses an artifact written by WriteCSV. Empty fields in the
// ragged data rows are skipped, restoring the original column lengths.
func ReadCSV(r io.Reader) (*Artifact, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var a Artifact
	inStats := false
	inData := false

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading artifact: %w", err)
		}
		if len(record) == 0 {
			continue
		}

		switch record[0] {
		case "Statistics":
			inStats, inData = true, false
			continue
		case "Data":
			inStats = false
			continue
		case "Time":
			inStats, inData = false, true
			continue
		}

		switch {
		case inStats && len(record) >= 2:
			v, err := strconv.ParseFloat(record[1], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing statistic %s: %w", record[0], err)
			}
			setStat(&a.Stats, record[0], v)

		case inData && len(record) >= 4:
			if err := appendField(&a.Times, record[0]); err != nil {
				return nil, err
			}
			if err := appendField(&a.Signal, record[1]); err != nil {
				return nil, err
			}
			if err := appendField(&a.Frequencies, record[2]); err != nil {
				return nil, err
			}
			if err := appendField(&a.Magnitudes, record[3]); err != nil {
				return nil, err
			}
		}
	}

	return &a, nil
}

func setStat(s *dsp.Summary, key string, v float64) {
	switch key {
	case "Max":
		s.Max = v
	case "Min":
		s.Min = v
	case "Range":
		s.Range = v
	case "Mean":
		s.Mean = v
	case "Std":
		s.Std = v
	case "Q1":
		s.Q1 = v
	case "Median":
		s.Median = v
	case "Q3":
		s.Q3 = v
	}
}

func appendField(dst *[]float64, field string) error {
	if field == "" {
		return nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return fmt.Errorf("parsing data field %q: %w", field, err)
	}
	*dst = append(*dst, v)
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
