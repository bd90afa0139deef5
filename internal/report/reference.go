package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/akulov/labbench/internal/dsp"
)

// LoadReference reads a reference voltage sequence from a previously saved
// CSV. The voltage column is picked from the file's width: wide processed
// exports keep it in the fifth column, raw waveform saves in the second,
// and bare single-column dumps in the first. Header rows and other
// non-numeric rows are skipped.
func LoadReference(path string) (*dsp.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference: %w", err)
	}
	defer f.Close()

	ref, err := ReadReference(f)
	if err != nil {
		return nil, fmt.Errorf("reading reference %s: %w", path, err)
	}
	return ref, nil
}

// ReadReference parses reference samples from CSV content. See
// LoadReference for the column heuristics.
func ReadReference(r io.Reader) (*dsp.Reference, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	column := -1
	var volts []float64

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}

		if column < 0 {
			switch {
			case len(record) >= 5:
				column = 4
			case len(record) >= 2:
				column = 1
			default:
				column = 0
			}
		}
		if column >= len(record) {
			continue
		}

		v, err := strconv.ParseFloat(record[column], 64)
		if err != nil {
			continue // header or annotation row
		}
		volts = append(volts, v)
	}

	if len(volts) == 0 {
		return nil, fmt.Errorf("no numeric samples found: %w", dsp.ErrInsufficientData)
	}
	return &dsp.Reference{Volts: volts}, nil
}
