package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/akulov/labbench/internal/dsp"
)

func TestReadReference_ProcessedExport(t *testing.T) {
	// Five or more columns: the reference lives in the fifth
	content := strings.Join([]string{
		"Time,Processed_Signal,Frequency,FFT_Magnitude,Reference",
		"0,0.1,0,3,1.5",
		"1e-6,0.2,1000,0.5,2.5",
	}, "\n")

	ref, err := ReadReference(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ReadReference failed: %v", err)
	}
	if len(ref.Volts) != 2 || ref.Volts[0] != 1.5 || ref.Volts[1] != 2.5 {
		t.Errorf("Expected volts [1.5 2.5], got %v", ref.Volts)
	}
}

func TestReadReference_WaveformSave(t *testing.T) {
	content := strings.Join([]string{
		"Time (s),Voltage (V)",
		"0,0.5",
		"1e-6,0.7",
		"2e-6,0.9",
	}, "\n")

	ref, err := ReadReference(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ReadReference failed: %v", err)
	}
	if len(ref.Volts) != 3 || ref.Volts[2] != 0.9 {
		t.Errorf("Expected second-column volts, got %v", ref.Volts)
	}
}

func TestReadReference_SingleColumn(t *testing.T) {
	ref, err := ReadReference(strings.NewReader("1\n2\n3\n"))
	if err != nil {
		t.Fatalf("ReadReference failed: %v", err)
	}
	if avg := ref.Avg(); avg != 2 {
		t.Errorf("Expected average 2, got %v", avg)
	}
}

func TestReadReference_NoNumericData(t *testing.T) {
	_, err := ReadReference(strings.NewReader("Time (s),Voltage (V)\n"))
	if !errors.Is(err, dsp.ErrInsufficientData) {
		t.Fatalf("Expected ErrInsufficientData, got %v", err)
	}
}
