package dsp

import (
	"math"
	"testing"
)

func TestSpectrum_BinCountAndSpacing(t *testing.T) {
	signal := make([]float64, 8)
	times := make([]float64, 8)
	for i := range times {
		times[i] = float64(i) * 0.5
	}

	result := Spectrum(signal, times)
	if result.Len() != 4 {
		t.Fatalf("Expected floor(8/2)=4 bins, got %d", result.Len())
	}

	// Bin spacing is 1/(N*d) with d taken from the first interval
	for i, f := range result.Frequencies {
		expected := float64(i) / (8 * 0.5)
		if math.Abs(f-expected) > 1e-12 {
			t.Errorf("Bin %d: expected %v Hz, got %v Hz", i, expected, f)
		}
	}
}

func TestSpectrum_ConstantSignal(t *testing.T) {
	signal := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	times := []float64{0, 1, 2, 3, 4, 5, 6, 7}

	result := Spectrum(signal, times)
	if result.Len() != 4 {
		t.Fatalf("Expected 4 bins, got %d", result.Len())
	}

	// All energy sits in the DC bin
	if math.Abs(result.Magnitudes[0]-8) > 1e-9 {
		t.Errorf("Expected DC magnitude 8, got %v", result.Magnitudes[0])
	}
	for i, m := range result.Magnitudes[1:] {
		if m > 1e-9 {
			t.Errorf("Bin %d: expected ~0 magnitude, got %v", i+1, m)
		}
	}
}

func TestSpectrum_TooShort(t *testing.T) {
	if result := Spectrum([]float64{1}, []float64{0}); result.Len() != 0 {
		t.Errorf("Expected empty spectrum for a single sample, got %d bins", result.Len())
	}
	if result := Spectrum(nil, nil); result.Len() != 0 {
		t.Errorf("Expected empty spectrum for no samples, got %d bins", result.Len())
	}
}

func TestSpectrum_MissingTimeAxis(t *testing.T) {
	signal := []float64{0, 1, 0, -1}

	result := Spectrum(signal, nil)
	if result.Len() != 2 {
		t.Fatalf("Expected 2 bins, got %d", result.Len())
	}

	// Unit spacing fallback: bin spacing is 1/N
	if math.Abs(result.Frequencies[1]-0.25) > 1e-12 {
		t.Errorf("Expected bin spacing 0.25 Hz, got %v", result.Frequencies[1])
	}
}
