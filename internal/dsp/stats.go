package dsp

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics of the conditioned signal.
type Summary struct {
	Max    float64
	Min    float64
	Range  float64
	Mean   float64
	Std    float64 // population standard deviation
	Q1     float64
	Median float64
	Q3     float64
}

// StatItem is one named statistic, used for ordered serialization.
type StatItem struct {
	Key   string
	Value float64
}

// Items returns the statistics in their canonical artifact order.
func (s Summary) Items() []StatItem {
	return []StatItem{
		{"Max", s.Max},
		{"Min", s.Min},
		{"Range", s.Range},
		{"Mean", s.Mean},
		{"Std", s.Std},
		{"Q1", s.Q1},
		{"Median", s.Median},
		{"Q3", s.Q3},
	}
}

// Summarize computes summary statistics over the smoothed signal.
func Summarize(signal []float64) (Summary, error) {
	if len(signal) == 0 {
		return Summary{}, fmt.Errorf("summarizing: %w", ErrInsufficientData)
	}

	sorted := slices.Clone(signal)
	slices.Sort(sorted)

	s := Summary{
		Max:    floats.Max(signal),
		Min:    floats.Min(signal),
		Mean:   stat.Mean(signal, nil),
		Std:    stat.PopStdDev(signal, nil),
		Q1:     stat.Quantile(0.25, stat.LinInterp, sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.LinInterp, sorted, nil),
	}
	s.Range = s.Max - s.Min
	return s, nil
}
