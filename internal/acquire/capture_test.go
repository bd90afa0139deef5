package acquire

import (
	"context"
	"errors"
	"testing"
)

func TestAverager_Capture(t *testing.T) {
	calls := 0
	capture := func(ctx context.Context) (*Waveform, error) {
		calls++
		return &Waveform{
			Times: []float64{0, 1e-6, 2e-6},
			Volts: []float64{10, 20, 30},
		}, nil
	}

	a := NewAverager(WithPasses(10), WithReadDelay(0))
	avg, err := a.Capture(context.Background(), capture)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if calls != 10 {
		t.Errorf("Expected 10 acquisitions, got %d", calls)
	}
	if avg.Len() != 3 {
		t.Fatalf("Expected 3 samples, got %d", avg.Len())
	}

	expected := []float64{10, 20, 30}
	for i, v := range expected {
		if avg.Volts[i] != v {
			t.Errorf("Sample %d: expected %v V, got %v V", i, v, avg.Volts[i])
		}
	}
	if avg.Times[1] != 1e-6 {
		t.Errorf("Expected time axis from first acquisition, got %v", avg.Times[1])
	}
}

func TestAverager_AveragesAcrossPasses(t *testing.T) {
	passes := [][]float64{
		{1, 2},
		{3, 6},
	}
	calls := 0
	capture := func(ctx context.Context) (*Waveform, error) {
		volts := passes[calls]
		calls++
		return &Waveform{
			Times: []float64{0, 1},
			Volts: volts,
		}, nil
	}

	a := NewAverager(WithPasses(2), WithReadDelay(0))
	avg, err := a.Capture(context.Background(), capture)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if avg.Volts[0] != 2 || avg.Volts[1] != 4 {
		t.Errorf("Expected averaged volts [2 4], got %v", avg.Volts)
	}
}

func TestAverager_CropsToShortest(t *testing.T) {
	lengths := []int{5, 3, 4}
	calls := 0
	capture := func(ctx context.Context) (*Waveform, error) {
		n := lengths[calls]
		calls++

		w := Waveform{
			Times: make([]float64, n),
			Volts: make([]float64, n),
		}
		for i := 0; i < n; i++ {
			w.Times[i] = float64(i)
			w.Volts[i] = 1
		}
		return &w, nil
	}

	a := NewAverager(WithPasses(3), WithReadDelay(0))
	avg, err := a.Capture(context.Background(), capture)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if avg.Len() != 3 {
		t.Errorf("Expected crop to 3 samples, got %d", avg.Len())
	}
	for i, v := range avg.Volts {
		if v != 1 {
			t.Errorf("Sample %d: expected 1 V, got %v V", i, v)
		}
	}
}

func TestAverager_EmptyPassFails(t *testing.T) {
	capture := func(ctx context.Context) (*Waveform, error) {
		return &Waveform{}, nil
	}

	a := NewAverager(WithPasses(2), WithReadDelay(0))
	if _, err := a.Capture(context.Background(), capture); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("Expected ErrCaptureFailed, got %v", err)
	}
}

func TestAverager_PassErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	capture := func(ctx context.Context) (*Waveform, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return &Waveform{Times: []float64{0}, Volts: []float64{1}}, nil
	}

	a := NewAverager(WithPasses(5), WithReadDelay(0))
	if _, err := a.Capture(context.Background(), capture); !errors.Is(err, boom) {
		t.Fatalf("Expected pass error to propagate, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected abort after failing pass, got %d calls", calls)
	}
}

func TestAverager_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAverager(WithReadDelay(0))
	_, err := a.Capture(ctx, func(ctx context.Context) (*Waveform, error) {
		t.Fatal("capture must not run after cancellation")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestConvert(t *testing.T) {
	cal := Calibration{
		XIncrement:  2e-6,
		XOrigin:     1e-6,
		YMultiplier: 0.5,
		YOffset:     128,
		YZero:       1,
	}

	w := Convert([]int{128, 130, 126}, cal)
	if w.Len() != 3 {
		t.Fatalf("Expected 3 samples, got %d", w.Len())
	}

	expectedVolts := []float64{1, 2, 0}
	for i, v := range expectedVolts {
		if w.Volts[i] != v {
			t.Errorf("Sample %d: expected %v V, got %v V", i, v, w.Volts[i])
		}
	}

	expectedTimes := []float64{1e-6, 3e-6, 5e-6}
	for i, v := range expectedTimes {
		if w.Times[i] != v {
			t.Errorf("Sample %d: expected time %v, got %v", i, v, w.Times[i])
		}
	}
}
