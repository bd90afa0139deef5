package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultPasses is the number of rapid acquisitions averaged per capture.
	DefaultPasses = 10

	// DefaultReadDelay is the pause between rapid reads, letting instrument
	// state settle before the next acquisition.
	DefaultReadDelay = 30 * time.Millisecond
)

// ErrCaptureFailed is returned when an acquisition pass yields no data.
var ErrCaptureFailed = errors.New("capture produced no data")

// CaptureFunc performs one blocking scope acquisition.
type CaptureFunc func(ctx context.Context) (*Waveform, error)

// WithPasses sets the number of acquisitions to average. Values below one
// are ignored.
func WithPasses(n int) func(*Averager) {
	return func(a *Averager) {
		if n >= 1 {
			a.passes = n
		}
	}
}

// WithReadDelay sets the delay inserted between consecutive acquisitions.
func WithReadDelay(d time.Duration) func(*Averager) {
	return func(a *Averager) {
		a.readDelay = d
	}
}

// WithLogger sets the logger for the averager.
func WithLogger(logger *slog.Logger) func(*Averager) {
	return func(a *Averager) {
		a.logger = logger
	}
}

// Averager repeats scope acquisitions and reduces them to one representative
// waveform by pointwise averaging.
type Averager struct {
	passes    int
	readDelay time.Duration
	logger    *slog.Logger
}

// NewAverager creates an Averager with a discard logger and default pass
// count and read delay.
func NewAverager(options ...func(*Averager)) *Averager {
	a := Averager{
		passes:    DefaultPasses,
		readDelay: DefaultReadDelay,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Capture performs the configured number of sequential acquisitions and
// averages them. All captured waveforms are cropped to the minimum observed
// length before the pointwise mean is taken; the returned time axis is the
// first acquisition's, cropped the same way. The whole operation aborts with
// ErrCaptureFailed as soon as a single pass yields no data.
func (a *Averager) Capture(ctx context.Context, capture CaptureFunc) (*Waveform, error) {
	waveforms := make([]*Waveform, 0, a.passes)

	for i := 0; i < a.passes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w, err := capture(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquisition %d of %d: %w", i+1, a.passes, err)
		}
		if w == nil || w.Len() == 0 {
			return nil, fmt.Errorf("acquisition %d of %d: %w", i+1, a.passes, ErrCaptureFailed)
		}

		waveforms = append(waveforms, w)

		if i < a.passes-1 && a.readDelay > 0 {
			time.Sleep(a.readDelay)
		}
	}

	minLen := waveforms[0].Len()
	varied := false
	for _, w := range waveforms[1:] {
		if w.Len() != minLen {
			varied = true
		}
		if w.Len() < minLen {
			minLen = w.Len()
		}
	}
	if varied {
		// Length drift between rapid reads indicates acquisition instability.
		a.logger.Warn("captured lengths varied, cropping", slog.Int("samples", minLen))
	}

	avg := Waveform{
		Times: append([]float64(nil), waveforms[0].Times[:minLen]...),
		Volts: make([]float64, minLen),
	}
	for _, w := range waveforms {
		for i, v := range w.Volts[:minLen] {
			avg.Volts[i] += v
		}
	}
	for i := range avg.Volts {
		avg.Volts[i] /= float64(len(waveforms))
	}

	return &avg, nil
}
