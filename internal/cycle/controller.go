// Package cycle sequences one measurement cycle across the bench
// instruments: generator configuration, base and read captures with the
// output switch toggled between them, then normalization and persistence.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/akulov/labbench/internal/acquire"
	"github.com/akulov/labbench/internal/dsp"
	"github.com/akulov/labbench/internal/instrument/siggen"
)

// DefaultSettleDelay is the wait after a configuration or output change
// before the next capture is trusted.
const DefaultSettleDelay = 500 * time.Millisecond

var (
	// ErrNotReady is returned when a cycle is requested while preconditions
	// are unmet or another cycle is still running.
	ErrNotReady = errors.New("cycle not ready")

	// ErrConfigurationFailed is returned when the generator rejects its
	// programming.
	ErrConfigurationFailed = errors.New("generator configuration failed")
)

// State is the controller's position in the measurement cycle.
type State int

const (
	StateIdle State = iota
	StateConfiguringGenerator
	StateCapturingBase
	StateCapturingRead
	StateNormalizing
	StateDone
	StateError
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateConfiguringGenerator: "configuring-generator",
	StateCapturingBase:        "capturing-base",
	StateCapturingRead:        "capturing-read",
	StateNormalizing:          "normalizing",
	StateDone:                 "done",
	StateError:                "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// terminal reports whether a new cycle may start from this state.
func (s State) terminal() bool {
	return s == StateIdle || s == StateDone || s == StateError
}

// Capturer performs one blocking scope acquisition.
type Capturer interface {
	Capture(ctx context.Context) (*acquire.Waveform, error)
}

// Generator is the waveform generator surface the controller drives.
type Generator interface {
	SetWaveform(shape siggen.Shape, freqHz, ampVpp, phaseDeg, offsetV float64, channel int) error
	SetDutyCycle(fraction float64, channel int) error
	SetAmplitude(volts float64, channel int) error
	Connected() bool
}

// OutputSwitch toggles the source-measure unit output.
type OutputSwitch interface {
	SetOutput(on bool) error
}

// Persister stores the artifacts of a completed cycle. A persistence
// failure fails the cycle.
type Persister interface {
	Persist(ctx context.Context, o *Outcome) error
}

// SignalConfig is the generator programming applied to both output channels
// at the start of a cycle.
type SignalConfig struct {
	Shape        siggen.Shape
	FrequencyHz  float64
	AmplitudeVpp float64
	OffsetV      float64
	DutyCycle    float64 // fraction in [0, 1]
}

// Outcome carries the results of one completed cycle.
type Outcome struct {
	StartedAt time.Time
	Elapsed   time.Duration
	Signal    SignalConfig

	Base *acquire.Waveform
	Read *acquire.Waveform

	// Times matches Smoothed sample for sample: the read capture's time
	// axis cropped to the smoothed length.
	Times    []float64
	Smoothed []float64
	Stats    dsp.Summary
	Spectrum *dsp.SpectrumResult
}

// Result is the completion message posted by the background worker.
type Result struct {
	Outcome *Outcome // nil on failure
	Err     error
}

// WithOutputSwitch attaches the SMU output switch. Without one the
// controller logs the toggles and proceeds (degraded mode).
func WithOutputSwitch(sw OutputSwitch) func(*Controller) {
	return func(c *Controller) {
		c.smu = sw
	}
}

// WithAverager replaces the default averaging capture.
func WithAverager(a *acquire.Averager) func(*Controller) {
	return func(c *Controller) {
		c.averager = a
	}
}

// WithSettleDelay sets the wait after generator configuration and output
// toggles.
func WithSettleDelay(d time.Duration) func(*Controller) {
	return func(c *Controller) {
		c.settle = d
	}
}

// WithWindow sets the smoothing window applied to the normalized signal.
func WithWindow(w int) func(*Controller) {
	return func(c *Controller) {
		if w > 0 {
			c.window = w
		}
	}
}

// WithPersister attaches artifact persistence to the cycle.
func WithPersister(p Persister) func(*Controller) {
	return func(c *Controller) {
		c.persister = p
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller runs measurement cycles one at a time on a background worker.
// It owns the instrument handles for the duration of a cycle; the reference
// signal is read-only while a cycle runs and may be replaced only between
// cycles.
type Controller struct {
	scope     Capturer
	gen       Generator
	smu       OutputSwitch
	averager  *acquire.Averager
	persister Persister

	settle time.Duration
	window int
	logger *slog.Logger

	mu    sync.Mutex
	state State
	ref   *dsp.Reference
}

// New creates a controller over the given scope and generator.
func New(scope Capturer, gen Generator, options ...func(*Controller)) *Controller {
	c := Controller{
		scope:    scope,
		gen:      gen,
		averager: acquire.NewAverager(),
		settle:   DefaultSettleDelay,
		window:   dsp.DefaultWindow,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:    StateIdle,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetReference replaces the loaded reference signal. Rejected while a cycle
// is in flight.
func (c *Controller) SetReference(ref *dsp.Reference) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.terminal() {
		return fmt.Errorf("%w: cycle in state %s", ErrNotReady, c.state)
	}
	c.ref = ref
	return nil
}

// Start validates the preconditions and launches one measurement cycle on a
// background worker. The returned channel receives exactly one Result and
// is then closed. Re-entry while a cycle is running is rejected with
// ErrNotReady and does not disturb the in-flight cycle.
func (c *Controller) Start(ctx context.Context, sig SignalConfig) (<-chan Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.terminal() {
		return nil, fmt.Errorf("%w: cycle already running in state %s", ErrNotReady, c.state)
	}
	if c.scope == nil {
		return nil, fmt.Errorf("%w: no scope connected", ErrNotReady)
	}
	if c.gen == nil || !c.gen.Connected() {
		return nil, fmt.Errorf("%w: generator not connected", ErrNotReady)
	}
	if c.ref == nil || len(c.ref.Volts) == 0 {
		return nil, fmt.Errorf("%w: no reference signal loaded", ErrNotReady)
	}

	c.state = StateConfiguringGenerator

	results := make(chan Result, 1)
	go c.run(ctx, sig, results)

	return results, nil
}

// run executes one cycle and posts the completion message. It is the only
// writer of controller state while in flight.
func (c *Controller) run(ctx context.Context, sig SignalConfig, results chan<- Result) {
	defer close(results)

	outcome, err := c.runCycle(ctx, sig)
	if err != nil {
		c.logger.Error("measurement cycle failed", slog.String("error", err.Error()))
		c.setState(StateError)
		results <- Result{Err: err}
		return
	}

	c.logger.Info("measurement cycle complete",
		slog.Duration("elapsed", outcome.Elapsed),
		slog.Int("samples", len(outcome.Smoothed)),
		slog.Int("spectrumBins", outcome.Spectrum.Len()))

	c.setState(StateDone)
	results <- Result{Outcome: outcome}
}

func (c *Controller) runCycle(ctx context.Context, sig SignalConfig) (*Outcome, error) {
	started := time.Now()

	if err := c.configureGenerator(sig); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigurationFailed, err)
	}

	// BASE is measured with the output disabled.
	if err := c.setOutput(false); err != nil {
		return nil, err
	}
	c.settleDown()

	c.setState(StateCapturingBase)
	base, err := c.averager.Capture(ctx, c.scope.Capture)
	if err != nil {
		return nil, fmt.Errorf("capturing base: %w", err)
	}
	c.logger.Info("base captured", slog.Int("samples", base.Len()))

	read, readErr := c.captureRead(ctx)

	// The output must never stay on past this point, read failure or not.
	if err = c.setOutput(false); err != nil {
		c.logger.Warn("output-off cleanup failed", slog.String("error", err.Error()))
	}
	if readErr != nil {
		return nil, fmt.Errorf("capturing read: %w", readErr)
	}
	c.logger.Info("read captured", slog.Int("samples", read.Len()))

	c.setState(StateNormalizing)

	ref := c.reference()
	normalized, err := dsp.Normalize(base.Volts, read.Volts, ref.Volts)
	if err != nil {
		return nil, err
	}

	smoothed := dsp.Smooth(normalized, c.window)
	if len(smoothed) == len(normalized) && len(normalized) <= c.window {
		c.logger.Warn("capture shorter than smoothing window, statistics use the unsmoothed signal",
			slog.Int("samples", len(normalized)), slog.Int("window", c.window))
	}

	stats, err := dsp.Summarize(smoothed)
	if err != nil {
		return nil, err
	}

	times := read.Times[:len(smoothed)]
	spectrum := dsp.Spectrum(smoothed, times)

	outcome := Outcome{
		StartedAt: started,
		Elapsed:   time.Since(started),
		Signal:    sig,
		Base:      base,
		Read:      read,
		Times:     times,
		Smoothed:  smoothed,
		Stats:     stats,
		Spectrum:  spectrum,
	}

	if c.persister != nil {
		if err = c.persister.Persist(ctx, &outcome); err != nil {
			return nil, fmt.Errorf("persisting artifacts: %w", err)
		}
	}

	return &outcome, nil
}

// captureRead enables the output, waits for it to settle and runs the READ
// averaging capture.
func (c *Controller) captureRead(ctx context.Context) (*acquire.Waveform, error) {
	if err := c.setOutput(true); err != nil {
		return nil, err
	}
	c.settleDown()

	c.setState(StateCapturingRead)
	return c.averager.Capture(ctx, c.scope.Capture)
}

// configureGenerator programs both output channels identically: shape,
// duty cycle, and amplitude.
func (c *Controller) configureGenerator(sig SignalConfig) error {
	for channel := 1; channel <= 2; channel++ {
		if err := c.gen.SetWaveform(sig.Shape, sig.FrequencyHz, sig.AmplitudeVpp, 0, sig.OffsetV, channel); err != nil {
			return err
		}
		if err := c.gen.SetDutyCycle(sig.DutyCycle, channel); err != nil {
			return err
		}
		if err := c.gen.SetAmplitude(sig.AmplitudeVpp, channel); err != nil {
			return err
		}
	}

	c.logger.Info("generator configured",
		slog.String("shape", string(sig.Shape)),
		slog.Float64("frequencyHz", sig.FrequencyHz),
		slog.Float64("amplitudeVpp", sig.AmplitudeVpp),
		slog.Float64("dutyCycle", sig.DutyCycle))
	return nil
}

func (c *Controller) setOutput(on bool) error {
	if c.smu == nil {
		c.logger.Info("no output switch connected, proceeding", slog.Bool("on", on))
		return nil
	}
	return c.smu.SetOutput(on)
}

// settleDown blocks for the settling delay. One cycle runs at a time, so a
// plain sleep is all the scheduling this needs.
func (c *Controller) settleDown() {
	if c.settle > 0 {
		time.Sleep(c.settle)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) reference() *dsp.Reference {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ref
}
