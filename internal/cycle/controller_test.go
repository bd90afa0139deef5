package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/akulov/labbench/internal/acquire"
	"github.com/akulov/labbench/internal/dsp"
	"github.com/akulov/labbench/internal/instrument/siggen"
)

type fakeScope struct {
	mu        sync.Mutex
	calls     int
	volts     [][]float64
	block     chan struct{} // when set, Capture waits on it
	failAfter int           // fail captures past this call count, 0 disables
	failErr   error
}

func (f *fakeScope) Capture(ctx context.Context) (*acquire.Waveform, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, f.failErr
	}

	volts := f.volts[min(f.calls, len(f.volts)-1)]
	f.calls++

	w := acquire.Waveform{
		Times: make([]float64, len(volts)),
		Volts: append([]float64(nil), volts...),
	}
	for i := range w.Times {
		w.Times[i] = float64(i)
	}
	return &w, nil
}

type fakeGenerator struct {
	connected bool
	waveforms int
	failErr   error
}

func (f *fakeGenerator) SetWaveform(shape siggen.Shape, freqHz, ampVpp, phaseDeg, offsetV float64, channel int) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.waveforms++
	return nil
}

func (f *fakeGenerator) SetDutyCycle(fraction float64, channel int) error { return f.failErr }
func (f *fakeGenerator) SetAmplitude(volts float64, channel int) error    { return f.failErr }
func (f *fakeGenerator) Connected() bool                                  { return f.connected }

type fakeSwitch struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeSwitch) SetOutput(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, on)
	return nil
}

func (f *fakeSwitch) log() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.calls...)
}

type fakePersister struct {
	outcome *Outcome
	failErr error
}

func (f *fakePersister) Persist(ctx context.Context, o *Outcome) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.outcome = o
	return nil
}

func newTestController(scope *fakeScope, gen *fakeGenerator, options ...func(*Controller)) *Controller {
	base := []func(*Controller){
		WithAverager(acquire.NewAverager(acquire.WithPasses(1), acquire.WithReadDelay(0))),
		WithSettleDelay(0),
		WithWindow(1),
	}
	return New(scope, gen, append(base, options...)...)
}

func TestController_HappyPath(t *testing.T) {
	scope := &fakeScope{volts: [][]float64{
		{0, 0, 0, 0}, // base
		{1, 1, 1, 1}, // read
	}}
	gen := &fakeGenerator{connected: true}
	sw := &fakeSwitch{}
	p := &fakePersister{}

	c := newTestController(scope, gen, WithOutputSwitch(sw), WithPersister(p))
	if err := c.SetReference(&dsp.Reference{Volts: []float64{1, 1, 1, 1}}); err != nil {
		t.Fatalf("SetReference failed: %v", err)
	}

	results, err := c.Start(context.Background(), SignalConfig{Shape: siggen.ShapePulse, FrequencyHz: 1000})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result := <-results
	if result.Err != nil {
		t.Fatalf("Cycle failed: %v", result.Err)
	}
	if c.State() != StateDone {
		t.Errorf("Expected state done, got %s", c.State())
	}

	// (read - base - refAvg) cancels to zero with a unit reference
	for i, v := range result.Outcome.Smoothed {
		if v != 0 {
			t.Errorf("Sample %d: expected 0, got %v", i, v)
		}
	}
	if len(result.Outcome.Times) != len(result.Outcome.Smoothed) {
		t.Errorf("Time axis and signal diverge: %d vs %d", len(result.Outcome.Times), len(result.Outcome.Smoothed))
	}
	if result.Outcome.Spectrum.Len() != 2 {
		t.Errorf("Expected 2 spectrum bins for 4 samples, got %d", result.Outcome.Spectrum.Len())
	}

	// Output off for base, on for read, off again before processing
	expected := []bool{false, true, false}
	calls := sw.log()
	if len(calls) != len(expected) {
		t.Fatalf("Expected %d output toggles, got %v", len(expected), calls)
	}
	for i, on := range expected {
		if calls[i] != on {
			t.Errorf("Toggle %d: expected %v, got %v", i, on, calls[i])
		}
	}

	if gen.waveforms != 2 {
		t.Errorf("Expected both channels programmed, got %d", gen.waveforms)
	}
	if p.outcome == nil {
		t.Error("Expected persisted outcome")
	}

	// A finished controller accepts the next cycle
	if _, err = c.Start(context.Background(), SignalConfig{Shape: siggen.ShapePulse}); err != nil {
		t.Errorf("Expected restart from done state, got %v", err)
	}
}

func TestController_ReentryRejected(t *testing.T) {
	block := make(chan struct{})
	scope := &fakeScope{
		volts: [][]float64{{0, 0}, {1, 1}},
		block: block,
	}
	gen := &fakeGenerator{connected: true}

	c := newTestController(scope, gen)
	if err := c.SetReference(&dsp.Reference{Volts: []float64{1, 1}}); err != nil {
		t.Fatalf("SetReference failed: %v", err)
	}

	results, err := c.Start(context.Background(), SignalConfig{Shape: siggen.ShapeSine})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err = c.Start(context.Background(), SignalConfig{Shape: siggen.ShapeSine}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected ErrNotReady on re-entry, got %v", err)
	}
	if err = c.SetReference(&dsp.Reference{Volts: []float64{2}}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected ErrNotReady replacing reference mid-cycle, got %v", err)
	}

	// The in-flight cycle is undisturbed and completes
	close(block)
	result := <-results
	if result.Err != nil {
		t.Fatalf("In-flight cycle failed after rejected re-entry: %v", result.Err)
	}
}

func TestController_NotReadyWithoutReference(t *testing.T) {
	scope := &fakeScope{volts: [][]float64{{0}}}
	gen := &fakeGenerator{connected: true}

	c := newTestController(scope, gen)
	if _, err := c.Start(context.Background(), SignalConfig{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected ErrNotReady without reference, got %v", err)
	}
}

func TestController_NotReadyGeneratorDisconnected(t *testing.T) {
	scope := &fakeScope{volts: [][]float64{{0}}}
	gen := &fakeGenerator{connected: false}

	c := newTestController(scope, gen)
	if err := c.SetReference(&dsp.Reference{Volts: []float64{1}}); err != nil {
		t.Fatalf("SetReference failed: %v", err)
	}
	if _, err := c.Start(context.Background(), SignalConfig{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected ErrNotReady with disconnected generator, got %v", err)
	}
}

func TestController_ConfigurationFailure(t *testing.T) {
	scope := &fakeScope{volts: [][]float64{{0}}}
	gen := &fakeGenerator{connected: true, failErr: errors.New("syntax error")}
	sw := &fakeSwitch{}

	c := newTestController(scope, gen, WithOutputSwitch(sw))
	if err := c.SetReference(&dsp.Reference{Volts: []float64{1}}); err != nil {
		t.Fatalf("SetReference failed: %v", err)
	}

	results, err := c.Start(context.Background(), SignalConfig{Shape: siggen.ShapeSine})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result := <-results
	if !errors.Is(result.Err, ErrConfigurationFailed) {
		t.Fatalf("Expected ErrConfigurationFailed, got %v", result.Err)
	}
	if c.State() != StateError {
		t.Errorf("Expected state error, got %s", c.State())
	}
}

func TestController_OutputOffAfterPersistFailure(t *testing.T) {
	scope := &fakeScope{volts: [][]float64{
		{0, 0, 0},
		{1, 1, 1},
	}}
	gen := &fakeGenerator{connected: true}
	sw := &fakeSwitch{}
	p := &fakePersister{failErr: errors.New("disk full")}

	c := newTestController(scope, gen, WithOutputSwitch(sw), WithPersister(p))
	if err := c.SetReference(&dsp.Reference{Volts: []float64{1, 1, 1}}); err != nil {
		t.Fatalf("SetReference failed: %v", err)
	}

	results, err := c.Start(context.Background(), SignalConfig{Shape: siggen.ShapePulse})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result := <-results
	if result.Err == nil {
		t.Fatal("Expected cycle failure from persistence error")
	}
	if c.State() != StateError {
		t.Errorf("Expected state error, got %s", c.State())
	}

	calls := sw.log()
	if len(calls) == 0 || calls[len(calls)-1] {
		t.Errorf("Expected the final output toggle to be off, got %v", calls)
	}
}

func TestController_ReadFailureStillDisablesOutput(t *testing.T) {
	// The base capture succeeds, the read capture fails.
	scope := &fakeScope{
		volts:     [][]float64{{0, 0}},
		failAfter: 1,
		failErr:   errors.New("acquisition timeout"),
	}
	gen := &fakeGenerator{connected: true}
	sw := &fakeSwitch{}

	c := newTestController(scope, gen, WithOutputSwitch(sw))
	if err := c.SetReference(&dsp.Reference{Volts: []float64{1, 1}}); err != nil {
		t.Fatalf("SetReference failed: %v", err)
	}

	results, err := c.Start(context.Background(), SignalConfig{Shape: siggen.ShapeSine})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result := <-results
	if result.Err == nil {
		t.Fatal("Expected cycle failure from read capture")
	}
	if c.State() != StateError {
		t.Errorf("Expected state error, got %s", c.State())
	}

	expected := []bool{false, true, false}
	calls := sw.log()
	if len(calls) != len(expected) {
		t.Fatalf("Expected %d output toggles, got %v", len(expected), calls)
	}
	if calls[len(calls)-1] {
		t.Errorf("Expected the final output toggle to be off, got %v", calls)
	}
}

func TestState_String(t *testing.T) {
	if StateCapturingBase.String() != "capturing-base" {
		t.Errorf("Unexpected state name %s", StateCapturingBase)
	}
	if State(42).String() != "state(42)" {
		t.Errorf("Unexpected fallback name %s", State(42))
	}
}
