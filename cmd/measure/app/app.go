package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/akulov/labbench/internal/acquire"
	"github.com/akulov/labbench/internal/cycle"
	"github.com/akulov/labbench/internal/instrument"
	"github.com/akulov/labbench/internal/instrument/siggen"
	"github.com/akulov/labbench/internal/report"
	"github.com/akulov/labbench/internal/storage"
)

const storageDir = "data"

// Run connects the bench, executes one measurement cycle and records its
// artifacts. The cycle is abandoned when the context is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	dataDir, store, err := createStorage(&config.Output)
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	defer store.Close()

	sessionID, err := store.CreateSession(ctx, config)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	ref, err := report.LoadReference(config.Reference.File)
	if err != nil {
		return fmt.Errorf("loading reference: %w", err)
	}
	logger.Info("reference loaded",
		slog.String("file", config.Reference.File),
		slog.Int("samples", len(ref.Volts)),
		slog.Float64("average", ref.Avg()))

	session, err := instrument.Connect(instrument.Config{
		ScopeAddr:     config.Instruments.ScopeAddr,
		ScopeSource:   config.Instruments.ScopeSource,
		ScopeTimeout:  config.Instruments.ScopeTimeout.Std(),
		GeneratorPort: config.Instruments.GeneratorPort,
		GeneratorBaud: config.Instruments.GeneratorBaud,
		SMUAddr:       config.Instruments.SMUAddr,
	}, instrument.WithSessionLogger(logger))
	if err != nil {
		return fmt.Errorf("connecting instruments: %w", err)
	}
	defer session.Close()

	renderer, err := report.NewChartRenderer(report.RenderConfig{})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}
	defer renderer.Close()

	p := newPersister(store, sessionID, renderer, dataDir, config.Output.SaveWaveforms, logger)

	opts := append([]func(*cycle.Controller){
		cycle.WithLogger(logger),
		cycle.WithPersister(p),
	}, controllerOptions(config, session)...)
	controller := cycle.New(session.Scope, session.Generator, opts...)

	if err = controller.SetReference(ref); err != nil {
		return fmt.Errorf("setting reference: %w", err)
	}

	shape, err := siggen.ParseShape(config.Signal.Shape)
	if err != nil {
		return err
	}

	results, err := controller.Start(ctx, cycle.SignalConfig{
		Shape:        shape,
		FrequencyHz:  config.Signal.FrequencyHz,
		AmplitudeVpp: config.Signal.AmplitudeVpp,
		OffsetV:      config.Signal.OffsetV,
		DutyCycle:    config.Signal.DutyCycle,
	})
	if err != nil {
		return fmt.Errorf("starting cycle: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()

	case result := <-results:
		if result.Err != nil {
			p.recordFailure(config, result.Err)
			return fmt.Errorf("measurement cycle: %w", result.Err)
		}

		logger.Info("measurement recorded",
			slog.Int64("session", sessionID),
			slog.Duration("elapsed", result.Outcome.Elapsed))
		return nil
	}
}

func controllerOptions(config *Config, session *instrument.Session) []func(*cycle.Controller) {
	var opts []func(*cycle.Controller)

	if session.SMU != nil {
		opts = append(opts, cycle.WithOutputSwitch(session.SMU))
	}

	var avgOpts []func(*acquire.Averager)
	if config.Capture.Passes > 0 {
		avgOpts = append(avgOpts, acquire.WithPasses(config.Capture.Passes))
	}
	if config.Capture.ReadDelay > 0 {
		avgOpts = append(avgOpts, acquire.WithReadDelay(config.Capture.ReadDelay.Std()))
	}
	if len(avgOpts) > 0 {
		opts = append(opts, cycle.WithAverager(acquire.NewAverager(avgOpts...)))
	}

	if config.Capture.SettleDelay > 0 {
		opts = append(opts, cycle.WithSettleDelay(config.Capture.SettleDelay.Std()))
	}
	if config.Capture.Window > 0 {
		opts = append(opts, cycle.WithWindow(config.Capture.Window))
	}

	return opts
}

func createStorage(config *OutputConfig) (string, *storage.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("getting current working directory: %w", err)
	}

	dataDir := filepath.Join(wd, storageDir)
	if config.DataDirectory != "" {
		dataDir = config.DataDirectory
		if !filepath.IsAbs(dataDir) {
			dataDir = filepath.Join(wd, dataDir)
		}
	}

	stat, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("storage directory '%s' does not exist: %w", dataDir, err)
		}
		return "", nil, err
	}
	if !stat.IsDir() {
		return "", nil, fmt.Errorf("invalid storage directory '%s'", dataDir)
	}

	dbPath := filepath.Join(dataDir, fmt.Sprintf("labbench_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return dataDir, storage.New(dbPath), nil
}
