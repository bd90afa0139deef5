package app

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/akulov/labbench/internal/acquire"
	"github.com/akulov/labbench/internal/cycle"
	"github.com/akulov/labbench/internal/report"
	"github.com/akulov/labbench/internal/storage"
)

// persister stores the artifacts of a finished cycle: the processed CSV, the
// rendered chart, and the database rows carrying statistics and curves.
type persister struct {
	store         *storage.Store
	sessionID     int64
	renderer      *report.ChartRenderer
	dataDir       string
	saveWaveforms bool
	logger        *slog.Logger
}

func newPersister(store *storage.Store, sessionID int64, renderer *report.ChartRenderer, dataDir string, saveWaveforms bool, logger *slog.Logger) *persister {
	return &persister{
		store:         store,
		sessionID:     sessionID,
		renderer:      renderer,
		dataDir:       dataDir,
		saveWaveforms: saveWaveforms,
		logger:        logger,
	}
}

func (p *persister) Persist(ctx context.Context, o *cycle.Outcome) error {
	artifact := report.Artifact{
		Stats:       o.Stats,
		Times:       o.Times,
		Signal:      o.Smoothed,
		Frequencies: o.Spectrum.Frequencies,
		Magnitudes:  o.Spectrum.Magnitudes,
	}

	base := filepath.Join(p.dataDir, report.ArtifactBasename(o.StartedAt))

	csvPath := base + ".csv"
	if err := p.writeCSV(csvPath, &artifact); err != nil {
		return fmt.Errorf("writing processed CSV: %w", err)
	}

	imagePath := base + ".png"
	if err := p.writeChart(imagePath, &artifact); err != nil {
		return fmt.Errorf("writing chart: %w", err)
	}

	if p.saveWaveforms {
		if err := p.writeWaveform("base", o.Base, o.Signal, o.StartedAt); err != nil {
			return fmt.Errorf("writing base waveform: %w", err)
		}
		if err := p.writeWaveform("read", o.Read, o.Signal, o.StartedAt); err != nil {
			return fmt.Errorf("writing read waveform: %w", err)
		}
	}

	record := storage.Cycle{
		StartedAt:    o.StartedAt,
		Elapsed:      o.Elapsed,
		Shape:        string(o.Signal.Shape),
		FrequencyHz:  o.Signal.FrequencyHz,
		AmplitudeVpp: o.Signal.AmplitudeVpp,
		OffsetV:      o.Signal.OffsetV,
		DutyCycle:    o.Signal.DutyCycle,
		State:        "done",
		CSVPath:      &csvPath,
		ImagePath:    &imagePath,
		Stats:        &o.Stats,
	}

	cycleID, err := p.store.StoreCycle(ctx, p.sessionID, &record)
	if err != nil {
		return fmt.Errorf("storing cycle: %w", err)
	}

	if err = p.store.StorePoints(ctx, cycleID, storage.PointSignal, o.Times, o.Smoothed); err != nil {
		return fmt.Errorf("storing signal points: %w", err)
	}
	if err = p.store.StorePoints(ctx, cycleID, storage.PointSpectrum, o.Spectrum.Frequencies, o.Spectrum.Magnitudes); err != nil {
		return fmt.Errorf("storing spectrum points: %w", err)
	}

	p.logger.Info("artifacts stored",
		slog.Int64("cycle", cycleID),
		slog.String("csv", csvPath),
		slog.String("image", imagePath))
	return nil
}

// recordFailure writes a cycle row for a failed run so the session history
// stays complete. Best effort; storage errors are logged only.
func (p *persister) recordFailure(config *Config, cycleErr error) {
	msg := cycleErr.Error()
	record := storage.Cycle{
		StartedAt:    time.Now(),
		Shape:        config.Signal.Shape,
		FrequencyHz:  config.Signal.FrequencyHz,
		AmplitudeVpp: config.Signal.AmplitudeVpp,
		OffsetV:      config.Signal.OffsetV,
		DutyCycle:    config.Signal.DutyCycle,
		State:        "error",
		Error:        &msg,
	}

	if _, err := p.store.StoreCycle(context.Background(), p.sessionID, &record); err != nil {
		p.logger.Warn("recording failed cycle", slog.String("error", err.Error()))
	}
}

func (p *persister) writeCSV(path string, artifact *report.Artifact) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithError(f, &err)

	return report.WriteCSV(f, artifact)
}

func (p *persister) writeChart(path string, artifact *report.Artifact) (err error) {
	img, err := p.renderer.Render(artifact)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithError(f, &err)

	return png.Encode(f, img)
}

func (p *persister) writeWaveform(phase string, wf *acquire.Waveform, sig cycle.SignalConfig, ts time.Time) (err error) {
	name := report.WaveformFilename(phase, sig.FrequencyHz, sig.OffsetV, ts)
	f, err := os.Create(filepath.Join(p.dataDir, name))
	if err != nil {
		return err
	}
	defer closeWithError(f, &err)

	return report.WriteWaveformCSV(f, wf)
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
