package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/akulov/labbench/internal/report"
	"github.com/akulov/labbench/internal/storage"
)

// Run re-renders the chart of one recorded cycle from the database.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.New(config.DBPath)
	defer store.Close()

	return renderCycle(ctx, store, config, logger)
}

func renderCycle(ctx context.Context, store *storage.Store, config *Config, logger *slog.Logger) error {
	cycle, err := store.Cycle(ctx, config.CycleID)
	if err != nil {
		return fmt.Errorf("reading cycle: %w", err)
	}
	if cycle.State != "done" || cycle.Stats == nil {
		return fmt.Errorf("cycle %d did not complete, nothing to render", cycle.ID)
	}

	times, signal, err := store.Points(ctx, cycle.ID, storage.PointSignal)
	if err != nil {
		return fmt.Errorf("reading signal points: %w", err)
	}
	freqs, mags, err := store.Points(ctx, cycle.ID, storage.PointSpectrum)
	if err != nil {
		return fmt.Errorf("reading spectrum points: %w", err)
	}
	if len(signal) == 0 {
		return fmt.Errorf("cycle %d has no stored signal points", cycle.ID)
	}

	logger.Info("cycle loaded",
		slog.Int64("cycle", cycle.ID),
		slog.String("shape", cycle.Shape),
		slog.Float64("frequencyHz", cycle.FrequencyHz),
		slog.Int("signalPoints", len(signal)),
		slog.Int("spectrumPoints", len(mags)))

	title := config.Title
	if title == "" {
		title = fmt.Sprintf("Processed Signal (%s %.0f Hz)", cycle.Shape, cycle.FrequencyHz)
	}

	renderer, err := report.NewChartRenderer(report.RenderConfig{Title: title})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}
	defer renderer.Close()

	img, err := renderer.Render(&report.Artifact{
		Stats:       *cycle.Stats,
		Times:       times,
		Signal:      signal,
		Frequencies: freqs,
		Magnitudes:  mags,
	})
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	logger.Info("rendering chart",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
		))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
