package storage

import (
	"database/sql"
	"time"

	"github.com/akulov/labbench/internal/dsp"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toCycleData(sessionID int64, c *Cycle) *cycleData {
	data := cycleData{
		SessionID: sessionID,
		StartedAt: c.StartedAt.UTC(),
		ElapsedMS: c.Elapsed.Milliseconds(),

		Shape:        c.Shape,
		FrequencyHz:  c.FrequencyHz,
		AmplitudeVpp: c.AmplitudeVpp,
		OffsetV:      c.OffsetV,
		DutyCycle:    c.DutyCycle,

		State:     c.State,
		Error:     toNullString(c.Error),
		CSVPath:   toNullString(c.CSVPath),
		ImagePath: toNullString(c.ImagePath),
	}

	if c.Stats != nil {
		data.StatMax = sql.NullFloat64{Float64: c.Stats.Max, Valid: true}
		data.StatMin = sql.NullFloat64{Float64: c.Stats.Min, Valid: true}
		data.StatRange = sql.NullFloat64{Float64: c.Stats.Range, Valid: true}
		data.StatMean = sql.NullFloat64{Float64: c.Stats.Mean, Valid: true}
		data.StatStd = sql.NullFloat64{Float64: c.Stats.Std, Valid: true}
		data.StatQ1 = sql.NullFloat64{Float64: c.Stats.Q1, Valid: true}
		data.StatMedian = sql.NullFloat64{Float64: c.Stats.Median, Valid: true}
		data.StatQ3 = sql.NullFloat64{Float64: c.Stats.Q3, Valid: true}
	}

	return &data
}

func fromCycleData(data *cycleData) *Cycle {
	c := Cycle{
		ID:        data.ID,
		SessionID: data.SessionID,
		StartedAt: data.StartedAt,
		Elapsed:   time.Duration(data.ElapsedMS) * time.Millisecond,

		Shape:        data.Shape,
		FrequencyHz:  data.FrequencyHz,
		AmplitudeVpp: data.AmplitudeVpp,
		OffsetV:      data.OffsetV,
		DutyCycle:    data.DutyCycle,

		State: data.State,
		Error: fromNullString(data.Error),

		CSVPath:   fromNullString(data.CSVPath),
		ImagePath: fromNullString(data.ImagePath),
	}

	if data.StatMax.Valid {
		c.Stats = &dsp.Summary{
			Max:    data.StatMax.Float64,
			Min:    data.StatMin.Float64,
			Range:  data.StatRange.Float64,
			Mean:   data.StatMean.Float64,
			Std:    data.StatStd.Float64,
			Q1:     data.StatQ1.Float64,
			Median: data.StatMedian.Float64,
			Q3:     data.StatQ3.Float64,
		}
	}

	return &c
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(row scanner, data *cycleData) error {
	return row.Scan(
		&data.ID,
		&data.SessionID,
		&data.StartedAt,
		&data.ElapsedMS,
		&data.Shape,
		&data.FrequencyHz,
		&data.AmplitudeVpp,
		&data.OffsetV,
		&data.DutyCycle,
		&data.State,
		&data.Error,
		&data.CSVPath,
		&data.ImagePath,
		&data.StatMax,
		&data.StatMin,
		&data.StatRange,
		&data.StatMean,
		&data.StatStd,
		&data.StatQ1,
		&data.StatMedian,
		&data.StatQ3,
	)
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
