package storage

import (
	"database/sql"
	"time"

	"github.com/akulov/labbench/internal/dsp"
)

// Session is one recorded measurement run.
type Session struct {
	ID        int64
	StartedAt time.Time
	Config    *string // JSON snapshot of the run configuration
}

// Cycle is the persisted record of one measurement cycle. Stats and artifact
// paths are nil for failed cycles.
type Cycle struct {
	ID        int64
	SessionID int64
	StartedAt time.Time
	Elapsed   time.Duration

	Shape        string
	FrequencyHz  float64
	AmplitudeVpp float64
	OffsetV      float64
	DutyCycle    float64

	State string
	Error *string

	CSVPath   *string
	ImagePath *string

	Stats *dsp.Summary
}

type cycleData struct {
	ID        int64
	SessionID int64
	StartedAt time.Time
	ElapsedMS int64

	Shape        string
	FrequencyHz  float64
	AmplitudeVpp float64
	OffsetV      float64
	DutyCycle    float64

	State string
	Error sql.NullString

	CSVPath   sql.NullString
	ImagePath sql.NullString

	StatMax    sql.NullFloat64
	StatMin    sql.NullFloat64
	StatRange  sql.NullFloat64
	StatMean   sql.NullFloat64
	StatStd    sql.NullFloat64
	StatQ1     sql.NullFloat64
	StatMedian sql.NullFloat64
	StatQ3     sql.NullFloat64
}
