// Package storage persists measurement sessions, cycles and their sampled
// curves in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// PointKind discriminates the two sampled curves stored per cycle.
type PointKind string

const (
	PointSignal   PointKind = "signal"   // smoothed normalized signal over time
	PointSpectrum PointKind = "spectrum" // magnitude spectrum over frequency
)

// pointBatchSize keeps a batch insert under SQLite's bound-parameter limit.
const pointBatchSize = 150

// Store handles database operations. Writes and reads go through separate
// connections; both are opened lazily on first use.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store backed by the SQLite database at dbPath. The schema is
// initialized on the first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateSession records the start of a measurement run. The config may be a
// string, raw bytes, or any JSON-marshalable value.
func (s *Store) CreateSession(ctx context.Context, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

// StoreCycle records one measurement cycle, completed or failed.
func (s *Store) StoreCycle(ctx context.Context, sessionID int64, c *Cycle) (cycleID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertCycleSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	data := toCycleData(sessionID, c)

	result, err := stmt.ExecContext(
		ctx,
		data.SessionID,
		data.StartedAt,
		data.ElapsedMS,
		data.Shape,
		data.FrequencyHz,
		data.AmplitudeVpp,
		data.OffsetV,
		data.DutyCycle,
		data.State,
		data.Error,
		data.CSVPath,
		data.ImagePath,
		data.StatMax,
		data.StatMin,
		data.StatRange,
		data.StatMean,
		data.StatStd,
		data.StatQ1,
		data.StatMedian,
		data.StatQ3,
	)
	if err != nil {
		err = fmt.Errorf("inserting cycle: %w", err)
		return
	}

	cycleID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting cycle ID: %w", err)
	}
	return
}

// StorePoints batch-inserts one sampled curve of a cycle. The xs and ys
// slices must have equal length.
func (s *Store) StorePoints(ctx context.Context, cycleID int64, kind PointKind, xs, ys []float64) (err error) {
	if len(xs) != len(ys) {
		return fmt.Errorf("mismatched point slices: %d x, %d y", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for start := 0; start < len(xs); start += pointBatchSize {
		end := min(start+pointBatchSize, len(xs))

		values := make([]any, 0, (end-start)*5)

		var sb strings.Builder
		sb.WriteString(insertPointsSQL)

		for i := start; i < end; i++ {
			values = append(values, cycleID, string(kind), i, xs[i], ys[i])

			if i > start {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?)")
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting points: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Session returns one session by ID.
func (s *Store) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&sess.ID, &sess.StartedAt, &config); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}
	if config.Valid {
		sess.Config = &config.String
	}

	return &sess, nil
}

// Sessions returns all recorded sessions in insertion order.
func (s *Store) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartedAt, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	err = rows.Err()
	return
}

// Cycle returns one cycle by ID.
func (s *Store) Cycle(ctx context.Context, id int64) (cycle *Cycle, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectCycleSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data cycleData
	if err = scanCycle(stmt.QueryRowContext(ctx, id), &data); err != nil {
		err = fmt.Errorf("scanning cycle: %w", err)
		return
	}

	return fromCycleData(&data), nil
}

// Cycles returns all cycles of a session in insertion order.
func (s *Store) Cycles(ctx context.Context, sessionID int64) (cycles []*Cycle, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectCyclesSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying cycles: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data cycleData
		if err = scanCycle(rows, &data); err != nil {
			err = fmt.Errorf("scanning cycle: %w", err)
			return
		}
		cycles = append(cycles, fromCycleData(&data))
	}
	err = rows.Err()
	return
}

// Points returns one sampled curve of a cycle, ordered by sample index.
func (s *Store) Points(ctx context.Context, cycleID int64, kind PointKind) (xs, ys []float64, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectPointsSQL, cycleID, string(kind))
	if err != nil {
		err = fmt.Errorf("querying points: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var x, y float64
		if err = rows.Scan(&x, &y); err != nil {
			err = fmt.Errorf("scanning point: %w", err)
			return
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	err = rows.Err()
	return
}

// Close closes both connections. Indexes are created on close so bulk
// inserts during the run stay fast.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
