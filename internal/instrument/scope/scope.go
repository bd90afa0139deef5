// Package scope drives a Tektronix DPO-series oscilloscope over a SCPI
// transport. The driver is read-only: it selects a data source, configures
// the transfer format and pulls calibrated waveforms, but never changes the
// acquisition settings on the instrument.
package scope

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/akulov/labbench/internal/acquire"
	"github.com/akulov/labbench/internal/instrument/scpi"
)

const (
	// DefaultSource is the scope channel read when none is configured.
	DefaultSource = "MATH"

	// DefaultWidth is the transfer width in bytes per sample.
	DefaultWidth = 1

	// DefaultEncoding is the transfer encoding (positive binary).
	DefaultEncoding = "RPB"
)

// WithSource sets the scope channel to read (CH1..CH4 or MATH).
func WithSource(source string) func(*Scope) {
	return func(s *Scope) {
		s.source = source
	}
}

// WithLogger sets the logger for the scope driver.
func WithLogger(logger *slog.Logger) func(*Scope) {
	return func(s *Scope) {
		s.logger = logger.With(slog.String("instrument", "scope"))
	}
}

// Scope is the oscilloscope driver.
type Scope struct {
	conn   *scpi.Conn
	source string
	width  int
	logger *slog.Logger
}

// New creates a scope driver over the given transport.
func New(rw io.ReadWriter, options ...func(*Scope)) *Scope {
	s := Scope{
		conn:   scpi.NewConn(rw),
		source: DefaultSource,
		width:  DefaultWidth,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Identify queries the instrument identification string.
func (s *Scope) Identify() (string, error) {
	return s.conn.Query("*IDN?")
}

// SetSource selects the channel to transfer waveform data from.
func (s *Scope) SetSource(channel string) error {
	if err := s.conn.Command("DATA:SOURCE %s", channel); err != nil {
		return err
	}
	s.source = channel
	return nil
}

// SetDataFormat configures the transfer width in bytes and the binary
// encoding for subsequent curve reads.
func (s *Scope) SetDataFormat(width int, encoding string) error {
	if width != 1 && width != 2 {
		return fmt.Errorf("unsupported data width %d", width)
	}
	if err := s.conn.Command("DATA:WIDTH %d", width); err != nil {
		return err
	}
	if err := s.conn.Command("DATA:ENC %s", encoding); err != nil {
		return err
	}
	s.width = width
	return nil
}

// QueryCalibration retrieves the five scaling factors of the current
// waveform preamble.
func (s *Scope) QueryCalibration() (acquire.Calibration, error) {
	var cal acquire.Calibration
	var err error

	if cal.XIncrement, err = s.conn.QueryFloat("WFMPRE:XINCR?"); err != nil {
		return cal, err
	}
	if cal.XOrigin, err = s.conn.QueryFloat("WFMPRE:XZERO?"); err != nil {
		return cal, err
	}
	if cal.YMultiplier, err = s.conn.QueryFloat("WFMPRE:YMULT?"); err != nil {
		return cal, err
	}
	if cal.YOffset, err = s.conn.QueryFloat("WFMPRE:YOFF?"); err != nil {
		return cal, err
	}
	if cal.YZero, err = s.conn.QueryFloat("WFMPRE:YZERO?"); err != nil {
		return cal, err
	}

	return cal, nil
}

// ReadRawSamples transfers one curve from the instrument and returns the
// raw codes. Blocking; the transport's deadline bounds the wait.
func (s *Scope) ReadRawSamples() ([]int, error) {
	payload, err := s.conn.ReadBlock("CURVE?")
	if err != nil {
		return nil, err
	}

	switch s.width {
	case 1:
		raw := make([]int, len(payload))
		for i, b := range payload {
			raw[i] = int(b)
		}
		return raw, nil

	case 2:
		if len(payload)%2 != 0 {
			return nil, fmt.Errorf("curve payload of %d bytes is not two-byte aligned", len(payload))
		}
		raw := make([]int, len(payload)/2)
		for i := range raw {
			raw[i] = int(payload[2*i])<<8 | int(payload[2*i+1])
		}
		return raw, nil

	default:
		return nil, fmt.Errorf("unsupported data width %d", s.width)
	}
}

// Capture performs one full acquisition: (re)selects the source and
// transfer format, retrieves the calibration and converts the raw codes
// into a calibrated waveform. The format is reasserted on every capture
// because front-panel interaction can change it between reads.
func (s *Scope) Capture(ctx context.Context) (*acquire.Waveform, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.SetSource(s.source); err != nil {
		return nil, err
	}
	if err := s.SetDataFormat(s.width, DefaultEncoding); err != nil {
		return nil, err
	}

	cal, err := s.QueryCalibration()
	if err != nil {
		return nil, err
	}

	raw, err := s.ReadRawSamples()
	if err != nil {
		return nil, err
	}

	s.logger.Debug("acquired waveform", slog.String("source", s.source), slog.Int("samples", len(raw)))
	return acquire.Convert(raw, cal), nil
}
