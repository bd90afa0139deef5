// Package smu controls a Keithley-style source-measure unit used purely as
// an output switch during measurement cycles.
package smu

import (
	"io"
	"log/slog"

	"github.com/akulov/labbench/internal/instrument/scpi"
)

// WithLogger sets the logger for the switch driver.
func WithLogger(logger *slog.Logger) func(*Switch) {
	return func(s *Switch) {
		s.logger = logger.With(slog.String("instrument", "smu"))
	}
}

// Switch toggles the source-measure unit output.
type Switch struct {
	conn   *scpi.Conn
	logger *slog.Logger
}

// New creates a switch driver over the given transport.
func New(rw io.ReadWriter, options ...func(*Switch)) *Switch {
	s := Switch{
		conn:   scpi.NewConn(rw),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Identify queries the instrument identification string.
func (s *Switch) Identify() (string, error) {
	return s.conn.Query("*IDN?")
}

// SetOutput commands the instrument output on or off.
func (s *Switch) SetOutput(on bool) error {
	cmd := ":OUTP OFF"
	if on {
		cmd = ":OUTP ON"
	}

	if err := s.conn.Command(cmd); err != nil {
		return err
	}

	s.logger.Debug("output toggled", slog.Bool("on", on))
	return nil
}
