// Package siggen drives a two-channel arbitrary waveform generator over a
// serial line. Disabling the output is done by programming zero amplitude,
// matching how the bench procedure runs the instrument.
package siggen

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/akulov/labbench/internal/instrument/scpi"
)

// Shape selects the generator waveform shape.
type Shape string

const (
	ShapeSine   Shape = "SIN"
	ShapePulse  Shape = "PULSE"
	ShapeSquare Shape = "SQUARE"
)

// DefaultBaudRate is the serial line rate the generator ships with.
const DefaultBaudRate = 115200

const readTimeout = 2 * time.Second

// ParseShape normalizes a user-supplied shape name.
func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToUpper(strings.TrimSpace(s))) {
	case ShapeSine:
		return ShapeSine, nil
	case ShapePulse:
		return ShapePulse, nil
	case ShapeSquare:
		return ShapeSquare, nil
	default:
		return "", fmt.Errorf("unknown waveform shape %q", s)
	}
}

// scpiFunc maps a shape onto the instrument's APPLy function name.
func (s Shape) scpiFunc() string {
	switch s {
	case ShapePulse:
		return "PULS"
	case ShapeSquare:
		return "SQU"
	default:
		return "SIN"
	}
}

// WithLogger sets the logger for the generator driver.
func WithLogger(logger *slog.Logger) func(*Generator) {
	return func(g *Generator) {
		g.logger = logger.With(slog.String("instrument", "generator"))
	}
}

// Generator is the waveform generator driver.
type Generator struct {
	conn   *scpi.Conn
	port   serial.Port // nil when constructed over a plain transport
	logger *slog.Logger
}

// New creates a generator driver over an already-open transport.
func New(rw io.ReadWriter, options ...func(*Generator)) *Generator {
	g := Generator{
		conn:   scpi.NewConn(rw),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&g)
	}

	return &g
}

// Open opens the serial port and creates a generator driver on it.
func Open(portName string, baudRate int, options ...func(*Generator)) (*Generator, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", portName, err)
	}
	if err = port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("configuring serial port %s: %w", portName, err)
	}

	g := New(port, options...)
	g.port = port
	return g, nil
}

// Connected reports whether the instrument answers an identification query.
func (g *Generator) Connected() bool {
	idn, err := g.conn.Query("*IDN?")
	if err != nil || idn == "" {
		return false
	}

	g.logger.Debug("generator identified", slog.String("idn", idn))
	return true
}

// SetWaveform programs the shape, frequency, peak-to-peak amplitude, phase
// and DC offset of one output channel.
func (g *Generator) SetWaveform(shape Shape, freqHz, ampVpp, phaseDeg, offsetV float64, channel int) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	if err := g.conn.Command("SOUR%d:APPL:%s %g,%g,%g", channel, shape.scpiFunc(), freqHz, ampVpp, offsetV); err != nil {
		return err
	}
	return g.conn.Command("SOUR%d:PHAS %g", channel, phaseDeg)
}

// SetDutyCycle programs the duty cycle of one channel. The fraction is
// clamped to [0, 1] and sent to the instrument as a percentage.
func (g *Generator) SetDutyCycle(fraction float64, channel int) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	fraction = max(0, min(1, fraction))
	return g.conn.Command("SOUR%d:FUNC:SQU:DCYC %g", channel, fraction*100)
}

// SetAmplitude programs the peak-to-peak amplitude of one channel in volts.
// Zero volts acts as the channel's output-off.
func (g *Generator) SetAmplitude(volts float64, channel int) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	return g.conn.Command("SOUR%d:VOLT %g", channel, volts)
}

// Close releases the serial port when the driver owns one.
func (g *Generator) Close() error {
	if g.port == nil {
		return nil
	}
	return g.port.Close()
}

func validChannel(channel int) error {
	if channel != 1 && channel != 2 {
		return fmt.Errorf("invalid generator channel %d", channel)
	}
	return nil
}
