package instrument

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"go.uber.org/multierr"

	"github.com/akulov/labbench/internal/instrument/scope"
	"github.com/akulov/labbench/internal/instrument/siggen"
	"github.com/akulov/labbench/internal/instrument/smu"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 10 * time.Second
)

// Config names the instrument endpoints of one bench setup. The SMU address
// is optional; when it is empty or unreachable the session runs without an
// output switch.
type Config struct {
	ScopeAddr     string        // TCP address of the scope's socket server
	ScopeSource   string        // channel to read, defaults to MATH
	ScopeTimeout  time.Duration // per-operation I/O deadline
	GeneratorPort string        // serial port of the waveform generator
	GeneratorBaud int
	SMUAddr       string // TCP address of the SMU, optional
}

// WithSessionLogger sets the logger for the session and its drivers.
func WithSessionLogger(logger *slog.Logger) func(*Session) {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session owns the instrument handles for the duration of a measurement
// run. Handles are connected once, used exclusively by the cycle controller,
// and torn down together.
type Session struct {
	Scope     *scope.Scope
	Generator *siggen.Generator
	SMU       *smu.Switch // nil in degraded mode

	closers []io.Closer
	logger  *slog.Logger
}

// Connect dials all configured instruments. The scope and the generator are
// required; a missing or failing SMU is logged and the session proceeds
// without it.
func Connect(cfg Config, options ...func(*Session)) (*Session, error) {
	s := Session{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	timeout := cfg.ScopeTimeout
	if timeout <= 0 {
		timeout = defaultIOTimeout
	}

	scopeConn, err := dial(cfg.ScopeAddr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting scope: %w", err)
	}
	s.closers = append(s.closers, scopeConn)

	var scopeOpts []func(*scope.Scope)
	if cfg.ScopeSource != "" {
		scopeOpts = append(scopeOpts, scope.WithSource(cfg.ScopeSource))
	}
	scopeOpts = append(scopeOpts, scope.WithLogger(s.logger))
	s.Scope = scope.New(scopeConn, scopeOpts...)

	idn, err := s.Scope.Identify()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("identifying scope: %w", err)
	}
	s.logger.Info("scope connected", slog.String("idn", idn))

	gen, err := siggen.Open(cfg.GeneratorPort, cfg.GeneratorBaud, siggen.WithLogger(s.logger))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connecting generator: %w", err)
	}
	s.closers = append(s.closers, gen)
	if !gen.Connected() {
		_ = s.Close()
		return nil, fmt.Errorf("generator not responding on %s", cfg.GeneratorPort)
	}
	s.Generator = gen
	s.logger.Info("generator connected", slog.String("port", cfg.GeneratorPort))

	if cfg.SMUAddr == "" {
		s.logger.Warn("no SMU address configured, proceeding without output switch")
		return &s, nil
	}

	smuConn, err := dial(cfg.SMUAddr, timeout)
	if err != nil {
		// Degraded mode: the cycle runs, the output toggles become no-ops.
		s.logger.Warn("SMU connection failed, proceeding without output switch", slog.String("error", err.Error()))
		return &s, nil
	}
	s.closers = append(s.closers, smuConn)

	s.SMU = smu.New(smuConn, smu.WithLogger(s.logger))
	if idn, err = s.SMU.Identify(); err != nil {
		s.logger.Warn("SMU not responding, proceeding without output switch", slog.String("error", err.Error()))
		s.SMU = nil
		return &s, nil
	}
	s.logger.Info("SMU connected", slog.String("idn", idn))

	return &s, nil
}

// Close tears down every connection the session opened. Safe to call after
// a partial connect.
func (s *Session) Close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c.Close())
	}
	s.closers = nil
	return err
}

func dial(addr string, timeout time.Duration) (*deadlineConn, error) {
	conn, err := net.DialTimeout("tcp", addr, defaultDialTimeout)
	if err != nil {
		return nil, err
	}
	return &deadlineConn{Conn: conn, timeout: timeout}, nil
}

// deadlineConn arms a fresh deadline before every read and write so a hung
// instrument surfaces as a timeout error instead of blocking forever.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
