// Package scpi implements the command/query half-duplex conversation SCPI
// instruments speak, over any byte transport.
package scpi

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TransportError wraps an instrument I/O failure with the command that
// triggered it. Instrument drivers return it for every read or write error
// so callers can tell transport faults from protocol or data errors.
type TransportError struct {
	Op  string // the command or query being performed
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("instrument i/o %q: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Conn implements the command/query half-duplex conversation SCPI
// instruments speak, over any byte transport. Replies are read up to a
// newline terminator.
type Conn struct {
	rw io.ReadWriter
	br *bufio.Reader
}

// NewConn wraps a byte transport into a SCPI conversation.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw, br: bufio.NewReader(rw)}
}

// Command formats according to the format specifier and sends the resulting
// SCPI command, terminated with a newline.
func (c *Conn) Command(format string, a ...any) error {
	cmd := format
	if len(a) > 0 {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = strings.TrimSpace(cmd)

	if _, err := fmt.Fprintf(c.rw, "%s\n", cmd); err != nil {
		return &TransportError{Op: cmd, Err: err}
	}
	return nil
}

// Query sends the given command and returns the instrument's reply with the
// terminator and surrounding whitespace removed.
func (c *Conn) Query(cmd string) (string, error) {
	if err := c.Command(cmd); err != nil {
		return "", err
	}

	s, err := c.br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", &TransportError{Op: cmd, Err: err}
	}
	return strings.TrimSpace(s), nil
}

// QueryFloat sends the given command and parses the reply as a float64.
func (c *Conn) QueryFloat(cmd string) (float64, error) {
	s, err := c.Query(cmd)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing reply to %q: %w", cmd, err)
	}
	return v, nil
}

// ReadBlock sends the given command and reads an IEEE 488.2 definite-length
// block reply: '#', one digit giving the length of the byte count, the byte
// count itself, then that many payload bytes. A trailing terminator, if
// present, is consumed.
func (c *Conn) ReadBlock(cmd string) ([]byte, error) {
	if err := c.Command(cmd); err != nil {
		return nil, err
	}

	head, err := c.br.ReadByte()
	if err != nil {
		return nil, &TransportError{Op: cmd, Err: err}
	}
	if head != '#' {
		return nil, fmt.Errorf("reply to %q: invalid block header %q", cmd, head)
	}

	nd, err := c.br.ReadByte()
	if err != nil {
		return nil, &TransportError{Op: cmd, Err: err}
	}
	if nd < '1' || nd > '9' {
		return nil, fmt.Errorf("reply to %q: invalid block digit count %q", cmd, nd)
	}

	digits := make([]byte, nd-'0')
	if _, err = io.ReadFull(c.br, digits); err != nil {
		return nil, &TransportError{Op: cmd, Err: err}
	}
	count, err := strconv.Atoi(string(digits))
	if err != nil {
		return nil, fmt.Errorf("reply to %q: invalid block length %q: %w", cmd, digits, err)
	}

	payload := make([]byte, count)
	if _, err = io.ReadFull(c.br, payload); err != nil {
		return nil, &TransportError{Op: cmd, Err: err}
	}

	// Consume the terminator following the block, when the instrument sends one.
	if b, err := c.br.ReadByte(); err == nil && b != '\n' {
		_ = c.br.UnreadByte()
	}

	return payload, nil
}
