package instrument

import (
	"io"

	"github.com/akulov/labbench/internal/instrument/scpi"
)

// Conn implements the command/query half-duplex conversation SCPI
// instruments speak, over any byte transport. Replies are read up to a
// newline terminator.
type Conn = scpi.Conn

// NewConn wraps a byte transport into a SCPI conversation.
func NewConn(rw io.ReadWriter) *Conn {
	return scpi.NewConn(rw)
}
