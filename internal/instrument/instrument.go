// Package instrument provides the bench-instrument drivers and the session
// that owns their connections for the duration of a measurement run.
package instrument

import (
	"github.com/akulov/labbench/internal/instrument/scpi"
)

// TransportError wraps an instrument I/O failure with the command that
// triggered it. Instrument drivers return it for every read or write error
// so callers can tell transport faults from protocol or data errors.
type TransportError = scpi.TransportError
