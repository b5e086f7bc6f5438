package link

import (
	"errors"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// Port defines the subset of a serial port used by the protocol layer.
//
// go.bug.st/serial's serial.Port satisfies it; tests substitute an in-memory
// implementation. Read must return (0, nil) when the read timeout expires
// without data, as serial.Port does.
type Port interface {
	io.ReadWriteCloser
	// ResetInputBuffer discards bytes received but not yet read.
	ResetInputBuffer() error
	// ResetOutputBuffer discards bytes written but not yet transmitted.
	ResetOutputBuffer() error
	// SetReadTimeout bounds how long a single Read call blocks.
	SetReadTimeout(t time.Duration) error
}

// Opener opens the port at path with the given mode.
type Opener func(path string, mode *serial.Mode) (Port, error)

// SerialOpener opens a real serial port with go.bug.st/serial.
func SerialOpener(path string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// IsClosedError reports whether err means the port is no longer open, in which
// case the next Acquire must reopen it.
func IsClosedError(err error) bool {
	if err == nil {
		return false
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return true
	}

	return errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
