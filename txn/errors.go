package txn

import (
	"fmt"

	"github.com/arloliu/go-instrument/device"
)

var (
	// ErrMismatch indicates that a response did not match the expected grammar.
	ErrMismatch = fmt.Errorf("txn: response mismatch: %w", device.ErrProtocol)

	// ErrNoResponse indicates that the device sent nothing in time.
	ErrNoResponse = fmt.Errorf("txn: no response: %w", device.ErrTimeout)

	// ErrMarkerTimeout indicates that none of the awaited markers arrived in time.
	ErrMarkerTimeout = fmt.Errorf("txn: marker not received: %w", device.ErrTimeout)
)
