package telemetry

import (
	"fmt"

	"github.com/arloliu/go-instrument/device"
)

var (
	// ErrNoFrame indicates that no complete frame arrived within the read attempts.
	ErrNoFrame = fmt.Errorf("telemetry: no complete frame: %w", device.ErrTimeout)

	// ErrMalformedFrame indicates a frame whose payload could not be decoded.
	ErrMalformedFrame = fmt.Errorf("telemetry: malformed frame: %w", device.ErrProtocol)
)
