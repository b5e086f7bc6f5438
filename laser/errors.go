package laser

import (
	"fmt"

	"github.com/arloliu/go-instrument/device"
)

var (
	// ErrNotReady is returned by Fire when the status is not StatusReady.
	ErrNotReady = fmt.Errorf("laser: not ready to fire: %w", device.ErrSafetyViolation)

	// ErrOverTemperature is returned by Fire when a temperature exceeds MaxSafeTemperature.
	ErrOverTemperature = fmt.Errorf("laser: temperature above limit: %w", device.ErrSafetyViolation)

	// ErrInterlockUnverified is returned by Fire when the temperatures could not be read.
	ErrInterlockUnverified = fmt.Errorf("laser: interlock could not be verified: %w", device.ErrSafetyViolation)

	// ErrBadValue indicates a response field that is not a valid number.
	ErrBadValue = fmt.Errorf("laser: malformed value: %w", device.ErrProtocol)

	// ErrModeNotApplied is returned by SetMode when the laser did not report
	// ready after the last attempt.
	ErrModeNotApplied = fmt.Errorf("laser: mode not applied: %w", device.ErrProtocol)
)
