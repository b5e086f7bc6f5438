package power

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-instrument/device"
)

var (
	// ErrPromptTimeout indicates that the prompt did not appear in time.
	ErrPromptTimeout = fmt.Errorf("power: prompt not received: %w", device.ErrTimeout)

	// ErrConfirmTimeout indicates that neither the confirmation question nor
	// an error marker arrived in time after a command.
	ErrConfirmTimeout = fmt.Errorf("power: confirmation not received: %w", device.ErrTimeout)

	// ErrResyncExhausted indicates that the unit kept answering with an error
	// marker after the allowed number of resynchronizations.
	ErrResyncExhausted = fmt.Errorf("power: resync attempts exhausted: %w", device.ErrProtocol)

	// ErrNotVerified indicates that the listing after a switch did not report
	// the requested state.
	ErrNotVerified = fmt.Errorf("power: outlet state not verified: %w", device.ErrProtocol)

	// ErrOutletNotListed indicates that the listing has no line for the outlet.
	ErrOutletNotListed = fmt.Errorf("power: outlet missing from listing: %w", device.ErrProtocol)

	// ErrUnknownOutlet indicates an outlet name not registered on the unit.
	ErrUnknownOutlet = errors.New("power: unknown outlet")

	// ErrDuplicateOutlet indicates an outlet id or name registered twice.
	ErrDuplicateOutlet = errors.New("power: outlet already registered")

	// ErrInvalidOutletID indicates an outlet id outside [1, MaxOutlets].
	ErrInvalidOutletID = errors.New("power: outlet id out of range")
)
