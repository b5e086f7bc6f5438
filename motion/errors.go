package motion

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-instrument/device"
)

var (
	// ErrEchoMismatch indicates that the controller echoed something other
	// than the command sent. The command is not run.
	ErrEchoMismatch = fmt.Errorf("motion: echo mismatch: %w", device.ErrProtocol)

	// ErrMoveTimeout indicates that the completion token did not arrive in time.
	ErrMoveTimeout = fmt.Errorf("motion: move not completed: %w", device.ErrTimeout)

	// ErrNotReady indicates that the controller did not answer the verify
	// command with the ready token.
	ErrNotReady = fmt.Errorf("motion: controller not ready: %w", device.ErrProtocol)

	// ErrNotConnected is returned by IsConnected when the handshake fails.
	ErrNotConnected = fmt.Errorf("motion: controller not responding: %w", device.ErrConnection)

	// ErrBadPosition indicates a position report that is not a number.
	ErrBadPosition = fmt.Errorf("motion: malformed position: %w", device.ErrProtocol)

	// ErrUnknownAxis indicates an axis name not registered on the controller.
	ErrUnknownAxis = errors.New("motion: unknown axis")

	// ErrDuplicateAxis indicates an axis id or name registered twice.
	ErrDuplicateAxis = errors.New("motion: axis already registered")

	// ErrInvalidAxisID indicates an axis id outside [1, MaxAxes].
	ErrInvalidAxisID = errors.New("motion: axis id out of range")
)
