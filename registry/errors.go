package registry

import "errors"

var (
	// ErrDuplicateName indicates a device name registered twice.
	ErrDuplicateName = errors.New("registry: device name already registered")

	// ErrUnknownDevice indicates a lookup of a name that was never registered.
	ErrUnknownDevice = errors.New("registry: unknown device")

	// ErrWrongKind indicates a typed lookup of a device of another kind.
	ErrWrongKind = errors.New("registry: device has another kind")

	// ErrLinkConflict indicates a port path registered with different line
	// settings, or shared by devices that cannot share a line.
	ErrLinkConflict = errors.New("registry: conflicting link parameters")

	// ErrUnknownSequence indicates a lookup of a sequence that was never defined.
	ErrUnknownSequence = errors.New("registry: unknown sequence")

	// ErrUnsupportedAction indicates a sequence step the device cannot perform.
	ErrUnsupportedAction = errors.New("registry: unsupported action")

	// ErrClosed indicates a registration on a closed registry.
	ErrClosed = errors.New("registry: closed")
)
