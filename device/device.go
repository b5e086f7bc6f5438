package device

// Kind identifies the family of a registered device.
type Kind int

const (
	KindLaser Kind = iota
	KindMotionAxis
	KindPowerOutlet
	KindTelemetry
)

// String returns string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindLaser:
		return "laser"
	case KindMotionAxis:
		return "motion-axis"
	case KindPowerOutlet:
		return "power-outlet"
	case KindTelemetry:
		return "telemetry"
	default:
		return "unknown"
	}
}

// Device is the common surface of every logical device held by the registry.
// Callers type-assert (or use the registry's typed lookups) to reach the
// device-specific operations.
type Device interface {
	// Name returns the logical name the device was registered under.
	Name() string
	// Kind returns the device family.
	Kind() Kind
	// Port returns the path of the serial link the device is attached to.
	Port() string
}
