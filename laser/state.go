package laser

import "time"

// StatusReady is the status reported when the laser is armed and ready to fire.
const StatusReady = 0x7E

// MaxSafeTemperature is the highest head, dump or plate temperature at which
// the laser may fire, in the controller's units.
const MaxSafeTemperature = 450

// Temperatures holds one reading of the three laser temperatures.
type Temperatures struct {
	Head  int
	Dump  int
	Plate int
}

// Safe reports whether all three temperatures are at or below MaxSafeTemperature.
func (t Temperatures) Safe() bool {
	return t.Head <= MaxSafeTemperature && t.Dump <= MaxSafeTemperature && t.Plate <= MaxSafeTemperature
}

// State is the last known state of the laser. Fields are only updated after
// a successful transaction.
type State struct {
	// Status is the operating state byte; valid when StatusKnown is set.
	Status      uint8
	StatusKnown bool
	// StatusBytes holds the system byte followed by the three head bytes.
	StatusBytes [4]uint8

	Temps      Temperatures
	TempsKnown bool

	PulseWidth int
	Diode      bool
	QSwitch    bool

	ShotCount     int64
	UserShotCount int64

	// Updated is when any field last changed.
	Updated time.Time
}

// Ready reports whether the last known status is StatusReady.
func (s State) Ready() bool {
	return s.StatusKnown && s.Status == StatusReady
}
