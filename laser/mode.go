package laser

import (
	"strconv"
)

// Parameter names understood by the laser.
const (
	ParamFrequency      = "$DFREQ"
	ParamDiode          = "$DIODE"
	ParamQSwitchOn      = "$QSON"
	ParamQSwitchMode    = "$QSWIT"
	ParamDiodeTrigger   = "$DTRIG"
	ParamQSwitchTrigger = "$QSTRI"
	ParamPulseWidth     = "$DPW"
	ParamQSwitchDelay   = "$QSDEL"
)

// Mode is the complete operating configuration applied by SetMode.
type Mode struct {
	// Frequency is the diode repetition setting (100 is 2Hz).
	Frequency int
	// Diode enables the pump diodes (0 off, 1 enabled).
	Diode int
	// QSwitchOn enables the Q-switch (0 off, 1 enabled).
	QSwitchOn int
	// QSwitchMode selects long pulse (0) or Q-switched (1) operation.
	QSwitchMode int
	// DiodeTrigger selects the internal (0) or external (1) diode trigger.
	DiodeTrigger int
	// QSwitchTrigger selects the internal (0) or external (1) Q-switch trigger.
	QSwitchTrigger int
	// PulseWidth is the diode pulse width, which sets the output energy.
	PulseWidth int
	// QSwitchDelay is the Q-switch delay, relevant only with the internal trigger.
	QSwitchDelay int
}

// DefaultMode returns the power-on configuration used by the station.
func DefaultMode() Mode {
	return Mode{
		Frequency:      100,
		Diode:          1,
		QSwitchOn:      0,
		QSwitchMode:    1,
		DiodeTrigger:   1,
		QSwitchTrigger: 1,
		PulseWidth:     100,
		QSwitchDelay:   145,
	}
}

type param struct {
	name  string
	value int
}

// params returns the parameters in the order they must be applied: the
// trigger sources have to be set before the pulse width takes effect.
func (m Mode) params() []param {
	return []param{
		{ParamFrequency, m.Frequency},
		{ParamDiode, m.Diode},
		{ParamQSwitchOn, m.QSwitchOn},
		{ParamQSwitchMode, m.QSwitchMode},
		{ParamDiodeTrigger, m.DiodeTrigger},
		{ParamQSwitchTrigger, m.QSwitchTrigger},
		{ParamPulseWidth, m.PulseWidth},
		{ParamQSwitchDelay, m.QSwitchDelay},
	}
}

// modeField returns the field of m holding the parameter name.
func (m *Mode) modeField(name string) *int {
	switch name {
	case ParamFrequency:
		return &m.Frequency
	case ParamDiode:
		return &m.Diode
	case ParamQSwitchOn:
		return &m.QSwitchOn
	case ParamQSwitchMode:
		return &m.QSwitchMode
	case ParamDiodeTrigger:
		return &m.DiodeTrigger
	case ParamQSwitchTrigger:
		return &m.QSwitchTrigger
	case ParamPulseWidth:
		return &m.PulseWidth
	case ParamQSwitchDelay:
		return &m.QSwitchDelay
	default:
		return nil
	}
}

func (p param) command() string {
	return p.name + " " + strconv.Itoa(p.value)
}
