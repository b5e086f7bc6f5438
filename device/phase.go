package device

import "sync/atomic"

// Phase is a step of a device protocol state machine.
//
// Motion axes move through Idle -> CommandSent -> Busy -> Idle; the power
// distribution unit moves through AwaitPrompt -> CommandSent -> AwaitConfirm
// -> Confirmed -> Idle.
type Phase uint32

const (
	PhaseIdle Phase = iota
	PhaseCommandSent
	PhaseBusy
	PhaseAwaitPrompt
	PhaseAwaitConfirm
	PhaseConfirmed
)

// String returns string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCommandSent:
		return "command-sent"
	case PhaseBusy:
		return "busy"
	case PhaseAwaitPrompt:
		return "await-prompt"
	case PhaseAwaitConfirm:
		return "await-confirm"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// AtomicPhase holds a Phase that can be read from any goroutine while the
// owning driver advances it inside a link session.
type AtomicPhase struct {
	state atomic.Uint32
}

// Get returns the current phase.
func (ap *AtomicPhase) Get() Phase {
	return Phase(ap.state.Load())
}

// Set sets the current phase unconditionally.
func (ap *AtomicPhase) Set(p Phase) {
	ap.state.Store(uint32(p))
}

// Transition moves from one phase to another and reports whether the current
// phase was from.
func (ap *AtomicPhase) Transition(from, to Phase) bool {
	return ap.state.CompareAndSwap(uint32(from), uint32(to))
}

// Reset returns the phase to PhaseIdle.
func (ap *AtomicPhase) Reset() {
	ap.Set(PhaseIdle)
}

func (ap *AtomicPhase) String() string {
	return ap.Get().String()
}
