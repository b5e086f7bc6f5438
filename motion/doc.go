// Package motion drives a VXM-class stepper motor controller.
//
// One Controller owns the serial link of a controller unit and up to four
// Axis values, one per motor. Every motion command is programmed, echoed back
// by the controller and byte-compared with what was sent before it is run
// with "R". The controller answers "^" when the motion has completed; the
// driver polls for it with a bounded wait.
//
// Axis state machine:
//
//	Idle -> CommandSent -> (echo verified) -> Busy -> Idle
//
// An absolute move to the position the controller already reports is a no-op:
// no motion command is written.
package motion
