// Package power drives a menu-driven power distribution unit (RPC style) and
// its switched outlets.
//
// The unit is operated like a terminal: a blank line makes it print the
// outlet listing followed by the "RPC>" prompt; "on <n>" or "off <n>" asks
// for a "(Y/N)?" confirmation which is answered with "y". An "ERROR" reply
// makes the driver resynchronize (flush, prompt again, resend) a bounded
// number of times.
//
// Switching an outlet only succeeds once a fresh listing reports the
// requested state:
//
//	AwaitPrompt -> CommandSent -> AwaitConfirm -> Confirmed -> Idle
package power
