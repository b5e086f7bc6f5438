// Package laser drives a Centurion-class pulsed laser over its serial link.
//
// Commands are "$NAME value" lines terminated by CR. A set command is echoed
// back verbatim and only counts as applied when the echo matches; a query
// "$NAME ?" is answered with "$NAME value". The status report
//
//	$STATUS <status> <system> <head1> <head2> <head3>
//
// carries the operating state as hexadecimal; 0x7E means armed and ready.
//
// Fire is interlocked: the fire command is only written when the status is
// ready and the head, dump and plate temperatures are all at or below
// MaxSafeTemperature, checked inside the same link session that fires.
package laser
