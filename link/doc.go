// Package link owns the physical serial connection of one instrument.
//
// A Link is created from a Config (path, baud rate, data bits, parity, stop
// bits, read timeout) and opens its port lazily: the first Acquire opens the
// port, and an Acquire after the port has been found closed reopens it. There
// is no implicit close; the registry closes links at shutdown.
//
// # Exclusivity
//
// A serial line carries one conversation at a time. Every transaction runs
// inside Link.Exclusive, which holds the link's single token for the whole
// callback. Waiting for the token honours the caller's context; once the
// callback runs it is never interrupted, so cancellation takes effect only
// between transactions.
//
// # Flushing
//
// Flush discards pending input and output and then waits the configured flush
// settle interval (100ms by default), so no stale bytes are visible to the next
// transaction.
package link
