// Package txn implements the command/response cycle shared by the ASCII
// instruments.
//
// A transaction flushes the link, writes a command followed by the device's
// line terminator, waits for the device to answer (see Settle), reads a
// bounded number of bytes, decodes them as text and validates the text
// against a Grammar. The result is classified as one of the device.Outcome
// values and recorded in the link metrics; every transaction is logged with
// the device tag, a transaction id, the command and the raw response.
//
// Engine.Execute runs a single transaction. Engine.Session holds the link for
// a compound operation, such as a parameter sequence or a move followed by a
// completion poll, so no other caller can interleave commands on the line.
package txn
