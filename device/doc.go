// Package device defines the vocabulary shared by every instrument driver:
// the error taxonomy, the Device interface exposed through the registry, and
// an atomic phase holder used by the per-device protocol state machines.
//
// Error Taxonomy:
//
//   - ErrConnection: the port cannot be opened or reopened. Fatal for that
//     device until operator intervention.
//   - ErrTransport: a write or read failed at the I/O level. Retried only at
//     the caller's discretion.
//   - ErrProtocol: the response does not match the expected grammar, including
//     echo mismatches. Surfaced, never auto-corrected.
//   - ErrTimeout: no (complete) response within the bound.
//   - ErrSafetyViolation: a hazardous action was requested while its interlock
//     conditions were unmet. Never retried, never bypassed.
//
// Driver packages define more specific sentinel errors that wrap one of these,
// so callers can match either the specific cause or its class with errors.Is.
package device
