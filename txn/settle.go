package txn

import (
	"errors"
	"fmt"
	"time"
)

// Settle decides how a transaction waits for the device's answer after the
// command was written.
//
// FixedSettle sleeps for a fixed delay and then reads whatever arrived.
// ReadUntil reads as data arrives and stops as soon as a terminator is seen.
type Settle interface {
	await(s *Session) ([]byte, error)
	validate() error
	String() string
}

type fixedSettle struct {
	delay time.Duration
}

// FixedSettle waits d after writing, then reads the available bytes.
func FixedSettle(d time.Duration) Settle {
	return fixedSettle{delay: d}
}

func (f fixedSettle) await(s *Session) ([]byte, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	return s.readAvailable()
}

func (f fixedSettle) validate() error {
	if f.delay < 0 || f.delay > MaxSettle {
		return fmt.Errorf("txn: settle %v out of range [0, %v]", f.delay, MaxSettle)
	}

	return nil
}

func (f fixedSettle) String() string { return "fixed(" + f.delay.String() + ")" }

type readUntil struct {
	terminator string
	timeout    time.Duration
}

// ReadUntil reads until terminator arrives or timeout elapses, whichever is first.
// A response cut short by the timeout is returned as read.
func ReadUntil(terminator string, timeout time.Duration) Settle {
	return readUntil{terminator: terminator, timeout: timeout}
}

func (r readUntil) await(s *Session) ([]byte, error) {
	return s.readUntil(r.terminator, r.timeout)
}

func (r readUntil) validate() error {
	if r.terminator == "" {
		return errors.New("txn: read-until terminator must not be empty")
	}

	if r.timeout <= 0 || r.timeout > MaxSettle {
		return fmt.Errorf("txn: read-until timeout %v out of range (0, %v]", r.timeout, MaxSettle)
	}

	return nil
}

func (r readUntil) String() string {
	return fmt.Sprintf("until(%q, %s)", r.terminator, r.timeout)
}
