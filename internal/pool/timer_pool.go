// Package pool provides pooled timers for the bounded waits of the drivers.
package pool

import (
	"context"
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer that fires after d, reusing a pooled one when possible.
//
// Return the timer with PutTimer once it is no longer needed.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		// since go1.23 Reset discards any value not yet received from t.C
		t.Reset(d)

		return t
	}

	return time.NewTimer(d)
}

// PutTimer stops t and returns it to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	t.Stop()
	timerPool.Put(t)
}

// Sleep pauses for d or until ctx ends, whichever comes first.
//
// It returns ctx.Err() if ctx ended before d elapsed. A non-positive d only
// checks ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := GetTimer(d)
	defer PutTimer(t)

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deadline returns the earlier of now+d and ctx's deadline.
func Deadline(ctx context.Context, d time.Duration) time.Time {
	dl := time.Now().Add(d)
	if ctxDl, ok := ctx.Deadline(); ok && ctxDl.Before(dl) {
		return ctxDl
	}

	return dl
}
