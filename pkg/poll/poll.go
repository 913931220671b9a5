// Package poll provides a bounded condition-polling utility.
//
// Every bounded wait in the connection subsystem (connection confirmation,
// scan completion, auto-connect readiness) goes through Until instead of a
// hand-rolled sleep loop, so the ceiling and failure behavior are defined in
// exactly one place.
package poll

import (
	"context"
	"time"
)

// Result is the tri-state outcome of a bounded poll.
type Result int

const (
	// Success means the condition became true within the ceiling.
	Success Result = iota
	// Timeout means the ceiling elapsed before the condition became true.
	Timeout
	// Failed means the condition function returned a terminal error.
	Failed
)

// String returns a string representation of the poll result
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Condition reports whether the awaited state has been reached. Returning a
// non-nil error terminates the poll immediately with Failed; transient
// probe failures should be swallowed by the condition and reported as
// (false, nil) so polling continues to the next interval.
type Condition func() (bool, error)

// Until polls cond every interval until it returns true, the ceiling
// elapses, or ctx is cancelled. The condition is checked once immediately
// before any sleep. Context cancellation is reported as Timeout together
// with ctx.Err().
func Until(ctx context.Context, interval, ceiling time.Duration, cond Condition) (Result, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	deadline := time.Now().Add(ceiling)

	for {
		ok, err := cond()
		if err != nil {
			return Failed, err
		}
		if ok {
			return Success, nil
		}

		if time.Now().After(deadline) {
			return Timeout, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Timeout, ctx.Err()
		case <-timer.C:
		}
	}
}
