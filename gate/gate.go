// Package gate provides the image readiness gate that synchronizes the
// frame-extraction path against connection and initialization.
//
// The gate is a boolean with a waitable signal. The flag is true only when
// the driver has confirmed grabber-ready state and at least one frame
// object has been validated. Mutation happens exclusively under the
// `control` lock; extraction code waits on the signal with a bounded
// timeout instead of spin-polling.
package gate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/c360/thermalink/locks"
)

// Gate is the readiness flag plus its wait primitive.
type Gate struct {
	log *slog.Logger
	lm  *locks.Manager

	mu    sync.Mutex
	ready bool
	// waitCh is closed while ready; replaced with a fresh channel when
	// readiness is cleared so later waiters block again.
	waitCh chan struct{}
}

// New creates a gate in the not-ready state.
func New(log *slog.Logger, lm *locks.Manager) *Gate {
	return &Gate{
		log:    log,
		lm:     lm,
		waitCh: make(chan struct{}),
	}
}

// SetReady flips the readiness flag under the control lock and signals or
// resets the wait primitive. A lock-acquisition timeout is returned to the
// caller; the flag is left unchanged in that case.
func (g *Gate) SetReady(owner *locks.Owner, ready bool) error {
	return g.lm.With(owner, locks.Control, func() error {
		g.mu.Lock()
		defer g.mu.Unlock()

		if g.ready == ready {
			return nil
		}
		g.ready = ready
		if ready {
			close(g.waitCh)
		} else {
			g.waitCh = make(chan struct{})
		}
		g.log.Info("image ready state changed", "ready", ready)
		return nil
	})
}

// CheckReady returns a non-blocking snapshot of the flag, read under the
// control lock like every other access.
func (g *Gate) CheckReady(owner *locks.Owner) (bool, error) {
	var ready bool
	err := g.lm.With(owner, locks.Control, func() error {
		g.mu.Lock()
		ready = g.ready
		g.mu.Unlock()
		return nil
	})
	return ready, err
}

// WaitReady blocks until the gate becomes ready or the timeout elapses.
// Returns true when images became ready. Waiting takes no lock: the signal
// channel alone carries the state transition, so waiters cannot stall the
// initialization path.
func (g *Gate) WaitReady(timeout time.Duration) bool {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return true
	}
	ch := g.waitCh
	g.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
