// Package locks provides the centralized lock manager shared by every camera
// subsystem.
//
// The manager owns a fixed, ordered set of named re-entrant locks and
// enforces strict hierarchical acquisition: an owner may only acquire a lock
// ranked earlier in the fixed order (memory, camera, image, stream, control,
// events, service) than every lock it already holds. Acquiring against the
// hierarchy is a programming error and panics immediately; it must surface
// in development and testing rather than be swallowed by the log-and-return
// error handling used everywhere else in the system.
//
// Goroutines have no identity, so re-entrancy is tracked through explicit
// Owner tokens: each logical thread of control (an API call, the heartbeat
// loop, a driver callback) creates one Owner and passes it through its call
// chain.
package locks

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/thermalink/errors"
)

// Name identifies one of the fixed set of camera locks.
type Name string

// The seven camera locks, listed in hierarchy order. A lock earlier in this
// list must always be acquired before a lock later in it.
const (
	Memory  Name = "memory"
	Camera  Name = "camera"
	Image   Name = "image"
	Stream  Name = "stream"
	Control Name = "control"
	Events  Name = "events"
	Service Name = "service"
)

// Hierarchy is the fixed acquisition order, highest level first.
var Hierarchy = []Name{Memory, Camera, Image, Stream, Control, Events, Service}

// DefaultAcquireTimeout bounds every blocking acquisition. Timing out a
// single operation is preferred over hanging the process on a deadlock.
const DefaultAcquireTimeout = 5 * time.Second

// HierarchyViolation describes an out-of-order acquisition attempt. It is
// delivered via panic because it is a static programming error, not a
// runtime condition callers should handle.
type HierarchyViolation struct {
	Requested Name
	Held      Name
	OwnerID   string
}

func (v *HierarchyViolation) Error() string {
	return fmt.Sprintf("lock hierarchy violation: acquiring %q while holding %q (owner %s)",
		v.Requested, v.Held, v.OwnerID)
}

// Owner represents one logical thread of control for re-entrancy and
// hierarchy tracking. Owners are cheap; create one per goroutine or per
// externally-driven operation and do not share them across goroutines.
type Owner struct {
	id string
}

// ID returns the owner's unique identifier.
func (o *Owner) ID() string {
	return o.id
}

type lockState struct {
	name Name
	rank int

	sem chan struct{} // capacity 1; holding the token means holding the lock

	mu    sync.Mutex // guards owner and depth
	owner *Owner
	depth int
}

// Manager owns the lock set. Construct exactly one Manager per process and
// inject it into every component that touches the device handle.
type Manager struct {
	timeout time.Duration
	locks   map[Name]*lockState
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout overrides the acquisition timeout. Tests use short timeouts.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewManager creates the lock set. The locks live for the manager's
// lifetime; there is no teardown.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		timeout: DefaultAcquireTimeout,
		locks:   make(map[Name]*lockState, len(Hierarchy)),
	}
	for rank, name := range Hierarchy {
		ls := &lockState{name: name, rank: rank, sem: make(chan struct{}, 1)}
		m.locks[name] = ls
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewOwner issues a fresh owner token.
func (m *Manager) NewOwner() *Owner {
	return &Owner{id: uuid.NewString()}
}

// state panics on unknown names: referencing a lock outside the fixed set is
// a programming error, same as a hierarchy violation.
func (m *Manager) state(name Name) *lockState {
	ls, ok := m.locks[name]
	if !ok {
		panic(fmt.Sprintf("locks: unknown lock %q", name))
	}
	return ls
}

// Acquire blocks until the named lock is held by owner or the timeout
// elapses. Re-entrant acquisition by the same owner succeeds immediately and
// must be matched by an equal number of Release calls. A hierarchy violation
// panics; a timeout returns an error wrapping errors.ErrLockTimeout.
func (m *Manager) Acquire(owner *Owner, name Name) error {
	if owner == nil {
		panic("locks: nil owner")
	}
	ls := m.state(name)

	// Re-entrant fast path. Only the current owner can release, so a
	// positive match here cannot go stale before depth is bumped.
	ls.mu.Lock()
	if ls.owner == owner {
		ls.depth++
		ls.mu.Unlock()
		return nil
	}
	ls.mu.Unlock()

	m.checkHierarchy(owner, ls)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case ls.sem <- struct{}{}:
		ls.mu.Lock()
		ls.owner = owner
		ls.depth = 1
		ls.mu.Unlock()
		return nil
	case <-timer.C:
		return fmt.Errorf("locks.Acquire: %q after %s: %w", name, m.timeout, errors.ErrLockTimeout)
	}
}

// checkHierarchy panics if owner already holds any lock ranked below the
// requested one. The inspection happens before blocking so the violation is
// reported deterministically, independent of contention.
func (m *Manager) checkHierarchy(owner *Owner, requested *lockState) {
	for _, name := range Hierarchy[requested.rank+1:] {
		held := m.locks[name]
		held.mu.Lock()
		violated := held.owner == owner
		held.mu.Unlock()
		if violated {
			panic(&HierarchyViolation{
				Requested: requested.name,
				Held:      name,
				OwnerID:   owner.id,
			})
		}
	}
}

// Release releases one level of the named lock. Releasing a lock the owner
// does not hold is a programming error and panics.
func (m *Manager) Release(owner *Owner, name Name) {
	ls := m.state(name)

	ls.mu.Lock()
	if ls.owner != owner {
		ls.mu.Unlock()
		panic(fmt.Sprintf("locks: release of %q by non-owner", name))
	}
	ls.depth--
	if ls.depth > 0 {
		ls.mu.Unlock()
		return
	}
	ls.owner = nil
	ls.mu.Unlock()

	<-ls.sem
}

// With acquires the named lock, runs fn, and releases unconditionally, even
// when fn returns an error or panics. This is the scoped-acquisition helper
// every call site should prefer over manual Acquire/Release pairs.
func (m *Manager) With(owner *Owner, name Name, fn func() error) error {
	if err := m.Acquire(owner, name); err != nil {
		return err
	}
	defer m.Release(owner, name)
	return fn()
}

// HeldBy reports the locks currently held by owner, in hierarchy order.
// Intended for diagnostics and tests.
func (m *Manager) HeldBy(owner *Owner) []Name {
	var held []Name
	for _, name := range Hierarchy {
		ls := m.locks[name]
		ls.mu.Lock()
		if ls.owner == owner {
			held = append(held, name)
		}
		ls.mu.Unlock()
	}
	return held
}

// Timeout returns the configured acquisition timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}
