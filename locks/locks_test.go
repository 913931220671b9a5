package locks

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/c360/thermalink/errors"
)

func TestAcquireRelease(t *testing.T) {
	m := NewManager()
	o := m.NewOwner()

	require.NoError(t, m.Acquire(o, Camera))
	assert.Equal(t, []Name{Camera}, m.HeldBy(o))

	m.Release(o, Camera)
	assert.Empty(t, m.HeldBy(o))
}

func TestReentrancy(t *testing.T) {
	m := NewManager()
	o := m.NewOwner()

	require.NoError(t, m.Acquire(o, Camera))
	require.NoError(t, m.Acquire(o, Camera))
	assert.Equal(t, []Name{Camera}, m.HeldBy(o))

	// First release keeps the lock held, second fully releases it
	m.Release(o, Camera)
	assert.Equal(t, []Name{Camera}, m.HeldBy(o))
	m.Release(o, Camera)
	assert.Empty(t, m.HeldBy(o))

	// Another owner can now acquire without timing out
	o2 := m.NewOwner()
	require.NoError(t, m.Acquire(o2, Camera))
	m.Release(o2, Camera)
}

func TestDescendingAcquisitionAllowed(t *testing.T) {
	m := NewManager()
	o := m.NewOwner()

	// memory > camera > image > stream > control > events > service
	for _, name := range Hierarchy {
		require.NoError(t, m.Acquire(o, name))
	}
	assert.Equal(t, Hierarchy, m.HeldBy(o))

	for i := len(Hierarchy) - 1; i >= 0; i-- {
		m.Release(o, Hierarchy[i])
	}
	assert.Empty(t, m.HeldBy(o))
}

func TestHierarchyViolationPanics(t *testing.T) {
	tests := []struct {
		name      string
		held      Name
		requested Name
	}{
		{"service then camera", Service, Camera},
		{"events then control", Events, Control},
		{"control then memory", Control, Memory},
		{"image then camera", Image, Camera},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			o := m.NewOwner()
			require.NoError(t, m.Acquire(o, tt.held))

			defer func() {
				r := recover()
				require.NotNil(t, r, "expected hierarchy violation panic")
				v, ok := r.(*HierarchyViolation)
				require.True(t, ok, "panic value should be *HierarchyViolation, got %T", r)
				assert.Equal(t, tt.requested, v.Requested)
				assert.Equal(t, tt.held, v.Held)
				assert.Contains(t, v.Error(), "hierarchy violation")
			}()
			_ = m.Acquire(o, tt.requested)
		})
	}
}

func TestViolationCheckedBeforeBlocking(t *testing.T) {
	// The violation must be detected even when the requested lock is
	// contended: the check happens before any blocking.
	m := NewManager(WithTimeout(10 * time.Second))
	blocker := m.NewOwner()
	require.NoError(t, m.Acquire(blocker, Camera))

	o := m.NewOwner()
	require.NoError(t, m.Acquire(o, Events))

	start := time.Now()
	assert.Panics(t, func() { _ = m.Acquire(o, Camera) })
	assert.Less(t, time.Since(start), time.Second)
}

func TestAcquireTimeout(t *testing.T) {
	m := NewManager(WithTimeout(50 * time.Millisecond))

	holder := m.NewOwner()
	require.NoError(t, m.Acquire(holder, Camera))

	waiter := m.NewOwner()
	start := time.Now()
	err := m.Acquire(waiter, Camera)
	require.Error(t, err)
	assert.ErrorIs(t, err, terrors.ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Empty(t, m.HeldBy(waiter))

	m.Release(holder, Camera)
}

func TestUnknownLockPanics(t *testing.T) {
	m := NewManager()
	o := m.NewOwner()

	assert.Panics(t, func() { _ = m.Acquire(o, Name("palette")) })
	assert.Panics(t, func() { m.Release(o, Name("palette")) })
}

func TestReleaseByNonOwnerPanics(t *testing.T) {
	m := NewManager()
	holder := m.NewOwner()
	require.NoError(t, m.Acquire(holder, Image))

	other := m.NewOwner()
	assert.Panics(t, func() { m.Release(other, Image) })

	m.Release(holder, Image)
}

func TestWith(t *testing.T) {
	m := NewManager()
	o := m.NewOwner()

	err := m.With(o, Control, func() error {
		assert.Equal(t, []Name{Control}, m.HeldBy(o))
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, m.HeldBy(o))
}

func TestWith_ReleasesOnError(t *testing.T) {
	m := NewManager()
	o := m.NewOwner()
	boom := errors.New("boom")

	err := m.With(o, Control, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, m.HeldBy(o))
}

func TestWith_ReleasesOnPanic(t *testing.T) {
	m := NewManager()
	o := m.NewOwner()

	assert.Panics(t, func() {
		_ = m.With(o, Control, func() error { panic("inner") })
	})
	assert.Empty(t, m.HeldBy(o))

	// Lock must be free for other owners afterwards
	o2 := m.NewOwner()
	require.NoError(t, m.Acquire(o2, Control))
	m.Release(o2, Control)
}

func TestConcurrentOwnersSerialize(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := m.NewOwner()
			err := m.With(o, Camera, func() error {
				mu.Lock()
				inCritical++
				if inCritical > maxInCritical {
					maxInCritical = inCritical
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inCritical--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical, "camera lock must serialize critical sections")
}
