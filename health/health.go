// Package health provides health statuses for the camera subsystems. The
// heartbeat monitor publishes into a Monitor each tick; the composition
// root exposes the aggregate.
package health

import (
	"sync"
	"time"
)

// Status values.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status represents the health state of a subsystem.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// NewHealthy creates a healthy status.
func NewHealthy(component, message string) Status {
	return Status{Component: component, Healthy: true, Status: StateHealthy, Message: message, Timestamp: time.Now()}
}

// NewDegraded creates a degraded status.
func NewDegraded(component, message string) Status {
	return Status{Component: component, Status: StateDegraded, Message: message, Timestamp: time.Now()}
}

// NewUnhealthy creates an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return Status{Component: component, Status: StateUnhealthy, Message: message, Timestamp: time.Now()}
}

// Aggregate combines sub-statuses into a system status: unhealthy if any
// sub-status is unhealthy, degraded if any is degraded, healthy otherwise.
func Aggregate(systemName string, subs []Status) Status {
	agg := NewHealthy(systemName, "all subsystems healthy")
	for _, s := range subs {
		switch s.Status {
		case StateUnhealthy:
			agg.Healthy = false
			agg.Status = StateUnhealthy
			agg.Message = "one or more subsystems unhealthy"
		case StateDegraded:
			if agg.Status != StateUnhealthy {
				agg.Healthy = false
				agg.Status = StateDegraded
				agg.Message = "one or more subsystems degraded"
			}
		}
	}
	agg.SubStatuses = append([]Status(nil), subs...)
	return agg
}

// Monitor tracks health of multiple subsystems in a thread-safe manner.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update updates the health status for a named subsystem.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// UpdateHealthy marks a subsystem healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy marks a subsystem unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded marks a subsystem degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Get retrieves the health status for a named subsystem.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, exists := m.statuses[name]
	return status, exists
}

// AggregateHealth returns the aggregated status for the whole camera stack.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		subs = append(subs, s)
	}
	return Aggregate(systemName, subs)
}

// Count returns the number of subsystems being monitored.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// Clear removes all subsystems from monitoring.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = make(map[string]Status)
}
