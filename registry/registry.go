// Package registry tracks discovered camera devices and the current
// selection.
//
// Membership changes arrive from the driver's discovery callbacks; listing
// triggers a per-device resolve against the scanner, which may be expensive
// and is deliberately separate from the lightweight discovery event.
package registry

import (
	"log/slog"
	"sync"

	"github.com/c360/thermalink/device"
)

// Listing is the resolved view of one discovered device.
type Listing struct {
	Name   string    `json:"name"`
	Serial string    `json:"serial"`
	ID     device.ID `json:"id"`
}

// Registry holds discovered device descriptors in discovery order and at
// most one selected device. It is safe for concurrent use.
type Registry struct {
	log *slog.Logger

	mu           sync.Mutex
	devices      []device.Descriptor
	selected     *device.Descriptor
	selectedInfo *device.Info
}

// New creates an empty registry.
func New(log *slog.Logger) *Registry {
	return &Registry{log: log}
}

// Add records a discovered device. Adding the same identifier twice is a
// no-op; returns true when the device was actually added.
func (r *Registry) Add(d device.Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.devices {
		if existing.ID == d.ID {
			return false
		}
	}
	r.devices = append(r.devices, d)
	r.log.Info("device found", "device", d.Name, "id", d.ID, "interface", d.Interface)
	return true
}

// Remove drops a device by identifier. Removing an unknown identifier is a
// no-op; returns true when a device was actually removed. A removed device
// that was selected clears the selection.
func (r *Registry) Remove(id device.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, d := range r.devices {
		if d.ID == id {
			r.devices = append(r.devices[:i], r.devices[i+1:]...)
			if r.selected != nil && r.selected.ID == id {
				r.selected = nil
				r.selectedInfo = nil
			}
			r.log.Info("device lost", "device", d.Name, "id", d.ID)
			return true
		}
	}
	return false
}

// Devices returns the descriptors in discovery order.
func (r *Registry) Devices() []device.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]device.Descriptor, len(r.devices))
	copy(out, r.devices)
	return out
}

// Len reports the number of discovered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// First returns the first discovered device, the deterministic default when
// no device is explicitly chosen.
func (r *Registry) First() (device.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.devices) == 0 {
		return device.Descriptor{}, false
	}
	return r.devices[0], true
}

// List resolves every discovered device into its display view. Devices that
// fail to resolve are logged and skipped rather than failing the whole list.
func (r *Registry) List(s device.Scanner) []Listing {
	devices := r.Devices()

	listings := make([]Listing, 0, len(devices))
	for _, d := range devices {
		info, err := s.Resolve(d)
		if err != nil {
			r.log.Error("device resolve failed", "device", d.Name, "id", d.ID, "error", err)
			continue
		}
		listings = append(listings, Listing{
			Name:   info.Name + " - " + info.SerialNumber,
			Serial: info.SerialNumber,
			ID:     d.ID,
		})
	}

	if len(listings) == 0 {
		r.log.Info("no devices found")
	}
	return listings
}

// Select makes the identified device the current selection and resolves its
// device info. Selecting an unknown identifier returns false and leaves the
// previous selection unchanged. A resolve failure is logged but does not
// abort the selection; the missing info surfaces later during connect.
func (r *Registry) Select(id device.ID, s device.Scanner) bool {
	r.mu.Lock()
	var target *device.Descriptor
	for i := range r.devices {
		if r.devices[i].ID == id {
			target = &r.devices[i]
			break
		}
	}
	if target == nil {
		r.mu.Unlock()
		r.log.Info("device not found", "id", id)
		return false
	}
	d := *target
	r.selected = &d
	r.selectedInfo = nil
	r.mu.Unlock()

	info, err := s.Resolve(d)
	if err != nil {
		r.log.Warn("selected device did not resolve", "device", d.Name, "id", d.ID, "error", err)
	} else {
		r.mu.Lock()
		r.selectedInfo = info
		r.mu.Unlock()
	}

	r.log.Info("selected device", "device", d.Name, "id", d.ID)
	return true
}

// Selected returns the currently selected device.
func (r *Registry) Selected() (device.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return device.Descriptor{}, false
	}
	return *r.selected, true
}

// SelectedInfo returns the resolved info of the selected device, nil when
// not selected or not resolved.
func (r *Registry) SelectedInfo() *device.Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selectedInfo == nil {
		return nil
	}
	cp := *r.selectedInfo
	return &cp
}

// SetSelectedInfo replaces the resolved info for the selected device, used
// when the connect path re-resolves with authentication.
func (r *Registry) SetSelectedInfo(info *device.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info == nil {
		r.selectedInfo = nil
		return
	}
	cp := *info
	r.selectedInfo = &cp
}

// ClearSelection drops the current selection, keeping membership.
func (r *Registry) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = nil
	r.selectedInfo = nil
}

// Reset clears membership and selection, used by a forced re-scan.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = nil
	r.selected = nil
	r.selectedInfo = nil
}
