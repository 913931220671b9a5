package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/thermalink/device"
	"github.com/c360/thermalink/errors"
	"github.com/c360/thermalink/locks"
	"github.com/c360/thermalink/notify"
	"github.com/c360/thermalink/pkg/retry"
)

// Bridge translates the driver's native event callbacks into session state
// transitions and outbound notifications.
//
// The native subscription mechanism does not keep handlers alive, so the
// bridge owns a strong-reference table keyed by event name for its entire
// lifetime; losing a reference would silently stop event delivery. Specific
// handlers exist for connection status, device error, image received and
// image initialized; every other event the camera exposes gets a generic
// diagnostic handler.
type Bridge struct {
	s        *Session
	log      *slog.Logger
	retryCfg retry.Config

	// firstReady is the lazy downstream bootstrap, invoked once on the
	// first successful image initialization with the live camera handle
	// and the proven frame. Downstream handlers need a live native image
	// object to exist before they can be built.
	firstReady func(cam device.Camera, frame device.Frame)

	mu           sync.Mutex
	camera       device.Camera
	handlers     map[device.EventName]device.EventHandler
	subs         map[device.EventName]device.Subscription
	bootstrapped bool
}

func newBridge(s *Session) *Bridge {
	return &Bridge{
		s:        s,
		log:      s.log,
		retryCfg: retry.ImageInit(),
		handlers: make(map[device.EventName]device.EventHandler),
		subs:     make(map[device.EventName]device.Subscription),
	}
}

// Wire attaches the four specific handlers plus the generic diagnostic
// handler for every other event in the taxonomy the camera exposes. Events
// the camera does not expose are skipped, not errors. Already-wired events
// are left alone, which makes Wire idempotent-safe across reconnects.
func (b *Bridge) Wire(owner *locks.Owner, cam device.Camera) {
	err := b.s.lm.With(owner, locks.Events, func() error {
		b.mu.Lock()
		defer b.mu.Unlock()

		b.camera = cam

		specific := map[device.EventName]device.EventHandler{
			device.EventConnectionStatusChanged: b.onConnectionStatusChanged,
			device.EventDeviceError:             b.onDeviceError,
			device.EventImageReceived:           b.onImageReceived,
			device.EventImageInitialized:        b.onImageInitialized,
		}

		for _, name := range device.EventNames() {
			if _, wired := b.subs[name]; wired {
				continue
			}
			h, ok := specific[name]
			if !ok {
				h = b.genericHandler(name)
			}
			sub, serr := cam.Subscribe(name, h)
			if serr != nil {
				b.log.Debug("event not available on camera", "event", string(name), "error", serr)
				continue
			}
			b.handlers[name] = h
			b.subs[name] = sub
		}

		b.log.Info("event handlers wired", "count", len(b.subs))
		return nil
	})
	if err != nil {
		b.log.Error("event wiring could not take events lock", "error", err)
		b.s.metrics.LockTimeouts.WithLabelValues(string(locks.Events)).Inc()
	}
}

// Cleanup marks images not-ready, then unregisters every handler that was
// wired, clearing the registration and reference tables. Safe to call
// repeatedly; unregistration failures are logged per handler and never
// abort the rest.
func (b *Bridge) Cleanup(owner *locks.Owner) {
	if err := b.s.gate.SetReady(owner, false); err != nil {
		b.log.Warn("image ready clear failed", "error", err)
	}
	b.s.setImageInitialized(false)

	err := b.s.lm.With(owner, locks.Events, func() error {
		b.mu.Lock()
		defer b.mu.Unlock()

		names := make([]device.EventName, 0, len(b.subs))
		for name := range b.subs {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

		for _, name := range names {
			if cerr := b.subs[name].Cancel(); cerr != nil {
				b.log.Warn("event unregister failed", "event", string(name), "error", cerr)
			}
			delete(b.subs, name)
			delete(b.handlers, name)
		}
		b.camera = nil
		return nil
	})
	if err != nil {
		b.log.Error("event cleanup could not take events lock", "error", err)
		b.s.metrics.LockTimeouts.WithLabelValues(string(locks.Events)).Inc()
	}
}

// WiredCount reports live subscriptions, for diagnostics and tests.
func (b *Bridge) WiredCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bridge) cameraHandle() device.Camera {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.camera
}

// onConnectionStatusChanged mirrors native status into session state. A
// native disconnect delegates to the same teardown routine the heartbeat
// uses.
func (b *Bridge) onConnectionStatusChanged(e device.Event) {
	b.s.metrics.EventsReceived.WithLabelValues(string(e.Name)).Inc()

	status := device.ParseConnectionStatus(e.Args["status"])
	b.log.Info("native connection status", "status", status.String())
	b.s.mirrorNativeStatus(status)
}

func (b *Bridge) onDeviceError(e device.Event) {
	b.s.metrics.EventsReceived.WithLabelValues(string(e.Name)).Inc()
	b.log.Error("device error reported", "args", e.Args)
	b.s.publish(notify.KindEvent, e.Args)
}

// onImageReceived is intentionally a no-op beyond accounting; frame
// consumption belongs to the extraction path, which waits on the readiness
// gate instead of reacting to this event.
func (b *Bridge) onImageReceived(e device.Event) {
	b.s.metrics.EventsReceived.WithLabelValues(string(e.Name)).Inc()
}

// onImageInitialized runs the initialization sequence on the driver's
// callback goroutine with a fresh lock owner.
func (b *Bridge) onImageInitialized(e device.Event) {
	b.s.metrics.EventsReceived.WithLabelValues(string(e.Name)).Inc()
	b.handleImageInitialized(b.s.lm.NewOwner())
}

// handleImageInitialized waits for the grabber to become ready and for one
// frame object to prove valid, retrying on a bounded exponential backoff.
// When every attempt fails it makes one final best-effort attempt, then
// explicitly marks images not ready. On success it flips the readiness
// gate, refreshes camera settings, and bootstraps the downstream handlers
// exactly once.
func (b *Bridge) handleImageInitialized(owner *locks.Owner) {
	cam := b.cameraHandle()
	if cam == nil {
		cam = b.s.cameraRef()
	}
	if cam == nil {
		b.log.Warn("image initialized with no camera handle")
		return
	}
	if connected, err := cam.IsConnected(); err != nil || !connected {
		b.log.Warn("image initialized while not connected", "error", err)
		return
	}

	frame, err := retry.DoWithResult(context.Background(), b.retryCfg, func() (device.Frame, error) {
		b.s.metrics.ImageInitRetries.Inc()
		return b.proveFrame(owner, cam)
	})
	if err != nil {
		// Final best-effort attempt outside the schedule.
		frame, err = b.proveFrame(owner, cam)
	}
	if err != nil {
		b.log.Error("image initialization exhausted retries", "attempts", b.retryCfg.MaxAttempts, "error", err)
		if gerr := b.s.gate.SetReady(owner, false); gerr != nil {
			b.log.Warn("image ready clear failed", "error", gerr)
		}
		b.s.setImageInitialized(false)
		return
	}

	if gerr := b.s.gate.SetReady(owner, true); gerr != nil {
		b.log.Error("image ready set failed", "error", gerr)
		return
	}
	b.s.setImageInitialized(true)
	b.s.refreshSettings(cam)
	b.s.publish(notify.KindImageReady, map[string]string{"thermal": boolString(frame.Thermal())})

	b.mu.Lock()
	bootstrap := !b.bootstrapped && b.firstReady != nil
	if bootstrap {
		b.bootstrapped = true
	}
	hook := b.firstReady
	b.mu.Unlock()
	if bootstrap {
		hook(cam, frame)
	}
}

// proveFrame checks grabber readiness and extracts one frame under the
// image lock. Transient driver failures surface as retryable errors.
func (b *Bridge) proveFrame(owner *locks.Owner, cam device.Camera) (device.Frame, error) {
	var frame device.Frame
	err := b.s.lm.With(owner, locks.Image, func() error {
		state, serr := cam.GrabberState()
		if serr != nil {
			return errors.WrapTransient(serr, "Bridge", "proveFrame", "grabber state read")
		}
		if state != device.GrabberReady {
			return errors.ErrGrabberNotReady
		}

		var ferr error
		b.s.mu.RLock()
		thermal := b.s.thermalSupported
		b.s.mu.RUnlock()
		if thermal {
			frame, ferr = cam.ThermalFrame()
		} else {
			frame, ferr = cam.VisualFrame()
		}
		if ferr != nil {
			return errors.WrapTransient(ferr, "Bridge", "proveFrame", "frame extraction")
		}
		if frame == nil || !frame.Valid() {
			return errors.ErrFrameInvalid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// genericHandler returns the diagnostic catch-all for one event name. It
// logs the event's public properties and has no state-mutation side
// effects.
func (b *Bridge) genericHandler(name device.EventName) device.EventHandler {
	category := device.Catalog[name].Category
	return func(e device.Event) {
		b.s.metrics.EventsReceived.WithLabelValues(string(name)).Inc()
		b.log.Debug("driver event", "event", string(name), "category", string(category), "args", e.Args)
	}
}

// onDeviceFound maintains registry membership from the discovery callback.
func (b *Bridge) onDeviceFound(d device.Descriptor) {
	if b.s.registry.Add(d) {
		b.s.metrics.DevicesRegistered.Set(float64(b.s.registry.Len()))
		b.s.publish(notify.KindDeviceFound, map[string]string{
			"device": d.Name,
			"id":     string(d.ID),
		})
	}
}

// onDeviceLost removes the device and tears the session down when the lost
// device was the active connection.
func (b *Bridge) onDeviceLost(d device.Descriptor) {
	selected, wasSelected := b.s.registry.Selected()
	active := wasSelected && selected.ID == d.ID && b.s.Status() == device.StatusConnected

	if b.s.registry.Remove(d.ID) {
		b.s.metrics.DevicesRegistered.Set(float64(b.s.registry.Len()))
		b.s.publish(notify.KindDeviceLost, map[string]string{
			"device": d.Name,
			"id":     string(d.ID),
		})
	}

	if active {
		b.log.Warn("active device lost", "device", d.Name)
		b.s.HandleHardwareDisconnect(TriggerDeviceLost)
	}
}
