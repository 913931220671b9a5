package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/c360/thermalink/device"
	"github.com/c360/thermalink/health"
)

// defaultHeartbeatInterval is the reference probe cadence.
const defaultHeartbeatInterval = 1 * time.Second

// heartbeatStopJoin bounds how long Stop waits for the loop to exit.
const heartbeatStopJoin = 2 * time.Second

// BusyProbe reports whether the camera is busy with an internal operation
// (NUC, autofocus, calibration) during which liveness probes are
// unreliable. This is an extension seam: the reference behavior treats the
// device as never busy.
type BusyProbe interface {
	Busy(cam device.Camera) (bool, error)
}

// NoBusyProbe is the default probe; it always reports not busy.
type NoBusyProbe struct{}

// Busy always reports not busy.
func (NoBusyProbe) Busy(device.Camera) (bool, error) { return false, nil }

// Heartbeat supervises hardware liveness on a background loop. It detects
// silent disconnections: the hardware going away without the driver ever
// firing its own disconnect event.
type Heartbeat struct {
	s        *Session
	log      *slog.Logger
	interval time.Duration
	probe    BusyProbe
	enabled  bool

	// monitor receives the probe verdicts when set, so the daemon's health
	// surface reflects hardware liveness, not just connect-time state.
	monitor *health.Monitor

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

func newHeartbeat(s *Session) *Heartbeat {
	return &Heartbeat{
		s:        s,
		log:      s.log,
		interval: defaultHeartbeatInterval,
		probe:    NoBusyProbe{},
		enabled:  true,
	}
}

// Start launches the probe loop. A no-op when supervision is disabled or the
// loop is already alive; aliveness is verified against the loop itself
// rather than a flag, so a loop that exited on its own can always be
// restarted.
func (h *Heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.enabled {
		h.log.Info("heartbeat disabled, skipping liveness supervision")
		return
	}

	if h.doneCh != nil {
		select {
		case <-h.doneCh:
			// Previous loop exited; fall through and restart.
		default:
			return
		}
	}

	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	go h.run(h.stopCh, h.doneCh)
	h.log.Info("heartbeat started", "interval", h.interval)
}

// Stop signals the loop and joins it with a bounded wait. Never blocks
// indefinitely; a loop stuck inside a driver call is abandoned after the
// join timeout.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	stopCh, doneCh := h.stopCh, h.doneCh
	h.stopCh = nil
	h.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)

	timer := time.NewTimer(heartbeatStopJoin)
	defer timer.Stop()
	select {
	case <-doneCh:
		h.log.Info("heartbeat stopped")
	case <-timer.C:
		h.log.Warn("heartbeat stop join timed out", "timeout", heartbeatStopJoin)
	}
}

// Running reports whether the loop is currently alive.
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.doneCh == nil {
		return false
	}
	select {
	case <-h.doneCh:
		return false
	default:
		return true
	}
}

func (h *Heartbeat) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

// tick runs one probe. Panics and transient failures are contained so the
// loop survives the device object being disposed mid-check by a concurrent
// disconnect.
func (h *Heartbeat) tick() {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("heartbeat tick panicked", "panic", r)
		}
	}()

	h.s.metrics.HeartbeatTicks.Inc()

	cam := h.s.cameraRef()
	if cam == nil {
		return
	}

	if busy, err := h.probe.Busy(cam); err != nil {
		h.log.Debug("busy probe failed", "error", err)
	} else if busy {
		h.log.Debug("camera busy, skipping liveness probe")
		return
	}

	alive, err := cam.IsConnected()
	if err != nil {
		// Transient interop failure; next tick retries.
		h.log.Debug("liveness probe failed", "error", err)
		return
	}

	if alive {
		if h.monitor != nil {
			h.monitor.UpdateHealthy("heartbeat", "camera alive")
		}
		return
	}

	if h.s.Status() == device.StatusConnected {
		h.log.Warn("silent hardware disconnection detected")
		h.s.metrics.HeartbeatFailed.Inc()
		if h.monitor != nil {
			h.monitor.UpdateUnhealthy("heartbeat", "silent hardware disconnection")
		}
		// Teardown stops the heartbeat and joins its loop; it must not run
		// on the loop's own goroutine.
		go h.s.HandleHardwareDisconnect(TriggerHeartbeat)
	}
}
