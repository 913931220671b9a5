// Package session implements the camera connection lifecycle: discovery,
// format negotiation, connect, post-connect validation, heartbeat
// supervision, and the single teardown path shared by every disconnect
// trigger.
//
// One Session coordinates the single physical device handle per process.
// Construct it once in the composition root and inject it; there is no
// package-level instance.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/thermalink/device"
	"github.com/c360/thermalink/errors"
	"github.com/c360/thermalink/gate"
	"github.com/c360/thermalink/health"
	"github.com/c360/thermalink/locks"
	"github.com/c360/thermalink/metric"
	"github.com/c360/thermalink/notify"
	"github.com/c360/thermalink/pkg/poll"
	"github.com/c360/thermalink/pkg/retry"
	"github.com/c360/thermalink/registry"
)

// Trigger identifies which path entered the teardown routine.
type Trigger string

// Teardown triggers. Three independent detectors, one teardown.
const (
	TriggerExplicit    Trigger = "explicit"
	TriggerNativeEvent Trigger = "native-event"
	TriggerHeartbeat   Trigger = "heartbeat"
	TriggerDeviceLost  Trigger = "device-lost"
)

// ScanStatus tracks the discovery sub-state.
type ScanStatus int

// Scan statuses.
const (
	ScanIdle ScanStatus = iota
	ScanActive
	ScanDone
)

// String returns a string representation of the scan status
func (s ScanStatus) String() string {
	switch s {
	case ScanActive:
		return "scanning"
	case ScanDone:
		return "done"
	default:
		return "idle"
	}
}

// Config tunes the session's bounded waits and policies.
type Config struct {
	ScanTimeout       time.Duration
	ScanInterval      time.Duration
	ConnectTimeout    time.Duration
	ConnectInterval   time.Duration
	AutoConnectWindow time.Duration
	AutoConnectPoll   time.Duration

	// StrictAuth aborts connect when authentication is not approved or the
	// device info cannot be resolved. Off by default: most deployments run
	// unauthenticated and the driver enforces its own rejection.
	StrictAuth bool

	// DefaultFormat is the label or token auto-connect selects when the
	// caller negotiated nothing. Empty means "Dual".
	DefaultFormat string
}

// DefaultConfig returns the reference timing behavior.
func DefaultConfig() Config {
	return Config{
		ScanTimeout:       30 * time.Second,
		ScanInterval:      100 * time.Millisecond,
		ConnectTimeout:    30 * time.Second,
		ConnectInterval:   100 * time.Millisecond,
		AutoConnectWindow: 60 * time.Second,
		AutoConnectPoll:   1 * time.Second,
	}
}

// FetchOptions modifies a FetchResources call.
type FetchOptions struct {
	// ForceScan resets the registry and scans from scratch even when
	// devices are already known.
	ForceScan bool
	// Reconnect tears the current connection down first and keeps the
	// event wiring for the next connect.
	Reconnect bool
	// Chosen selects a specific device instead of the first discovered.
	Chosen device.ID
}

// Session is the connection lifecycle state machine.
type Session struct {
	log      *slog.Logger
	lm       *locks.Manager
	driver   device.Driver
	registry *registry.Registry
	gate     *gate.Gate
	notifier notify.Publisher
	metrics  *metric.Metrics
	cfg      Config
	security *device.SecurityParameters

	bridge    *Bridge
	heartbeat *Heartbeat

	mu               sync.RWMutex
	status           device.ConnectionStatus
	scanStatus       ScanStatus
	scanWired        bool
	camera           device.Camera
	format           device.StreamingFormat
	formatName       string
	thermalSupported bool
	visualSupported  bool
	dualStreaming    bool
	initialized      bool
	imageInitialized bool
	lastInfo         *device.Info
	camInfo          *CameraInfo

	// teardownMu serializes the teardown routine across its three triggers.
	teardownMu sync.Mutex
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets the outbound notification publisher.
func WithNotifier(p notify.Publisher) Option {
	return func(s *Session) { s.notifier = p }
}

// WithMetrics sets the metric set, normally the registry-installed one.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithSecurity provides credentials for the authenticated handshake.
func WithSecurity(sec *device.SecurityParameters) Option {
	return func(s *Session) { s.security = sec }
}

// WithHeartbeatInterval overrides the liveness probe interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Session) { s.heartbeat.interval = d }
}

// WithBusyProbe installs a busy-state probe for the heartbeat.
func WithBusyProbe(p BusyProbe) Option {
	return func(s *Session) { s.heartbeat.probe = p }
}

// WithHeartbeat enables or disables liveness supervision. Disabled, the
// session relies solely on the driver's own disconnect events.
func WithHeartbeat(enabled bool) Option {
	return func(s *Session) { s.heartbeat.enabled = enabled }
}

// WithHealthMonitor routes heartbeat probe verdicts into the monitor.
func WithHealthMonitor(m *health.Monitor) Option {
	return func(s *Session) { s.heartbeat.monitor = m }
}

// WithImageInitRetry overrides the image initialization retry schedule,
// used by tests to shorten the backoff.
func WithImageInitRetry(cfg retry.Config) Option {
	return func(s *Session) { s.bridge.retryCfg = cfg }
}

// WithFirstReadyHook installs the lazy downstream bootstrap callback, run
// exactly once on the first successful image initialization with the live
// camera handle and the proven frame.
func WithFirstReadyHook(fn func(cam device.Camera, frame device.Frame)) Option {
	return func(s *Session) { s.bridge.firstReady = fn }
}

// New creates a disconnected session. The heartbeat does not run until the
// first successful connect.
func New(log *slog.Logger, lm *locks.Manager, drv device.Driver, reg *registry.Registry, g *gate.Gate, cfg Config, opts ...Option) *Session {
	s := &Session{
		log:      log,
		lm:       lm,
		driver:   drv,
		registry: reg,
		gate:     g,
		notifier: notify.Noop{},
		metrics:  metric.NewMetrics(),
		cfg:      cfg,
		status:   device.StatusDisconnected,
	}
	s.bridge = newBridge(s)
	s.heartbeat = newHeartbeat(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current connection status.
func (s *Session) Status() device.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ScanState returns the discovery sub-state.
func (s *Session) ScanState() ScanStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanStatus
}

// IsInitialized reports whether a connection has been established.
func (s *Session) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// IsImageInitialized reports whether the image pipeline has been proven.
func (s *Session) IsImageInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageInitialized
}

// SelectedFormat returns the negotiated streaming format and its name.
func (s *Session) SelectedFormat() (device.StreamingFormat, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.format, s.formatName
}

// cameraRef returns the native camera handle, nil when disconnected. The
// heartbeat reads through this without taking the camera lock so its probes
// stay non-blocking.
func (s *Session) cameraRef() device.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera
}

// StartScanning begins asynchronous discovery. Failures are logged and
// leave the scan status unset; the caller retries.
func (s *Session) StartScanning() bool {
	scanner := s.driver.Scanner()

	s.mu.Lock()
	if !s.scanWired {
		scanner.OnDeviceFound(s.bridge.onDeviceFound)
		scanner.OnDeviceLost(s.bridge.onDeviceLost)
		s.scanWired = true
	}
	s.mu.Unlock()

	if err := scanner.Start(device.InterfaceDefault); err != nil {
		s.log.Error("discovery start failed", "error", err)
		s.metrics.ScansTotal.WithLabelValues("start_failed").Inc()
		return false
	}

	s.mu.Lock()
	s.scanStatus = ScanActive
	s.mu.Unlock()
	s.log.Info("discovery started")
	return true
}

// StopScanning halts discovery.
func (s *Session) StopScanning() {
	if err := s.driver.Scanner().Stop(); err != nil {
		s.log.Warn("discovery stop failed", "error", err)
	}
	s.mu.Lock()
	s.scanStatus = ScanIdle
	s.mu.Unlock()
}

// FetchResources is the idempotent resource-acquisition step: scan, wait
// for at least one device, select one, and load its streaming formats.
// Returns false when no device was found within the scan ceiling.
func (s *Session) FetchResources(ctx context.Context, opts FetchOptions) bool {
	if s.Status() == device.StatusConnected && !opts.ForceScan && !opts.Reconnect {
		return true
	}

	if opts.Reconnect {
		s.Disconnect(true)
	}
	if opts.ForceScan {
		s.StopScanning()
		s.registry.Reset()
	}

	if s.registry.Len() == 0 || opts.ForceScan {
		if !s.StartScanning() {
			return false
		}

		result, err := poll.Until(ctx, s.cfg.ScanInterval, s.cfg.ScanTimeout, func() (bool, error) {
			return s.registry.Len() > 0, nil
		})
		if result != poll.Success {
			s.log.Error("device scan did not complete", "result", result.String(), "timeout", s.cfg.ScanTimeout, "error", err)
			s.metrics.ScansTotal.WithLabelValues("timeout").Inc()
			return false
		}
	}

	s.mu.Lock()
	s.scanStatus = ScanDone
	s.mu.Unlock()
	s.metrics.ScansTotal.WithLabelValues("success").Inc()

	scanner := s.driver.Scanner()
	if opts.Chosen != "" {
		if !s.registry.Select(opts.Chosen, scanner) {
			s.log.Error("chosen device not found", "id", opts.Chosen)
			return false
		}
	} else if _, ok := s.registry.Selected(); !ok {
		first, ok := s.registry.First()
		if !ok {
			s.log.Error("no devices found after scan")
			return false
		}
		s.registry.Select(first.ID, scanner)
	}

	if info := s.registry.SelectedInfo(); info != nil {
		s.mu.Lock()
		s.lastInfo = info
		s.mu.Unlock()
	}
	s.metrics.DevicesRegistered.Set(float64(s.registry.Len()))
	return true
}

// GetStreamingFormats returns the selected device's supported formats in
// priority order: thermal-radiometric first, dual second, pure-visual third.
func (s *Session) GetStreamingFormats() []device.FormatOption {
	info := s.registry.SelectedInfo()
	if info == nil {
		s.mu.RLock()
		info = s.lastInfo
		s.mu.RUnlock()
	}
	if info == nil {
		return nil
	}
	return device.FormatOptions(info.StreamingFormats)
}

// SetStreamingFormat maps a user-facing label (or raw format token) to the
// driver-native format and stores the negotiated selection.
func (s *Session) SetStreamingFormat(label string) bool {
	f, ok := device.FormatByLabel(label)
	if !ok {
		s.log.Error("unsupported streaming format", "label", label)
		return false
	}

	s.mu.Lock()
	s.format = f
	s.formatName = f.String()
	s.thermalSupported = f == device.FormatFlirFile || f == device.FormatDual
	s.visualSupported = f == device.FormatArgb || f == device.FormatDual
	s.dualStreaming = f == device.FormatDual
	s.mu.Unlock()

	s.log.Info("streaming format selected", "format", f.String(), "label", f.Label())
	return true
}

// Connect establishes the session under the camera lock. Every failure is
// logged and surfaces as false; the session is left in a safe disconnected
// state. The reconnect flag skips event wiring, which survives from the
// previous connect.
func (s *Session) Connect(ctx context.Context, authenticated, reconnect bool) bool {
	owner := s.lm.NewOwner()

	var ok bool
	err := s.lm.With(owner, locks.Camera, func() error {
		ok = s.connectLocked(ctx, owner, authenticated, reconnect)
		return nil
	})
	if err != nil {
		s.log.Error("connect could not take camera lock", "error", err)
		s.metrics.LockTimeouts.WithLabelValues(string(locks.Camera)).Inc()
		return false
	}
	if ok {
		s.metrics.ConnectsTotal.WithLabelValues("success").Inc()
		s.metrics.Connected.Set(1)
	} else {
		s.metrics.ConnectsTotal.WithLabelValues("failure").Inc()
	}
	return ok
}

// connectLocked runs the connect sequence with the camera lock held.
func (s *Session) connectLocked(ctx context.Context, owner *locks.Owner, authenticated, reconnect bool) bool {
	switch s.Status() {
	case device.StatusConnected:
		s.log.Info("already connected")
		return true
	case device.StatusDisconnecting:
		s.log.Error("connect rejected", "error", errors.ErrDisconnecting)
		return false
	}

	s.setStatus(device.StatusConnecting)

	selected, haveSelected := s.registry.Selected()
	if !haveSelected {
		s.log.Error("connect failed", "error", errors.ErrDeviceNotFound)
		s.setStatus(device.StatusDisconnected)
		return false
	}

	scanner := s.driver.Scanner()
	info := s.registry.SelectedInfo()

	if authenticated {
		status, err := scanner.Authenticate(selected, s.security, info)
		if err != nil || status != device.AuthApproved {
			s.log.Warn("authentication not approved", "status", status.String(), "error", err)
			if s.cfg.StrictAuth {
				s.log.Error("connect aborted", "error", errors.ErrAuthNotApproved)
				s.setStatus(device.StatusDisconnected)
				return false
			}
		}
	}

	resolved, err := scanner.Resolve(selected)
	if err != nil {
		s.log.Warn("device info resolve failed", "device", selected.Name, "error", err)
		if s.cfg.StrictAuth {
			s.log.Error("connect aborted", "error", errors.ErrResolveFailed)
			s.setStatus(device.StatusDisconnected)
			return false
		}
	} else {
		s.registry.SetSelectedInfo(resolved)
		info = resolved
		s.mu.Lock()
		s.lastInfo = resolved
		s.mu.Unlock()
	}
	if info == nil {
		s.mu.RLock()
		info = s.lastInfo
		s.mu.RUnlock()
	}
	if info == nil {
		s.log.Error("connect failed", "error", errors.ErrResolveFailed)
		s.setStatus(device.StatusDisconnected)
		return false
	}

	format, _ := s.SelectedFormat()
	if format == device.FormatUnknown {
		if !s.negotiateDefaultFormat(info) {
			s.setStatus(device.StatusDisconnected)
			return false
		}
		format, _ = s.SelectedFormat()
	}

	kind, ok := format.Kind()
	if !ok {
		s.log.Error("connect failed", "error", errors.ErrUnsupportedFormat, "format", format.String())
		s.setStatus(device.StatusDisconnected)
		return false
	}

	// A reconnect reuses the surviving native camera object and its event
	// wiring; a fresh connect constructs the discriminated camera type and
	// wires handlers.
	s.mu.RLock()
	cam := s.camera
	s.mu.RUnlock()
	if !reconnect || cam == nil {
		var cerr error
		cam, cerr = s.driver.NewCamera(kind, device.DualFusion)
		if cerr != nil {
			s.log.Error("camera construction failed", "kind", kind.String(), "error", cerr)
			s.setStatus(device.StatusDisconnected)
			return false
		}
		s.mu.Lock()
		s.camera = cam
		s.mu.Unlock()
		s.bridge.Wire(owner, cam)
	}

	if err := cam.Connect(info, s.security); err != nil {
		s.log.Error("driver connect failed", "error", err)
		s.abortConnect(owner)
		return false
	}

	result, perr := poll.Until(ctx, s.cfg.ConnectInterval, s.cfg.ConnectTimeout, func() (bool, error) {
		connected, cerr := cam.IsConnected()
		if cerr != nil {
			// Transient interop failure; keep polling.
			return false, nil
		}
		return connected, nil
	})
	if result != poll.Success {
		s.log.Error("connection confirmation failed", "result", result.String(), "timeout", s.cfg.ConnectTimeout, "error", perr)
		s.abortConnect(owner)
		return false
	}

	if grabbing, gerr := cam.IsGrabbing(); gerr != nil || !grabbing {
		if err := cam.StartGrabbing(); err != nil {
			s.log.Error("start grabbing failed", "error", err)
			s.abortConnect(owner)
			return false
		}
	}

	s.setStatus(device.StatusConnected)
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	s.log.Info("camera connected", "device", selected.Name, "format", format.String())
	s.publish(notify.KindConnectionStatus, map[string]string{
		"status": device.StatusConnected.String(),
		"device": selected.Name,
	})

	// Speculative frame proof: one extraction attempt. A proven frame
	// synthesizes the image-initialized sequence in case the driver's own
	// event was missed or raced with the connect. An unready grabber is
	// left to the real event, so the retry schedule never runs while the
	// camera lock is held.
	if _, perr := s.bridge.proveFrame(owner, cam); perr == nil {
		s.bridge.handleImageInitialized(owner)
	} else {
		s.log.Warn("image not ready at connect, waiting for driver event", "error", perr)
	}

	s.heartbeat.Start()
	return true
}

// negotiateDefaultFormat selects the configured default, falling back to the
// device's highest-priority supported format.
func (s *Session) negotiateDefaultFormat(info *device.Info) bool {
	label := s.cfg.DefaultFormat
	if label == "" {
		label = device.FormatDual.String()
	}
	if f, ok := device.FormatByLabel(label); ok && len(info.StreamingFormats) > 0 {
		supported := false
		for _, have := range info.StreamingFormats {
			if have == f {
				supported = true
				break
			}
		}
		if !supported {
			sorted := device.SortFormats(info.StreamingFormats)
			s.log.Warn("default format unsupported by device, using best supported",
				"default", label, "chosen", sorted[0].String())
			return s.SetStreamingFormat(sorted[0].String())
		}
	}
	return s.SetStreamingFormat(label)
}

// abortConnect tears down a half-built connection while the camera lock is
// already held by owner. Best effort, log and continue per step.
func (s *Session) abortConnect(owner *locks.Owner) {
	s.mu.Lock()
	cam := s.camera
	s.camera = nil
	s.initialized = false
	s.imageInitialized = false
	s.mu.Unlock()

	s.bridge.Cleanup(owner)

	if cam != nil {
		if err := cam.Disconnect(); err != nil {
			s.log.Warn("disconnect during abort failed", "error", err)
		}
		if err := cam.Dispose(); err != nil {
			s.log.Warn("dispose during abort failed", "error", err)
		}
	}
	s.setStatus(device.StatusDisconnected)
	s.metrics.Connected.Set(0)
}

// AutoConnect composes resource acquisition, default format selection and
// connect, then waits for both the connection and the image pipeline to be
// confirmed within the auto-connect window.
func (s *Session) AutoConnect(ctx context.Context) bool {
	if !s.FetchResources(ctx, FetchOptions{}) {
		return false
	}

	if f, _ := s.SelectedFormat(); f == device.FormatUnknown {
		label := s.cfg.DefaultFormat
		if label == "" {
			label = device.FormatDual.String()
		}
		if !s.SetStreamingFormat(label) {
			return false
		}
	}

	if !s.Connect(ctx, s.security != nil, false) {
		return false
	}

	result, err := poll.Until(ctx, s.cfg.AutoConnectPoll, s.cfg.AutoConnectWindow, func() (bool, error) {
		return s.Status() == device.StatusConnected && s.IsImageInitialized(), nil
	})
	if result != poll.Success {
		s.log.Error("auto-connect readiness wait failed", "result", result.String(), "error", err)
		return false
	}
	return true
}

// Disconnect runs the explicit teardown. The reconnect flag keeps the event
// wiring alive for an immediately following connect.
func (s *Session) Disconnect(reconnect bool) {
	s.teardown(TriggerExplicit, reconnect)
}

// HandleHardwareDisconnect is the teardown entry for the two hardware
// detectors: the native disconnect event and the heartbeat probe.
func (s *Session) HandleHardwareDisconnect(trigger Trigger) {
	s.teardown(trigger, false)
}

// teardown is the single teardown critical section. Safe to invoke
// repeatedly and from concurrent triggers; only the invocation that finds a
// live session performs work and publishes the disconnect notification.
func (s *Session) teardown(trigger Trigger, reconnect bool) {
	s.teardownMu.Lock()
	defer s.teardownMu.Unlock()

	s.mu.Lock()
	if s.camera == nil && s.status == device.StatusDisconnected {
		s.mu.Unlock()
		s.metrics.TeardownsTotal.WithLabelValues("noop").Inc()
		return
	}
	s.mu.Unlock()

	s.log.Info("teardown started", "trigger", string(trigger), "reconnect", reconnect)

	// The heartbeat stops first so its probes cannot race the teardown it
	// may itself have triggered.
	s.heartbeat.Stop()

	owner := s.lm.NewOwner()
	err := s.lm.With(owner, locks.Camera, func() error {
		s.setStatus(device.StatusDisconnecting)

		cam := s.clearConnectionState(owner, reconnect)

		if cam != nil {
			if cerr := cam.StopGrabbing(); cerr != nil {
				s.log.Warn("stop grabbing failed", "error", cerr)
			}
			if cerr := cam.Disconnect(); cerr != nil {
				s.log.Warn("driver disconnect failed", "error", cerr)
			}
			if !reconnect {
				if cerr := cam.Dispose(); cerr != nil {
					s.log.Warn("driver dispose failed", "error", cerr)
				}
			}
		}

		s.setStatus(device.StatusDisconnected)
		return nil
	})
	if err != nil {
		s.log.Error("teardown could not take camera lock", "error", err)
		s.metrics.LockTimeouts.WithLabelValues(string(locks.Camera)).Inc()

		// The driver calls are lost, but the session state must still reset:
		// no flag, handle or event wiring may survive a disconnect.
		if cam := s.clearConnectionState(owner, reconnect); cam != nil && !reconnect {
			s.log.Warn("camera handle dropped without dispose")
		}
		s.setStatus(device.StatusDisconnected)
	}

	if !reconnect {
		s.registry.ClearSelection()
	}

	s.metrics.Connected.Set(0)
	s.metrics.DisconnectsTotal.WithLabelValues(string(trigger)).Inc()
	s.metrics.TeardownsTotal.WithLabelValues("done").Inc()
	s.publish(notify.KindDisconnect, map[string]string{
		"reason":    string(trigger),
		"reconnect": boolString(reconnect),
	})
	s.log.Info("teardown complete", "trigger", string(trigger))
}

// clearConnectionState resets the connection flags and, depending on the
// reconnect flag, either keeps the event wiring with readiness dropped or
// unwires the bridge entirely. Returns the camera handle that was held so
// the caller can run the driver calls; nil after a full clear.
func (s *Session) clearConnectionState(owner *locks.Owner, reconnect bool) device.Camera {
	s.mu.Lock()
	cam := s.camera
	if !reconnect {
		s.camera = nil
	}
	s.initialized = false
	s.imageInitialized = false
	s.camInfo = nil
	s.mu.Unlock()

	if reconnect {
		// Keep the handler wiring; just drop readiness.
		if gerr := s.gate.SetReady(owner, false); gerr != nil {
			s.log.Warn("image ready clear failed", "error", gerr)
		}
	} else {
		s.bridge.Cleanup(owner)
	}
	return cam
}

// setStatus mutates the connection status.
func (s *Session) setStatus(status device.ConnectionStatus) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.mu.Unlock()
	s.log.Info("connection status changed", "status", status.String())
}

// mirrorNativeStatus applies a driver-reported status to the session. A
// native disconnect is routed through the shared teardown path.
func (s *Session) mirrorNativeStatus(status device.ConnectionStatus) {
	if status == device.StatusDisconnected {
		if s.Status() != device.StatusDisconnected {
			s.HandleHardwareDisconnect(TriggerNativeEvent)
		}
		return
	}
	s.setStatus(status)
}

// setImageInitialized records the image pipeline proof state.
func (s *Session) setImageInitialized(ok bool) {
	s.mu.Lock()
	s.imageInitialized = ok
	s.mu.Unlock()
	if ok {
		s.metrics.ImageReady.Set(1)
	} else {
		s.metrics.ImageReady.Set(0)
	}
}

func (s *Session) publish(kind notify.Kind, data map[string]string) {
	n := notify.New(kind, "session", data)
	if err := s.notifier.Publish(context.Background(), n); err != nil {
		s.log.Warn("notification publish failed", "kind", string(kind), "error", err)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
