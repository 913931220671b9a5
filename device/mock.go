package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/c360/thermalink/errors"
)

// MockDriver is an in-process driver used by tests and by thermalinkd when
// no hardware is attached. Behavior is configurable per scenario: discovery
// latency, authentication outcome, connect failures, a grabber that never
// becomes ready, and silent liveness loss.
type MockDriver struct {
	mu sync.Mutex

	devices    []Descriptor
	infos      map[ID]*Info
	scanDelay  time.Duration
	neverScan  bool
	resolveErr error
	authStatus AuthStatus

	connectDelay      time.Duration
	connectErr        error
	grabberNeverReady bool
	neverConfirm      bool

	scanner *MockScanner
	cameras []*MockCamera
}

// MockOption configures a MockDriver.
type MockOption func(*MockDriver)

// WithMockDevice adds a discoverable device with the given streaming
// formats.
func WithMockDevice(d Descriptor, formats ...StreamingFormat) MockOption {
	return func(md *MockDriver) {
		md.devices = append(md.devices, d)
		md.infos[d.ID] = &Info{
			Name:             d.Name,
			SerialNumber:     fmt.Sprintf("SN-%s", d.ID),
			Article:          "T1020-MOCK",
			DeviceIdentifier: string(d.ID),
			StreamingFormats: formats,
		}
	}
}

// WithScanDelay delays discovery events after Start.
func WithScanDelay(d time.Duration) MockOption {
	return func(md *MockDriver) { md.scanDelay = d }
}

// WithScanNeverCompleting makes discovery never report any device.
func WithScanNeverCompleting() MockOption {
	return func(md *MockDriver) { md.neverScan = true }
}

// WithResolveError makes Resolve fail.
func WithResolveError(err error) MockOption {
	return func(md *MockDriver) { md.resolveErr = err }
}

// WithAuthStatus sets the authentication handshake outcome.
func WithAuthStatus(s AuthStatus) MockOption {
	return func(md *MockDriver) { md.authStatus = s }
}

// WithConnectDelay delays connection confirmation.
func WithConnectDelay(d time.Duration) MockOption {
	return func(md *MockDriver) { md.connectDelay = d }
}

// WithConnectError makes camera connects fail.
func WithConnectError(err error) MockOption {
	return func(md *MockDriver) { md.connectErr = err }
}

// WithGrabberNeverReady keeps the grabber in not-ready state forever.
func WithGrabberNeverReady() MockOption {
	return func(md *MockDriver) { md.grabberNeverReady = true }
}

// WithConnectNeverConfirming makes Connect return without the camera ever
// reporting connected, so confirmation polls time out.
func WithConnectNeverConfirming() MockOption {
	return func(md *MockDriver) { md.neverConfirm = true }
}

// NewMockDriver creates a mock driver. With no options it discovers a single
// dual-capable simulated camera immediately.
func NewMockDriver(opts ...MockOption) *MockDriver {
	md := &MockDriver{
		infos:      make(map[ID]*Info),
		authStatus: AuthApproved,
	}
	for _, opt := range opts {
		opt(md)
	}
	if len(md.devices) == 0 && !md.neverScan {
		WithMockDevice(
			Descriptor{ID: "mock-0", Name: "Mock X1000", Interface: InterfaceDefault},
			FormatFlirFile, FormatArgb, FormatDual,
		)(md)
	}
	md.scanner = &MockScanner{driver: md}
	return md
}

// Scanner returns the discovery scanner.
func (md *MockDriver) Scanner() Scanner {
	return md.scanner
}

// NewCamera constructs a mock camera of the requested kind.
func (md *MockDriver) NewCamera(kind CameraKind, dual DualFormat) (Camera, error) {
	md.mu.Lock()
	defer md.mu.Unlock()

	cam := &MockCamera{
		driver: md,
		kind:   kind,
		dual:   dual,
		alive:  true,
		subs:   make(map[EventName][]*mockSubscription),
	}
	md.cameras = append(md.cameras, cam)
	return cam, nil
}

// Cameras returns every camera constructed so far, for test assertions.
func (md *MockDriver) Cameras() []*MockCamera {
	md.mu.Lock()
	defer md.mu.Unlock()
	out := make([]*MockCamera, len(md.cameras))
	copy(out, md.cameras)
	return out
}

// MockScanner implements Scanner against the driver's configured devices.
type MockScanner struct {
	driver *MockDriver

	mu       sync.Mutex
	scanning bool
	onFound  func(Descriptor)
	onLost   func(Descriptor)
}

// Start begins mock discovery: each configured device is reported on a
// background goroutine after the configured delay, mimicking the driver's
// own callback thread.
func (ms *MockScanner) Start(_ Interface) error {
	ms.mu.Lock()
	if ms.scanning {
		ms.mu.Unlock()
		return nil
	}
	ms.scanning = true
	found := ms.onFound
	ms.mu.Unlock()

	if ms.driver.neverScan {
		return nil
	}

	go func() {
		if ms.driver.scanDelay > 0 {
			time.Sleep(ms.driver.scanDelay)
		}
		ms.mu.Lock()
		stillScanning := ms.scanning
		ms.mu.Unlock()
		if !stillScanning || found == nil {
			return
		}
		for _, d := range ms.driver.devices {
			found(d)
		}
	}()
	return nil
}

// Stop halts mock discovery.
func (ms *MockScanner) Stop() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.scanning = false
	return nil
}

// Resolve returns the configured info blob for a device.
func (ms *MockScanner) Resolve(d Descriptor) (*Info, error) {
	if ms.driver.resolveErr != nil {
		return nil, ms.driver.resolveErr
	}
	info, ok := ms.driver.infos[d.ID]
	if !ok {
		return nil, errors.ErrDeviceNotFound
	}
	cp := *info
	return &cp, nil
}

// Authenticate returns the configured handshake outcome.
func (ms *MockScanner) Authenticate(d Descriptor, _ *SecurityParameters, _ *Info) (AuthStatus, error) {
	if _, ok := ms.driver.infos[d.ID]; !ok {
		return AuthUnknown, errors.ErrDeviceNotFound
	}
	return ms.driver.authStatus, nil
}

// OnDeviceFound registers the discovery callback.
func (ms *MockScanner) OnDeviceFound(fn func(Descriptor)) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.onFound = fn
}

// OnDeviceLost registers the loss callback.
func (ms *MockScanner) OnDeviceLost(fn func(Descriptor)) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.onLost = fn
}

// SimulateDeviceLost fires the device-lost callback, as the native scanner
// would when a device drops off the bus.
func (ms *MockScanner) SimulateDeviceLost(d Descriptor) {
	ms.mu.Lock()
	lost := ms.onLost
	ms.mu.Unlock()
	if lost != nil {
		lost(d)
	}
}

// MockCamera implements Camera with scriptable failure modes.
type MockCamera struct {
	driver *MockDriver
	kind   CameraKind
	dual   DualFormat

	mu           sync.Mutex
	connected    bool
	grabbing     bool
	grabberReady bool
	disposed     bool
	alive        bool
	livenessErr  error
	palette      string

	subs map[EventName][]*mockSubscription
}

type mockSubscription struct {
	cam     *MockCamera
	name    EventName
	handler EventHandler
}

func (s *mockSubscription) Cancel() error {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	entries := s.cam.subs[s.name]
	for i, e := range entries {
		if e == s {
			s.cam.subs[s.name] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return nil
}

// Kind returns the discriminated camera kind.
func (mc *MockCamera) Kind() CameraKind {
	return mc.kind
}

// Connect establishes the mock connection after the configured delay.
func (mc *MockCamera) Connect(_ *Info, _ *SecurityParameters) error {
	if mc.driver.connectErr != nil {
		return mc.driver.connectErr
	}
	if mc.driver.connectDelay > 0 {
		time.Sleep(mc.driver.connectDelay)
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.disposed {
		return errors.ErrDeviceDisposed
	}
	if mc.driver.neverConfirm {
		return nil
	}
	mc.connected = true
	mc.alive = true
	mc.palette = "Iron"
	return nil
}

// Disconnect drops the mock connection.
func (mc *MockCamera) Disconnect() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.connected = false
	mc.grabbing = false
	mc.grabberReady = false
	return nil
}

// Dispose releases the native object; any later property read fails.
func (mc *MockCamera) Dispose() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.disposed = true
	mc.connected = false
	return nil
}

// IsConnected reports liveness, honoring scripted silent loss and scripted
// transient read failures.
func (mc *MockCamera) IsConnected() (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.disposed {
		return false, errors.ErrDeviceDisposed
	}
	if mc.livenessErr != nil {
		return false, mc.livenessErr
	}
	return mc.connected && mc.alive, nil
}

// IsGrabbing reports whether frame capture is running.
func (mc *MockCamera) IsGrabbing() (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.disposed {
		return false, errors.ErrDeviceDisposed
	}
	return mc.grabbing, nil
}

// GrabberState reports pipeline readiness.
func (mc *MockCamera) GrabberState() (GrabberState, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.disposed {
		return GrabberNotReady, errors.ErrDeviceDisposed
	}
	if !mc.grabbing {
		return GrabberNotReady, nil
	}
	if mc.grabberReady {
		return GrabberReady, nil
	}
	return GrabberInitializing, nil
}

// StartGrabbing starts frame capture. The grabber becomes ready immediately
// unless the driver is configured otherwise.
func (mc *MockCamera) StartGrabbing() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.disposed {
		return errors.ErrDeviceDisposed
	}
	mc.grabbing = true
	mc.grabberReady = !mc.driver.grabberNeverReady
	return nil
}

// StopGrabbing stops frame capture.
func (mc *MockCamera) StopGrabbing() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.grabbing = false
	mc.grabberReady = false
	return nil
}

// mockFrame is a trivially valid frame object.
type mockFrame struct {
	thermal bool
}

func (f *mockFrame) Valid() bool   { return true }
func (f *mockFrame) Thermal() bool { return f.thermal }

// ThermalFrame returns a live thermal frame when the pipeline supports and
// has one.
func (mc *MockCamera) ThermalFrame() (Frame, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.kind == KindVisual {
		return nil, errors.ErrFrameInvalid
	}
	if !mc.connected || !mc.grabberReady {
		return nil, errors.ErrGrabberNotReady
	}
	return &mockFrame{thermal: true}, nil
}

// VisualFrame returns a live visual frame when the pipeline supports and
// has one.
func (mc *MockCamera) VisualFrame() (Frame, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.kind == KindThermal {
		return nil, errors.ErrFrameInvalid
	}
	if !mc.connected || !mc.grabberReady {
		return nil, errors.ErrGrabberNotReady
	}
	return &mockFrame{thermal: false}, nil
}

// PaletteName reads the simulated palette.
func (mc *MockCamera) PaletteName() (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.connected {
		return "", errors.ErrNotConnected
	}
	return mc.palette, nil
}

// Information returns the simulated hardware metadata.
func (mc *MockCamera) Information() (*CameraInformation, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.connected {
		return nil, errors.ErrNotConnected
	}
	return &CameraInformation{
		Model:        "Mock X1000",
		SerialNumber: "SN12345678",
		Lens:         "FOL18",
		FOV:          45.0,
		Range:        "-20..650C",
		Filter:       "none",
		FPS:          30,
		Width:        640,
		Height:       480,
	}, nil
}

// Subscribe attaches a handler to a named event. Every event in the taxonomy
// is supported except discovery events, which belong to the scanner; this
// mirrors real cameras not exposing every event.
func (mc *MockCamera) Subscribe(name EventName, h EventHandler) (Subscription, error) {
	info, ok := Catalog[name]
	if !ok || info.Category == CategoryDiscovery {
		return nil, fmt.Errorf("event %q not available on this camera", name)
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	sub := &mockSubscription{cam: mc, name: name, handler: h}
	mc.subs[name] = append(mc.subs[name], sub)
	return sub, nil
}

// SubscriptionCount reports live subscriptions for an event, for tests.
func (mc *MockCamera) SubscriptionCount(name EventName) int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.subs[name])
}

// FireEvent delivers an event to the attached handlers synchronously on the
// caller's goroutine; tests drive it from a separate goroutine when they
// need to mimic the driver callback thread.
func (mc *MockCamera) FireEvent(e Event) {
	mc.mu.Lock()
	entries := append([]*mockSubscription(nil), mc.subs[e.Name]...)
	mc.mu.Unlock()
	for _, s := range entries {
		s.handler(e)
	}
}

// SetAlive scripts silent hardware loss: liveness probes start failing
// without any disconnect event firing.
func (mc *MockCamera) SetAlive(alive bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.alive = alive
}

// SetLivenessError scripts a transient property-read failure.
func (mc *MockCamera) SetLivenessError(err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.livenessErr = err
}

// SimulateStatusChange fires a native connection-status-changed event.
func (mc *MockCamera) SimulateStatusChange(s ConnectionStatus) {
	if s == StatusDisconnected {
		mc.mu.Lock()
		mc.connected = false
		mc.mu.Unlock()
	}
	mc.FireEvent(Event{
		Name: EventConnectionStatusChanged,
		Args: map[string]string{"status": s.String()},
	})
}
