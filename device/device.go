// Package device defines the boundary to the native thermal camera driver.
//
// The vendor SDK is an external collaborator: this package specifies the
// interfaces the rest of the system programs against (discovery, resolve,
// connect, grab, property reads, event subscription) plus the small value
// types that cross the boundary. A full in-process mock driver lives in
// mock.go for tests and for running the daemon without hardware.
package device

// ID is the vendor-assigned opaque device identifier.
type ID string

// Interface tags the transport a device was discovered on.
type Interface string

// Discovery interface tags.
const (
	InterfaceDefault Interface = "default"
	InterfaceNetwork Interface = "network"
	InterfaceUSB     Interface = "usb"
	InterfaceGigabit Interface = "gigabit"
)

// Descriptor represents a discovered candidate camera. Descriptors are
// lightweight; the expensive per-device resolve step produces an Info.
type Descriptor struct {
	ID        ID
	Name      string
	Interface Interface
}

// Info is the resolved "device info" blob for a descriptor.
type Info struct {
	Name                    string
	SerialNumber            string
	Article                 string
	DeviceIdentifier        string
	IPAddress               string
	StreamingFormats        []StreamingFormat
	SelectedStreamingFormat StreamingFormat
}

// SecurityParameters carries the authenticated-handshake material. The
// authentication subsystem is optional in most deployments.
type SecurityParameters struct {
	Username string
	Password string
}

// AuthStatus is the driver's answer to an authenticated resolve.
type AuthStatus int

// Authentication statuses.
const (
	AuthUnknown AuthStatus = iota
	AuthApproved
	AuthDenied
	AuthPending
)

// String returns a string representation of the authentication status
func (a AuthStatus) String() string {
	switch a {
	case AuthApproved:
		return "approved"
	case AuthDenied:
		return "denied"
	case AuthPending:
		return "pending"
	default:
		return "unknown"
	}
}

// ConnectionStatus mirrors the driver's native connection state. The session
// reuses the same enum for its own status so event mirroring is lossless.
type ConnectionStatus int

// Connection statuses.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusDisconnecting
)

// String returns a string representation of the connection status
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// ParseConnectionStatus maps a status string back to the enum. Unrecognized
// strings map to StatusDisconnected, the safe interpretation.
func ParseConnectionStatus(s string) ConnectionStatus {
	switch s {
	case "connecting":
		return StatusConnecting
	case "connected":
		return StatusConnected
	case "disconnecting":
		return StatusDisconnecting
	default:
		return StatusDisconnected
	}
}

// GrabberState reports frame-grabber readiness.
type GrabberState int

// Grabber states.
const (
	GrabberNotReady GrabberState = iota
	GrabberInitializing
	GrabberReady
)

// String returns a string representation of the grabber state
func (g GrabberState) String() string {
	switch g {
	case GrabberNotReady:
		return "not_ready"
	case GrabberInitializing:
		return "initializing"
	case GrabberReady:
		return "ready"
	default:
		return "unknown"
	}
}

// CameraKind discriminates the three mutually exclusive native camera
// representations. Exactly one is constructed per connect, selected once at
// format negotiation and never re-discriminated afterwards.
type CameraKind int

// Camera kinds.
const (
	KindThermal CameraKind = iota
	KindVisual
	KindDual
)

// String returns a string representation of the camera kind
func (k CameraKind) String() string {
	switch k {
	case KindThermal:
		return "thermal"
	case KindVisual:
		return "visual"
	case KindDual:
		return "dual"
	default:
		return "unknown"
	}
}

// DualFormat selects the composition mode of a dual-streaming camera.
type DualFormat int

// Dual streaming modes.
const (
	DualFusion DualFormat = iota
	DualSeparate
)

// CameraInformation is the static hardware metadata read after the image
// pipeline initializes.
type CameraInformation struct {
	Model        string
	SerialNumber string
	Lens         string
	FOV          float64
	Range        string
	Filter       string
	FPS          float64
	Width        int
	Height       int
}

// Frame is a live image object handed out by the driver. Downstream
// extraction code owns decoding; this core only validates liveness.
type Frame interface {
	// Valid reports whether the underlying native object is usable.
	Valid() bool
	// Thermal reports whether this is a radiometric frame.
	Thermal() bool
}

// Subscription is a live event registration. Cancel detaches the handler;
// the subscriber must keep the Subscription (and its handler) referenced
// until cancelled, since the native mechanism does not keep handlers alive.
type Subscription interface {
	Cancel() error
}

// EventHandler receives driver events. Handlers run on the driver's
// callback-delivery goroutine and must not block indefinitely.
type EventHandler func(e Event)

// Event is a driver callback payload. Args carries the event's public
// properties as strings for diagnostic capture.
type Event struct {
	Name EventName
	Args map[string]string
}

// Scanner drives asynchronous device discovery.
type Scanner interface {
	// Start begins asynchronous discovery on the given interface.
	Start(iface Interface) error
	// Stop halts discovery.
	Stop() error
	// Resolve fetches the full device info for a descriptor. May be
	// expensive; deliberately separate from the discovery event.
	Resolve(d Descriptor) (*Info, error)
	// Authenticate performs the optional security handshake during
	// connect-time resolve.
	Authenticate(d Descriptor, sec *SecurityParameters, info *Info) (AuthStatus, error)
	// OnDeviceFound registers the discovery callback. At most one
	// callback is retained.
	OnDeviceFound(fn func(Descriptor))
	// OnDeviceLost registers the loss callback. At most one callback is
	// retained.
	OnDeviceLost(fn func(Descriptor))
}

// Camera is the connected device handle. Property reads can fail
// transiently while the native object is mid-operation; callers treat such
// errors as "try again later".
type Camera interface {
	Kind() CameraKind
	Connect(info *Info, sec *SecurityParameters) error
	Disconnect() error
	Dispose() error
	IsConnected() (bool, error)
	IsGrabbing() (bool, error)
	GrabberState() (GrabberState, error)
	StartGrabbing() error
	StopGrabbing() error
	// ThermalFrame returns the live radiometric image object, or an error
	// while the pipeline is not ready.
	ThermalFrame() (Frame, error)
	// VisualFrame returns the live visual image object, or an error while
	// the pipeline is not ready.
	VisualFrame() (Frame, error)
	// PaletteName reads the active palette via the remote-control surface.
	PaletteName() (string, error)
	// Information reads the static hardware metadata.
	Information() (*CameraInformation, error)
	// Subscribe attaches a handler to a named event. Returns an error if
	// this camera does not expose the event.
	Subscribe(name EventName, h EventHandler) (Subscription, error)
}

// Driver is the root of the vendor SDK boundary.
type Driver interface {
	Scanner() Scanner
	// NewCamera constructs the native camera object for the negotiated
	// kind. This is a discriminated construction: exactly one of the
	// three driver object types is instantiated.
	NewCamera(kind CameraKind, dual DualFormat) (Camera, error)
}
