package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/thermalink/errors"
)

func TestMockDriver_Discovery(t *testing.T) {
	md := NewMockDriver()
	sc := md.Scanner()

	found := make(chan Descriptor, 4)
	sc.OnDeviceFound(func(d Descriptor) { found <- d })

	require.NoError(t, sc.Start(InterfaceDefault))

	select {
	case d := <-found:
		assert.Equal(t, ID("mock-0"), d.ID)
		assert.Equal(t, "Mock X1000", d.Name)
	case <-time.After(time.Second):
		t.Fatal("discovery event not delivered")
	}

	require.NoError(t, sc.Stop())
}

func TestMockDriver_NeverCompletingScan(t *testing.T) {
	md := NewMockDriver(WithScanNeverCompleting())
	sc := md.Scanner()

	found := make(chan Descriptor, 1)
	sc.OnDeviceFound(func(d Descriptor) { found <- d })
	require.NoError(t, sc.Start(InterfaceDefault))

	select {
	case <-found:
		t.Fatal("scan should never report a device")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMockScanner_Resolve(t *testing.T) {
	d := Descriptor{ID: "cam-7", Name: "Roof East", Interface: InterfaceNetwork}
	md := NewMockDriver(WithMockDevice(d, FormatFlirFile, FormatDual))
	sc := md.Scanner()

	info, err := sc.Resolve(d)
	require.NoError(t, err)
	assert.Equal(t, "Roof East", info.Name)
	assert.Equal(t, "SN-cam-7", info.SerialNumber)
	assert.Equal(t, []StreamingFormat{FormatFlirFile, FormatDual}, info.StreamingFormats)

	_, err = sc.Resolve(Descriptor{ID: "missing"})
	assert.ErrorIs(t, err, errors.ErrDeviceNotFound)
}

func TestMockCamera_ConnectAndGrab(t *testing.T) {
	md := NewMockDriver()
	cam, err := md.NewCamera(KindDual, DualFusion)
	require.NoError(t, err)

	ok, err := cam.IsConnected()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cam.Connect(nil, nil))
	ok, err = cam.IsConnected()
	require.NoError(t, err)
	assert.True(t, ok)

	// Frames unavailable until grabbing starts
	_, err = cam.ThermalFrame()
	assert.ErrorIs(t, err, errors.ErrGrabberNotReady)

	require.NoError(t, cam.StartGrabbing())
	st, err := cam.GrabberState()
	require.NoError(t, err)
	assert.Equal(t, GrabberReady, st)

	thermal, err := cam.ThermalFrame()
	require.NoError(t, err)
	assert.True(t, thermal.Valid())
	assert.True(t, thermal.Thermal())

	visual, err := cam.VisualFrame()
	require.NoError(t, err)
	assert.False(t, visual.Thermal())
}

func TestMockCamera_KindRestrictsFrames(t *testing.T) {
	md := NewMockDriver()

	thermalCam, _ := md.NewCamera(KindThermal, DualFusion)
	require.NoError(t, thermalCam.Connect(nil, nil))
	require.NoError(t, thermalCam.StartGrabbing())
	_, err := thermalCam.VisualFrame()
	assert.ErrorIs(t, err, errors.ErrFrameInvalid)

	visualCam, _ := md.NewCamera(KindVisual, DualFusion)
	require.NoError(t, visualCam.Connect(nil, nil))
	require.NoError(t, visualCam.StartGrabbing())
	_, err = visualCam.ThermalFrame()
	assert.ErrorIs(t, err, errors.ErrFrameInvalid)
}

func TestMockCamera_Dispose(t *testing.T) {
	md := NewMockDriver()
	cam, _ := md.NewCamera(KindThermal, DualFusion)
	require.NoError(t, cam.Connect(nil, nil))
	require.NoError(t, cam.Dispose())

	_, err := cam.IsConnected()
	assert.ErrorIs(t, err, errors.ErrDeviceDisposed)
}

func TestMockCamera_Events(t *testing.T) {
	md := NewMockDriver()
	camIface, _ := md.NewCamera(KindDual, DualFusion)
	cam := camIface.(*MockCamera)

	received := make([]Event, 0, 2)
	sub, err := cam.Subscribe(EventDeviceError, func(e Event) {
		received = append(received, e)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cam.SubscriptionCount(EventDeviceError))

	cam.FireEvent(Event{Name: EventDeviceError, Args: map[string]string{"code": "17"}})
	require.Len(t, received, 1)
	assert.Equal(t, "17", received[0].Args["code"])

	require.NoError(t, sub.Cancel())
	assert.Equal(t, 0, cam.SubscriptionCount(EventDeviceError))

	cam.FireEvent(Event{Name: EventDeviceError})
	assert.Len(t, received, 1, "cancelled handler must not fire")
}

func TestMockCamera_DiscoveryEventsNotExposed(t *testing.T) {
	md := NewMockDriver()
	cam, _ := md.NewCamera(KindDual, DualFusion)

	_, err := cam.Subscribe(EventDeviceFound, func(Event) {})
	assert.Error(t, err)
}

func TestMockCamera_SilentLoss(t *testing.T) {
	md := NewMockDriver()
	camIface, _ := md.NewCamera(KindDual, DualFusion)
	cam := camIface.(*MockCamera)
	require.NoError(t, cam.Connect(nil, nil))

	cam.SetAlive(false)
	ok, err := cam.IsConnected()
	require.NoError(t, err)
	assert.False(t, ok, "liveness probe must fail without any event firing")
}
