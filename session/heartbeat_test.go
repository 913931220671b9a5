package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/thermalink/device"
	"github.com/c360/thermalink/health"
)

func TestHeartbeatStartIdempotent(t *testing.T) {
	drv := device.NewMockDriver()
	s, _ := newTestSession(t, drv, testConfig())

	s.heartbeat.Start()
	s.heartbeat.Start()
	assert.True(t, s.heartbeat.Running())

	s.heartbeat.Stop()
	assert.False(t, s.heartbeat.Running())

	// Restart after a clean stop must work; liveness is re-verified
	// against the loop, not a stale flag.
	s.heartbeat.Start()
	assert.True(t, s.heartbeat.Running())
	s.heartbeat.Stop()
}

func TestHeartbeatStopWithoutStart(t *testing.T) {
	drv := device.NewMockDriver()
	s, _ := newTestSession(t, drv, testConfig())

	s.heartbeat.Stop()
	assert.False(t, s.heartbeat.Running())
}

func TestHeartbeatSkipsWithoutCamera(t *testing.T) {
	drv := device.NewMockDriver()
	s, rec := newTestSession(t, drv, testConfig())

	s.heartbeat.Start()
	time.Sleep(100 * time.Millisecond)
	s.heartbeat.Stop()

	// No camera handle, so ticks never probe and never tear down.
	assert.Equal(t, device.StatusDisconnected, s.Status())
	assert.Empty(t, rec.OfKind("disconnect"))
}

func TestHeartbeatSurvivesTransientProbeFailure(t *testing.T) {
	drv := device.NewMockDriver()
	s, rec := newTestSession(t, drv, testConfig())

	require.True(t, s.AutoConnect(context.Background()))
	cam := drv.Cameras()[0]

	// Probe errors are transient; the session must stay up.
	cam.SetLivenessError(assert.AnError)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, device.StatusConnected, s.Status())
	assert.Empty(t, rec.OfKind("disconnect"))

	// Once the probe recovers and reports dead, teardown runs.
	cam.SetLivenessError(nil)
	cam.SetAlive(false)
	waitFor(t, time.Second, func() bool {
		return s.Status() == device.StatusDisconnected
	}, "recovered probe should detect the loss")
}

func TestHeartbeatDisabledNeverStarts(t *testing.T) {
	drv := device.NewMockDriver()
	s, rec := newTestSession(t, drv, testConfig(), WithHeartbeat(false))

	require.True(t, s.AutoConnect(context.Background()))
	assert.False(t, s.heartbeat.Running())

	// Without the probe, only the driver's own disconnect event can detect
	// loss; a silently dead camera stays connected.
	drv.Cameras()[0].SetAlive(false)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, device.StatusConnected, s.Status())
	assert.Empty(t, rec.OfKind("disconnect"))
}

func TestHeartbeatReportsHealth(t *testing.T) {
	drv := device.NewMockDriver()
	mon := health.NewMonitor()
	s, _ := newTestSession(t, drv, testConfig(), WithHealthMonitor(mon))

	require.True(t, s.AutoConnect(context.Background()))
	waitFor(t, time.Second, func() bool {
		st, ok := mon.Get("heartbeat")
		return ok && st.Healthy
	}, "live probes report healthy")

	drv.Cameras()[0].SetAlive(false)
	waitFor(t, time.Second, func() bool {
		st, ok := mon.Get("heartbeat")
		return ok && !st.Healthy
	}, "silent loss reports unhealthy")
	waitFor(t, time.Second, func() bool {
		return s.Status() == device.StatusDisconnected
	}, "unhealthy verdict still tears the session down")
}

type stubBusyProbe struct {
	busy atomic.Bool
}

func (p *stubBusyProbe) Busy(device.Camera) (bool, error) { return p.busy.Load(), nil }

func TestHeartbeatHonorsBusyProbe(t *testing.T) {
	drv := device.NewMockDriver()
	probe := &stubBusyProbe{}
	probe.busy.Store(true)
	s, _ := newTestSession(t, drv, testConfig(), WithBusyProbe(probe))

	require.True(t, s.AutoConnect(context.Background()))
	cam := drv.Cameras()[0]

	// While busy, liveness probing is suspended: a dead camera is not
	// reported.
	cam.SetAlive(false)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, device.StatusConnected, s.Status())

	probe.busy.Store(false)
	waitFor(t, time.Second, func() bool {
		return s.Status() == device.StatusDisconnected
	}, "probe resumes once not busy")
}
