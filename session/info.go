package session

import (
	"github.com/c360/thermalink/device"
)

// CameraInfo is the session's snapshot of the connected hardware, populated
// after the image pipeline initializes.
type CameraInfo struct {
	Model        string  `json:"model"`
	SerialNumber string  `json:"serial_number"`
	Lens         string  `json:"lens"`
	FOV          float64 `json:"fov"`
	Range        string  `json:"range"`
	Filter       string  `json:"filter"`
	FPS          float64 `json:"fps"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Format       string  `json:"format"`
	Palette      string  `json:"palette"`
}

// CameraInfo returns the snapshot taken on image initialization, nil before
// the pipeline has been proven.
func (s *Session) CameraInfo() *CameraInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.camInfo == nil {
		return nil
	}
	cp := *s.camInfo
	return &cp
}

// refreshSettings reads the static hardware metadata and the active palette
// after a successful image initialization. Each read is best effort; a
// transient failure leaves that field empty and the next initialization
// fills it in.
func (s *Session) refreshSettings(cam device.Camera) {
	snapshot := &CameraInfo{}

	if hw, err := cam.Information(); err != nil {
		s.log.Warn("camera information read failed", "error", err)
	} else {
		snapshot.Model = hw.Model
		snapshot.SerialNumber = hw.SerialNumber
		snapshot.Lens = hw.Lens
		snapshot.FOV = hw.FOV
		snapshot.Range = hw.Range
		snapshot.Filter = hw.Filter
		snapshot.FPS = hw.FPS
		snapshot.Width = hw.Width
		snapshot.Height = hw.Height
	}

	if palette, err := cam.PaletteName(); err != nil {
		s.log.Warn("palette read failed", "error", err)
	} else {
		snapshot.Palette = palette
	}

	s.mu.Lock()
	snapshot.Format = s.formatName
	s.camInfo = snapshot
	s.mu.Unlock()

	s.log.Info("camera settings refreshed",
		"model", snapshot.Model, "serial", snapshot.SerialNumber, "palette", snapshot.Palette)
}
