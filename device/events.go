package device

// EventName identifies one of the driver's named events.
type EventName string

// The fixed event taxonomy. Specific handlers exist for the first six; the
// event bridge attaches a generic diagnostic handler to everything else a
// given camera exposes.
const (
	// Base
	EventConnectionStatusChanged EventName = "ConnectionStatusChanged"
	EventDeviceError             EventName = "DeviceError"

	// Image
	EventImageReceived          EventName = "ImageReceived"
	EventImageInitialized       EventName = "ImageInitialized"
	EventImageParametersChanged EventName = "ImageParametersChanged"
	EventScaleImageChanged      EventName = "ScaleImageChanged"

	// Collection (alarms / isotherms)
	EventCollectionAdded   EventName = "Added"
	EventCollectionChanged EventName = "Changed"
	EventCollectionRemoved EventName = "Removed"

	// Discovery
	EventDeviceFound           EventName = "DeviceFound"
	EventDeviceLost            EventName = "DeviceLost"
	EventGigabitCameraDetected EventName = "GigabitCameraDetected"
	EventGigabitCameraLost     EventName = "GigabitCameraLost"
	EventNetworkCameraDetected EventName = "NetworkCameraDetected"
	EventNetworkCameraLost     EventName = "NetworkCameraLost"
	EventUsbCameraDetected     EventName = "UsbCameraDetected"
	EventUsbCameraLost         EventName = "UsbCameraLost"

	// Streaming
	EventFrameReceived        EventName = "FrameReceived"
	EventThermalFrameReceived EventName = "ThermalFrameReceived"
	EventStreamError          EventName = "StreamError"
	EventStreamsUpdated       EventName = "StreamsUpdated"

	// Playback
	EventSelectedIndexChanged EventName = "SelectedIndexChanged"
	EventPlaybackStatus       EventName = "StatusChanged"

	// Remote control
	EventCommandExecuted EventName = "CommandExecuted"

	// Temperature
	EventTemperatureUnitChanged EventName = "TemperatureUnitChanged"

	// External trigger
	EventTriggerChangedDigitalPort1 EventName = "TriggerChangedDigitalPort1"

	// Logging
	EventLogUpdated EventName = "Updated"
)

// EventCategory groups events by driver subsystem.
type EventCategory string

// Event categories.
const (
	CategoryBase            EventCategory = "Base"
	CategoryImage           EventCategory = "Image"
	CategoryCollection      EventCategory = "Collection"
	CategoryDiscovery       EventCategory = "Discovery"
	CategoryStreaming       EventCategory = "Streaming"
	CategoryPlayback        EventCategory = "Playback"
	CategoryRemoteControl   EventCategory = "RemoteControl"
	CategoryTemperature     EventCategory = "Temperature"
	CategoryExternalTrigger EventCategory = "ExternalTrigger"
	CategoryLogging         EventCategory = "Logging"
)

// EventInfo describes one event in the taxonomy.
type EventInfo struct {
	Name        EventName
	Category    EventCategory
	Description string
}

// Catalog is the complete event taxonomy, keyed by event name.
var Catalog = map[EventName]EventInfo{
	EventConnectionStatusChanged:    {EventConnectionStatusChanged, CategoryBase, "Fired when the connection status has changed."},
	EventDeviceError:                {EventDeviceError, CategoryBase, "Fired when an error is detected."},
	EventImageReceived:              {EventImageReceived, CategoryImage, "Fired when a new image is received from the camera."},
	EventImageInitialized:           {EventImageInitialized, CategoryImage, "Fired when the image is initialized and ready for processing."},
	EventImageParametersChanged:     {EventImageParametersChanged, CategoryImage, "Fired when image parameters have been modified."},
	EventScaleImageChanged:          {EventScaleImageChanged, CategoryImage, "Fired when the scale image has changed."},
	EventCollectionAdded:            {EventCollectionAdded, CategoryCollection, "Fired when an item is added to a collection."},
	EventCollectionChanged:          {EventCollectionChanged, CategoryCollection, "Fired when an item in a collection is changed."},
	EventCollectionRemoved:          {EventCollectionRemoved, CategoryCollection, "Fired when an item is removed from a collection."},
	EventDeviceFound:                {EventDeviceFound, CategoryDiscovery, "Fired when a device is discovered."},
	EventDeviceLost:                 {EventDeviceLost, CategoryDiscovery, "Fired when a device is no longer available."},
	EventGigabitCameraDetected:      {EventGigabitCameraDetected, CategoryDiscovery, "Fired when a GigE camera is detected."},
	EventGigabitCameraLost:          {EventGigabitCameraLost, CategoryDiscovery, "Fired when a GigE camera is lost."},
	EventNetworkCameraDetected:      {EventNetworkCameraDetected, CategoryDiscovery, "Fired when a network camera is detected."},
	EventNetworkCameraLost:          {EventNetworkCameraLost, CategoryDiscovery, "Fired when a network camera is lost."},
	EventUsbCameraDetected:          {EventUsbCameraDetected, CategoryDiscovery, "Fired when a USB camera is detected."},
	EventUsbCameraLost:              {EventUsbCameraLost, CategoryDiscovery, "Fired when a USB camera is lost."},
	EventFrameReceived:              {EventFrameReceived, CategoryStreaming, "Fired when a new frame is received from the vision stream."},
	EventThermalFrameReceived:       {EventThermalFrameReceived, CategoryStreaming, "Fired when a new thermal frame is received."},
	EventStreamError:                {EventStreamError, CategoryStreaming, "Fired when a streaming error occurs."},
	EventStreamsUpdated:             {EventStreamsUpdated, CategoryStreaming, "Fired when available streams are updated."},
	EventSelectedIndexChanged:       {EventSelectedIndexChanged, CategoryPlayback, "Fired when the selected frame index changes in the sequence player."},
	EventPlaybackStatus:             {EventPlaybackStatus, CategoryPlayback, "Fired when the player status changes."},
	EventCommandExecuted:            {EventCommandExecuted, CategoryRemoteControl, "Fired when a remote command is executed."},
	EventTemperatureUnitChanged:     {EventTemperatureUnitChanged, CategoryTemperature, "Fired when the temperature unit is changed."},
	EventTriggerChangedDigitalPort1: {EventTriggerChangedDigitalPort1, CategoryExternalTrigger, "Fired when the digital port 1 trigger state changes."},
	EventLogUpdated:                 {EventLogUpdated, CategoryLogging, "Fired when the log is updated."},
}

// catalogOrder keeps iteration deterministic for registration and tests.
var catalogOrder = []EventName{
	EventConnectionStatusChanged,
	EventDeviceError,
	EventImageReceived,
	EventImageInitialized,
	EventImageParametersChanged,
	EventScaleImageChanged,
	EventCollectionAdded,
	EventCollectionChanged,
	EventCollectionRemoved,
	EventDeviceFound,
	EventDeviceLost,
	EventGigabitCameraDetected,
	EventGigabitCameraLost,
	EventNetworkCameraDetected,
	EventNetworkCameraLost,
	EventUsbCameraDetected,
	EventUsbCameraLost,
	EventFrameReceived,
	EventThermalFrameReceived,
	EventStreamError,
	EventStreamsUpdated,
	EventSelectedIndexChanged,
	EventPlaybackStatus,
	EventCommandExecuted,
	EventTemperatureUnitChanged,
	EventTriggerChangedDigitalPort1,
	EventLogUpdated,
}

// EventNames returns every event in the taxonomy in a stable order.
func EventNames() []EventName {
	out := make([]EventName, len(catalogOrder))
	copy(out, catalogOrder)
	return out
}
