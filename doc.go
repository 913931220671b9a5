// Package thermalink provides the connection lifecycle and coordination core
// for a thermal camera control and data-acquisition service.
//
// The module sits between a vendor camera driver (device discovery, streaming,
// frame decoding) and downstream consumers (image extraction, alarms,
// measurements, palettes). Its job is the part of the system where genuine
// concurrency coordination lives:
//
//   - locks: a fixed, ordered set of named re-entrant locks with strict
//     hierarchical acquisition, shared by every subsystem that touches the
//     device handle.
//   - device: the driver boundary: descriptors, device info, streaming
//     formats, the fixed event taxonomy, and discriminated camera
//     construction (thermal-only, visual-only, dual-streaming).
//   - registry: discovered-device membership and selection.
//   - gate: the image readiness gate that synchronizes frame extraction
//     against connection and initialization.
//   - session: the connection state machine (scan, select, negotiate,
//     connect, validate, disconnect), the hardware heartbeat monitor, and the
//     event bridge that translates driver callbacks into state transitions
//     and outbound notifications.
//
// Supporting packages follow the same conventions as the rest of the
// platform: classified errors (errors), bounded polling (pkg/poll),
// exponential backoff (pkg/retry), health statuses (health), prometheus
// metrics (metric), NATS notifications (notify), and YAML configuration
// (config). The composition root lives in cmd/thermalinkd.
//
// There is exactly one teardown critical section, entered from three
// triggers: an explicit disconnect call, the driver's own disconnect event,
// and a heartbeat probe that detects silent hardware loss. Every wait in the
// module is bounded; there is no unbounded blocking anywhere by design.
package thermalink
