// Package notify publishes camera lifecycle notifications for downstream
// consumers (UI, storage pipeline, webhooks).
//
// Notifications are fire-and-forget status fan-out over core NATS subjects
// under "thermalink.camera.*". The core stays usable without a broker: wire
// the Noop publisher or leave the NATS URL empty.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Kind classifies a notification.
type Kind string

// Notification kinds.
const (
	KindDeviceFound      Kind = "device_found"
	KindDeviceLost       Kind = "device_lost"
	KindConnectionStatus Kind = "connection_status"
	KindImageReady       Kind = "image_ready"
	KindDisconnect       Kind = "disconnect"
	KindEvent            Kind = "event"
)

// SubjectPrefix is the root of all notification subjects.
const SubjectPrefix = "thermalink.camera"

// Notification is the outbound envelope.
type Notification struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Origin    string            `json:"origin"`
	Data      map[string]string `json:"data,omitempty"`
}

// New builds a notification envelope with a fresh id.
func New(kind Kind, origin string, data map[string]string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Origin:    origin,
		Data:      data,
	}
}

// Publisher delivers notifications. Implementations must be safe for
// concurrent use; delivery failures are the publisher's to log, never the
// caller's to handle.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
	Close()
}

// NATSPublisher publishes notifications over a NATS connection.
type NATSPublisher struct {
	nc  *nats.Conn
	log *slog.Logger
}

// Connect dials NATS with reconnect options suited to a long-lived device
// session and returns a publisher over the connection.
func Connect(url string, log *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Name("thermalink-notify"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("notify connection lost", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("notify connection restored", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify.Connect: dial failed: %w", err)
	}
	return &NATSPublisher{nc: nc, log: log}, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, log *slog.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, log: log}
}

// Publish sends the notification to "thermalink.camera.<kind>".
func (p *NATSPublisher) Publish(ctx context.Context, n Notification) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify.Publish: marshal failed: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", SubjectPrefix, n.Kind)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("notify.Publish: publish to %s failed: %w", subject, err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.log.Warn("notify drain failed", "error", err)
	}
}

// Noop discards notifications, for broker-less deployments.
type Noop struct{}

// Publish discards the notification.
func (Noop) Publish(context.Context, Notification) error { return nil }

// Close is a no-op.
func (Noop) Close() {}

// Recorder captures notifications in memory for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish records the notification.
func (r *Recorder) Publish(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Close is a no-op.
func (r *Recorder) Close() {}

// Sent returns a copy of everything published so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfKind returns the recorded notifications of one kind.
func (r *Recorder) OfKind(kind Kind) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
