package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"edueasy/internal/tracking"
	dErrors "edueasy/pkg/domain-errors"
)

// Mirror publishes entries to a stream for downstream consumers. Delivery is
// best-effort; implementations must not block on broker failures.
type Mirror interface {
	Produce(ctx context.Context, topic string, key, value []byte)
}

// Publisher writes audit entries with fail-closed semantics: Emit does not
// return until the entry is durably appended, and the calling operation MUST
// fail if Emit fails. The mirror, when configured, is informational only.
type Publisher struct {
	store  Store
	mirror Mirror
	topic  string
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for mirror serialization failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMirror enables best-effort publication of every entry to topic.
func WithMirror(mirror Mirror, topic string) Option {
	return func(p *Publisher) {
		p.mirror = mirror
		p.topic = topic
	}
}

// NewPublisher creates a publisher over the given append-only store.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// mirrorPayload is the JSON shape published to the audit stream.
type mirrorPayload struct {
	ID         string `json:"id"`
	TrackingID string `json:"tracking_id"`
	UserID     string `json:"user_id"`
	Method     string `json:"method"`
	ActorID    string `json:"actor_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Emit appends one entry. The entry ID and timestamp are filled in when zero.
func (p *Publisher) Emit(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit append failed")
	}

	if p.mirror != nil {
		payload, err := json.Marshal(mirrorPayload{
			ID:         e.ID.String(),
			TrackingID: e.TrackingID.String(),
			UserID:     e.UserID.String(),
			Method:     string(e.Method),
			ActorID:    e.ActorID,
			RequestID:  e.RequestID,
			Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
		})
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("audit mirror marshal failed", "entry_id", e.ID, "error", err)
			}
			return nil
		}
		p.mirror.Produce(ctx, p.topic, []byte(e.TrackingID.String()), payload)
	}

	return nil
}

// List returns the entries recorded for a tracking ID, oldest first.
func (p *Publisher) List(ctx context.Context, trackingID tracking.ID) ([]Entry, error) {
	entries, err := p.store.ListByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit list failed")
	}
	return entries, nil
}
