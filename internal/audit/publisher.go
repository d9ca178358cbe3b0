package audit

import (
	"context"

	"github.com/google/uuid"

	id "veritax/pkg/domain"
	"veritax/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
	sink  Sink
}

// Sink is an optional secondary destination (e.g. Kafka) for long-retention
// compliance streaming. Sink failures never fail the business operation.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

type PublisherOption func(*Publisher)

// WithSink attaches a streaming sink alongside the store.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) { p.sink = sink }
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit stamps the event with request-scoped metadata and appends it.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.OrgID.IsNil() {
		event.OrgID = requestcontext.OrgID(ctx)
	}
	if event.ActorID.IsNil() {
		event.ActorID = requestcontext.UserID(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Severity == "" {
		event.Severity = id.SeverityInfo
	}

	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.sink != nil {
		// Best-effort: the store is the source of truth for the trail.
		_ = p.sink.Publish(ctx, event)
	}
	return nil
}

// Trail returns the forensic trail for one entity within an organization.
func (p *Publisher) Trail(ctx context.Context, orgID id.OrgID, entityType, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, orgID, entityType, entityID)
}

// Recent returns the newest events for an organization's dashboard feed.
func (p *Publisher) Recent(ctx context.Context, orgID id.OrgID, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, orgID, limit)
}
