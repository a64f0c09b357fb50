package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishAuditCompleted publishes a completed audit for downstream consumers.
func (p *Publisher) PublishAuditCompleted(ctx context.Context, event AuditCompleted) error {
	return p.publish(ctx, SubjectAuditCompleted, event)
}

// PublishSubscriptionActivated publishes a tier purchase.
func (p *Publisher) PublishSubscriptionActivated(ctx context.Context, event SubscriptionActivated) error {
	return p.publish(ctx, SubjectSubscriptionActivated, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
