// Package events publishes user lifecycle notifications after the
// reconciliation service has applied them, so other services can react to
// account creation and removal without polling the API.
//
// Publishing is best-effort: the store mutation is the source of truth and a
// failed publish is logged by the caller, never rolled back.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects published by the reconciliation service.
const (
	SubjectUserCreated = "users.created"
	SubjectUserUpdated = "users.updated"
	SubjectUserDeleted = "users.deleted"
)

// UserLifecycle is the payload of every users.* subject.
type UserLifecycle struct {
	UserID             string    `json:"userId"`
	ExternalIdentityID string    `json:"externalIdentityId"`
	DeletedPosts       int       `json:"deletedPosts,omitempty"`
	OccurredAt         time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// NATSPublisher publishes JSON payloads on a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to url. The connection reconnects on its own;
// publishes made while disconnected are buffered by the client.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("snapgram-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: encoding %s payload: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publishing %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Noop discards every event. Used when NATS_URL is not set.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
