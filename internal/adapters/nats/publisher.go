package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

const (
	// StreamName holds every boundary event.
	StreamName = "BOUNDARY_EVENTS"
	// ChangeSubjects matches the change events of all sessions.
	ChangeSubjects = "boundary.changed.>"
)

// ChangeSubject is the subject a session's change events are published on.
func ChangeSubject(sessionID string) string {
	return "boundary.changed." + sessionID
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishBoundaryChange publishes on boundary.changed.<session>. Retries of
// the same change carry the same MessageID and are deduplicated by the stream.
func (p *Publisher) PublishBoundaryChange(ctx context.Context, change *domain.BoundaryChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ChangeSubject(change.SessionID), data,
		nats.Context(ctx),
		nats.MsgId(MessageID(change)),
	)
	return err
}

// MessageID identifies a change by session, revision and resulting state, so
// a session restarted at an old revision is not mistaken for a retry.
func MessageID(change *domain.BoundaryChange) string {
	return change.SessionID + ":" + strconv.FormatInt(change.Revision, 10) + ":" + change.Fingerprint()
}

// Conn exposes the underlying connection for core subscriptions.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// ensureStream creates or updates the boundary event stream. Limits
// retention lets the archiver and ad-hoc consumers each see every event.
func ensureStream(js nats.JetStreamContext) error {
	cfg := nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{"boundary.>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
