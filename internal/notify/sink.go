// Package notify is the fire-and-forget notification sink. Messages are
// written through the transactional outbox so they commit atomically with
// the change they announce, and reach subscribers via Kafka.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/outbox"
)

const EventType = "scheduling.notification.v1"

type Message struct {
	Text         string `json:"text"`
	Type         string `json:"type"`
	TargetRole   string `json:"target_role,omitempty"`
	TargetUserID string `json:"target_user_id,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"`
}

type Sink interface {
	Publish(ctx context.Context, tx pgx.Tx, msg Message) error
}

type OutboxSink struct {
	repo *outbox.Repository
}

func NewOutboxSink(repo *outbox.Repository) *OutboxSink {
	return &OutboxSink{repo: repo}
}

func (s *OutboxSink) Publish(ctx context.Context, tx pgx.Tx, msg Message) error {
	payload, err := json.Marshal(struct {
		Message
		SentAt string `json:"sent_at"`
	}{
		Message: msg,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.repo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   uuid.NewString(),
		EventType:     EventType,
		Payload:       payload,
	})
}
