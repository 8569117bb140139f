// Package audit records staff-visible trail entries for every mutation the
// scheduling core performs, locally and mirrored onto the event bus.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/outbox"
	"github.com/whiskerwell/scheduling/libs/db"
)

type Entry struct {
	ActionType  string `json:"action_type"`
	Module      string `json:"module"`
	Description string `json:"description"`
	PerformedBy string `json:"performed_by"`
}

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

// Record writes the entry inside the caller's transaction and mirrors it to
// the outbox so downstream consumers see the same trail.
func (r *Repository) Record(ctx context.Context, tx pgx.Tx, e Entry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_events (action_type, module, description, performed_by)
		VALUES ($1, $2, $3, NULLIF($4, ''))
	`, e.ActionType, e.Module, e.Description, e.PerformedBy)
	if err != nil {
		return err
	}

	if r.outbox == nil {
		return nil
	}
	payload, err := json.Marshal(struct {
		Entry
		RecordedAt string `json:"recorded_at"`
	}{
		Entry:      e,
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "audit_event",
		AggregateID:   e.Module,
		EventType:     "scheduling.audit.v1",
		Payload:       payload,
	})
}

type Event struct {
	ID          int64  `json:"id"`
	ActionType  string `json:"action_type"`
	Module      string `json:"module"`
	Description string `json:"description"`
	PerformedBy string `json:"performed_by,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, action_type, module, description, COALESCE(performed_by, ''), created_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.ActionType, &e.Module, &e.Description, &e.PerformedBy, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		events = append(events, e)
	}
	return events, rows.Err()
}
