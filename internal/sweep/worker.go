// Package sweep flips open appointments, pending or awaiting cancellation,
// to missed once their start time plus a grace period has passed without
// completion.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/whiskerwell/scheduling/internal/audit"
	"github.com/whiskerwell/scheduling/internal/model"
	"github.com/whiskerwell/scheduling/internal/notify"
	"github.com/whiskerwell/scheduling/internal/storage"
)

// Grace is how long past the booked time an appointment stays pending
// before the sweep marks it missed.
const Grace = 30 * time.Minute

// Overdue reports whether an appointment booked at startAt should be
// marked missed as of now.
func Overdue(startAt, now time.Time) bool {
	return now.Sub(startAt) > Grace
}

type Worker struct {
	repo      *storage.Repository
	sink      notify.Sink
	audit     *audit.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewWorker(repo *storage.Repository, sink notify.Sink, auditRepo *audit.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		repo:      repo,
		sink:      sink,
		audit:     auditRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweepBatch(ctx, time.Now()); err != nil {
				w.logger.Error("missed sweep batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) sweepBatch(ctx context.Context, now time.Time) error {
	tx, err := w.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cutoff := now.Add(-Grace)
	overdue, err := w.repo.FetchOverdueForUpdate(ctx, tx, cutoff, w.batchSize)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		return tx.Commit(ctx)
	}

	for _, a := range overdue {
		if !a.Status.CanTransitionTo(model.StatusMissed) {
			continue
		}
		if err := w.repo.UpdateAppointmentStatus(ctx, tx, a.ID, model.StatusMissed); err != nil {
			return err
		}
		if err := w.sink.Publish(ctx, tx, notify.Message{
			Text: fmt.Sprintf("Appointment %d booked for %s was missed", a.ID, a.StartAt.Format("2006-01-02 15:04")),
			Type: "appointment_missed",
		}); err != nil {
			return err
		}
		if err := w.audit.Record(ctx, tx, audit.Entry{
			ActionType:  "update",
			Module:      "appointments",
			Description: fmt.Sprintf("appointment %d marked missed by sweep", a.ID),
			PerformedBy: "system",
		}); err != nil {
			return err
		}
		w.logger.Info("appointment marked missed", "appointment_id", a.ID, "start_at", a.StartAt)
	}

	return tx.Commit(ctx)
}
