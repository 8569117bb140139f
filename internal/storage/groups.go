package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/model"
)

func scanGroup(row pgx.Row) (model.AppointmentGroup, error) {
	var g model.AppointmentGroup
	var status string
	err := row.Scan(&g.ID, &g.StartAt, &status, &g.Notes, &g.FinalizedAt, &g.CreatedAt)
	if err != nil {
		return model.AppointmentGroup{}, err
	}
	g.Status = model.GroupStatus(status)
	return g, nil
}

func (r *Repository) InsertGroup(ctx context.Context, tx pgx.Tx, g *model.AppointmentGroup) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO appointment_groups (start_at, status, notes)
		VALUES ($1, $2, $3)
		RETURNING id
	`, g.StartAt, string(g.Status), g.Notes).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetGroupForUpdate(ctx context.Context, tx pgx.Tx, id int64) (model.AppointmentGroup, error) {
	return scanGroup(tx.QueryRow(ctx, `
		SELECT id, start_at, status, notes, finalized_at, created_at
		FROM appointment_groups
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// ListGroupMembersForUpdate locks every member of the group so a concurrent
// edit or cancellation sees a consistent membership.
func (r *Repository) ListGroupMembersForUpdate(ctx context.Context, tx pgx.Tx, groupID int64) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE group_id = $1
		ORDER BY id
		FOR UPDATE
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateGroupSchedule(ctx context.Context, tx pgx.Tx, id int64, startAt time.Time, notes string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointment_groups SET start_at = $2, notes = $3 WHERE id = $1
	`, id, startAt, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// FinalizeGroup flips a group to finalized, stamping finalized_at once.
// Returns false when the group was already finalized (idempotent skip).
func (r *Repository) FinalizeGroup(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE appointment_groups
		SET status = $2, finalized_at = now()
		WHERE id = $1 AND status <> $2
	`, id, string(model.GroupStatusFinalized))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) DeleteGroup(ctx context.Context, tx pgx.Tx, id int64) error {
	// Members go with the group (ON DELETE CASCADE); the only hard-delete
	// path appointments have.
	tag, err := tx.Exec(ctx, `DELETE FROM appointment_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// EnsureSlotHolder designates one member as the group's slot holder if none
// remains, keeping the unique index armed after membership edits.
func (r *Repository) EnsureSlotHolder(ctx context.Context, tx pgx.Tx, groupID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET slot_holder = TRUE
		WHERE id = (
			SELECT id FROM appointments
			WHERE group_id = $1
				AND NOT EXISTS (
					SELECT 1 FROM appointments WHERE group_id = $1 AND slot_holder
				)
			ORDER BY id
			LIMIT 1
		)
	`, groupID)
	return err
}

func (r *Repository) ListGroups(ctx context.Context, limit int) ([]model.AppointmentGroup, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_at, status, notes, finalized_at, created_at
		FROM appointment_groups
		ORDER BY start_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) ListGroupMembers(ctx context.Context, groupID int64) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE group_id = $1
		ORDER BY id
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
