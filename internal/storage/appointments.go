package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/model"
)

const appointmentColumns = `
	id, pet_id, category_id, subtype_id, start_at, status, origin, group_id,
	slot_holder, notes, administered_by, due_date,
	sms_sent_today, email_sent_today, last_sms_at, last_email_at, counter_reset_on,
	synced, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var status, origin string
	err := row.Scan(
		&a.ID,
		&a.PetID,
		&a.CategoryID,
		&a.SubtypeID,
		&a.StartAt,
		&status,
		&origin,
		&a.GroupID,
		&a.SlotHolder,
		&a.Notes,
		&a.AdministeredBy,
		&a.DueDate,
		&a.Reminders.SMSSentToday,
		&a.Reminders.EmailSentToday,
		&a.Reminders.LastSMSAt,
		&a.Reminders.LastEmailAt,
		&a.Reminders.ResetOn,
		&a.Synced,
		&a.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.Origin = model.Origin(origin)
	return a, nil
}

func (r *Repository) InsertAppointment(ctx context.Context, tx pgx.Tx, a *model.Appointment) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(pet_id, category_id, subtype_id, start_at, status, origin, group_id, slot_holder, notes, counter_reset_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_DATE)
		RETURNING id
	`, a.PetID, a.CategoryID, a.SubtypeID, a.StartAt, string(a.Status), string(a.Origin), a.GroupID, a.SlotHolder, a.Notes).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, id int64) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// UpdateAppointmentFields overwrites the staff-editable fields of a group
// member. The timestamp is forced to the group's timestamp by the caller.
func (r *Repository) UpdateAppointmentFields(ctx context.Context, tx pgx.Tx, a *model.Appointment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET pet_id = $2,
			category_id = $3,
			subtype_id = $4,
			start_at = $5,
			status = $6,
			notes = $7
		WHERE id = $1
	`, a.ID, a.PetID, a.CategoryID, a.SubtypeID, a.StartAt, string(a.Status), a.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) UpdateAppointmentStatus(ctx context.Context, tx pgx.Tx, id int64, status model.Status) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET status = $2 WHERE id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) CompleteAppointment(ctx context.Context, tx pgx.Tx, id int64, administeredBy string, dueDate *time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, administered_by = $3, due_date = $4
		WHERE id = $1
	`, id, string(model.StatusCompleted), administeredBy, dueDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) DeleteAppointments(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = ANY($1)`, ids)
	return err
}

// MarkSynced acknowledges that the external calendar collaborator has
// mirrored the appointment. Returns false when the id is unknown.
func (r *Repository) MarkSynced(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET synced = TRUE WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListOccupied returns the timestamps of non-cancelled appointments within
// [from, to). Feeds the availability grid.
func (r *Repository) ListOccupied(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_at
		FROM appointments
		WHERE start_at >= $1 AND start_at < $2 AND status <> $3
		ORDER BY start_at
	`, from, to, string(model.StatusCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SlotTaken checks for a committed non-cancelled appointment at the exact
// timestamp. excludeGroupID skips a group's own current slot during edits.
func (r *Repository) SlotTaken(ctx context.Context, tx pgx.Tx, at time.Time, excludeGroupID *int64) (bool, error) {
	var taken bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE start_at = $1
				AND status <> $2
				AND ($3::bigint IS NULL OR group_id IS DISTINCT FROM $3)
		)
	`, at, string(model.StatusCancelled), excludeGroupID).Scan(&taken)
	return taken, err
}

// FetchOverdueForUpdate locks open appointments whose timestamp plus the
// grace period has passed. SKIP LOCKED keeps concurrent sweep runs and
// in-flight bookings from blocking each other.
func (r *Repository) FetchOverdueForUpdate(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_at < $1
			AND status NOT IN ($2, $3, $4)
		ORDER BY start_at
		LIMIT $5
		FOR UPDATE SKIP LOCKED
	`, cutoff, string(model.StatusCompleted), string(model.StatusCancelled), string(model.StatusMissed), limit)
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

func (r *Repository) UpdateReminderCounters(ctx context.Context, tx pgx.Tx, id int64, c model.ReminderCounters) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET sms_sent_today = $2,
			email_sent_today = $3,
			last_sms_at = $4,
			last_email_at = $5,
			counter_reset_on = $6
		WHERE id = $1
	`, id, c.SMSSentToday, c.EmailSentToday, c.LastSMSAt, c.LastEmailAt, c.ResetOn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
