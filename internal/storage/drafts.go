package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/model"
)

const draftColumns = `
	id, created_by, owner_id, pet_id, category_id, subtype_id,
	scheduled_on, time_of_day, notes, group_key, created_at`

func scanDraft(row pgx.Row) (model.AppointmentDraft, error) {
	var d model.AppointmentDraft
	err := row.Scan(
		&d.ID,
		&d.CreatedBy,
		&d.OwnerID,
		&d.PetID,
		&d.CategoryID,
		&d.SubtypeID,
		&d.ScheduledOn,
		&d.TimeOfDay,
		&d.Notes,
		&d.GroupKey,
		&d.CreatedAt,
	)
	return d, err
}

func (r *Repository) InsertDraft(ctx context.Context, tx pgx.Tx, d *model.AppointmentDraft) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO appointment_drafts
			(created_by, owner_id, pet_id, category_id, subtype_id, scheduled_on, time_of_day, notes, group_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, d.CreatedBy, d.OwnerID, d.PetID, d.CategoryID, d.SubtypeID, d.ScheduledOn, d.TimeOfDay, d.Notes, d.GroupKey).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DraftExists checks the full dedupe identity so re-submitting the same
// cart is idempotent.
func (r *Repository) DraftExists(ctx context.Context, tx pgx.Tx, d *model.AppointmentDraft) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment_drafts
			WHERE pet_id = $1
				AND category_id = $2
				AND subtype_id IS NOT DISTINCT FROM $3
				AND scheduled_on = $4
				AND time_of_day = $5
				AND group_key = $6
		)
	`, d.PetID, d.CategoryID, d.SubtypeID, d.ScheduledOn, d.TimeOfDay, d.GroupKey).Scan(&exists)
	return exists, err
}

func (r *Repository) CountDraftsByKey(ctx context.Context, tx pgx.Tx, key string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM appointment_drafts WHERE group_key = $1
	`, key).Scan(&n)
	return n, err
}

// DraftPendingAt checks for a staged draft in a different draft-group whose
// derived timestamp matches the candidate slot.
func (r *Repository) DraftPendingAt(ctx context.Context, tx pgx.Tx, day time.Time, timeOfDay string, excludeKey string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment_drafts
			WHERE scheduled_on = $1
				AND time_of_day = $2
				AND group_key <> $3
		)
	`, day, timeOfDay, excludeKey).Scan(&exists)
	return exists, err
}

func (r *Repository) DraftsByKeyForUpdate(ctx context.Context, tx pgx.Tx, key string) ([]model.AppointmentDraft, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+draftColumns+`
		FROM appointment_drafts
		WHERE group_key = $1
		ORDER BY id
		FOR UPDATE
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteDraftsByKey(ctx context.Context, tx pgx.Tx, key string) error {
	_, err := tx.Exec(ctx, `DELETE FROM appointment_drafts WHERE group_key = $1`, key)
	return err
}

func (r *Repository) GetDraft(ctx context.Context, id int64) (model.AppointmentDraft, error) {
	return scanDraft(r.pool.QueryRow(ctx, `
		SELECT `+draftColumns+`
		FROM appointment_drafts
		WHERE id = $1
	`, id))
}

func (r *Repository) DeleteDraft(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointment_drafts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListDraftsByUser(ctx context.Context, createdBy string) ([]model.AppointmentDraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+draftColumns+`
		FROM appointment_drafts
		WHERE created_by = $1
		ORDER BY group_key, id
	`, createdBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
