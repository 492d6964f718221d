package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/havenapp/haven-backend/internal/model"
)

// ConsentRepo persists consent_records. Each user has at most one row,
// guarded by the UNIQUE index on user_id.
type ConsentRepo struct {
	q   Querier
	now func() time.Time
}

const consentColumns = "id, user_id, passive_detection, location_tracking, journaling, emergency_sharing, created_at, updated_at"

// ensure inserts the default record unless one already exists. The no-op
// ON DUPLICATE KEY UPDATE makes concurrent first calls converge on one row.
func (r *ConsentRepo) ensure(ctx context.Context, userID string) error {
	now := r.now()
	d := model.DefaultConsent(uuid.NewString(), userID)
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO consent_records (id, user_id, passive_detection, location_tracking, journaling, emergency_sharing, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE id=id`,
		d.ID, d.UserID, d.PassiveDetection, d.LocationTracking, d.Journaling, d.EmergencySharing, now, now)
	return mapErr(err)
}

// GetOrCreate returns the user's consent record, creating it with defaults
// when absent.
func (r *ConsentRepo) GetOrCreate(ctx context.Context, userID string) (model.ConsentRecord, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return model.ConsentRecord{}, err
	}
	row := r.q.QueryRowContext(ctx,
		"SELECT "+consentColumns+" FROM consent_records WHERE user_id=? LIMIT 1", userID)
	return scanConsent(row)
}

// GetForUpdate is GetOrCreate with a row lock held until the surrounding
// transaction ends. Use it inside Store.WithTx before Update.
func (r *ConsentRepo) GetForUpdate(ctx context.Context, userID string) (model.ConsentRecord, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return model.ConsentRecord{}, err
	}
	row := r.q.QueryRowContext(ctx,
		"SELECT "+consentColumns+" FROM consent_records WHERE user_id=? LIMIT 1 FOR UPDATE", userID)
	return scanConsent(row)
}

// Update writes all four flags of rec and bumps updated_at.
func (r *ConsentRepo) Update(ctx context.Context, rec model.ConsentRecord) (model.ConsentRecord, error) {
	rec.UpdatedAt = r.now()
	res, err := r.q.ExecContext(ctx,
		`UPDATE consent_records
		 SET passive_detection=?, location_tracking=?, journaling=?, emergency_sharing=?, updated_at=?
		 WHERE id=? AND user_id=?`,
		rec.PassiveDetection, rec.LocationTracking, rec.Journaling, rec.EmergencySharing, rec.UpdatedAt,
		rec.ID, rec.UserID)
	if err != nil {
		return model.ConsentRecord{}, mapErr(err)
	}
	if err := requireAffected(res); err != nil {
		return model.ConsentRecord{}, err
	}
	return rec, nil
}

func scanConsent(row *sql.Row) (model.ConsentRecord, error) {
	var c model.ConsentRecord
	err := row.Scan(&c.ID, &c.UserID, &c.PassiveDetection, &c.LocationTracking,
		&c.Journaling, &c.EmergencySharing, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.ConsentRecord{}, mapErr(err)
	}
	return c, nil
}
