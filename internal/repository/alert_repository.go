package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/havenapp/haven-backend/internal/model"
)

// AlertRepo persists alerts.
type AlertRepo struct {
	q   Querier
	now func() time.Time
}

const alertColumns = "id, user_id, risk_level, alert_type, signals, acknowledged, created_at, updated_at"

// Create stores a new, unacknowledged alert for a.UserID.
func (r *AlertRepo) Create(ctx context.Context, a model.Alert) (model.Alert, error) {
	now := r.now()
	a.ID = uuid.NewString()
	a.Acknowledged = false
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Signals == nil {
		a.Signals = []string{}
	}
	sig, err := json.Marshal(a.Signals)
	if err != nil {
		return model.Alert{}, fmt.Errorf("encode signals: %w", err)
	}
	_, err = r.q.ExecContext(ctx,
		"INSERT INTO alerts (id, user_id, risk_level, alert_type, signals, acknowledged, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
		a.ID, a.UserID, a.RiskLevel, a.AlertType, sig, a.Acknowledged, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return model.Alert{}, mapErr(err)
	}
	return a, nil
}

// GetForUser fetches one alert owned by userID.
func (r *AlertRepo) GetForUser(ctx context.Context, id, userID string) (model.Alert, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id=? AND user_id=? LIMIT 1", id, userID)
	var a model.Alert
	if err := scanAlert(row.Scan, &a); err != nil {
		return model.Alert{}, err
	}
	return a, nil
}

// ListByUser returns the user's alerts, newest first.
func (r *AlertRepo) ListByUser(ctx context.Context, userID string) ([]model.Alert, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]model.Alert, 0)
	for rows.Next() {
		var a model.Alert
		if err := scanAlert(rows.Scan, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, mapErr(rows.Err())
}

// Acknowledge marks the alert acknowledged. changed reports whether this
// call performed the false to true transition; acknowledging twice is not
// an error.
func (r *AlertRepo) Acknowledge(ctx context.Context, id, userID string) (model.Alert, bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE alerts SET acknowledged=TRUE, updated_at=? WHERE id=? AND user_id=? AND acknowledged=FALSE",
		r.now(), id, userID)
	if err != nil {
		return model.Alert{}, false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Alert{}, false, err
	}
	a, err := r.GetForUser(ctx, id, userID)
	if err != nil {
		return model.Alert{}, false, err
	}
	return a, n > 0, nil
}

func scanAlert(scan func(dest ...any) error, a *model.Alert) error {
	var sig []byte
	if err := scan(&a.ID, &a.UserID, &a.RiskLevel, &a.AlertType, &sig, &a.Acknowledged, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return mapErr(err)
	}
	a.Signals = []string{}
	if len(sig) > 0 {
		if err := json.Unmarshal(sig, &a.Signals); err != nil {
			return fmt.Errorf("decode alert signals: %w", err)
		}
	}
	return nil
}
