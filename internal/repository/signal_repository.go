package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/havenapp/haven-backend/internal/model"
)

// SignalRepo persists signals. Signals are insert-only; there is no update.
type SignalRepo struct {
	q   Querier
	now func() time.Time
}

const signalColumns = "id, user_id, category, signal_type, confidence, metadata, created_at"

// Create stores a new signal for s.UserID. ID and CreatedAt are assigned here.
func (r *SignalRepo) Create(ctx context.Context, s model.Signal) (model.Signal, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = r.now()
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO signals (id, user_id, category, signal_type, confidence, metadata, created_at) VALUES (?,?,?,?,?,?,?)",
		s.ID, s.UserID, s.Category, s.SignalType, s.Confidence, nullJSON(s.Metadata), s.CreatedAt)
	if err != nil {
		return model.Signal{}, mapErr(err)
	}
	return s, nil
}

// GetForUser fetches one signal owned by userID. A signal owned by someone
// else is reported as ErrNotFound.
func (r *SignalRepo) GetForUser(ctx context.Context, id, userID string) (model.Signal, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+signalColumns+" FROM signals WHERE id=? AND user_id=? LIMIT 1", id, userID)
	var s model.Signal
	if err := scanSignal(row.Scan, &s); err != nil {
		return model.Signal{}, err
	}
	return s, nil
}

// ListByUser returns the user's signals, newest first.
func (r *SignalRepo) ListByUser(ctx context.Context, userID string) ([]model.Signal, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+signalColumns+" FROM signals WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]model.Signal, 0)
	for rows.Next() {
		var s model.Signal
		if err := scanSignal(rows.Scan, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}

// PurgeBefore deletes every signal created before cutoff, across all users,
// and returns how many rows were removed.
func (r *SignalRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM signals WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func scanSignal(scan func(dest ...any) error, s *model.Signal) error {
	var meta []byte
	if err := scan(&s.ID, &s.UserID, &s.Category, &s.SignalType, &s.Confidence, &meta, &s.CreatedAt); err != nil {
		return mapErr(err)
	}
	if len(meta) > 0 {
		s.Metadata = append(s.Metadata[:0], meta...)
	}
	return nil
}

