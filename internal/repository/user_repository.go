package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/havenapp/haven-backend/internal/model"
)

// UserRepo persists the users table.
type UserRepo struct {
	q   Querier
	now func() time.Time
}

const userColumns = "id, email, password_hash, name, is_active, created_at, updated_at"

// Create inserts a user with an already hashed password. A duplicate email
// returns ErrDuplicate; the UNIQUE index is the only guard, so concurrent
// registrations with the same email resolve to exactly one success.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string, name *string) (model.User, error) {
	now := r.now()
	u := model.User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		Name:         name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, nullString(u.Name), u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", strings.TrimSpace(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// UpdateName sets the display name and returns the updated user. A nil
// name clears it.
func (r *UserRepo) UpdateName(ctx context.Context, id string, name *string) (model.User, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE users SET name=?, updated_at=? WHERE id=?", nullString(name), r.now(), id)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	if err := requireAffected(res); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// SetActive activates or deactivates an account.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE users SET is_active=?, updated_at=? WHERE id=?", active, r.now(), id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

// ownedTables lists every table holding rows owned by a user, children
// first. Delete walks it before removing the user row.
var ownedTables = []string{"audit_logs", "emergency_contacts", "alerts", "signals", "consent_records"}

// Delete removes the user and every record the user owns. The foreign keys
// also cascade, but the explicit deletes keep the behaviour independent of
// the storage engine. Run it inside Store.WithTx.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	for _, table := range ownedTables {
		if _, err := r.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id=?", id); err != nil {
			return mapErr(err)
		}
	}
	res, err := r.q.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u    model.User
		name sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &name, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	u.Name = stringPtr(name)
	return u, nil
}
