package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/havenapp/haven-backend/internal/model"
)

// ContactRepo persists emergency_contacts.
type ContactRepo struct {
	q   Querier
	now func() time.Time
}

const contactColumns = "id, user_id, name, phone, email, relationship, is_advocate, created_at"

func (r *ContactRepo) Create(ctx context.Context, c model.EmergencyContact) (model.EmergencyContact, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = r.now()
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO emergency_contacts (id, user_id, name, phone, email, relationship, is_advocate, created_at) VALUES (?,?,?,?,?,?,?,?)",
		c.ID, c.UserID, c.Name, nullString(c.Phone), nullString(c.Email), nullString(c.Relationship), c.IsAdvocate, c.CreatedAt)
	if err != nil {
		return model.EmergencyContact{}, mapErr(err)
	}
	return c, nil
}

func (r *ContactRepo) GetForUser(ctx context.Context, id, userID string) (model.EmergencyContact, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM emergency_contacts WHERE id=? AND user_id=? LIMIT 1", id, userID)
	var c model.EmergencyContact
	if err := scanContact(row.Scan, &c); err != nil {
		return model.EmergencyContact{}, err
	}
	return c, nil
}

// ListByUser returns the user's contacts, newest first.
func (r *ContactRepo) ListByUser(ctx context.Context, userID string) ([]model.EmergencyContact, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+contactColumns+" FROM emergency_contacts WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]model.EmergencyContact, 0)
	for rows.Next() {
		var c model.EmergencyContact
		if err := scanContact(rows.Scan, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

// Update overwrites the mutable fields of a contact owned by c.UserID.
func (r *ContactRepo) Update(ctx context.Context, c model.EmergencyContact) (model.EmergencyContact, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE emergency_contacts SET name=?, phone=?, email=?, relationship=?, is_advocate=? WHERE id=? AND user_id=?",
		c.Name, nullString(c.Phone), nullString(c.Email), nullString(c.Relationship), c.IsAdvocate, c.ID, c.UserID)
	if err != nil {
		return model.EmergencyContact{}, mapErr(err)
	}
	if err := requireAffected(res); err != nil {
		return model.EmergencyContact{}, err
	}
	return r.GetForUser(ctx, c.ID, c.UserID)
}

func scanContact(scan func(dest ...any) error, c *model.EmergencyContact) error {
	var phone, email, rel sql.NullString
	if err := scan(&c.ID, &c.UserID, &c.Name, &phone, &email, &rel, &c.IsAdvocate, &c.CreatedAt); err != nil {
		return mapErr(err)
	}
	c.Phone = stringPtr(phone)
	c.Email = stringPtr(email)
	c.Relationship = stringPtr(rel)
	return nil
}
