package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/havenapp/haven-backend/internal/model"
)

// AuditRepo appends to and reads audit_logs. There is no update or delete.
type AuditRepo struct {
	q   Querier
	now func() time.Time
}

// Append writes one audit entry. details may be nil; anything else is
// encoded as JSON.
func (r *AuditRepo) Append(ctx context.Context, userID, action, resourceType, resourceID string, details any) (model.AuditLog, error) {
	e := model.AuditLog{
		ID:           uuid.NewString(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Timestamp:    r.now(),
	}
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return model.AuditLog{}, fmt.Errorf("encode audit details: %w", err)
		}
		e.Details = b
	}
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, details, timestamp) VALUES (?,?,?,?,?,?,?)",
		e.ID, e.UserID, e.Action, emptyNull(e.ResourceType), emptyNull(e.ResourceID), nullJSON(e.Details), e.Timestamp)
	if err != nil {
		return model.AuditLog{}, mapErr(err)
	}
	return e, nil
}

// ListByUser returns the user's audit entries, newest first. A zero from or
// to leaves that end of the range open; from is inclusive, to exclusive.
func (r *AuditRepo) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]model.AuditLog, error) {
	var (
		b    strings.Builder
		args = []any{userID}
	)
	b.WriteString("SELECT id, user_id, action, resource_type, resource_id, details, timestamp FROM audit_logs WHERE user_id=?")
	if !from.IsZero() {
		b.WriteString(" AND timestamp >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		b.WriteString(" AND timestamp < ?")
		args = append(args, to.UTC())
	}
	b.WriteString(" ORDER BY timestamp DESC, id DESC")

	rows, err := r.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]model.AuditLog, 0)
	for rows.Next() {
		var (
			e          model.AuditLog
			rtype, rid sql.NullString
			details    []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &rtype, &rid, &details, &e.Timestamp); err != nil {
			return nil, mapErr(err)
		}
		e.ResourceType = rtype.String
		e.ResourceID = rid.String
		if len(details) > 0 {
			e.Details = details
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err())
}

func emptyNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
