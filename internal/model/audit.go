package model

import (
	"encoding/json"
	"time"
)

// Audit actions written by the handlers.
const (
	ActionUserRegistered    = "user_registered"
	ActionProfileUpdated    = "updated_profile"
	ActionAlertCreated      = "created_alert"
	ActionAlertAcknowledged = "acknowledged_alert"
	ActionSignalCreated     = "created_signal"
	ActionConsentUpdated    = "updated_consent"
)

// Resource types referenced by audit entries.
const (
	ResourceUser    = "user"
	ResourceAlert   = "alert"
	ResourceSignal  = "signal"
	ResourceConsent = "consent"
)

// AuditLog is an append-only record of a state-changing action taken by
// a user. Rows are never updated; they disappear only when the owning user
// is deleted.
type AuditLog struct {
	ID           string          // audit_logs.id
	UserID       string          // audit_logs.user_id (actor)
	Action       string          // audit_logs.action
	ResourceType string          // audit_logs.resource_type
	ResourceID   string          // audit_logs.resource_id
	Details      json.RawMessage // audit_logs.details (JSON)
	Timestamp    time.Time       // audit_logs.timestamp (indexed)
}
