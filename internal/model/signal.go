package model

import (
	"encoding/json"
	"time"
)

// Signal categories.
const (
	CategoryCommunication = "communication"
	CategoryMovement      = "movement"
	CategoryDevice        = "device"
	CategorySelfReport    = "self_report"
)

// Signal is a single observed data point. Signals are immutable once
// written.
type Signal struct {
	ID         string          // signals.id
	UserID     string          // signals.user_id
	Category   string          // signals.category
	SignalType string          // signals.signal_type
	Confidence float64         // signals.confidence, 0.0 to 1.0
	Metadata   json.RawMessage // signals.metadata (nullable JSON object)
	CreatedAt  time.Time       // signals.created_at
}
