package model

import "time"

// Alert types.
const (
	AlertPassive = "passive"
	AlertManual  = "manual"
	AlertPanic   = "panic"
)

// Panic alert defaults applied when the client omits fields.
const (
	PanicRiskLevel = 0.95
	PanicSignal    = "manual_activation"
)

// Alert is an indication of elevated risk, either derived from signals or
// raised by the user. Acknowledged only moves from false to true.
//
// Fields:
//
//	RiskLevel    – 0.0 to 1.0.
//	AlertType    – passive, manual or panic.
//	Signals      – ids of contributing signals; not checked against the signals table.
//	Acknowledged – set once by the acknowledge operation.
type Alert struct {
	ID           string    // alerts.id
	UserID       string    // alerts.user_id
	RiskLevel    float64   // alerts.risk_level
	AlertType    string    // alerts.alert_type
	Signals      []string  // alerts.signals (JSON array)
	Acknowledged bool      // alerts.acknowledged
	CreatedAt    time.Time // alerts.created_at
	UpdatedAt    time.Time // alerts.updated_at
}
