// Package queue defines the alert event payload exchanged over RabbitMQ and
// the background consumer that reads it.
package queue

import (
	"time"

	"github.com/havenapp/haven-backend/internal/model"
)

// AlertRaisedQueue is the durable queue alert events are routed to.
const AlertRaisedQueue = "alert.raised"

// AlertRaisedEvent is published after an alert has been committed. It
// carries enough for downstream consumers to act without reading the
// database.
type AlertRaisedEvent struct {
	AlertID   string   `json:"alert_id"`
	UserID    string   `json:"user_id"`
	Type      string   `json:"type"`
	RiskLevel float64  `json:"risk_level"`
	Signals   []string `json:"signals"`
	RaisedAt  string   `json:"raised_at"`
}

// NewAlertRaisedEvent builds the event for a committed alert.
func NewAlertRaisedEvent(a model.Alert) AlertRaisedEvent {
	signals := a.Signals
	if signals == nil {
		signals = []string{}
	}
	return AlertRaisedEvent{
		AlertID:   a.ID,
		UserID:    a.UserID,
		Type:      a.AlertType,
		RiskLevel: a.RiskLevel,
		Signals:   signals,
		RaisedAt:  a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
