package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/havenapp/haven-backend/internal/middleware"
	"github.com/havenapp/haven-backend/internal/model"
	"github.com/havenapp/haven-backend/internal/queue"
	"github.com/havenapp/haven-backend/internal/repository"
	"github.com/havenapp/haven-backend/internal/service"
)

// publishTimeout bounds the asynchronous alert event publish.
const publishTimeout = 10 * time.Second

// AlertHandler serves /api/alerts.
type AlertHandler struct {
	Store     *repository.Store
	Publisher service.Publisher
	Log       *zap.Logger
}

// NewAlertHandler constructs an AlertHandler. A nil publisher drops alert
// events and a nil logger discards output.
func NewAlertHandler(store *repository.Store, pub service.Publisher, log *zap.Logger) *AlertHandler {
	if pub == nil {
		pub = service.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AlertHandler{Store: store, Publisher: pub, Log: log}
}

// alertReq is the strict body of POST /api/alerts. Omitted fields take the
// manual defaults in parseAlert.
type alertReq struct {
	Type      *string  `json:"type" validate:"omitnil,oneof=passive manual panic"`
	RiskLevel *float64 `json:"riskLevel" validate:"omitnil,gte=0,lte=1"`
	Signals   []string `json:"signals"`
}

// alertResponse is the wire form of an alert. Timestamp is the creation
// time.
type alertResponse struct {
	ID           string    `json:"id"`
	RiskLevel    float64   `json:"riskLevel"`
	Type         string    `json:"type"`
	Signals      []string  `json:"signals"`
	Acknowledged bool      `json:"acknowledged"`
	Timestamp    time.Time `json:"timestamp"`
}

// toAlertResponse renders a, never emitting a null signals list.
func toAlertResponse(a model.Alert) alertResponse {
	signals := a.Signals
	if signals == nil {
		signals = []string{}
	}
	return alertResponse{
		ID:           a.ID,
		RiskLevel:    a.RiskLevel,
		Type:         a.AlertType,
		Signals:      signals,
		Acknowledged: a.Acknowledged,
		Timestamp:    a.CreatedAt,
	}
}

// List returns the caller's alerts, newest first.
func (h *AlertHandler) List(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	alerts, err := h.Store.Repos().Alerts.ListByUser(ctx, u.ID)
	if err != nil {
		return err
	}
	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertResponse(a))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one of the caller's alerts.
func (h *AlertHandler) Get(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, err := h.Store.Repos().Alerts.GetForUser(ctx, c.Param("id"), u.ID)
	if err != nil {
		return notFound(err, "Alert")
	}
	return c.JSON(http.StatusOK, toAlertResponse(a))
}

// Create stores a new alert. A body with "type":"panic" takes the relaxed
// path in parsePanicAlert; everything else is validated strictly.
func (h *AlertHandler) Create(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	alert, err := parseAlert(raw)
	if err != nil {
		return err
	}
	alert.UserID = u.ID

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err = h.Store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		if alert, err = r.Alerts.Create(ctx, alert); err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, u.ID, model.ActionAlertCreated, model.ResourceAlert, alert.ID,
			map[string]any{"type": alert.AlertType, "risk_level": alert.RiskLevel})
		return err
	})
	if err != nil {
		return err
	}

	middleware.IncrementAlertsCreated(alert.AlertType)
	h.Log.Info("alert created",
		zap.String("user_id", u.ID),
		zap.String("alert_id", alert.ID),
		zap.String("type", alert.AlertType))
	h.publish(alert)

	return c.JSON(http.StatusCreated, toAlertResponse(alert))
}

// publish emits the alert event off the request path. Failures are logged
// only; the alert is already committed.
func (h *AlertHandler) publish(a model.Alert) {
	ev := queue.NewAlertRaisedEvent(a)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.Publisher.PublishAlertRaised(ctx, ev); err != nil {
			h.Log.Warn("publish alert event failed", zap.String("alert_id", ev.AlertID), zap.Error(err))
		}
	}()
}

// Acknowledge marks the alert acknowledged. Repeating it is a no-op that
// still answers 200; the audit entry is written only on the transition.
func (h *AlertHandler) Acknowledge(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	var alert model.Alert
	err = h.Store.WithTx(ctx, func(r *repository.Repos) error {
		a, changed, err := r.Alerts.Acknowledge(ctx, c.Param("id"), u.ID)
		if err != nil {
			return err
		}
		alert = a
		if !changed {
			return nil
		}
		_, err = r.Audit.Append(ctx, u.ID, model.ActionAlertAcknowledged, model.ResourceAlert, a.ID, nil)
		return err
	})
	if err != nil {
		return notFound(err, "Alert")
	}
	return c.JSON(http.StatusOK, toAlertResponse(alert))
}

// parseAlert turns a request body into an unsaved alert.
func parseAlert(raw []byte) (model.Alert, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return model.Alert{}, ErrInvalidBody
	}
	var typ string
	if t, ok := fields["type"]; ok && json.Unmarshal(t, &typ) == nil && typ == model.AlertPanic {
		return parsePanicAlert(fields), nil
	}

	var req alertReq
	if err := decodeJSON(raw, &req); err != nil {
		return model.Alert{}, err
	}
	if err := validateStruct(req); err != nil {
		return model.Alert{}, err
	}
	a := model.Alert{AlertType: model.AlertManual, Signals: req.Signals}
	if req.Type != nil {
		a.AlertType = *req.Type
	}
	if req.RiskLevel != nil {
		a.RiskLevel = *req.RiskLevel
	}
	if a.Signals == nil {
		a.Signals = []string{}
	}
	return a, nil
}

// parsePanicAlert never fails. Fields that are missing or malformed fall
// back to the panic defaults and riskLevel is clamped into [0, 1].
func parsePanicAlert(fields map[string]json.RawMessage) model.Alert {
	a := model.Alert{
		AlertType: model.AlertPanic,
		RiskLevel: model.PanicRiskLevel,
		Signals:   []string{model.PanicSignal},
	}
	if v, ok := fields["riskLevel"]; ok {
		var rl *float64
		if json.Unmarshal(v, &rl) == nil && rl != nil {
			a.RiskLevel = min(max(*rl, 0), 1)
		}
	}
	if v, ok := fields["signals"]; ok {
		var sigs []string
		if json.Unmarshal(v, &sigs) == nil && len(sigs) > 0 {
			a.Signals = sigs
		}
	}
	return a
}
