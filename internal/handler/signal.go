package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/havenapp/haven-backend/internal/model"
	"github.com/havenapp/haven-backend/internal/repository"
)

// SignalHandler serves /api/signals.
type SignalHandler struct {
	Store *repository.Store
	Log   *zap.Logger
}

// NewSignalHandler constructs a SignalHandler. A nil logger discards output.
func NewSignalHandler(store *repository.Store, log *zap.Logger) *SignalHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SignalHandler{Store: store, Log: log}
}

// signalReq is the body of POST /api/signals. Metadata is an arbitrary
// JSON object stored as given.
type signalReq struct {
	Category   string                     `json:"category" validate:"required,oneof=communication movement device self_report"`
	Type       string                     `json:"type" validate:"required"`
	Confidence *float64                   `json:"confidence" validate:"omitnil,gte=0,lte=1"`
	Metadata   map[string]json.RawMessage `json:"metadata"`
}

// signalResponse is the wire form of a signal.
type signalResponse struct {
	ID         string          `json:"id"`
	Category   string          `json:"category"`
	Type       string          `json:"type"`
	Confidence float64         `json:"confidence"`
	Metadata   json.RawMessage `json:"metadata"`
	Timestamp  time.Time       `json:"timestamp"`
}

// toSignalResponse renders s. Missing metadata is emitted as null.
func toSignalResponse(s model.Signal) signalResponse {
	meta := s.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage("null")
	}
	return signalResponse{
		ID:         s.ID,
		Category:   s.Category,
		Type:       s.SignalType,
		Confidence: s.Confidence,
		Metadata:   meta,
		Timestamp:  s.CreatedAt,
	}
}

// Create records a signal for the caller.
func (h *SignalHandler) Create(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req signalReq
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}

	s := model.Signal{UserID: u.ID, Category: req.Category, SignalType: req.Type}
	if req.Confidence != nil {
		s.Confidence = *req.Confidence
	}
	if req.Metadata != nil {
		if s.Metadata, err = json.Marshal(req.Metadata); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err = h.Store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		if s, err = r.Signals.Create(ctx, s); err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, u.ID, model.ActionSignalCreated, model.ResourceSignal, s.ID,
			map[string]any{"category": s.Category, "type": s.SignalType})
		return err
	})
	if err != nil {
		return err
	}
	h.Log.Debug("signal recorded", zap.String("user_id", u.ID), zap.String("category", s.Category))
	return c.JSON(http.StatusCreated, toSignalResponse(s))
}

// List returns the caller's signals, newest first.
func (h *SignalHandler) List(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	signals, err := h.Store.Repos().Signals.ListByUser(ctx, u.ID)
	if err != nil {
		return err
	}
	out := make([]signalResponse, 0, len(signals))
	for _, s := range signals {
		out = append(out, toSignalResponse(s))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one of the caller's signals.
func (h *SignalHandler) Get(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Store.Repos().Signals.GetForUser(ctx, c.Param("id"), u.ID)
	if err != nil {
		return notFound(err, "Signal")
	}
	return c.JSON(http.StatusOK, toSignalResponse(s))
}
