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

// UserHandler serves the caller's profile, consent flags and audit trail
// under /api/user.
type UserHandler struct {
	Store *repository.Store
	Log   *zap.Logger
}

// NewUserHandler constructs a UserHandler. A nil logger discards output.
func NewUserHandler(store *repository.Store, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{Store: store, Log: log}
}

// consentReq is the body of PUT /api/user/consent. A nil flag was absent
// from the body and keeps its stored value.
type consentReq struct {
	PassiveDetection *bool `json:"passive_detection"`
	LocationTracking *bool `json:"location_tracking"`
	Journaling       *bool `json:"journaling"`
	EmergencySharing *bool `json:"emergency_sharing"`
}

// apply overwrites only the flags present in the request.
func (r consentReq) apply(c *model.ConsentRecord) {
	if r.PassiveDetection != nil {
		c.PassiveDetection = *r.PassiveDetection
	}
	if r.LocationTracking != nil {
		c.LocationTracking = *r.LocationTracking
	}
	if r.Journaling != nil {
		c.Journaling = *r.Journaling
	}
	if r.EmergencySharing != nil {
		c.EmergencySharing = *r.EmergencySharing
	}
}

// changes lists the flags present in the request, for the audit entry.
func (r consentReq) changes() map[string]bool {
	out := map[string]bool{}
	for k, v := range map[string]*bool{
		"passive_detection": r.PassiveDetection,
		"location_tracking": r.LocationTracking,
		"journaling":        r.Journaling,
		"emergency_sharing": r.EmergencySharing,
	} {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// consentResponse is the wire form of a consent record.
type consentResponse struct {
	ID               string    `json:"id"`
	PassiveDetection bool      `json:"passive_detection"`
	LocationTracking bool      `json:"location_tracking"`
	Journaling       bool      `json:"journaling"`
	EmergencySharing bool      `json:"emergency_sharing"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toConsentResponse(c model.ConsentRecord) consentResponse {
	return consentResponse{
		ID:               c.ID,
		PassiveDetection: c.PassiveDetection,
		LocationTracking: c.LocationTracking,
		Journaling:       c.Journaling,
		EmergencySharing: c.EmergencySharing,
		UpdatedAt:        c.UpdatedAt,
	}
}

// auditResponse is the wire form of an audit entry. Details stay
// server-side.
type auditResponse struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// GetProfile returns the caller.
func (h *UserHandler) GetProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}

// UpdateProfile sets the display name when "name" is present in the body.
// An explicit null clears it; an absent key leaves it unchanged.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ErrInvalidBody
	}
	nameRaw, present := fields["name"]
	if !present {
		return c.JSON(http.StatusOK, toUserResponse(u))
	}
	var name *string
	if err := json.Unmarshal(nameRaw, &name); err != nil {
		return &ValidationError{Fields: map[string]string{"name": "Not a valid string."}}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err = h.Store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		if u, err = r.Users.UpdateName(ctx, u.ID, name); err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, u.ID, model.ActionProfileUpdated, model.ResourceUser, u.ID,
			map[string]any{"fields": []string{"name"}})
		return err
	})
	if err != nil {
		return err
	}
	h.Log.Info("profile updated", zap.String("user_id", u.ID))
	return c.JSON(http.StatusOK, toUserResponse(u))
}

// GetConsent returns the caller's consent flags, creating the defaults on
// first access.
func (h *UserHandler) GetConsent(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rec, err := h.Store.Repos().Consents.GetOrCreate(ctx, u.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toConsentResponse(rec))
}

// UpdateConsent applies a partial update. Keys missing from the body keep
// their stored value.
func (h *UserHandler) UpdateConsent(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req consentReq
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	var rec model.ConsentRecord
	err = h.Store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		if rec, err = r.Consents.GetForUpdate(ctx, u.ID); err != nil {
			return err
		}
		req.apply(&rec)
		if rec, err = r.Consents.Update(ctx, rec); err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, u.ID, model.ActionConsentUpdated, model.ResourceConsent, rec.ID, req.changes())
		return err
	})
	if err != nil {
		return err
	}
	h.Log.Info("consent updated", zap.String("user_id", u.ID))
	return c.JSON(http.StatusOK, toConsentResponse(rec))
}

// ListAudit returns the caller's audit trail, newest first. Optional
// "from" and "to" query parameters (RFC 3339) bound the time range.
func (h *UserHandler) ListAudit(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	verr := &ValidationError{}
	from := parseTimeParam(c, "from", verr)
	to := parseTimeParam(c, "to", verr)
	if err := verr.orNil(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	entries, err := h.Store.Repos().Audit.ListByUser(ctx, u.ID, from, to)
	if err != nil {
		return err
	}
	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:           e.ID,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Timestamp:    e.Timestamp,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// parseTimeParam reads an optional RFC 3339 query parameter. A malformed
// value is recorded on verr and reads as the zero time.
func parseTimeParam(c echo.Context, name string, verr *ValidationError) time.Time {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		verr.add(name, "Not a valid datetime.")
		return time.Time{}
	}
	return t
}
