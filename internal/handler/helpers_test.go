package handler

import (
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/havenapp/haven-backend/internal/middleware"
	"github.com/havenapp/haven-backend/internal/model"
	"github.com/havenapp/haven-backend/internal/repository"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var (
	alertCols   = []string{"id", "user_id", "risk_level", "alert_type", "signals", "acknowledged", "created_at", "updated_at"}
	signalCols  = []string{"id", "user_id", "category", "signal_type", "confidence", "metadata", "created_at"}
	consentCols = []string{"id", "user_id", "passive_detection", "location_tracking", "journaling", "emergency_sharing", "created_at", "updated_at"}
	userCols    = []string{"id", "email", "password_hash", "name", "is_active", "created_at", "updated_at"}
)

func setupMockStore(t *testing.T) (sqlmock.Sqlmock, *repository.Store) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, repository.NewStore(db).WithClock(func() time.Time { return fixedNow })
}

func testUser(id string) model.User {
	return model.User{ID: id, Email: id + "@example.com", IsActive: true, CreatedAt: fixedNow, UpdatedAt: fixedNow}
}

// call runs h on a fresh request and routes a returned error through
// ErrorHandler, the way echo does. A non-empty user id is installed as
// the authenticated caller.
func call(t *testing.T, h echo.HandlerFunc, method, target, body, userID string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set(middleware.ContextUser, testUser(userID))
		c.Set(middleware.ContextUserID, userID)
	}
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	if err := h(c); err != nil {
		ErrorHandler(zap.NewNop())(err, c)
	}
	return rec
}

func okResult() sql.Result { return sqlmock.NewResult(0, 1) }
