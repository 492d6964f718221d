package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenapp/haven-backend/internal/config"
)

func newTestApp(t *testing.T) (*App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a := New(Options{
		Config: config.Config{
			Env:        config.EnvTest,
			JWTSecret:  "test-secret",
			AccessTTL:  5 * time.Minute,
			RefreshTTL: time.Hour,
			BcryptCost: 4,
		},
		DB: db,
	})
	return a, mock
}

func serve(a *App, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_PublicAndErrors(t *testing.T) {
	a, _ := newTestApp(t)

	rec := serve(a, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = serve(a, http.MethodGet, "/api/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())

	rec = serve(a, http.MethodPost, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(a, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "haven_http_requests_total")
}

func TestMetrics_ValidationFailureCountedAs400(t *testing.T) {
	a, mock := newTestApp(t)

	rec := serve(a, http.MethodPost, "/api/auth/register", `{"email":"a@b.co","password":"x"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"password":"Shorter than minimum length 8."}}`, rec.Body.String())

	rec = serve(a, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `haven_http_requests_total{method="POST",path="/api/auth/register",status="400"}`)
	assert.NotContains(t, body, `haven_http_requests_total{method="POST",path="/api/auth/register",status="500"}`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_ProtectedRequireToken(t *testing.T) {
	a, mock := newTestApp(t)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/alerts"},
		{http.MethodPost, "/api/alerts"},
		{http.MethodGet, "/api/alerts/a1"},
		{http.MethodPut, "/api/alerts/a1/acknowledge"},
		{http.MethodGet, "/api/signals"},
		{http.MethodPost, "/api/signals"},
		{http.MethodGet, "/api/user"},
		{http.MethodPut, "/api/user"},
		{http.MethodGet, "/api/user/consent"},
		{http.MethodPut, "/api/user/consent"},
	} {
		rec := serve(a, r.method, r.path, `{}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.method+" "+r.path)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_AuthenticatedRequest(t *testing.T) {
	a, mock := newTestApp(t)
	tok, err := a.Tokens.Issue("u1", "access", time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "is_active", "created_at", "updated_at"}).
			AddRow("u1", "ada@example.com", "hash", nil, true, now, now))

	rec := serve(a, http.MethodGet, "/api/user", "", tok.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, rec.Body.String(), "hash")
	require.NoError(t, mock.ExpectationsWereMet())
}
