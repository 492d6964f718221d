package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectConsentLock(mock sqlmock.Sqlmock, userID string) {
	mock.ExpectExec(`INSERT INTO consent_records .* ON DUPLICATE KEY UPDATE`).WillReturnResult(okResult())
	mock.ExpectQuery(`FROM consent_records WHERE user_id=\? LIMIT 1 FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(consentCols).AddRow("c1", userID, true, false, true, false, fixedNow, fixedNow))
}

func TestUpdateConsent_Partial(t *testing.T) {
	mock, store := setupMockStore(t)
	h := NewUserHandler(store, nil)

	mock.ExpectBegin()
	expectConsentLock(mock, "u1")
	mock.ExpectExec(`UPDATE consent_records`).
		WithArgs(true, false, false, false, fixedNow, "c1", "u1").
		WillReturnResult(okResult())
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(sqlmock.AnyArg(), "u1", "updated_consent", "consent", "c1", []byte(`{"journaling":false}`), fixedNow).
		WillReturnResult(okResult())
	mock.ExpectCommit()

	rec := call(t, h.UpdateConsent, http.MethodPut, "/api/user/consent", `{"journaling": false}`, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["passive_detection"])
	assert.Equal(t, false, resp["location_tracking"])
	assert.Equal(t, false, resp["journaling"])
	assert.Equal(t, false, resp["emergency_sharing"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateConsent_RejectsNonBoolean(t *testing.T) {
	mock, store := setupMockStore(t)
	h := NewUserHandler(store, nil)

	rec := call(t, h.UpdateConsent, http.MethodPut, "/api/user/consent", `{"journaling":"nope"}`, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"journaling":"Not a valid boolean."}}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetConsent_CreatesDefaults(t *testing.T) {
	mock, store := setupMockStore(t)
	h := NewUserHandler(store, nil)

	mock.ExpectExec(`INSERT INTO consent_records .* ON DUPLICATE KEY UPDATE`).
		WithArgs(sqlmock.AnyArg(), "u1", true, false, true, false, fixedNow, fixedNow).
		WillReturnResult(okResult())
	mock.ExpectQuery(`FROM consent_records WHERE user_id=\?`).
		WillReturnRows(sqlmock.NewRows(consentCols).AddRow("c1", "u1", true, false, true, false, fixedNow, fixedNow))

	rec := call(t, h.GetConsent, http.MethodGet, "/api/user/consent", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"c1","passive_detection":true,"location_tracking":false,"journaling":true,"emergency_sharing":false,"updated_at":"2024-05-01T12:00:00Z"}`,
		rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfile(t *testing.T) {
	mock, store := setupMockStore(t)
	h := NewUserHandler(store, nil)

	rec := call(t, h.GetProfile, http.MethodGet, "/api/user", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u1","email":"u1@example.com","name":null,"created_at":"2024-05-01T12:00:00Z","is_active":true}`,
		rec.Body.String())

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET name=\?`).WithArgs("Grace", fixedNow, "u1").WillReturnResult(okResult())
	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "u1@example.com", "hash", "Grace", true, fixedNow, fixedNow))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(sqlmock.AnyArg(), "u1", "updated_profile", "user", "u1", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(okResult())
	mock.ExpectCommit()

	rec = call(t, h.UpdateProfile, http.MethodPut, "/api/user", `{"name":"Grace"}`, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hash")
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Grace", resp["name"])

	// No "name" key: nothing is written.
	rec = call(t, h.UpdateProfile, http.MethodPut, "/api/user", `{}`, "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAudit(t *testing.T) {
	mock, store := setupMockStore(t)
	h := NewUserHandler(store, nil)

	from := fixedNow.Add(-time.Hour)
	mock.ExpectQuery(`FROM audit_logs WHERE user_id=\? AND timestamp >= \? ORDER BY timestamp DESC`).
		WithArgs("u1", from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "resource_type", "resource_id", "details", "timestamp"}).
			AddRow("l1", "u1", "created_alert", "alert", "a1", `{"type":"panic"}`, fixedNow))

	rec := call(t, h.ListAudit, http.MethodGet, "/api/user/audit?from="+from.Format(time.RFC3339), "", "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[{"id":"l1","action":"created_alert","resource_type":"alert","resource_id":"a1","timestamp":"2024-05-01T12:00:00Z"}]`,
		rec.Body.String())

	rec = call(t, h.ListAudit, http.MethodGet, "/api/user/audit?to=yesterday", "", "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
