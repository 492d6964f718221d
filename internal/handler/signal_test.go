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

func TestCreateSignal(t *testing.T) {
	mock, store := setupMockStore(t)
	h := NewSignalHandler(store, nil)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO signals`).
		WithArgs(sqlmock.AnyArg(), "u1", "device", "screen_unlock", 0.4, []byte(`{"count":3}`), fixedNow).
		WillReturnResult(okResult())
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(sqlmock.AnyArg(), "u1", "created_signal", "signal", sqlmock.AnyArg(), sqlmock.AnyArg(), fixedNow).
		WillReturnResult(okResult())
	mock.ExpectCommit()

	rec := call(t, h.Create, http.MethodPost, "/api/signals",
		`{"category":"device","type":"screen_unlock","confidence":0.4,"metadata":{"count":3}}`, "u1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "device", resp["category"])
	assert.Equal(t, "screen_unlock", resp["type"])
	assert.Equal(t, 0.4, resp["confidence"])
	assert.Equal(t, map[string]any{"count": float64(3)}, resp["metadata"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSignal_Validation(t *testing.T) {
	cases := map[string]struct {
		body  string
		field string
	}{
		"confidence too high": {`{"category":"device","type":"x","confidence":1.5}`, "confidence"},
		"confidence negative": {`{"category":"device","type":"x","confidence":-0.5}`, "confidence"},
		"unknown category":    {`{"category":"weather","type":"x"}`, "category"},
		"missing category":    {`{"type":"x"}`, "category"},
		"missing type":        {`{"category":"movement"}`, "type"},
		"metadata not object": {`{"category":"movement","type":"x","metadata":[1,2]}`, "metadata"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			mock, store := setupMockStore(t)
			h := NewSignalHandler(store, nil)

			rec := call(t, h.Create, http.MethodPost, "/api/signals", tc.body, "u1")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp struct {
				Error map[string]string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tc.field)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListSignals_NewestFirst(t *testing.T) {
	mock, store := setupMockStore(t)
	h := NewSignalHandler(store, nil)

	mock.ExpectQuery(`FROM signals WHERE user_id=\? ORDER BY created_at DESC, id DESC`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(signalCols).
			AddRow("s3", "u1", "movement", "run", 0.9, nil, fixedNow).
			AddRow("s2", "u1", "device", "lock", 0.5, `{"a":1}`, fixedNow.Add(-time.Minute)).
			AddRow("s1", "u1", "self_report", "note", 0.0, nil, fixedNow.Add(-2*time.Minute)))

	rec := call(t, h.List, http.MethodGet, "/api/signals", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []signalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 3)
	assert.Equal(t, []string{"s3", "s2", "s1"}, []string{resp[0].ID, resp[1].ID, resp[2].ID})
	assert.JSONEq(t, "null", string(resp[0].Metadata))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSignal_NotOwned(t *testing.T) {
	mock, store := setupMockStore(t)
	h := NewSignalHandler(store, nil)

	mock.ExpectQuery(`FROM signals WHERE id=\? AND user_id=\?`).
		WithArgs("s1", "u2").
		WillReturnRows(sqlmock.NewRows(signalCols))

	rec := call(t, h.Get, http.MethodGet, "/api/signals/s1", "", "u2", "id", "s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Signal not found"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
