package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/havenapp/haven-backend/internal/utils"
)

func newAuthHandler(t *testing.T) (sqlmock.Sqlmock, *AuthHandler) {
	mock, store := setupMockStore(t)
	tokens := utils.NewTokenService("test-secret", 5*time.Minute, 24*time.Hour)
	return mock, NewAuthHandler(store, tokens, bcrypt.MinCost, nil)
}

func TestRegister_Success(t *testing.T) {
	mock, h := newAuthHandler(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "ada@example.com", sqlmock.AnyArg(), "Ada", true, fixedNow, fixedNow).
		WillReturnResult(okResult())
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "user_registered", "user", sqlmock.AnyArg(), nil, fixedNow).
		WillReturnResult(okResult())
	mock.ExpectCommit()

	rec := call(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"email":"ada@example.com","password":"s3cret-pass","name":"Ada"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := rec.Body.String()
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "s3cret-pass")
	assert.NotContains(t, body, "$2a$")

	var resp struct {
		AccessToken  string         `json:"access_token"`
		RefreshToken string         `json:"refresh_token"`
		User         map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ada@example.com", resp.User["email"])
	assert.Equal(t, "Ada", resp.User["name"])
	assert.Equal(t, true, resp.User["is_active"])
	assert.ElementsMatch(t, []string{"id", "email", "name", "created_at", "is_active"}, keys(resp.User))

	sub, err := h.Tokens.VerifyKind(resp.AccessToken, utils.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, resp.User["id"], sub)
	_, err = h.Tokens.VerifyKind(resp.RefreshToken, utils.KindRefresh)
	assert.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	mock, h := newAuthHandler(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ada@example.com'"})
	mock.ExpectRollback()

	rec := call(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"email":"ada@example.com","password":"s3cret-pass"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"User already exists"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Validation(t *testing.T) {
	mock, h := newAuthHandler(t)

	rec := call(t, h.Register, http.MethodPost, "/api/auth/register", `{"email":"nope","password":"short"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "email")
	assert.Contains(t, resp.Error, "password")

	rec = call(t, h.Register, http.MethodPost, "/api/auth/register", `{`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid JSON body"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)

	userRow := func(active bool) *sqlmock.Rows {
		return sqlmock.NewRows(userCols).AddRow("u1", "ada@example.com", hash, nil, active, fixedNow, fixedNow)
	}

	t.Run("success", func(t *testing.T) {
		mock, h := newAuthHandler(t)
		mock.ExpectQuery(`FROM users WHERE email=\?`).WithArgs("ada@example.com").WillReturnRows(userRow(true))

		rec := call(t, h.Login, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"s3cret-pass"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), hash)
		assert.Contains(t, rec.Body.String(), `"access_token"`)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	cases := map[string]struct {
		rows *sqlmock.Rows
		body string
	}{
		"wrong password": {userRow(true), `{"email":"ada@example.com","password":"wrong-pass"}`},
		"unknown email":  {sqlmock.NewRows(userCols), `{"email":"ada@example.com","password":"s3cret-pass"}`},
		"deactivated":    {userRow(false), `{"email":"ada@example.com","password":"s3cret-pass"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			mock, h := newAuthHandler(t)
			mock.ExpectQuery(`FROM users WHERE email=\?`).WillReturnRows(tc.rows)

			rec := call(t, h.Login, http.MethodPost, "/api/auth/login", tc.body, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())
		})
	}
}

func TestLogin_UnknownEmailStillComparesHash(t *testing.T) {
	mock, h := newAuthHandler(t)
	mock.ExpectQuery(`FROM users WHERE email=\?`).WillReturnRows(sqlmock.NewRows(userCols))

	rec := call(t, h.Login, http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"s3cret-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())

	require.NotEmpty(t, h.absentHash)
	cost, err := bcrypt.Cost([]byte(h.absentHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.False(t, utils.VerifyPassword(h.absentHash, "s3cret-pass"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogout(t *testing.T) {
	_, h := newAuthHandler(t)
	rec := call(t, h.Logout, http.MethodPost, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rec.Body.String())
}

func TestRefreshAccess(t *testing.T) {
	mock, h := newAuthHandler(t)
	pair, err := h.Tokens.IssuePair("u1")
	require.NoError(t, err)

	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "ada@example.com", "hash", nil, true, fixedNow, fixedNow))

	rec := call(t, h.RefreshAccess, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+pair.Refresh.Token+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	sub, err := h.Tokens.VerifyKind(resp["access_token"], utils.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)

	// An access token is not accepted in place of a refresh token.
	rec = call(t, h.RefreshAccess, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+pair.Access.Token+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec = call(t, h.RefreshAccess, http.MethodPost, "/api/auth/refresh", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "refresh_token"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
