package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"relivv/internal/service"
)

const testSecret = "test-secret"

func TestLoginHandler_InvalidJSON(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := LoginHandler(service.NewAuthService(db), testSecret)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandler_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	cols := []string{"id", "email", "password_hash", "name", "phone", "profile_image",
		"is_business_seller", "business_name", "vat_number", "is_admin", "is_banned",
		"rating_average", "rating_count", "created_at"}
	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("jan@example.nl").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"user-1", "jan@example.nl", hash, "Jan", "", "", false, "", "",
			false, false, 0.0, 0, time.Now()))
	mock.ExpectExec("UPDATE users SET last_login_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := LoginHandler(service.NewAuthService(db), testSecret)

	body := `{"email":"jan@example.nl","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Authorization"), "Bearer "))

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
}

func TestLoginHandler_WrongPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	cols := []string{"id", "email", "password_hash", "name", "phone", "profile_image",
		"is_business_seller", "business_name", "vat_number", "is_admin", "is_banned",
		"rating_average", "rating_count", "created_at"}
	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("jan@example.nl").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"user-1", "jan@example.nl", hash, "Jan", "", "", false, "", "",
			false, false, 0.0, 0, time.Now()))

	h := LoginHandler(service.NewAuthService(db), testSecret)

	body := `{"email":"jan@example.nl","password":"nope"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterHandler_ValidationError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mailer := service.NewEmailService(db, "", "noreply@relivv.nl", "http://localhost:3000")
	h := RegisterHandler(service.NewAuthService(db), mailer, testSecret)

	body := `{"email":"bad","password":"123","name":"X"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
