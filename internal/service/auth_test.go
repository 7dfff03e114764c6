package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegister_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewAuthService(db)

	cases := []struct {
		name   string
		params RegisterParams
	}{
		{"bad email", RegisterParams{Email: "not-an-email", Password: "secret123", Name: "Jan"}},
		{"short password", RegisterParams{Email: "jan@example.nl", Password: "abc", Name: "Jan"}},
		{"short name", RegisterParams{Email: "jan@example.nl", Password: "secret123", Name: "J"}},
		{"business without name", RegisterParams{
			Email: "shop@example.nl", Password: "secret123", Name: "Shop Owner",
			IsBusinessSeller: true, VATNumber: "NL123456789B01",
		}},
		{"business without VAT", RegisterParams{
			Email: "shop@example.nl", Password: "secret123", Name: "Shop Owner",
			IsBusinessSeller: true, BusinessName: "Tweedehands BV",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.params)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func userColumns() []string {
	return []string{"id", "email", "password_hash", "name", "phone", "profile_image",
		"is_business_seller", "business_name", "vat_number", "is_admin", "is_banned",
		"rating_average", "rating_count", "created_at"}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewAuthService(db)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("jan@example.nl").
		WillReturnRows(sqlmock.NewRows(userColumns()).AddRow(
			"user-1", "jan@example.nl", hash, "Jan", "", "", false, "", "",
			false, false, 0.0, 0, time.Now()))

	_, err = svc.Authenticate(context.Background(), "jan@example.nl", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_UnknownEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewAuthService(db)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("nobody@example.nl").
		WillReturnRows(sqlmock.NewRows(userColumns()))

	_, err = svc.Authenticate(context.Background(), "nobody@example.nl", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_BannedAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewAuthService(db)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("banned@example.nl").
		WillReturnRows(sqlmock.NewRows(userColumns()).AddRow(
			"user-1", "banned@example.nl", hash, "Banned User", "", "", false, "", "",
			false, true, 0.0, 0, time.Now()))

	_, err = svc.Authenticate(context.Background(), "banned@example.nl", "secret123")
	assert.ErrorIs(t, err, ErrAccountBanned)
}

func TestAuthenticate_LowercasesEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	svc := NewAuthService(db)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("jan@example.nl").
		WillReturnRows(sqlmock.NewRows(userColumns()).AddRow(
			"user-1", "jan@example.nl", hash, "Jan", "", "", false, "", "",
			false, false, 4.5, 12, time.Now()))
	mock.ExpectExec("UPDATE users SET last_login_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := svc.Authenticate(context.Background(), "Jan@Example.NL", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.NotNil(t, user.LastLoginAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
