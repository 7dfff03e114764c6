package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"relivv/internal/model"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountBanned      = errors.New("account is banned")
	ErrUserNotFound       = errors.New("user not found")
)

type AuthService struct {
	db *sql.DB
}

func NewAuthService(db *sql.DB) *AuthService {
	return &AuthService{db: db}
}

type RegisterParams struct {
	Email            string
	Password         string
	Name             string
	Phone            string
	IsBusinessSeller bool
	BusinessName     string
	VATNumber        string
}

func (p RegisterParams) validate() error {
	if !strings.Contains(p.Email, "@") {
		return errors.New("invalid email address")
	}
	if len(p.Password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	if len(strings.TrimSpace(p.Name)) < 2 {
		return errors.New("name must be at least 2 characters")
	}
	if p.IsBusinessSeller {
		if p.BusinessName == "" {
			return errors.New("business name is required for business sellers")
		}
		if p.VATNumber == "" {
			return errors.New("VAT/BTW number is required for business sellers")
		}
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*model.User, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (email, password_hash, name, phone, is_business_seller, business_name, vat_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	row := s.db.QueryRowContext(ctx, query,
		strings.ToLower(p.Email), hash, p.Name, p.Phone, p.IsBusinessSeller, p.BusinessName, p.VATNumber)

	user := model.User{
		Email:            strings.ToLower(p.Email),
		Name:             p.Name,
		Phone:            p.Phone,
		IsBusinessSeller: p.IsBusinessSeller,
		BusinessName:     p.BusinessName,
		VATNumber:        p.VATNumber,
		PasswordHash:     hash,
	}
	if err := row.Scan(&user.ID, &user.CreatedAt); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &user, nil
}

func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	query := `SELECT id, email, password_hash, name, phone, profile_image, is_business_seller,
		business_name, vat_number, is_admin, is_banned, rating_average, rating_count, created_at
		FROM users WHERE email = $1`
	row := s.db.QueryRowContext(ctx, query, strings.ToLower(email))

	var user model.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Phone,
		&user.ProfileImage, &user.IsBusinessSeller, &user.BusinessName, &user.VATNumber,
		&user.IsAdmin, &user.IsBanned, &user.RatingAverage, &user.RatingCount, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.IsBanned {
		return nil, ErrAccountBanned
	}

	now := time.Now()
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, now, user.ID); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now

	return &user, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	query := `SELECT id, email, name, phone, profile_image, is_business_seller,
		business_name, vat_number, is_admin, is_banned, rating_average, rating_count, created_at, last_login_at
		FROM users WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, userID)

	var user model.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Phone, &user.ProfileImage,
		&user.IsBusinessSeller, &user.BusinessName, &user.VATNumber, &user.IsAdmin,
		&user.IsBanned, &user.RatingAverage, &user.RatingCount, &user.CreatedAt, &user.LastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// PublicProfile returns the profile fields visible to other users.
func (s *AuthService) PublicProfile(ctx context.Context, userID string) (*model.PublicProfile, error) {
	query := `SELECT id, name, profile_image, is_business_seller, business_name,
		rating_average, rating_count, created_at
		FROM users WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, userID)

	var p model.PublicProfile
	err := row.Scan(&p.ID, &p.Name, &p.ProfileImage, &p.IsBusinessSeller, &p.BusinessName,
		&p.RatingAverage, &p.RatingCount, &p.MemberSince)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID, name, phone string) (*model.User, error) {
	if len(strings.TrimSpace(name)) < 2 {
		return nil, fmt.Errorf("%w: name must be at least 2 characters", ErrValidation)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET name = $1, phone = $2 WHERE id = $3`, name, phone, userID)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetUser(ctx, userID)
}

// IsAdmin reports whether the user has admin rights.
func (s *AuthService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id = $1`, userID).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get admin flag: %w", err)
	}
	return isAdmin, nil
}
