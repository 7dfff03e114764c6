package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"relivv/internal/mw"
	"relivv/internal/service"
)

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	IsBusinessSeller bool   `json:"is_business_seller"`
	BusinessName     string `json:"business_name"`
	VATNumber        string `json:"vat_number"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func issueToken(userID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	return token.SignedString([]byte(secret))
}

func RegisterHandler(authSvc *service.AuthService, mailer *service.EmailService, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		user, err := authSvc.Register(r.Context(), service.RegisterParams{
			Email:            req.Email,
			Password:         req.Password,
			Name:             req.Name,
			Phone:            req.Phone,
			IsBusinessSeller: req.IsBusinessSeller,
			BusinessName:     req.BusinessName,
			VATNumber:        req.VATNumber,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrEmailTaken):
				http.Error(w, "email already registered", http.StatusConflict)
			default:
				serviceError(w, err)
			}
			return
		}

		tokenString, err := issueToken(user.ID, secret)
		if err != nil {
			http.Error(w, "token generation failed", http.StatusInternalServerError)
			return
		}

		go mailer.SendWelcome(context.Background(), user)

		w.Header().Set("Authorization", "Bearer "+tokenString)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": tokenString,
			"token_type":   "bearer",
			"user":         user,
		})
	}
}

func LoginHandler(authSvc *service.AuthService, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		user, err := authSvc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidCredentials):
				http.Error(w, "invalid email or password", http.StatusUnauthorized)
			case errors.Is(err, service.ErrAccountBanned):
				http.Error(w, "account is banned", http.StatusForbidden)
			default:
				serviceError(w, err)
			}
			return
		}

		tokenString, err := issueToken(user.ID, secret)
		if err != nil {
			http.Error(w, "token generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Authorization", "Bearer "+tokenString)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": tokenString,
			"token_type":   "bearer",
			"user":         user,
		})
	}
}

func MeHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		user, err := authSvc.GetUser(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func UpdateProfileHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req updateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		user, err := authSvc.UpdateProfile(r.Context(), userID, req.Name, req.Phone)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func PublicProfileHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := authSvc.PublicProfile(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}
