package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"relivv/internal/mw"
	"relivv/internal/service"
)

type checkoutRequest struct {
	ProductID string `json:"product_id"`
}

func CreateCheckoutHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.ProductID == "" {
			http.Error(w, "product_id required", http.StatusBadRequest)
			return
		}

		result, err := txSvc.CreateCheckout(r.Context(), userID, req.ProductID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrProductSold):
				http.Error(w, "product already sold", http.StatusConflict)
			case errors.Is(err, service.ErrOwnProduct):
				http.Error(w, "cannot buy your own product", http.StatusBadRequest)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func CreateCartCheckoutHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		result, err := txSvc.CreateCartCheckout(r.Context(), userID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrCartEmpty):
				http.Error(w, "cart is empty", http.StatusBadRequest)
			case errors.Is(err, service.ErrOwnProduct):
				http.Error(w, "cannot buy your own product", http.StatusBadRequest)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func CheckoutStatusHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		status, err := txSvc.CheckoutStatus(r.Context(), chi.URLParam(r, "sessionID"), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// StripeWebhookHandler is unauthenticated; the Stripe signature header is the
// authentication.
func StripeWebhookHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 65536))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		eventID, err := txSvc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			if errors.Is(err, service.ErrValidation) {
				http.Error(w, "invalid signature", http.StatusBadRequest)
				return
			}
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"received": eventID})
	}
}
