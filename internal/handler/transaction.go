package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"relivv/internal/model"
	"relivv/internal/mw"
	"relivv/internal/service"
)

func ListTransactionsHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		transactions, err := txSvc.ListByUser(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		if transactions == nil {
			transactions = []model.TransactionView{}
		}
		writeJSON(w, http.StatusOK, transactions)
	}
}

func TransactionHistoryHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		q := r.URL.Query()
		f := service.HistoryFilter{
			Status: q.Get("status"),
			Role:   q.Get("role"),
		}
		if v, err := time.Parse(time.RFC3339, q.Get("start_date")); err == nil {
			f.StartDate = &v
		}
		if v, err := time.Parse(time.RFC3339, q.Get("end_date")); err == nil {
			f.EndDate = &v
		}

		transactions, err := txSvc.History(r.Context(), userID, f)
		if err != nil {
			serviceError(w, err)
			return
		}
		if transactions == nil {
			transactions = []model.TransactionView{}
		}
		writeJSON(w, http.StatusOK, transactions)
	}
}

type confirmDeliveryRequest struct {
	ConfirmationType string `json:"confirmation_type"` // delivered or dispute
}

func ConfirmDeliveryHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req confirmDeliveryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		releaseAt, err := txSvc.ConfirmDelivery(r.Context(), chi.URLParam(r, "transactionID"), userID, req.ConfirmationType)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotInEscrow):
				http.Error(w, "transaction is not in escrow", http.StatusConflict)
			default:
				serviceError(w, err)
			}
			return
		}

		resp := map[string]any{"message": "delivery status updated"}
		if releaseAt != nil {
			resp["auto_release_at"] = releaseAt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func ReleaseFundsHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		amount, err := txSvc.ReleaseFunds(r.Context(), chi.URLParam(r, "transactionID"), userID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotInEscrow):
				http.Error(w, "transaction is not in escrow", http.StatusConflict)
			case errors.Is(err, service.ErrReleaseTooEarly):
				http.Error(w, "auto-release period has not passed yet", http.StatusConflict)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":         "funds released to seller",
			"amount_released": amount,
		})
	}
}

func CancelTransactionHandler(txSvc *service.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		refunded, err := txSvc.Cancel(r.Context(), chi.URLParam(r, "transactionID"), userID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrCannotCancel):
				http.Error(w, "transaction cannot be cancelled", http.StatusConflict)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":         "transaction cancelled and refunded",
			"amount_refunded": refunded,
		})
	}
}
