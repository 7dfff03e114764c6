package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"relivv/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

// serviceError maps the shared service sentinels. Handlers switch on their
// own domain errors first and fall through here.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotAuthorized):
		http.Error(w, "not authorized", http.StatusForbidden)
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrTransactionNotFound),
		errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrInvoiceNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
