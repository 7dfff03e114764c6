package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"relivv/internal/model"
	"relivv/internal/mw"
	"relivv/internal/service"
)

type startConversationRequest struct {
	ProductID      string `json:"product_id"`
	RecipientID    string `json:"recipient_id"`
	InitialMessage string `json:"initial_message"`
}

func StartConversationHandler(messageSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req startConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.ProductID == "" || req.RecipientID == "" {
			http.Error(w, "product_id and recipient_id required", http.StatusBadRequest)
			return
		}

		convID, err := messageSvc.StartConversation(r.Context(), userID, req.ProductID, req.RecipientID, req.InitialMessage)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"conversation_id": convID})
	}
}

func ListConversationsHandler(messageSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		conversations, err := messageSvc.ListConversations(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		if conversations == nil {
			conversations = []model.ConversationView{}
		}
		writeJSON(w, http.StatusOK, conversations)
	}
}

func GetMessagesHandler(messageSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		messages, err := messageSvc.Messages(r.Context(), chi.URLParam(r, "conversationID"), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

func SendMessageHandler(messageSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		messageID, err := messageSvc.Send(r.Context(), chi.URLParam(r, "conversationID"), userID, req.Message)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMessageTooLong):
				http.Error(w, "message must be 1-1000 characters", http.StatusUnprocessableEntity)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message_id": messageID})
	}
}

func MarkConversationReadHandler(messageSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		if err := messageSvc.MarkRead(r.Context(), chi.URLParam(r, "conversationID"), userID); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "marked read"})
	}
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

func SetTypingHandler(messageSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req typingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if err := messageSvc.SetTyping(r.Context(), chi.URLParam(r, "conversationID"), userID, req.Typing); err != nil {
			serviceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
