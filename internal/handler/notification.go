package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"relivv/internal/model"
	"relivv/internal/mw"
	"relivv/internal/service"
)

func ListNotificationsHandler(notifySvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		notifications, err := notifySvc.List(r.Context(), userID, limit)
		if err != nil {
			serviceError(w, err)
			return
		}
		if notifications == nil {
			notifications = []model.Notification{}
		}
		writeJSON(w, http.StatusOK, notifications)
	}
}

func UnreadNotificationsHandler(notifySvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		count, err := notifySvc.UnreadCount(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
	}
}

func MarkNotificationReadHandler(notifySvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		if err := notifySvc.MarkRead(r.Context(), userID, chi.URLParam(r, "notificationID")); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "marked read"})
	}
}

func MarkAllNotificationsReadHandler(notifySvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		if err := notifySvc.MarkAllRead(r.Context(), userID); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "all marked read"})
	}
}

func DeleteNotificationHandler(notifySvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		if err := notifySvc.Delete(r.Context(), userID, chi.URLParam(r, "notificationID")); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "notification deleted"})
	}
}

func GetNotificationPreferencesHandler(notifySvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		prefs, err := notifySvc.GetPreferences(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func UpdateNotificationPreferencesHandler(notifySvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var prefs model.NotificationPreferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		prefs.UserID = userID

		if err := notifySvc.UpdatePreferences(r.Context(), &prefs); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}
