package model

import "time"

// Notification types.
const (
	NotifyOrder   = "order"
	NotifyMessage = "message"
	NotifyReview  = "review"
	NotifySystem  = "system"
	NotifySale    = "sale"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationPreferences struct {
	UserID             string          `json:"user_id"`
	EmailNotifications bool            `json:"email_notifications"`
	NotificationTypes  map[string]bool `json:"notification_types"`
}

// DefaultNotificationTypes is used until the user saves preferences.
func DefaultNotificationTypes() map[string]bool {
	return map[string]bool{
		NotifyOrder:   true,
		NotifyMessage: true,
		NotifyReview:  true,
		NotifySystem:  true,
		NotifySale:    true,
	}
}
