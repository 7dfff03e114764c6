package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"relivv/internal/model"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationService struct {
	db *sql.DB
}

func NewNotificationService(db *sql.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Create stores a notification unless the user has opted out of the type.
// Failures only log: notifications are best-effort side effects.
func (s *NotificationService) Create(ctx context.Context, userID, notifType, title, message, link string) {
	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		slog.Error("failed to load notification preferences", "user_id", userID, "error", err)
		return
	}
	if enabled, ok := prefs.NotificationTypes[notifType]; ok && !enabled {
		return
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, title, message, link) VALUES ($1, $2, $3, $4, $5)`,
		userID, notifType, title, message, link,
	)
	if err != nil {
		slog.Error("failed to create notification", "user_id", userID, "type", notifType, "error", err)
	}
}

func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, title, message, link, read, created_at
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID,
	)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) GetPreferences(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	prefs := &model.NotificationPreferences{
		UserID:             userID,
		EmailNotifications: true,
		NotificationTypes:  model.DefaultNotificationTypes(),
	}

	var typesJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT email_notifications, notification_types FROM notification_preferences WHERE user_id = $1`,
		userID,
	).Scan(&prefs.EmailNotifications, &typesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	var saved map[string]bool
	if err := json.Unmarshal(typesJSON, &saved); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	for k, v := range saved {
		prefs.NotificationTypes[k] = v
	}
	return prefs, nil
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, prefs *model.NotificationPreferences) error {
	typesJSON, err := json.Marshal(prefs.NotificationTypes)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id, email_notifications, notification_types, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET email_notifications = EXCLUDED.email_notifications,
		     notification_types = EXCLUDED.notification_types,
		     updated_at = NOW()`,
		prefs.UserID, prefs.EmailNotifications, typesJSON,
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
