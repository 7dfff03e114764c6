package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"relivv/internal/service"
)

// CartReminder emails users who left items in their cart for over a day.
// Runs on a daily cron schedule.
type CartReminder struct {
	cartSvc *service.CartService
	authSvc *service.AuthService
	mailer  *service.EmailService
	cron    *cron.Cron
}

func NewCartReminder(cartSvc *service.CartService, authSvc *service.AuthService, mailer *service.EmailService) *CartReminder {
	return &CartReminder{
		cartSvc: cartSvc,
		authSvc: authSvc,
		mailer:  mailer,
		cron:    cron.New(),
	}
}

func (w *CartReminder) Start() error {
	_, err := w.cron.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		w.run(ctx)
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	slog.Info("cart reminder scheduled", "schedule", "@daily")
	return nil
}

func (w *CartReminder) Stop() {
	<-w.cron.Stop().Done()
}

func (w *CartReminder) run(ctx context.Context) {
	cutoff := time.Now().Add(-24 * time.Hour)
	carts, err := w.cartSvc.StaleCarts(ctx, cutoff)
	if err != nil {
		slog.Error("stale cart query failed", "error", err)
		return
	}

	for _, sc := range carts {
		user, err := w.authSvc.GetUser(ctx, sc.UserID)
		if err != nil {
			slog.Error("cart reminder user lookup failed", "user_id", sc.UserID, "error", err)
			continue
		}
		w.mailer.SendCartReminder(ctx, user, sc.ItemCount)
		if err := w.cartSvc.MarkReminded(ctx, sc.UserID); err != nil {
			slog.Error("failed to mark cart reminded", "user_id", sc.UserID, "error", err)
		}
	}
	if len(carts) > 0 {
		slog.Info("cart reminders sent", "count", len(carts))
	}
}
