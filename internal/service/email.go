package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"relivv/internal/metrics"
	"relivv/internal/model"
)

// Email types recorded in email_log.
const (
	EmailWelcome              = "welcome"
	EmailPurchaseConfirmation = "purchase_confirmation"
	EmailDeliveryConfirmed    = "delivery_confirmed"
	EmailFundsReleased        = "funds_released"
	EmailRefundProcessed      = "refund_processed"
	EmailCartReminder         = "cart_reminder"
)

// EmailService sends transactional email through SendGrid and records every
// attempt in email_log. With no API key configured it only logs.
type EmailService struct {
	db          *sql.DB
	client      *sendgrid.Client
	senderEmail string
	frontendURL string
}

func NewEmailService(db *sql.DB, apiKey, senderEmail, frontendURL string) *EmailService {
	svc := &EmailService{db: db, senderEmail: senderEmail, frontendURL: frontendURL}
	if apiKey != "" {
		svc.client = sendgrid.NewSendClient(apiKey)
	}
	return svc
}

func (s *EmailService) send(ctx context.Context, user *model.User, emailType, subject, html string) {
	status := "sent"
	errMsg := ""

	if s.client == nil {
		status = "skipped"
		slog.Info("email sending disabled, skipping", "type", emailType, "recipient", user.Email)
	} else {
		from := sgmail.NewEmail("Relivv Marketplace", s.senderEmail)
		to := sgmail.NewEmail(user.Name, user.Email)
		message := sgmail.NewSingleEmail(from, subject, to, "", html)
		resp, err := s.client.Send(message)
		if err != nil {
			status = "failed"
			errMsg = err.Error()
			slog.Error("email send failed", "type", emailType, "recipient", user.Email, "error", err)
		} else if resp.StatusCode >= 400 {
			status = "failed"
			errMsg = fmt.Sprintf("sendgrid status %d", resp.StatusCode)
			slog.Error("email rejected", "type", emailType, "recipient", user.Email, "status", resp.StatusCode)
		}
	}
	metrics.EmailsSent.WithLabelValues(status).Inc()

	var sentAt *time.Time
	if status == "sent" {
		now := time.Now()
		sentAt = &now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_log (user_id, email_type, recipient, subject, status, error_message, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, emailType, user.Email, subject, status, errMsg, sentAt,
	)
	if err != nil {
		slog.Error("failed to record email log", "type", emailType, "error", err)
	}
}

func (s *EmailService) SendWelcome(ctx context.Context, user *model.User) {
	html := fmt.Sprintf(`
		<h2>Welcome to Relivv, %s!</h2>
		<p>Your account is ready. Browse second-hand treasures or list your own items.</p>
		<p><a href="%s/browse">Start browsing</a></p>`,
		user.Name, s.frontendURL)
	s.send(ctx, user, EmailWelcome, "Welcome to Relivv", html)
}

func (s *EmailService) SendPurchaseConfirmation(ctx context.Context, buyer *model.User, productTitle string, amount float64) {
	html := fmt.Sprintf(`
		<h2>Thank you for your purchase!</h2>
		<p>Your payment has been received and is held securely in escrow.</p>
		<p><strong>Product:</strong> %s</p>
		<p><strong>Amount:</strong> &euro;%.2f</p>
		<p>Once you receive the item, please confirm delivery in your orders.</p>`,
		productTitle, amount)
	s.send(ctx, buyer, EmailPurchaseConfirmation, "Purchase Confirmation - "+productTitle, html)
}

func (s *EmailService) SendDeliveryConfirmed(ctx context.Context, seller *model.User, productTitle string, releaseAt time.Time) {
	html := fmt.Sprintf(`
		<h2>Delivery Confirmed</h2>
		<p>The buyer has confirmed delivery of <strong>%s</strong>.</p>
		<p>The payment will be released from escrow on %s.</p>`,
		productTitle, releaseAt.Format("January 2, 2006"))
	s.send(ctx, seller, EmailDeliveryConfirmed, "Delivery Confirmed - "+productTitle, html)
}

func (s *EmailService) SendFundsReleased(ctx context.Context, seller *model.User, productTitle string, amount float64) {
	html := fmt.Sprintf(`
		<h2>Payment Released!</h2>
		<p>The escrow period has ended and funds have been released to your account.</p>
		<p><strong>Product:</strong> %s</p>
		<p><strong>Amount:</strong> &euro;%.2f</p>
		<p>Thank you for selling on Relivv!</p>`,
		productTitle, amount)
	s.send(ctx, seller, EmailFundsReleased, "Payment Received - "+productTitle, html)
}

func (s *EmailService) SendRefundProcessed(ctx context.Context, buyer *model.User, amount, commission float64) {
	html := fmt.Sprintf(`
		<h2>Refund Processed</h2>
		<p>Your transaction has been cancelled and a full refund has been initiated.</p>
		<p><strong>Product Amount:</strong> &euro;%.2f</p>
		<p><strong>Platform Fee:</strong> &euro;%.2f</p>
		<p><strong>Total Refund:</strong> &euro;%.2f</p>
		<p>The refund will be processed within 7 business days.</p>`,
		amount, commission, amount+commission)
	s.send(ctx, buyer, EmailRefundProcessed, "Refund Processed - Relivv", html)
}

func (s *EmailService) SendCartReminder(ctx context.Context, user *model.User, itemCount int) {
	html := fmt.Sprintf(`
		<h2>Your cart is waiting</h2>
		<p>You still have %d item(s) in your cart. Second-hand items go fast!</p>
		<p><a href="%s/cart">Finish your purchase</a></p>`,
		itemCount, s.frontendURL)
	s.send(ctx, user, EmailCartReminder, "Items waiting in your cart - Relivv", html)
}
