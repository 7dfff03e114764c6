package service

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/refund"
	"github.com/stripe/stripe-go/v79/webhook"
)

// CheckoutParams describes a checkout session to create.
type CheckoutParams struct {
	Description string
	Amount      float64 // EUR
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is the gateway-neutral view of a Stripe session.
type CheckoutSession struct {
	SessionID     string
	URL           string
	PaymentStatus string // pending, paid, failed, expired
	PaymentIntent string
	AmountTotal   float64
	Currency      string
	Metadata      map[string]string
}

// WebhookEvent is a verified event from the payment provider.
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// PaymentGateway is the slice of Stripe the transaction service needs.
// Tests substitute a fake.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	Refund(ctx context.Context, paymentIntentID string) error
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeClient implements PaymentGateway against the Stripe API.
type StripeClient struct {
	webhookSecret string
}

func NewStripeClient(apiKey, webhookSecret string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{webhookSecret: webhookSecret}
}

// eurCents converts a euro amount to Stripe's integer minor units.
func eurCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyEUR)),
					UnitAmount: stripe.Int64(eurCents(p.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &CheckoutSession{
		SessionID:     s.ID,
		URL:           s.URL,
		PaymentStatus: mapPaymentStatus(s),
		AmountTotal:   float64(s.AmountTotal) / 100,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}, nil
}

func (c *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	out := &CheckoutSession{
		SessionID:     s.ID,
		URL:           s.URL,
		PaymentStatus: mapPaymentStatus(s),
		AmountTotal:   float64(s.AmountTotal) / 100,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntent = s.PaymentIntent.ID
	}
	return out, nil
}

func (c *StripeClient) Refund(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

func (c *StripeClient) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if obj, ok := event.Data.Object["id"].(string); ok {
		out.SessionID = obj
	}
	return out, nil
}

// mapPaymentStatus flattens Stripe's two status fields into the statuses the
// transactions table uses.
func mapPaymentStatus(s *stripe.CheckoutSession) string {
	if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return "paid"
	}
	if s.Status == stripe.CheckoutSessionStatusExpired {
		return "expired"
	}
	return "pending"
}
