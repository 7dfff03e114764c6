package model

import (
	"time"
)

// Transaction statuses.
const (
	TxPending   = "pending"
	TxHeld      = "held" // paid, funds held in escrow
	TxCompleted = "completed"
	TxCancelled = "cancelled"
	TxRefunded  = "refunded"
)

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryConfirmed = "confirmed"
	DeliveryDisputed  = "disputed"
)

type Transaction struct {
	ID                  string     `json:"id"`
	ProductID           string     `json:"product_id"`
	BuyerID             string     `json:"buyer_id"`
	SellerID            string     `json:"seller_id"`
	Amount              float64    `json:"amount"`
	Commission          float64    `json:"commission"`
	CommissionRate      float64    `json:"commission_rate"`
	TotalAmount         float64    `json:"total_amount"`
	Status              string     `json:"status"`
	PaymentProvider     string     `json:"payment_provider"`
	PaymentSessionID    string     `json:"payment_session_id,omitempty"`
	DeliveryStatus      string     `json:"delivery_status"`
	DeliveryConfirmedAt *time.Time `json:"delivery_confirmed_at,omitempty"`
	AutoReleaseAt       *time.Time `json:"auto_release_at,omitempty"`
	CartCheckout        bool       `json:"cart_checkout,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
}

// TransactionView is a transaction enriched with product and counterparty
// info for list endpoints.
type TransactionView struct {
	Transaction
	ProductTitle  string   `json:"product_title"`
	ProductImages []string `json:"product_images"`
	BuyerName     string   `json:"buyer_name"`
	SellerName    string   `json:"seller_name"`
	UserRole      string   `json:"user_role"` // buyer or seller
}

// PaymentSession tracks a Stripe checkout session. One session may cover
// several transactions when checking out a whole cart.
type PaymentSession struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	PaymentIntent string     `json:"-"`
	BuyerID       string     `json:"buyer_id"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	PaymentStatus string     `json:"payment_status"` // pending, paid, failed, expired, refunded
	CartCheckout  bool       `json:"cart_checkout"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}
