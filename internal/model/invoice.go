package model

import "time"

// Invoice statuses.
const (
	InvoiceIssued   = "issued"
	InvoicePaid     = "paid"
	InvoiceRefunded = "refunded"
)

type Invoice struct {
	ID            string    `json:"id"`
	InvoiceNumber string    `json:"invoice_number"` // INV-2025-00001
	TransactionID string    `json:"transaction_id"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	ProductID     string    `json:"product_id"`
	InvoiceDate   time.Time `json:"invoice_date"`
	Amount        float64   `json:"amount"`     // product price
	Commission    float64   `json:"commission"` // 5% platform fee
	VATAmount     float64   `json:"vat_amount"` // 21% BTW
	VATRate       float64   `json:"vat_rate"`
	TotalAmount   float64   `json:"total_amount"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	InvoiceStatus string    `json:"invoice_status"`
	CreatedAt     time.Time `json:"created_at"`
}

// InvoiceView enriches an invoice for the listing endpoints.
type InvoiceView struct {
	Invoice
	ProductTitle string `json:"product_title"`
	BuyerName    string `json:"buyer_name"`
	SellerName   string `json:"seller_name"`
	UserRole     string `json:"user_role,omitempty"`
}

// InvoiceDocument bundles everything the PDF renderer needs.
type InvoiceDocument struct {
	Invoice
	ProductTitle string
	BuyerName    string
	BuyerEmail   string
	SellerName   string
	SellerEmail  string
}
