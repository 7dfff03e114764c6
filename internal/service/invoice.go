package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"relivv/internal/metrics"
	"relivv/internal/model"
)

// Billing rates. Commission is the platform's cut of the product price,
// VAT is the Dutch BTW applied to the total.
const (
	CommissionRate = 0.05
	VATRate        = 0.21
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type InvoiceService struct {
	db *sql.DB
}

func NewInvoiceService(db *sql.DB) *InvoiceService {
	return &InvoiceService{db: db}
}

// VATOf computes the VAT portion of a total amount.
func VATOf(total float64) float64 {
	return total * VATRate
}

// InvoiceNumber formats a yearly sequential invoice number, INV-2025-00001.
func InvoiceNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%05d", year, seq)
}

// nextInvoiceNumber reserves the next number for the current year. The
// counter row is locked so concurrent settlements cannot collide.
func (s *InvoiceService) nextInvoiceNumber(ctx context.Context, tx *sql.Tx) (string, error) {
	year := time.Now().UTC().Year()

	_, err := tx.ExecContext(ctx,
		`INSERT INTO invoice_counters (year, last_seq) VALUES ($1, 0) ON CONFLICT (year) DO NOTHING`, year)
	if err != nil {
		return "", fmt.Errorf("ensure counter: %w", err)
	}

	var seq int
	err = tx.QueryRowContext(ctx,
		`UPDATE invoice_counters SET last_seq = last_seq + 1 WHERE year = $1 RETURNING last_seq`, year,
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("advance counter: %w", err)
	}
	return InvoiceNumber(year, seq), nil
}

// Issue creates the invoice for a paid transaction. Issuing twice for the
// same transaction is a no-op.
func (s *InvoiceService) Issue(ctx context.Context, t *model.Transaction) (*model.Invoice, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM invoices WHERE transaction_id = $1)`, t.ID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check invoice: %w", err)
	}
	if exists {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	number, err := s.nextInvoiceNumber(ctx, tx)
	if err != nil {
		return nil, err
	}

	inv := model.Invoice{
		InvoiceNumber: number,
		TransactionID: t.ID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		ProductID:     t.ProductID,
		Amount:        t.Amount,
		Commission:    t.Commission,
		VATAmount:     VATOf(t.TotalAmount),
		VATRate:       VATRate,
		TotalAmount:   t.TotalAmount,
		PaymentMethod: "stripe",
		PaymentStatus: "paid",
		InvoiceStatus: model.InvoicePaid,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO invoices (invoice_number, transaction_id, buyer_id, seller_id, product_id,
		        amount, commission, vat_amount, vat_rate, total_amount, payment_method, payment_status, invoice_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (transaction_id) DO NOTHING
		 RETURNING id, invoice_date, created_at`,
		inv.InvoiceNumber, inv.TransactionID, inv.BuyerID, inv.SellerID, inv.ProductID,
		inv.Amount, inv.Commission, inv.VATAmount, inv.VATRate, inv.TotalAmount,
		inv.PaymentMethod, inv.PaymentStatus, inv.InvoiceStatus,
	).Scan(&inv.ID, &inv.InvoiceDate, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race to a concurrent settlement.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.InvoicesIssued.Inc()
	return &inv, nil
}

// MarkRefunded flips the invoice of a cancelled transaction.
func (s *InvoiceService) MarkRefunded(ctx context.Context, transactionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET invoice_status = $1, payment_status = 'refunded' WHERE transaction_id = $2`,
		model.InvoiceRefunded, transactionID)
	if err != nil {
		return fmt.Errorf("mark invoice refunded: %w", err)
	}
	return nil
}

// InvoiceFilter narrows the invoice listing.
type InvoiceFilter struct {
	Status    string
	Role      string // buyer or seller
	StartDate *time.Time
	EndDate   *time.Time
}

func (s *InvoiceService) ListByUser(ctx context.Context, userID string, f InvoiceFilter) ([]model.InvoiceView, error) {
	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Role {
	case "buyer":
		where = append(where, "i.buyer_id = "+arg(userID))
	case "seller":
		where = append(where, "i.seller_id = "+arg(userID))
	default:
		p := arg(userID)
		where = append(where, fmt.Sprintf("(i.buyer_id = %s OR i.seller_id = %s)", p, p))
	}
	if f.Status != "" {
		where = append(where, "i.invoice_status = "+arg(f.Status))
	}
	if f.StartDate != nil {
		where = append(where, "i.invoice_date >= "+arg(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, "i.invoice_date <= "+arg(*f.EndDate))
	}

	query := fmt.Sprintf(`
		SELECT i.id, i.invoice_number, i.transaction_id, i.buyer_id, i.seller_id, i.product_id,
		       i.invoice_date, i.amount, i.commission, i.vat_amount, i.vat_rate, i.total_amount,
		       i.payment_method, i.payment_status, i.invoice_status, i.created_at,
		       p.title, b.name, sl.name
		FROM invoices i
		JOIN products p ON p.id = i.product_id
		JOIN users b ON b.id = i.buyer_id
		JOIN users sl ON sl.id = i.seller_id
		WHERE %s
		ORDER BY i.invoice_date DESC`,
		strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []model.InvoiceView
	for rows.Next() {
		var v model.InvoiceView
		err := rows.Scan(&v.ID, &v.InvoiceNumber, &v.TransactionID, &v.BuyerID, &v.SellerID,
			&v.ProductID, &v.InvoiceDate, &v.Amount, &v.Commission, &v.VATAmount, &v.VATRate,
			&v.TotalAmount, &v.PaymentMethod, &v.PaymentStatus, &v.InvoiceStatus, &v.CreatedAt,
			&v.ProductTitle, &v.BuyerName, &v.SellerName)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		if v.BuyerID == userID {
			v.UserRole = "buyer"
		} else {
			v.UserRole = "seller"
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Get returns an invoice when userID is a party to it (or an admin).
func (s *InvoiceService) Get(ctx context.Context, invoiceID, userID string, isAdmin bool) (*model.InvoiceDocument, error) {
	var doc model.InvoiceDocument
	err := s.db.QueryRowContext(ctx,
		`SELECT i.id, i.invoice_number, i.transaction_id, i.buyer_id, i.seller_id, i.product_id,
		        i.invoice_date, i.amount, i.commission, i.vat_amount, i.vat_rate, i.total_amount,
		        i.payment_method, i.payment_status, i.invoice_status, i.created_at,
		        p.title, b.name, b.email, sl.name, sl.email
		 FROM invoices i
		 JOIN products p ON p.id = i.product_id
		 JOIN users b ON b.id = i.buyer_id
		 JOIN users sl ON sl.id = i.seller_id
		 WHERE i.id = $1`, invoiceID,
	).Scan(&doc.ID, &doc.InvoiceNumber, &doc.TransactionID, &doc.BuyerID, &doc.SellerID,
		&doc.ProductID, &doc.InvoiceDate, &doc.Amount, &doc.Commission, &doc.VATAmount,
		&doc.VATRate, &doc.TotalAmount, &doc.PaymentMethod, &doc.PaymentStatus,
		&doc.InvoiceStatus, &doc.CreatedAt,
		&doc.ProductTitle, &doc.BuyerName, &doc.BuyerEmail, &doc.SellerName, &doc.SellerEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	if doc.BuyerID != userID && doc.SellerID != userID && !isAdmin {
		return nil, ErrNotAuthorized
	}
	return &doc, nil
}

// PDF returns the invoice PDF, rendering and caching it on first download.
func (s *InvoiceService) PDF(ctx context.Context, invoiceID, userID string, isAdmin bool) ([]byte, string, error) {
	doc, err := s.Get(ctx, invoiceID, userID, isAdmin)
	if err != nil {
		return nil, "", err
	}

	var cached []byte
	err = s.db.QueryRowContext(ctx, `SELECT pdf FROM invoices WHERE id = $1`, invoiceID).Scan(&cached)
	if err != nil {
		return nil, "", fmt.Errorf("get cached pdf: %w", err)
	}
	if len(cached) > 0 {
		return cached, doc.InvoiceNumber, nil
	}

	pdf, err := RenderInvoicePDF(doc)
	if err != nil {
		return nil, "", fmt.Errorf("render pdf: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE invoices SET pdf = $1 WHERE id = $2`, pdf, invoiceID); err != nil {
		return nil, "", fmt.Errorf("cache pdf: %w", err)
	}
	return pdf, doc.InvoiceNumber, nil
}
