package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"relivv/internal/metrics"
	"relivv/internal/model"
)

// AutoReleaseDelay is how long escrowed funds stay held after the buyer
// confirms delivery before they are released to the seller.
const AutoReleaseDelay = 3 * 24 * time.Hour

// StaleCheckoutAge is how long a pending checkout may sit unpaid before the
// expiry worker cancels it.
const StaleCheckoutAge = 24 * time.Hour

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotInEscrow         = errors.New("transaction is not in escrow")
	ErrCannotCancel        = errors.New("transaction cannot be cancelled")
	ErrReleaseTooEarly     = errors.New("auto-release period has not passed yet")
	ErrSessionNotFound     = errors.New("payment session not found")
)

type TransactionService struct {
	db          *sql.DB
	gateway     PaymentGateway
	invoices    *InvoiceService
	mailer      *EmailService
	events      *EventPublisher
	notify      *NotificationService
	frontendURL string
}

func NewTransactionService(db *sql.DB, gateway PaymentGateway, invoices *InvoiceService,
	mailer *EmailService, events *EventPublisher, notify *NotificationService, frontendURL string) *TransactionService {
	return &TransactionService{
		db:          db,
		gateway:     gateway,
		invoices:    invoices,
		mailer:      mailer,
		events:      events,
		notify:      notify,
		frontendURL: frontendURL,
	}
}

// Commission computes the platform fee for a product price.
func Commission(price float64) float64 {
	return price * CommissionRate
}

// CheckoutResult is returned to the frontend to redirect into Stripe.
type CheckoutResult struct {
	CheckoutURL    string   `json:"checkout_url"`
	SessionID      string   `json:"session_id"`
	TransactionIDs []string `json:"transaction_ids"`
	TotalAmount    float64  `json:"total_amount"`
}

type checkoutItem struct {
	productID string
	sellerID  string
	title     string
	price     float64
}

// CreateCheckout starts a checkout for a single product.
func (s *TransactionService) CreateCheckout(ctx context.Context, buyerID, productID string) (*CheckoutResult, error) {
	var item checkoutItem
	var isSold bool
	err := s.db.QueryRowContext(ctx,
		`SELECT id, seller_id, title, price, is_sold FROM products WHERE id = $1`, productID,
	).Scan(&item.productID, &item.sellerID, &item.title, &item.price, &isSold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if isSold {
		return nil, ErrProductSold
	}
	if item.sellerID == buyerID {
		return nil, ErrOwnProduct
	}

	return s.createCheckout(ctx, buyerID, []checkoutItem{item}, false,
		item.title, s.frontendURL+"/browse")
}

// CreateCartCheckout starts one checkout session covering every unsold item
// in the buyer's cart, one escrow transaction per item. The cart is cleared
// once the session exists.
func (s *TransactionService) CreateCartCheckout(ctx context.Context, buyerID string) (*CheckoutResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.seller_id, p.title, p.price
		 FROM cart_items ci
		 JOIN carts c ON c.id = ci.cart_id
		 JOIN products p ON p.id = ci.product_id
		 WHERE c.user_id = $1 AND NOT p.is_sold`,
		buyerID)
	if err != nil {
		return nil, fmt.Errorf("query cart products: %w", err)
	}
	defer rows.Close()

	var items []checkoutItem
	for rows.Next() {
		var item checkoutItem
		if err := rows.Scan(&item.productID, &item.sellerID, &item.title, &item.price); err != nil {
			return nil, fmt.Errorf("scan cart product: %w", err)
		}
		if item.sellerID == buyerID {
			return nil, ErrOwnProduct
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	description := fmt.Sprintf("Relivv order (%d items)", len(items))
	result, err := s.createCheckout(ctx, buyerID, items, true, description, s.frontendURL+"/cart")
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM cart_items ci USING carts c WHERE ci.cart_id = c.id AND c.user_id = $1`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	return result, nil
}

func (s *TransactionService) createCheckout(ctx context.Context, buyerID string, items []checkoutItem,
	cartCheckout bool, description, cancelURL string) (*CheckoutResult, error) {

	var txIDs []string
	var grandTotal float64
	for _, item := range items {
		txID := uuid.NewString()
		commission := Commission(item.price)
		total := item.price + commission
		grandTotal += total

		_, err := s.db.ExecContext(ctx,
			`INSERT INTO transactions (id, product_id, buyer_id, seller_id, amount, commission,
			        commission_rate, total_amount, status, cart_checkout)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)`,
			txID, item.productID, buyerID, item.sellerID, item.price, commission,
			CommissionRate, total, cartCheckout)
		if err != nil {
			return nil, fmt.Errorf("insert transaction: %w", err)
		}
		txIDs = append(txIDs, txID)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		Description: description,
		Amount:      grandTotal,
		SuccessURL:  s.frontendURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   cancelURL,
		Metadata: map[string]string{
			"transaction_ids": strings.Join(txIDs, ","),
			"buyer_id":        buyerID,
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO payment_sessions (session_id, buyer_id, amount, cart_checkout) VALUES ($1, $2, $3, $4)`,
		session.SessionID, buyerID, grandTotal, cartCheckout)
	if err != nil {
		return nil, fmt.Errorf("insert payment session: %w", err)
	}

	for _, txID := range txIDs {
		_, err = s.db.ExecContext(ctx,
			`UPDATE transactions SET payment_session_id = $1 WHERE id = $2`, session.SessionID, txID)
		if err != nil {
			return nil, fmt.Errorf("link transaction to session: %w", err)
		}
		if tx, err := s.get(ctx, txID); err == nil {
			s.events.PublishOrderEvent(ctx, OrderPlacedKey, tx)
		}
	}

	return &CheckoutResult{
		CheckoutURL:    session.URL,
		SessionID:      session.SessionID,
		TransactionIDs: txIDs,
		TotalAmount:    grandTotal,
	}, nil
}

// CheckoutStatus reports the payment state of a session to the polling
// buyer, settling or cancelling the linked transactions on first change.
type CheckoutStatus struct {
	PaymentStatus  string   `json:"payment_status"`
	AmountTotal    float64  `json:"amount_total"`
	Currency       string   `json:"currency"`
	TransactionIDs []string `json:"transaction_ids"`
}

func (s *TransactionService) CheckoutStatus(ctx context.Context, sessionID, buyerID string) (*CheckoutStatus, error) {
	var storedStatus, storedBuyer string
	err := s.db.QueryRowContext(ctx,
		`SELECT buyer_id, payment_status FROM payment_sessions WHERE session_id = $1`, sessionID,
	).Scan(&storedBuyer, &storedStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get payment session: %w", err)
	}
	if storedBuyer != buyerID {
		return nil, ErrNotAuthorized
	}

	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.PaymentStatus != storedStatus {
		_, err = s.db.ExecContext(ctx,
			`UPDATE payment_sessions SET payment_status = $1, payment_intent = $2, updated_at = NOW()
			 WHERE session_id = $3`,
			session.PaymentStatus, session.PaymentIntent, sessionID)
		if err != nil {
			return nil, fmt.Errorf("update payment session: %w", err)
		}

		switch session.PaymentStatus {
		case "paid":
			if err := s.settleSession(ctx, sessionID); err != nil {
				return nil, err
			}
		case "failed", "expired":
			if err := s.cancelSession(ctx, sessionID); err != nil {
				return nil, err
			}
		}
	}

	txIDs, err := s.sessionTransactions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &CheckoutStatus{
		PaymentStatus:  session.PaymentStatus,
		AmountTotal:    session.AmountTotal,
		Currency:       session.Currency,
		TransactionIDs: txIDs,
	}, nil
}

// HandleWebhook settles or cancels sessions from verified Stripe events.
// It shares the settlement path with the polling endpoint, so whichever
// arrives first wins and the other is a no-op.
func (s *TransactionService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrValidation, err)
	}

	slog.Info("stripe webhook received", "type", event.Type, "session", event.SessionID)

	switch event.Type {
	case "checkout.session.completed":
		session, err := s.gateway.GetCheckoutSession(ctx, event.SessionID)
		if err != nil {
			return "", err
		}
		if session.PaymentStatus == "paid" {
			_, err = s.db.ExecContext(ctx,
				`UPDATE payment_sessions SET payment_status = 'paid', payment_intent = $1, updated_at = NOW()
				 WHERE session_id = $2`,
				session.PaymentIntent, event.SessionID)
			if err != nil {
				return "", fmt.Errorf("update payment session: %w", err)
			}
			if err := s.settleSession(ctx, event.SessionID); err != nil {
				return "", err
			}
		}
	case "checkout.session.expired":
		_, err = s.db.ExecContext(ctx,
			`UPDATE payment_sessions SET payment_status = 'expired', updated_at = NOW() WHERE session_id = $1`,
			event.SessionID)
		if err != nil {
			return "", fmt.Errorf("update payment session: %w", err)
		}
		if err := s.cancelSession(ctx, event.SessionID); err != nil {
			return "", err
		}
	}
	return event.ID, nil
}

func (s *TransactionService) sessionTransactions(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM transactions WHERE payment_session_id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session transactions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// settleSession moves every still-pending transaction of a paid session
// into escrow: product sold, funds held. Only pending rows transition, so
// the webhook and the polling endpoint can both call this safely.
func (s *TransactionService) settleSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, product_id FROM transactions
		 WHERE payment_session_id = $1 AND status = 'pending' FOR UPDATE`,
		sessionID)
	if err != nil {
		return fmt.Errorf("lock pending transactions: %w", err)
	}

	type settled struct{ txID, productID string }
	var batch []settled
	for rows.Next() {
		var row settled
		if err := rows.Scan(&row.txID, &row.productID); err != nil {
			rows.Close()
			return fmt.Errorf("scan transaction: %w", err)
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return tx.Commit() // already settled
	}

	for _, item := range batch {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = 'held' WHERE id = $1`, item.txID); err != nil {
			return fmt.Errorf("hold transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET is_sold = TRUE WHERE id = $1`, item.productID); err != nil {
			return fmt.Errorf("mark product sold: %w", err)
		}
		// Sold items disappear from every cart.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE product_id = $1`, item.productID); err != nil {
			return fmt.Errorf("purge sold product from carts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}

	for _, item := range batch {
		t, err := s.get(ctx, item.txID)
		if err != nil {
			slog.Error("settled transaction vanished", "transaction_id", item.txID, "error", err)
			continue
		}
		metrics.TransactionsSettled.WithLabelValues(model.TxHeld).Inc()

		if _, err := s.invoices.Issue(ctx, t); err != nil {
			slog.Error("failed to issue invoice", "transaction_id", t.ID, "error", err)
		}

		s.events.PublishOrderEvent(ctx, OrderPaidKey, t)
		s.notify.Create(ctx, t.SellerID, model.NotifySale, "Item Sold",
			"One of your items has been sold and payment is held in escrow", "/transactions")

		if buyer, title, err := s.parties(ctx, t); err == nil {
			go s.mailer.SendPurchaseConfirmation(context.Background(), buyer, title, t.Amount)
		}
	}
	return nil
}

// cancelSession cancels the pending transactions of a failed or expired
// session. Products were never marked sold, so nothing to relist.
func (s *TransactionService) cancelSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = 'cancelled' WHERE payment_session_id = $1 AND status = 'pending'`,
		sessionID)
	if err != nil {
		return fmt.Errorf("cancel session transactions: %w", err)
	}
	metrics.TransactionsSettled.WithLabelValues(model.TxCancelled).Inc()
	return nil
}

func (s *TransactionService) get(ctx context.Context, txID string) (*model.Transaction, error) {
	var t model.Transaction
	err := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, buyer_id, seller_id, amount, commission, commission_rate,
		        total_amount, status, payment_provider, payment_session_id, delivery_status,
		        delivery_confirmed_at, auto_release_at, cart_checkout, created_at, completed_at, refunded_at
		 FROM transactions WHERE id = $1`, txID,
	).Scan(&t.ID, &t.ProductID, &t.BuyerID, &t.SellerID, &t.Amount, &t.Commission,
		&t.CommissionRate, &t.TotalAmount, &t.Status, &t.PaymentProvider, &t.PaymentSessionID,
		&t.DeliveryStatus, &t.DeliveryConfirmedAt, &t.AutoReleaseAt, &t.CartCheckout,
		&t.CreatedAt, &t.CompletedAt, &t.RefundedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// parties loads the buyer and product title for email content.
func (s *TransactionService) parties(ctx context.Context, t *model.Transaction) (*model.User, string, error) {
	var buyer model.User
	var title string
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.name, p.title
		 FROM transactions t
		 JOIN users u ON u.id = t.buyer_id
		 JOIN products p ON p.id = t.product_id
		 WHERE t.id = $1`, t.ID,
	).Scan(&buyer.ID, &buyer.Email, &buyer.Name, &title)
	if err != nil {
		return nil, "", fmt.Errorf("load transaction parties: %w", err)
	}
	return &buyer, title, nil
}

func (s *TransactionService) seller(ctx context.Context, t *model.Transaction) (*model.User, string, error) {
	var seller model.User
	var title string
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.name, p.title
		 FROM transactions t
		 JOIN users u ON u.id = t.seller_id
		 JOIN products p ON p.id = t.product_id
		 WHERE t.id = $1`, t.ID,
	).Scan(&seller.ID, &seller.Email, &seller.Name, &title)
	if err != nil {
		return nil, "", fmt.Errorf("load transaction seller: %w", err)
	}
	return &seller, title, nil
}

// ConfirmDelivery records the buyer's delivery confirmation or dispute.
// Confirmation schedules the automatic fund release.
func (s *TransactionService) ConfirmDelivery(ctx context.Context, txID, buyerID, confirmationType string) (*time.Time, error) {
	t, err := s.get(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.BuyerID != buyerID {
		return nil, ErrNotAuthorized
	}
	if t.Status != model.TxHeld {
		return nil, ErrNotInEscrow
	}

	switch confirmationType {
	case "delivered":
		now := time.Now()
		releaseAt := now.Add(AutoReleaseDelay)
		_, err = s.db.ExecContext(ctx,
			`UPDATE transactions
			 SET delivery_status = 'confirmed', delivery_confirmed_at = $1, auto_release_at = $2
			 WHERE id = $3`,
			now, releaseAt, txID)
		if err != nil {
			return nil, fmt.Errorf("confirm delivery: %w", err)
		}

		if seller, title, err := s.seller(ctx, t); err == nil {
			go s.mailer.SendDeliveryConfirmed(context.Background(), seller, title, releaseAt)
			s.notify.Create(ctx, seller.ID, model.NotifyOrder, "Delivery Confirmed",
				fmt.Sprintf("The buyer confirmed delivery of '%s'", title), "/transactions")
		}
		return &releaseAt, nil

	case "dispute":
		_, err = s.db.ExecContext(ctx,
			`UPDATE transactions SET delivery_status = 'disputed', delivery_confirmed_at = NOW() WHERE id = $1`,
			txID)
		if err != nil {
			return nil, fmt.Errorf("mark disputed: %w", err)
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: confirmation_type must be delivered or dispute", ErrValidation)
	}
}

// ReleaseFunds completes a held transaction, paying out the seller. Called
// from the manual endpoint (callerID must be the buyer) and from the escrow
// worker (empty callerID).
func (s *TransactionService) ReleaseFunds(ctx context.Context, txID, callerID string) (float64, error) {
	t, err := s.get(ctx, txID)
	if err != nil {
		return 0, err
	}
	if callerID != "" && t.BuyerID != callerID {
		return 0, ErrNotAuthorized
	}
	if t.Status != model.TxHeld {
		return 0, ErrNotInEscrow
	}
	if t.DeliveryStatus == model.DeliveryConfirmed && t.AutoReleaseAt != nil && time.Now().Before(*t.AutoReleaseAt) {
		return 0, ErrReleaseTooEarly
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = 'completed', completed_at = NOW() WHERE id = $1 AND status = 'held'`,
		txID)
	if err != nil {
		return 0, fmt.Errorf("complete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotInEscrow
	}
	metrics.TransactionsSettled.WithLabelValues(model.TxCompleted).Inc()

	t.Status = model.TxCompleted
	if _, err := s.invoices.Issue(ctx, t); err != nil {
		slog.Error("failed to issue invoice on release", "transaction_id", txID, "error", err)
	}
	s.events.PublishOrderEvent(ctx, OrderCompletedKey, t)

	if seller, title, err := s.seller(ctx, t); err == nil {
		go s.mailer.SendFundsReleased(context.Background(), seller, title, t.Amount)
		s.notify.Create(ctx, seller.ID, model.NotifyOrder, "Payment Released",
			fmt.Sprintf("Funds for '%s' have been released to your account", title), "/transactions")
	}

	return t.Amount, nil
}

// Cancel cancels a pending or held transaction and refunds the buyer in
// full, commission included. The product goes back on sale.
func (s *TransactionService) Cancel(ctx context.Context, txID, userID string) (float64, error) {
	t, err := s.get(ctx, txID)
	if err != nil {
		return 0, err
	}
	if t.BuyerID != userID && t.SellerID != userID {
		return 0, ErrNotAuthorized
	}
	if t.Status != model.TxPending && t.Status != model.TxHeld {
		return 0, ErrCannotCancel
	}

	// Refund through Stripe when the payment actually settled.
	if t.Status == model.TxHeld && t.PaymentSessionID != "" {
		var paymentIntent string
		err := s.db.QueryRowContext(ctx,
			`SELECT payment_intent FROM payment_sessions WHERE session_id = $1`, t.PaymentSessionID,
		).Scan(&paymentIntent)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("get payment intent: %w", err)
		}
		if paymentIntent != "" {
			if err := s.gateway.Refund(ctx, paymentIntent); err != nil {
				return 0, err
			}
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE payment_sessions SET payment_status = 'refunded', updated_at = NOW() WHERE session_id = $1`,
			t.PaymentSessionID)
		if err != nil {
			return 0, fmt.Errorf("mark session refunded: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = 'refunded', refunded_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'held')`, txID)
	if err != nil {
		return 0, fmt.Errorf("refund transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrCannotCancel
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET is_sold = FALSE WHERE id = $1`, t.ProductID); err != nil {
		return 0, fmt.Errorf("relist product: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cancel: %w", err)
	}
	metrics.TransactionsSettled.WithLabelValues(model.TxRefunded).Inc()

	if err := s.invoices.MarkRefunded(ctx, txID); err != nil {
		slog.Error("failed to mark invoice refunded", "transaction_id", txID, "error", err)
	}

	t.Status = model.TxRefunded
	s.events.PublishOrderEvent(ctx, OrderRefundedKey, t)

	if buyer, _, err := s.parties(ctx, t); err == nil {
		go s.mailer.SendRefundProcessed(context.Background(), buyer, t.Amount, t.Commission)
	}

	return t.TotalAmount, nil
}

// HistoryFilter narrows the transaction history listing.
type HistoryFilter struct {
	Status    string
	Role      string // buyer or seller
	StartDate *time.Time
	EndDate   *time.Time
}

// ListByUser returns every transaction the user is party to.
func (s *TransactionService) ListByUser(ctx context.Context, userID string) ([]model.TransactionView, error) {
	return s.History(ctx, userID, HistoryFilter{})
}

func (s *TransactionService) History(ctx context.Context, userID string, f HistoryFilter) ([]model.TransactionView, error) {
	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Role {
	case "buyer":
		where = append(where, "t.buyer_id = "+arg(userID))
	case "seller":
		where = append(where, "t.seller_id = "+arg(userID))
	default:
		p := arg(userID)
		where = append(where, fmt.Sprintf("(t.buyer_id = %s OR t.seller_id = %s)", p, p))
	}
	if f.Status != "" {
		where = append(where, "t.status = "+arg(f.Status))
	}
	if f.StartDate != nil {
		where = append(where, "t.created_at >= "+arg(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, "t.created_at <= "+arg(*f.EndDate))
	}

	query := fmt.Sprintf(`
		SELECT t.id, t.product_id, t.buyer_id, t.seller_id, t.amount, t.commission,
		       t.commission_rate, t.total_amount, t.status, t.payment_provider,
		       t.payment_session_id, t.delivery_status, t.delivery_confirmed_at,
		       t.auto_release_at, t.cart_checkout, t.created_at, t.completed_at, t.refunded_at,
		       p.title, p.images, b.name, sl.name
		FROM transactions t
		JOIN products p ON p.id = t.product_id
		JOIN users b ON b.id = t.buyer_id
		JOIN users sl ON sl.id = t.seller_id
		WHERE %s
		ORDER BY t.created_at DESC`,
		strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.TransactionView
	for rows.Next() {
		var v model.TransactionView
		var imagesJSON []byte
		err := rows.Scan(&v.ID, &v.ProductID, &v.BuyerID, &v.SellerID, &v.Amount, &v.Commission,
			&v.CommissionRate, &v.TotalAmount, &v.Status, &v.PaymentProvider,
			&v.PaymentSessionID, &v.DeliveryStatus, &v.DeliveryConfirmedAt,
			&v.AutoReleaseAt, &v.CartCheckout, &v.CreatedAt, &v.CompletedAt, &v.RefundedAt,
			&v.ProductTitle, &imagesJSON, &v.BuyerName, &v.SellerName)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if err := json.Unmarshal(imagesJSON, &v.ProductImages); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
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

// DueForRelease lists held transactions whose auto-release time has passed.
func (s *TransactionService) DueForRelease(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM transactions
		 WHERE status = 'held' AND delivery_status = 'confirmed' AND auto_release_at <= NOW()
		 ORDER BY auto_release_at ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query due transactions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpireStale cancels pending checkouts that never settled.
func (s *TransactionService) ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = 'cancelled' WHERE status = 'pending' AND created_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("expire stale checkouts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
