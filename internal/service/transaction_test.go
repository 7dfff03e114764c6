package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway implements PaymentGateway without talking to Stripe.
type fakeGateway struct {
	session   *CheckoutSession
	refunded  []string
	refundErr error
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	return &CheckoutSession{
		SessionID:     "cs_test_123",
		URL:           "https://checkout.stripe.com/pay/cs_test_123",
		PaymentStatus: "pending",
		AmountTotal:   p.Amount,
		Currency:      "eur",
		Metadata:      p.Metadata,
	}, nil
}

func (f *fakeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	return f.session, nil
}

func (f *fakeGateway) Refund(ctx context.Context, paymentIntentID string) error {
	f.refunded = append(f.refunded, paymentIntentID)
	return f.refundErr
}

func (f *fakeGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return &WebhookEvent{ID: "evt_1", Type: "checkout.session.completed", SessionID: "cs_test_123"}, nil
}

func newTxService(t *testing.T) (*TransactionService, sqlmock.Sqlmock, *fakeGateway) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gateway := &fakeGateway{}
	svc := NewTransactionService(db, gateway, NewInvoiceService(db), NewEmailService(db, "", "noreply@relivv.nl", "http://localhost:3000"), nil, NewNotificationService(db), "http://localhost:3000")
	return svc, mock, gateway
}

func txColumns() []string {
	return []string{"id", "product_id", "buyer_id", "seller_id", "amount", "commission",
		"commission_rate", "total_amount", "status", "payment_provider", "payment_session_id",
		"delivery_status", "delivery_confirmed_at", "auto_release_at", "cart_checkout",
		"created_at", "completed_at", "refunded_at"}
}

func heldTxRow(txID, buyerID, sellerID string, autoReleaseAt *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(txColumns()).AddRow(
		txID, "prod-1", buyerID, sellerID, 100.0, 5.0, 0.05, 105.0, "held", "stripe",
		"cs_test_123", "confirmed", time.Now(), autoReleaseAt, false, time.Now(), nil, nil)
}

func TestCommission(t *testing.T) {
	assert.InDelta(t, 5.0, Commission(100), 1e-9)
	assert.InDelta(t, 0.5, Commission(10), 1e-9)
	assert.InDelta(t, 2.475, Commission(49.50), 1e-9)
}

func TestCreateCheckout_OwnProduct(t *testing.T) {
	svc, mock, _ := newTxService(t)

	mock.ExpectQuery("SELECT id, seller_id, title, price, is_sold FROM products").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_id", "title", "price", "is_sold"}).
			AddRow("prod-1", "user-1", "Vintage lamp", 49.50, false))

	_, err := svc.CreateCheckout(context.Background(), "user-1", "prod-1")
	assert.ErrorIs(t, err, ErrOwnProduct)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCheckout_AlreadySold(t *testing.T) {
	svc, mock, _ := newTxService(t)

	mock.ExpectQuery("SELECT id, seller_id, title, price, is_sold FROM products").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_id", "title", "price", "is_sold"}).
			AddRow("prod-1", "seller-1", "Vintage lamp", 49.50, true))

	_, err := svc.CreateCheckout(context.Background(), "buyer-1", "prod-1")
	assert.ErrorIs(t, err, ErrProductSold)
}

func TestCreateCheckout_ChargesPriceAndCommission(t *testing.T) {
	svc, mock, _ := newTxService(t)

	mock.ExpectQuery("SELECT id, seller_id, title, price, is_sold FROM products").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_id", "title", "price", "is_sold"}).
			AddRow("prod-1", "seller-1", "Vintage lamp", 100.0, false))

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "prod-1", "buyer-1", "seller-1", 100.0, 5.0, 0.05, 105.0, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payment_sessions").
		WithArgs("cs_test_123", "buyer-1", 105.0, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE transactions SET payment_session_id").
		WithArgs("cs_test_123", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM transactions WHERE id").
		WillReturnRows(heldTxRow("tx-1", "buyer-1", "seller-1", nil))

	result, err := svc.CreateCheckout(context.Background(), "buyer-1", "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", result.SessionID)
	assert.InDelta(t, 105.0, result.TotalAmount, 1e-9)
	require.Len(t, result.TransactionIDs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutStatus_NotTheBuyer(t *testing.T) {
	svc, mock, gateway := newTxService(t)
	gateway.session = &CheckoutSession{SessionID: "cs_test_123", PaymentStatus: "paid"}

	mock.ExpectQuery("SELECT buyer_id, payment_status FROM payment_sessions").
		WithArgs("cs_test_123").
		WillReturnRows(sqlmock.NewRows([]string{"buyer_id", "payment_status"}).
			AddRow("someone-else", "pending"))

	_, err := svc.CheckoutStatus(context.Background(), "cs_test_123", "buyer-1")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestConfirmDelivery_InvalidType(t *testing.T) {
	svc, mock, _ := newTxService(t)

	mock.ExpectQuery("FROM transactions WHERE id").
		WithArgs("tx-1").
		WillReturnRows(heldTxRow("tx-1", "buyer-1", "seller-1", nil))

	_, err := svc.ConfirmDelivery(context.Background(), "tx-1", "buyer-1", "maybe")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConfirmDelivery_OnlyBuyer(t *testing.T) {
	svc, mock, _ := newTxService(t)

	mock.ExpectQuery("FROM transactions WHERE id").
		WithArgs("tx-1").
		WillReturnRows(heldTxRow("tx-1", "buyer-1", "seller-1", nil))

	_, err := svc.ConfirmDelivery(context.Background(), "tx-1", "seller-1", "delivered")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestReleaseFunds_TooEarly(t *testing.T) {
	svc, mock, _ := newTxService(t)

	releaseAt := time.Now().Add(48 * time.Hour)
	mock.ExpectQuery("FROM transactions WHERE id").
		WithArgs("tx-1").
		WillReturnRows(heldTxRow("tx-1", "buyer-1", "seller-1", &releaseAt))

	_, err := svc.ReleaseFunds(context.Background(), "tx-1", "")
	assert.ErrorIs(t, err, ErrReleaseTooEarly)
}

func TestCancel_NotAParty(t *testing.T) {
	svc, mock, _ := newTxService(t)

	mock.ExpectQuery("FROM transactions WHERE id").
		WithArgs("tx-1").
		WillReturnRows(heldTxRow("tx-1", "buyer-1", "seller-1", nil))

	_, err := svc.Cancel(context.Background(), "tx-1", "stranger")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestCancel_CompletedTransaction(t *testing.T) {
	svc, mock, _ := newTxService(t)

	row := sqlmock.NewRows(txColumns()).AddRow(
		"tx-1", "prod-1", "buyer-1", "seller-1", 100.0, 5.0, 0.05, 105.0, "completed", "stripe",
		"cs_test_123", "confirmed", time.Now(), nil, false, time.Now(), time.Now(), nil)
	mock.ExpectQuery("FROM transactions WHERE id").
		WithArgs("tx-1").
		WillReturnRows(row)

	_, err := svc.Cancel(context.Background(), "tx-1", "buyer-1")
	assert.ErrorIs(t, err, ErrCannotCancel)
}

// When the polling endpoint settled the session first, the later webhook
// finds no pending rows and must not sell, invoice, or notify again.
func TestHandleWebhook_AlreadySettledSessionIsNoOp(t *testing.T) {
	svc, mock, gateway := newTxService(t)
	gateway.session = &CheckoutSession{
		SessionID:     "cs_test_123",
		PaymentStatus: "paid",
		PaymentIntent: "pi_test_1",
	}

	mock.ExpectExec("UPDATE payment_sessions SET payment_status = 'paid'").
		WithArgs("pi_test_1", "cs_test_123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM transactions").
		WithArgs("cs_test_123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id"}))
	mock.ExpectCommit()

	eventID, err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", eventID)
	// No product update, cart purge, or invoice insert was expected above;
	// any second settlement would fail the mock.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireStale(t *testing.T) {
	svc, mock, _ := newTxService(t)

	mock.ExpectExec("UPDATE transactions SET status = 'cancelled'").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := svc.ExpireStale(context.Background(), StaleCheckoutAge)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
