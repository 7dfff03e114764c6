package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relivv/internal/model"
)

func TestInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2026-00001", InvoiceNumber(2026, 1))
	assert.Equal(t, "INV-2026-00042", InvoiceNumber(2026, 42))
	assert.Equal(t, "INV-2026-123456", InvoiceNumber(2026, 123456))
}

func TestVATOf(t *testing.T) {
	assert.InDelta(t, 21.0, VATOf(100), 1e-9)
	assert.InDelta(t, 22.05, VATOf(105), 1e-9)
	assert.InDelta(t, 0, VATOf(0), 1e-9)
}

func TestIssue_AlreadyInvoiced(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewInvoiceService(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	inv, err := svc.Issue(context.Background(), &model.Transaction{ID: "tx-1"})
	require.NoError(t, err)
	assert.Nil(t, inv)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssue_ComputesVATFromTotal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewInvoiceService(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoice_counters").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE invoice_counters SET last_seq").
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(7))
	now := time.Now()
	mock.ExpectQuery("INSERT INTO invoices").
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_date", "created_at"}).
			AddRow("inv-1", now, now))
	mock.ExpectCommit()

	tx := &model.Transaction{
		ID:          "tx-1",
		BuyerID:     "buyer-1",
		SellerID:    "seller-1",
		ProductID:   "prod-1",
		Amount:      100,
		Commission:  5,
		TotalAmount: 105,
	}
	inv, err := svc.Issue(context.Background(), tx)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.InDelta(t, 22.05, inv.VATAmount, 1e-9)
	assert.InDelta(t, 0.21, inv.VATRate, 1e-9)
	assert.Equal(t, model.InvoicePaid, inv.InvoiceStatus)
	assert.Regexp(t, `^INV-\d{4}-00007$`, inv.InvoiceNumber)
}
