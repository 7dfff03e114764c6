package service

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relivv/internal/model"
)

func TestRenderInvoicePDF(t *testing.T) {
	doc := &model.InvoiceDocument{
		Invoice: model.Invoice{
			ID:            "inv-1",
			InvoiceNumber: "INV-2026-00001",
			TransactionID: "b2f9a5c0-1234-4cde-9f00-aaaaaaaaaaaa",
			InvoiceDate:   time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
			Amount:        100,
			Commission:    5,
			VATAmount:     22.05,
			VATRate:       0.21,
			TotalAmount:   105,
			PaymentMethod: "stripe",
			PaymentStatus: "paid",
		},
		ProductTitle: "Vintage récamier with a very long title that needs truncation somewhere",
		BuyerName:    "Jan de Vries",
		BuyerEmail:   "jan@example.nl",
		SellerName:   "Fleur Jansen",
		SellerEmail:  "fleur@example.nl",
	}

	pdf, err := RenderInvoicePDF(doc)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc", shorten("abc", 5))
	assert.Equal(t, "abcde", shorten("abcde", 5))
	assert.Equal(t, "abcde...", shorten("abcdef", 5))
	assert.Equal(t, "récam...", shorten("récamier", 5))
	assert.True(t, utf8.ValidString(shorten("ééééééé", 5)))
}
