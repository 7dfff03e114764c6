package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"relivv/internal/model"
)

// RenderInvoicePDF lays out an A4 invoice: header, parties, the single line
// item, and the subtotal / commission / VAT / total block.
func RenderInvoicePDF(doc *model.InvoiceDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	euro := func(v float64) string { return tr(fmt.Sprintf("€%.2f", v)) }

	// Header
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Invoice metadata
	pdf.SetTextColor(55, 65, 81)
	meta := [][2]string{
		{"Invoice Number:", doc.InvoiceNumber},
		{"Invoice Date:", doc.InvoiceDate.Format("January 2, 2006")},
		{"Transaction ID:", shorten(doc.TransactionID, 12)},
		{"Payment Status:", strings.ToUpper(doc.PaymentStatus)},
	}
	for _, row := range meta {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 6, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	// Parties
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(31, 41, 55)
	pdf.CellFormat(85, 6, "BILL TO:", "", 0, "L", false, 0, "")
	pdf.CellFormat(85, 6, "SELLER:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(85, 5, tr(doc.BuyerName), "", 0, "L", false, 0, "")
	pdf.CellFormat(85, 5, tr(doc.SellerName), "", 1, "L", false, 0, "")
	pdf.CellFormat(85, 5, tr(doc.BuyerEmail), "", 0, "L", false, 0, "")
	pdf.CellFormat(85, 5, tr(doc.SellerEmail), "", 1, "L", false, 0, "")
	pdf.Ln(10)

	// Line items
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(31, 41, 55)
	pdf.CellFormat(0, 8, "ITEMS", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(243, 244, 246)
	pdf.CellFormat(90, 8, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Unit Price", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Amount", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(90, 8, tr(shorten(doc.ProductTitle, 50)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "1", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 8, euro(doc.Amount), "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 8, euro(doc.Amount), "1", 1, "C", false, 0, "")
	pdf.Ln(8)

	// Totals
	totals := [][2]string{
		{"Subtotal:", euro(doc.Amount)},
		{"Platform Commission (5%):", euro(doc.Commission)},
		{"VAT (21%):", euro(doc.VATAmount)},
	}
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(55, 65, 81)
	for _, row := range totals {
		pdf.CellFormat(130, 6, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, row[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(31, 41, 55)
	pdf.SetDrawColor(37, 99, 235)
	pdf.CellFormat(130, 10, "TOTAL:", "T", 0, "R", false, 0, "")
	pdf.CellFormat(40, 10, euro(doc.TotalAmount), "T", 1, "R", false, 0, "")
	pdf.Ln(12)

	// Payment info
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(0, 5, "Payment Method: "+strings.ToUpper(doc.PaymentMethod), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Payment Date: "+doc.InvoiceDate.Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(10)

	// Footer
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(156, 163, 175)
	pdf.CellFormat(0, 5, "Thank you for using Relivv Marketplace!", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, "For support, contact us at support@relivv.nl", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// shorten cuts on rune boundaries so multi-byte titles stay valid UTF-8.
func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
