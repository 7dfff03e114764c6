package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"relivv/internal/model"
	"relivv/internal/mw"
	"relivv/internal/service"
)

func ListInvoicesHandler(invoiceSvc *service.InvoiceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		q := r.URL.Query()
		f := service.InvoiceFilter{
			Status: q.Get("status"),
			Role:   q.Get("role"),
		}
		if v, err := time.Parse(time.RFC3339, q.Get("start_date")); err == nil {
			f.StartDate = &v
		}
		if v, err := time.Parse(time.RFC3339, q.Get("end_date")); err == nil {
			f.EndDate = &v
		}

		invoices, err := invoiceSvc.ListByUser(r.Context(), userID, f)
		if err != nil {
			serviceError(w, err)
			return
		}
		if invoices == nil {
			invoices = []model.InvoiceView{}
		}
		writeJSON(w, http.StatusOK, invoices)
	}
}

func GetInvoiceHandler(invoiceSvc *service.InvoiceService, authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		isAdmin, err := authSvc.IsAdmin(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}

		invoice, err := invoiceSvc.Get(r.Context(), chi.URLParam(r, "invoiceID"), userID, isAdmin)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	}
}

func DownloadInvoicePDFHandler(invoiceSvc *service.InvoiceService, authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		isAdmin, err := authSvc.IsAdmin(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}

		pdf, number, err := invoiceSvc.PDF(r.Context(), chi.URLParam(r, "invoiceID"), userID, isAdmin)
		if err != nil {
			serviceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, number))
		w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
		w.WriteHeader(http.StatusOK)
		w.Write(pdf)
	}
}
