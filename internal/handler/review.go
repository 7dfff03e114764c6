package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"relivv/internal/mw"
	"relivv/internal/service"
)

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func CreateReviewHandler(reviewSvc *service.ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req createReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		review, err := reviewSvc.Create(r.Context(), userID, chi.URLParam(r, "productID"), req.Rating, req.Comment)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotPurchased):
				http.Error(w, "only buyers can review this product", http.StatusForbidden)
			case errors.Is(err, service.ErrAlreadyReviewed):
				http.Error(w, "product already reviewed", http.StatusConflict)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusCreated, review)
	}
}

func ListReviewsHandler(reviewSvc *service.ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviews, err := reviewSvc.ListByProduct(r.Context(), chi.URLParam(r, "productID"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reviews)
	}
}

func ProductRatingHandler(reviewSvc *service.ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rating, err := reviewSvc.ProductRating(r.Context(), chi.URLParam(r, "productID"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rating)
	}
}
