package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"relivv/internal/model"
	"relivv/internal/mw"
	"relivv/internal/service"
)

func ListWishlistHandler(wishlistSvc *service.WishlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		products, err := wishlistSvc.List(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		if products == nil {
			products = []model.Product{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"products": products,
			"count":    len(products),
		})
	}
}

func AddToWishlistHandler(wishlistSvc *service.WishlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		if err := wishlistSvc.Add(r.Context(), userID, chi.URLParam(r, "productID")); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "added to wishlist"})
	}
}

func RemoveFromWishlistHandler(wishlistSvc *service.WishlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		if err := wishlistSvc.Remove(r.Context(), userID, chi.URLParam(r, "productID")); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "removed from wishlist"})
	}
}

func WishlistContainsHandler(wishlistSvc *service.WishlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		contains, err := wishlistSvc.Contains(r.Context(), userID, chi.URLParam(r, "productID"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"in_wishlist": contains})
	}
}
