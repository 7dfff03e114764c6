package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"relivv/internal/mw"
	"relivv/internal/service"
)

func GetCartHandler(cartSvc *service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		cart, err := cartSvc.Get(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	}
}

func AddToCartHandler(cartSvc *service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		err := cartSvc.Add(r.Context(), userID, chi.URLParam(r, "productID"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrAlreadyInCart):
				http.Error(w, "product already in cart", http.StatusConflict)
			case errors.Is(err, service.ErrProductSold):
				http.Error(w, "product already sold", http.StatusConflict)
			case errors.Is(err, service.ErrOwnProduct):
				http.Error(w, "cannot add your own product", http.StatusBadRequest)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "added to cart"})
	}
}

func RemoveFromCartHandler(cartSvc *service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		err := cartSvc.Remove(r.Context(), userID, chi.URLParam(r, "productID"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotInCart):
				http.Error(w, "product not in cart", http.StatusNotFound)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "removed from cart"})
	}
}

func ClearCartHandler(cartSvc *service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		if err := cartSvc.Clear(r.Context(), userID); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
	}
}
