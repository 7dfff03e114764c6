package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"relivv/internal/model"
	"relivv/internal/mw"
	"relivv/internal/service"
)

type createProductRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	Category      string   `json:"category"`
	Condition     string   `json:"condition"`
	Images        []string `json:"images"`
	PickupAddress string   `json:"pickup_address"`
}

func CreateProductHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req createProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		product, err := productSvc.Create(r.Context(), userID, service.CreateProductParams{
			Title:         req.Title,
			Description:   req.Description,
			Price:         req.Price,
			Category:      req.Category,
			Condition:     req.Condition,
			Images:        req.Images,
			PickupAddress: req.PickupAddress,
		})
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	}
}

func listFilterFromQuery(r *http.Request) service.ListFilter {
	q := r.URL.Query()
	f := service.ListFilter{
		Category:   q.Get("category"),
		Search:     q.Get("search"),
		Condition:  q.Get("condition"),
		SellerType: q.Get("seller_type"),
		DateRange:  q.Get("date_range"),
		SortBy:     q.Get("sort_by"),
	}
	if v, err := strconv.ParseFloat(q.Get("min_price"), 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(q.Get("max_price"), 64); err == nil {
		f.MaxPrice = &v
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	return f
}

func ListProductsHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := productSvc.List(r.Context(), listFilterFromQuery(r))
		if err != nil {
			serviceError(w, err)
			return
		}
		if products == nil {
			products = []model.ProductView{}
		}
		writeJSON(w, http.StatusOK, products)
	}
}

func FeaturedProductsHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		products, err := productSvc.Featured(r.Context(), limit)
		if err != nil {
			serviceError(w, err)
			return
		}
		if products == nil {
			products = []model.ProductView{}
		}
		writeJSON(w, http.StatusOK, products)
	}
}

func TrendingProductsHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		products, err := productSvc.Trending(r.Context(), limit)
		if err != nil {
			serviceError(w, err)
			return
		}
		if products == nil {
			products = []model.ProductView{}
		}
		writeJSON(w, http.StatusOK, products)
	}
}

func GetProductHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := productSvc.Get(r.Context(), chi.URLParam(r, "productID"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	}
}

func MyProductsHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		products, err := productSvc.ListBySeller(r.Context(), userID)
		if err != nil {
			serviceError(w, err)
			return
		}
		if products == nil {
			products = []model.Product{}
		}
		writeJSON(w, http.StatusOK, products)
	}
}

func SellerProductsHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := productSvc.ListBySeller(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			serviceError(w, err)
			return
		}
		if products == nil {
			products = []model.Product{}
		}
		writeJSON(w, http.StatusOK, products)
	}
}

func DeleteProductHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		err := productSvc.Delete(r.Context(), userID, chi.URLParam(r, "productID"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotOwner):
				http.Error(w, "not the product owner", http.StatusForbidden)
			case errors.Is(err, service.ErrProductSold):
				http.Error(w, "sold products cannot be deleted", http.StatusConflict)
			case errors.Is(err, service.ErrProductReferenced):
				http.Error(w, "products with transaction history cannot be deleted", http.StatusConflict)
			default:
				serviceError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
	}
}

func CategoriesHandler(productSvc *service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"categories": productSvc.Categories()})
	}
}
