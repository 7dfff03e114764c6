package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relivv/internal/config"
)

func newProductService(t *testing.T) (*ProductService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	catalog, err := config.LoadCatalog("")
	require.NoError(t, err)
	return NewProductService(db, catalog), mock
}

func TestCreateProduct_Validation(t *testing.T) {
	svc, _ := newProductService(t)

	valid := CreateProductParams{
		Title:         "Vintage lamp",
		Description:   "A beautiful mid-century lamp in working order.",
		Price:         49.50,
		Category:      "Furniture",
		Condition:     "good",
		PickupAddress: "Herengracht 1, Amsterdam",
	}

	cases := []struct {
		name   string
		mutate func(*CreateProductParams)
	}{
		{"short title", func(p *CreateProductParams) { p.Title = "ab" }},
		{"short description", func(p *CreateProductParams) { p.Description = "too short" }},
		{"zero price", func(p *CreateProductParams) { p.Price = 0 }},
		{"negative price", func(p *CreateProductParams) { p.Price = -5 }},
		{"unknown category", func(p *CreateProductParams) { p.Category = "Spaceships" }},
		{"bad condition", func(p *CreateProductParams) { p.Condition = "mint" }},
		{"no pickup address", func(p *CreateProductParams) { p.PickupAddress = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			_, err := svc.Create(context.Background(), "seller-1", p)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestDeleteProduct_NotOwner(t *testing.T) {
	svc, mock := newProductService(t)

	cols := []string{"id", "seller_id", "title", "description", "price", "category", "condition",
		"images", "pickup_address", "is_sold", "is_featured", "views", "created_at"}
	mock.ExpectQuery("FROM products WHERE id").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"prod-1", "seller-1", "Vintage lamp", "A beautiful lamp.", 49.50, "Furniture",
			"good", []byte(`[]`), "Herengracht 1", false, false, 0, time.Now()))

	err := svc.Delete(context.Background(), "someone-else", "prod-1")
	assert.ErrorIs(t, err, ErrNotOwner)
}

// A cancelled or refunded checkout leaves transaction rows pointing at the
// listing, so the delete hits the foreign key instead of succeeding.
func TestDeleteProduct_WithTransactionHistory(t *testing.T) {
	svc, mock := newProductService(t)

	cols := []string{"id", "seller_id", "title", "description", "price", "category", "condition",
		"images", "pickup_address", "is_sold", "is_featured", "views", "created_at"}
	mock.ExpectQuery("FROM products WHERE id").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"prod-1", "seller-1", "Vintage lamp", "A beautiful lamp.", 49.50, "Furniture",
			"good", []byte(`[]`), "Herengracht 1", false, false, 0, time.Now()))
	mock.ExpectExec("DELETE FROM products").
		WithArgs("prod-1").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "transactions_product_id_fkey"})

	err := svc.Delete(context.Background(), "seller-1", "prod-1")
	assert.ErrorIs(t, err, ErrProductReferenced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatured_ListsOnlyFlaggedUnsold(t *testing.T) {
	svc, mock := newProductService(t)

	cols := []string{"id", "seller_id", "title", "description", "price", "category", "condition",
		"images", "pickup_address", "is_sold", "is_featured", "views", "created_at",
		"name", "rating_average", "rating_count"}
	mock.ExpectQuery("WHERE p.is_featured AND NOT p.is_sold").
		WithArgs(6).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"prod-1", "seller-1", "Vintage lamp", "A beautiful lamp.", 49.50, "Furniture",
			"good", []byte(`[]`), "Herengracht 1", false, true, 12, time.Now(),
			"Fleur Jansen", 4.5, 8))

	products, err := svc.Featured(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].IsFeatured)
	assert.Equal(t, "Fleur Jansen", products[0].SellerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrending_RanksByViewsAndWishlistSaves(t *testing.T) {
	svc, mock := newProductService(t)

	cols := []string{"id", "seller_id", "title", "description", "price", "category", "condition",
		"images", "pickup_address", "is_sold", "is_featured", "views", "created_at",
		"name", "rating_average", "rating_count"}
	mock.ExpectQuery("FROM wishlist_items GROUP BY product_id").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("prod-2", "seller-1", "Record player", "Works perfectly.", 80.0, "Electronics",
				"good", []byte(`[]`), "Herengracht 1", false, false, 40, time.Now(),
				"Fleur Jansen", 4.5, 8).
			AddRow("prod-1", "seller-1", "Vintage lamp", "A beautiful lamp.", 49.50, "Furniture",
				"good", []byte(`[]`), "Herengracht 1", false, false, 12, time.Now(),
				"Fleur Jansen", 4.5, 8))

	products, err := svc.Trending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "prod-2", products[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
