package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"relivv/internal/config"
	"relivv/internal/model"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductSold       = errors.New("product already sold")
	ErrNotOwner          = errors.New("not the product owner")
	ErrProductReferenced = errors.New("product has transaction history")
)

type ProductService struct {
	db      *sql.DB
	catalog *config.Catalog
}

func NewProductService(db *sql.DB, catalog *config.Catalog) *ProductService {
	return &ProductService{db: db, catalog: catalog}
}

type CreateProductParams struct {
	Title         string
	Description   string
	Price         float64
	Category      string
	Condition     string
	Images        []string
	PickupAddress string
}

func (p CreateProductParams) validate(catalog *config.Catalog) error {
	if l := len(strings.TrimSpace(p.Title)); l < 3 || l > 200 {
		return errors.New("title must be 3-200 characters")
	}
	if len(strings.TrimSpace(p.Description)) < 10 {
		return errors.New("description must be at least 10 characters")
	}
	if p.Price <= 0 {
		return errors.New("price must be positive")
	}
	if !catalog.HasCategory(p.Category) {
		return errors.New("unknown category")
	}
	if !model.Conditions[p.Condition] {
		return errors.New("condition must be one of: excellent, good, fair, poor")
	}
	if p.PickupAddress == "" {
		return errors.New("pickup address is required")
	}
	return nil
}

func (s *ProductService) Create(ctx context.Context, sellerID string, p CreateProductParams) (*model.Product, error) {
	if err := p.validate(s.catalog); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if p.Images == nil {
		p.Images = []string{}
	}
	imagesJSON, err := json.Marshal(p.Images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}

	product := model.Product{
		SellerID:      sellerID,
		Title:         p.Title,
		Description:   p.Description,
		Price:         p.Price,
		Category:      p.Category,
		Condition:     p.Condition,
		Images:        p.Images,
		PickupAddress: p.PickupAddress,
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO products (seller_id, title, description, price, category, condition, images, pickup_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		sellerID, p.Title, p.Description, p.Price, p.Category, p.Condition, imagesJSON, p.PickupAddress,
	).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}

	return &product, nil
}

// ListFilter mirrors the browse page query parameters.
type ListFilter struct {
	Category   string
	Search     string
	MinPrice   *float64
	MaxPrice   *float64
	Condition  string
	SellerType string // business or individual
	DateRange  string // 24h, 7d, 30d
	SortBy     string // newest, oldest, price_low, price_high, popular
	Limit      int
	Offset     int
}

func (s *ProductService) List(ctx context.Context, f ListFilter) ([]model.ProductView, error) {
	where := []string{"NOT p.is_sold"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		where = append(where, "p.category = "+arg(f.Category))
	}
	if f.Condition != "" {
		where = append(where, "p.condition = "+arg(f.Condition))
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		where = append(where, fmt.Sprintf("(p.title ILIKE %s OR p.description ILIKE %s)", arg(pattern), arg(pattern)))
	}
	if f.MinPrice != nil {
		where = append(where, "p.price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		where = append(where, "p.price <= "+arg(*f.MaxPrice))
	}
	switch f.SellerType {
	case "business":
		where = append(where, "u.is_business_seller")
	case "individual":
		where = append(where, "NOT u.is_business_seller")
	}
	switch f.DateRange {
	case "24h":
		where = append(where, "p.created_at >= "+arg(time.Now().Add(-24*time.Hour)))
	case "7d":
		where = append(where, "p.created_at >= "+arg(time.Now().AddDate(0, 0, -7)))
	case "30d":
		where = append(where, "p.created_at >= "+arg(time.Now().AddDate(0, 0, -30)))
	}

	orderBy := "p.created_at DESC"
	switch f.SortBy {
	case "oldest":
		orderBy = "p.created_at ASC"
	case "price_low":
		orderBy = "p.price ASC"
	case "price_high":
		orderBy = "p.price DESC"
	case "popular":
		orderBy = "p.views DESC"
	}

	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.seller_id, p.title, p.description, p.price, p.category, p.condition,
		       p.images, p.pickup_address, p.is_sold, p.is_featured, p.views, p.created_at,
		       u.name, u.rating_average, u.rating_count
		FROM products p
		JOIN users u ON u.id = p.seller_id
		WHERE %s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		strings.Join(where, " AND "), orderBy, arg(f.Limit), arg(f.Offset))

	return s.queryViews(ctx, query, args...)
}

// Featured returns the homepage selection of featured listings, newest first.
// The flag is curated out of band, so this is read-only.
func (s *ProductService) Featured(ctx context.Context, limit int) ([]model.ProductView, error) {
	if limit <= 0 || limit > 50 {
		limit = 6
	}
	return s.queryViews(ctx, `
		SELECT p.id, p.seller_id, p.title, p.description, p.price, p.category, p.condition,
		       p.images, p.pickup_address, p.is_sold, p.is_featured, p.views, p.created_at,
		       u.name, u.rating_average, u.rating_count
		FROM products p
		JOIN users u ON u.id = p.seller_id
		WHERE p.is_featured AND NOT p.is_sold
		ORDER BY p.created_at DESC
		LIMIT $1`, limit)
}

// Trending ranks unsold listings by views plus five points per wishlist save.
func (s *ProductService) Trending(ctx context.Context, limit int) ([]model.ProductView, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.queryViews(ctx, `
		SELECT p.id, p.seller_id, p.title, p.description, p.price, p.category, p.condition,
		       p.images, p.pickup_address, p.is_sold, p.is_featured, p.views, p.created_at,
		       u.name, u.rating_average, u.rating_count
		FROM products p
		JOIN users u ON u.id = p.seller_id
		LEFT JOIN (
			SELECT product_id, COUNT(*) AS saves FROM wishlist_items GROUP BY product_id
		) w ON w.product_id = p.id
		WHERE NOT p.is_sold
		ORDER BY p.views + 5 * COALESCE(w.saves, 0) DESC
		LIMIT $1`, limit)
}

func (s *ProductService) queryViews(ctx context.Context, query string, args ...any) ([]model.ProductView, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []model.ProductView
	for rows.Next() {
		var v model.ProductView
		var imagesJSON []byte
		err := rows.Scan(&v.ID, &v.SellerID, &v.Title, &v.Description, &v.Price, &v.Category,
			&v.Condition, &imagesJSON, &v.PickupAddress, &v.IsSold, &v.IsFeatured, &v.Views,
			&v.CreatedAt, &v.SellerName, &v.SellerRating, &v.SellerRatingCount)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if err := json.Unmarshal(imagesJSON, &v.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Get returns a product and bumps its view counter.
func (s *ProductService) Get(ctx context.Context, productID string) (*model.Product, error) {
	product, err := s.get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE products SET views = views + 1 WHERE id = $1`, productID); err != nil {
		return nil, fmt.Errorf("increment views: %w", err)
	}
	product.Views++
	return product, nil
}

func (s *ProductService) get(ctx context.Context, productID string) (*model.Product, error) {
	var p model.Product
	var imagesJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, seller_id, title, description, price, category, condition, images,
		        pickup_address, is_sold, is_featured, views, created_at
		 FROM products WHERE id = $1`, productID,
	).Scan(&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Price, &p.Category, &p.Condition,
		&imagesJSON, &p.PickupAddress, &p.IsSold, &p.IsFeatured, &p.Views, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return &p, nil
}

func (s *ProductService) ListBySeller(ctx context.Context, sellerID string) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seller_id, title, description, price, category, condition, images,
		        pickup_address, is_sold, is_featured, views, created_at
		 FROM products WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("query seller products: %w", err)
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		var imagesJSON []byte
		err := rows.Scan(&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Price, &p.Category,
			&p.Condition, &imagesJSON, &p.PickupAddress, &p.IsSold, &p.IsFeatured, &p.Views, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes an unsold listing owned by sellerID. A listing that ever
// reached checkout is still referenced by transaction and invoice rows, so
// the delete trips the foreign key (23503) and the listing must stay.
func (s *ProductService) Delete(ctx context.Context, sellerID, productID string) error {
	product, err := s.get(ctx, productID)
	if err != nil {
		return err
	}
	if product.SellerID != sellerID {
		return ErrNotOwner
	}
	if product.IsSold {
		return ErrProductSold
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrProductReferenced
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (s *ProductService) Categories() []string {
	return s.catalog.Categories
}
