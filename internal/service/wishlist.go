package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"relivv/internal/model"
)

type WishlistService struct {
	db *sql.DB
}

func NewWishlistService(db *sql.DB) *WishlistService {
	return &WishlistService{db: db}
}

// List returns the unsold products on the user's wishlist.
func (s *WishlistService) List(ctx context.Context, userID string) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.seller_id, p.title, p.description, p.price, p.category, p.condition,
		        p.images, p.pickup_address, p.is_sold, p.is_featured, p.views, p.created_at
		 FROM wishlist_items w
		 JOIN products p ON p.id = w.product_id
		 WHERE w.user_id = $1 AND NOT p.is_sold
		 ORDER BY w.added_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		var imagesJSON []byte
		err := rows.Scan(&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Price, &p.Category,
			&p.Condition, &imagesJSON, &p.PickupAddress, &p.IsSold, &p.IsFeatured, &p.Views, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan wishlist product: %w", err)
		}
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Add is idempotent: adding a product twice is not an error.
func (s *WishlistService) Add(ctx context.Context, userID, productID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return ErrProductNotFound
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("insert wishlist item: %w", err)
	}
	return nil
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}

func (s *WishlistService) Contains(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM wishlist_items WHERE user_id = $1 AND product_id = $2)`,
		userID, productID,
	).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return exists, nil
}
