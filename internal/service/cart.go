package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"relivv/internal/model"
)

var (
	ErrAlreadyInCart = errors.New("product already in cart")
	ErrNotInCart     = errors.New("product not in cart")
	ErrOwnProduct    = errors.New("cannot buy your own product")
	ErrCartEmpty     = errors.New("cart is empty")
)

type CartService struct {
	db *sql.DB
}

func NewCartService(db *sql.DB) *CartService {
	return &CartService{db: db}
}

// Get returns the user's cart, creating an empty one on first access.
// Items carry product info so the cart page needs no extra requests.
func (s *CartService) Get(ctx context.Context, userID string) (*model.Cart, error) {
	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ci.product_id, ci.added_at, p.title, p.price, p.images, p.is_sold, p.seller_id
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.added_at`,
		cart.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []model.CartItem{}
	for rows.Next() {
		var item model.CartItem
		var imagesJSON []byte
		if err := rows.Scan(&item.ProductID, &item.AddedAt, &item.Title, &item.Price, &imagesJSON, &item.IsSold, &item.Seller); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if err := json.Unmarshal(imagesJSON, &item.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

func (s *CartService) getOrCreate(ctx context.Context, userID string) (*model.Cart, error) {
	var cart model.Cart
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO carts (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id, user_id, reminder_sent, created_at, updated_at`,
		userID,
	).Scan(&cart.ID, &cart.UserID, &cart.ReminderSent, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	return &cart, nil
}

func (s *CartService) Add(ctx context.Context, userID, productID string) error {
	var sellerID string
	var isSold bool
	err := s.db.QueryRowContext(ctx,
		`SELECT seller_id, is_sold FROM products WHERE id = $1`, productID,
	).Scan(&sellerID, &isSold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("check product: %w", err)
	}
	if isSold {
		return ErrProductSold
	}
	if sellerID == userID {
		return ErrOwnProduct
	}

	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		cart.ID, productID)
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyInCart
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE carts SET updated_at = NOW(), reminder_sent = FALSE WHERE id = $1`, cart.ID)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func (s *CartService) Remove(ctx context.Context, userID, productID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items ci USING carts c
		 WHERE ci.cart_id = c.id AND c.user_id = $1 AND ci.product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotInCart
	}
	_, err = s.db.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

// Clear empties the cart, used after a cart checkout session is created.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items ci USING carts c
		 WHERE ci.cart_id = c.id AND c.user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

// StaleCart identifies a cart eligible for an abandoned-cart reminder.
type StaleCart struct {
	UserID    string
	ItemCount int
}

// StaleCarts returns non-empty carts untouched since the cutoff that have
// not been reminded yet.
func (s *CartService) StaleCarts(ctx context.Context, cutoff time.Time) ([]StaleCart, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.user_id, COUNT(ci.product_id)
		 FROM carts c
		 JOIN cart_items ci ON ci.cart_id = c.id
		 WHERE c.updated_at < $1 AND NOT c.reminder_sent
		 GROUP BY c.user_id`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale carts: %w", err)
	}
	defer rows.Close()

	var out []StaleCart
	for rows.Next() {
		var sc StaleCart
		if err := rows.Scan(&sc.UserID, &sc.ItemCount); err != nil {
			return nil, fmt.Errorf("scan stale cart: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *CartService) MarkReminded(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE carts SET reminder_sent = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}
