package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"relivv/internal/model"
)

var (
	ErrNotPurchased    = errors.New("product was not purchased by this user")
	ErrAlreadyReviewed = errors.New("product already reviewed by this user")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

type ReviewService struct {
	db     *sql.DB
	notify *NotificationService
}

func NewReviewService(db *sql.DB, notify *NotificationService) *ReviewService {
	return &ReviewService{db: db, notify: notify}
}

// Create stores a review. Only buyers with a paid (held or completed)
// transaction for the product may review, once each. The seller's rating
// aggregate is recomputed in the same transaction.
func (s *ReviewService) Create(ctx context.Context, userID, productID string, rating int, comment string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, ErrInvalidRating)
	}
	if len(comment) > 500 {
		return nil, fmt.Errorf("%w: comment must be at most 500 characters", ErrValidation)
	}

	var sellerID, productTitle string
	err := s.db.QueryRowContext(ctx, `SELECT seller_id, title FROM products WHERE id = $1`, productID).
		Scan(&sellerID, &productTitle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	var purchased bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions
		  WHERE product_id = $1 AND buyer_id = $2 AND status IN ('held', 'completed'))`,
		productID, userID,
	).Scan(&purchased)
	if err != nil {
		return nil, fmt.Errorf("check purchase: %w", err)
	}
	if !purchased {
		return nil, ErrNotPurchased
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	review := model.Review{
		ProductID: productID,
		UserID:    userID,
		SellerID:  sellerID,
		Rating:    rating,
		Comment:   comment,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO reviews (product_id, user_id, seller_id, rating, comment)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (product_id, user_id) DO NOTHING
		 RETURNING id, created_at`,
		productID, userID, sellerID, rating, comment,
	).Scan(&review.ID, &review.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET
		    rating_average = (SELECT AVG(rating)::NUMERIC(3,2) FROM reviews WHERE seller_id = $1),
		    rating_count = (SELECT COUNT(*) FROM reviews WHERE seller_id = $1)
		 WHERE id = $1`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("update seller rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.notify.Create(ctx, sellerID, model.NotifyReview, "New Review Received",
		fmt.Sprintf("You received a %d-star review for '%s'", rating, productTitle),
		"/product/"+productID)

	return &review, nil
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID string) ([]model.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.product_id, r.user_id, r.seller_id, r.rating, r.comment, r.created_at, u.name
		 FROM reviews r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.product_id = $1
		 ORDER BY r.created_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []model.Review{}
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.SellerID, &r.Rating, &r.Comment, &r.CreatedAt, &r.UserName); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *ReviewService) ProductRating(ctx context.Context, productID string) (*model.ProductRating, error) {
	var rating model.ProductRating
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE product_id = $1`,
		productID,
	).Scan(&rating.AverageRating, &rating.TotalReviews)
	if err != nil {
		return nil, fmt.Errorf("get product rating: %w", err)
	}
	return &rating, nil
}
