package service

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReviewService(t *testing.T) (*ReviewService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReviewService(db, NewNotificationService(db)), mock
}

func TestCreateReview_RatingBounds(t *testing.T) {
	svc, _ := newReviewService(t)

	for _, rating := range []int{0, -1, 6, 100} {
		_, err := svc.Create(context.Background(), "user-1", "prod-1", rating, "nice")
		assert.ErrorIs(t, err, ErrValidation, "rating %d", rating)
	}
}

func TestCreateReview_CommentTooLong(t *testing.T) {
	svc, _ := newReviewService(t)

	_, err := svc.Create(context.Background(), "user-1", "prod-1", 5, strings.Repeat("a", 501))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateReview_RequiresPurchase(t *testing.T) {
	svc, mock := newReviewService(t)

	mock.ExpectQuery("SELECT seller_id, title FROM products").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{"seller_id", "title"}).AddRow("seller-1", "Vintage lamp"))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("prod-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := svc.Create(context.Background(), "user-1", "prod-1", 4, "great")
	assert.ErrorIs(t, err, ErrNotPurchased)
	assert.NoError(t, mock.ExpectationsWereMet())
}
