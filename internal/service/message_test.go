package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidMessageBody(t *testing.T) {
	assert.False(t, validMessageBody(""))
	assert.False(t, validMessageBody("   "))
	assert.True(t, validMessageBody("hi"))
	assert.True(t, validMessageBody(strings.Repeat("a", 1000)))
	assert.False(t, validMessageBody(strings.Repeat("a", 1001)))
}

func TestPreview_TruncatesAt100(t *testing.T) {
	long := strings.Repeat("x", 250)
	assert.Len(t, preview(long), 100)
	assert.Equal(t, "short message", preview("short message"))
}

func TestPreview_KeepsMultiByteTextValid(t *testing.T) {
	long := strings.Repeat("é", 250)
	p := preview(long)
	assert.True(t, utf8.ValidString(p))
	assert.Equal(t, 100, utf8.RuneCountInString(p))
}

func TestStartConversation_EmptyMessage(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewMessageService(db, NewNotificationService(db))
	_, err = svc.StartConversation(context.Background(), "buyer-1", "prod-1", "seller-1", "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSend_NotAParticipant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewMessageService(db, NewNotificationService(db))

	cols := []string{"id", "product_id", "buyer_id", "seller_id", "last_message", "last_message_at",
		"buyer_unread_count", "seller_unread_count", "buyer_typing", "seller_typing",
		"created_at", "updated_at"}
	mock.ExpectQuery("FROM conversations WHERE id").
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"conv-1", "prod-1", "buyer-1", "seller-1", "hello", nil, 0, 1, false, false,
			time.Now(), time.Now()))

	_, err = svc.Send(context.Background(), "conv-1", "stranger", "hello there")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}
