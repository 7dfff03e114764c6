package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"relivv/internal/model"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageTooLong       = errors.New("message must be 1-1000 characters")
)

const lastMessagePreviewLen = 100

type MessageService struct {
	db     *sql.DB
	notify *NotificationService
}

func NewMessageService(db *sql.DB, notify *NotificationService) *MessageService {
	return &MessageService{db: db, notify: notify}
}

func validMessageBody(body string) bool {
	l := len(strings.TrimSpace(body))
	return l >= 1 && l <= 1000
}

// preview cuts on rune boundaries so multi-byte text stays valid UTF-8.
func preview(body string) string {
	r := []rune(body)
	if len(r) > lastMessagePreviewLen {
		return string(r[:lastMessagePreviewLen])
	}
	return body
}

// StartConversation creates (or finds) the conversation for a product
// between the caller and the recipient, and stores the initial message.
func (s *MessageService) StartConversation(ctx context.Context, callerID, productID, recipientID, initialMessage string) (string, error) {
	if !validMessageBody(initialMessage) {
		return "", fmt.Errorf("%w: %s", ErrValidation, ErrMessageTooLong)
	}

	var sellerID string
	err := s.db.QueryRowContext(ctx, `SELECT seller_id FROM products WHERE id = $1`, productID).Scan(&sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrProductNotFound
		}
		return "", fmt.Errorf("get product: %w", err)
	}

	// Normally the buyer reaches out; a seller-initiated conversation is
	// allowed and keeps the same buyer/seller orientation.
	buyerID := callerID
	otherID := recipientID
	if sellerID == callerID {
		buyerID = recipientID
	}

	buyerUnread, sellerUnread := 0, 1
	if sellerID == callerID {
		buyerUnread, sellerUnread = 1, 0
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var convID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO conversations (product_id, buyer_id, seller_id, last_message, last_message_at,
		        buyer_unread_count, seller_unread_count)
		 VALUES ($1, $2, $3, $4, NOW(), $5, $6)
		 ON CONFLICT (product_id, buyer_id, seller_id) DO UPDATE SET updated_at = NOW()
		 RETURNING id`,
		productID, buyerID, sellerID, preview(initialMessage), buyerUnread, sellerUnread,
	).Scan(&convID)
	if err != nil {
		return "", fmt.Errorf("upsert conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, body) VALUES ($1, $2, $3)`,
		convID, callerID, initialMessage)
	if err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	s.notify.Create(ctx, otherID, model.NotifyMessage, "New Message",
		"You have a new message about a product", "/messages")

	return convID, nil
}

// ListConversations returns the caller's conversations, newest activity
// first, seen from the caller's side.
func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]model.ConversationView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.product_id, p.title, COALESCE(p.images->>0, ''),
		        c.buyer_id, c.seller_id, b.name, sl.name,
		        c.last_message, c.last_message_at,
		        c.buyer_unread_count, c.seller_unread_count,
		        c.buyer_typing, c.seller_typing, c.updated_at
		 FROM conversations c
		 JOIN products p ON p.id = c.product_id
		 JOIN users b ON b.id = c.buyer_id
		 JOIN users sl ON sl.id = c.seller_id
		 WHERE c.buyer_id = $1 OR c.seller_id = $1
		 ORDER BY c.updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []model.ConversationView
	for rows.Next() {
		var v model.ConversationView
		var buyerID, sellerID, buyerName, sellerName string
		var buyerUnread, sellerUnread int
		var buyerTyping, sellerTyping bool
		err := rows.Scan(&v.ID, &v.ProductID, &v.ProductTitle, &v.ProductImage,
			&buyerID, &sellerID, &buyerName, &sellerName,
			&v.LastMessage, &v.LastMessageAt,
			&buyerUnread, &sellerUnread, &buyerTyping, &sellerTyping, &v.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if buyerID == userID {
			v.OtherUserID, v.OtherUserName = sellerID, sellerName
			v.UnreadCount, v.OtherTyping = buyerUnread, sellerTyping
		} else {
			v.OtherUserID, v.OtherUserName = buyerID, buyerName
			v.UnreadCount, v.OtherTyping = sellerUnread, buyerTyping
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *MessageService) conversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, buyer_id, seller_id, last_message, last_message_at,
		        buyer_unread_count, seller_unread_count, buyer_typing, seller_typing,
		        created_at, updated_at
		 FROM conversations WHERE id = $1`, conversationID,
	).Scan(&c.ID, &c.ProductID, &c.BuyerID, &c.SellerID, &c.LastMessage, &c.LastMessageAt,
		&c.BuyerUnreadCount, &c.SellerUnreadCount, &c.BuyerTyping, &c.SellerTyping,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

func participant(c *model.Conversation, userID string) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// Messages returns all messages oldest-first. Fetching marks the other
// party's messages read and resets the caller's unread counter, so the
// 5-second client poll doubles as a read receipt.
func (s *MessageService) Messages(ctx context.Context, conversationID, userID string) ([]model.Message, error) {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !participant(conv, userID) {
		return nil, ErrNotAuthorized
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, body, read, read_at, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.Read, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.markRead(ctx, conv, userID); err != nil {
		return nil, err
	}
	return messages, nil
}

// Send appends a message and bumps the conversation bookkeeping.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID, body string) (string, error) {
	if !validMessageBody(body) {
		return "", fmt.Errorf("%w: %s", ErrValidation, ErrMessageTooLong)
	}

	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if !participant(conv, senderID) {
		return "", ErrNotAuthorized
	}

	isBuyer := conv.BuyerID == senderID
	recipientID := conv.SellerID
	unreadCol, typingCol := "seller_unread_count", "buyer_typing"
	if !isBuyer {
		recipientID = conv.BuyerID
		unreadCol, typingCol = "buyer_unread_count", "seller_typing"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var messageID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, body) VALUES ($1, $2, $3) RETURNING id`,
		conversationID, senderID, body).Scan(&messageID)
	if err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE conversations
		 SET last_message = $1, last_message_at = NOW(), updated_at = NOW(),
		     %s = %s + 1, %s = FALSE
		 WHERE id = $2`, unreadCol, unreadCol, typingCol),
		preview(body), conversationID)
	if err != nil {
		return "", fmt.Errorf("update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	s.notify.Create(ctx, recipientID, model.NotifyMessage, "New Message",
		"You have a new message", "/messages")

	return messageID, nil
}

// MarkRead marks the other party's messages read for the caller.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, userID string) error {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !participant(conv, userID) {
		return ErrNotAuthorized
	}
	return s.markRead(ctx, conv, userID)
}

func (s *MessageService) markRead(ctx context.Context, conv *model.Conversation, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET read = TRUE, read_at = NOW()
		 WHERE conversation_id = $1 AND sender_id <> $2 AND NOT read`,
		conv.ID, userID)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}

	unreadCol := "buyer_unread_count"
	if conv.SellerID == userID {
		unreadCol = "seller_unread_count"
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE conversations SET %s = 0 WHERE id = $1`, unreadCol), conv.ID)
	if err != nil {
		return fmt.Errorf("reset unread count: %w", err)
	}
	return nil
}

// SetTyping flips the transient typing flag for the caller's side.
func (s *MessageService) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !participant(conv, userID) {
		return ErrNotAuthorized
	}

	typingCol := "buyer_typing"
	if conv.SellerID == userID {
		typingCol = "seller_typing"
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE conversations SET %s = $1 WHERE id = $2`, typingCol),
		typing, conversationID)
	if err != nil {
		return fmt.Errorf("update typing: %w", err)
	}
	return nil
}
