package model

import "time"

type Conversation struct {
	ID                string     `json:"id"`
	ProductID         string     `json:"product_id"`
	BuyerID           string     `json:"buyer_id"`
	SellerID          string     `json:"seller_id"`
	LastMessage       string     `json:"last_message"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
	BuyerUnreadCount  int        `json:"buyer_unread_count"`
	SellerUnreadCount int        `json:"seller_unread_count"`
	BuyerTyping       bool       `json:"buyer_typing"`
	SellerTyping      bool       `json:"seller_typing"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ConversationView is what the conversation list endpoint returns: the
// conversation seen from the caller's side.
type ConversationView struct {
	ID            string     `json:"id"`
	ProductID     string     `json:"product_id"`
	ProductTitle  string     `json:"product_title"`
	ProductImage  string     `json:"product_image,omitempty"`
	OtherUserID   string     `json:"other_user_id"`
	OtherUserName string     `json:"other_user_name"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	OtherTyping   bool       `json:"other_typing"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Body           string     `json:"message"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
