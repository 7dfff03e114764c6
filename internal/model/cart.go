package model

import "time"

type CartItem struct {
	ProductID string    `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`

	// Filled from the products table when the cart is read.
	Title  string   `json:"title,omitempty"`
	Price  float64  `json:"price,omitempty"`
	Images []string `json:"images,omitempty"`
	IsSold bool     `json:"is_sold,omitempty"`
	Seller string   `json:"seller_id,omitempty"`
}

type Cart struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Items        []CartItem `json:"items"`
	ReminderSent bool       `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
