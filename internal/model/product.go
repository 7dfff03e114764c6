package model

import "time"

// Product conditions accepted on creation.
var Conditions = map[string]bool{
	"excellent": true,
	"good":      true,
	"fair":      true,
	"poor":      true,
}

type Product struct {
	ID            string    `json:"id"`
	SellerID      string    `json:"seller_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	Category      string    `json:"category"`
	Condition     string    `json:"condition"`
	Images        []string  `json:"images"`
	PickupAddress string    `json:"pickup_address"`
	IsSold        bool      `json:"is_sold"`
	IsFeatured    bool      `json:"is_featured"`
	Views         int       `json:"views"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProductView is a product enriched with seller info for listing pages.
type ProductView struct {
	Product
	SellerName        string  `json:"seller_name"`
	SellerRating      float64 `json:"seller_rating"`
	SellerRatingCount int     `json:"seller_rating_count"`
}
