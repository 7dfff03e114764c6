package model

import "time"

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone,omitempty"`
	ProfileImage     string     `json:"profile_image,omitempty"`
	PasswordHash     []byte     `json:"-"`
	IsBusinessSeller bool       `json:"is_business_seller"`
	BusinessName     string     `json:"business_name,omitempty"`
	VATNumber        string     `json:"vat_number,omitempty"`
	IsAdmin          bool       `json:"is_admin"`
	IsBanned         bool       `json:"-"`
	RatingAverage    float64    `json:"rating_average"`
	RatingCount      int        `json:"rating_count"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

// PublicProfile is the subset of a user shown to other users.
type PublicProfile struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ProfileImage     string    `json:"profile_image,omitempty"`
	IsBusinessSeller bool      `json:"is_business_seller"`
	BusinessName     string    `json:"business_name,omitempty"`
	RatingAverage    float64   `json:"rating_average"`
	RatingCount      int       `json:"rating_count"`
	MemberSince      time.Time `json:"member_since"`
}
