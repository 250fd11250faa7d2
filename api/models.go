package api

import (
	"time"

	"storefront-client/client/domain"
)

// AuthResult é o "data" de login, registro e Google sign-in.
type AuthResult struct {
	AccessToken string      `json:"accessToken"`
	User        domain.User `json:"user"`
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	SalePrice   float64  `json:"salePrice,omitempty"`
	Images      []string `json:"images,omitempty"`
	Category    string   `json:"category,omitempty"`
	Stock       int      `json:"stock"`
	Rating      float64  `json:"rating,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

type CartItem struct {
	ID        string   `json:"id"`
	ProductID string   `json:"productId"`
	Product   *Product `json:"product,omitempty"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
}

type Cart struct {
	ID    string     `json:"id"`
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

type Address struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	City     string `json:"city"`
	District string `json:"district,omitempty"`
	Ward     string `json:"ward,omitempty"`
}

type CreateOrder struct {
	ShippingAddress Address `json:"shippingAddress"`
	PaymentMethod   string  `json:"paymentMethod"`
	Note            string  `json:"note,omitempty"`
	UsePoints       int     `json:"usePoints,omitempty"`
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type Order struct {
	ID              string      `json:"id"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	Status          string      `json:"status"`
	PaymentMethod   string      `json:"paymentMethod"`
	ShippingAddress Address     `json:"shippingAddress"`
	PointsUsed      int         `json:"pointsUsed,omitempty"`
	PointsEarned    int         `json:"pointsEarned,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

type Points struct {
	Balance int    `json:"balance"`
	Tier    string `json:"tier,omitempty"`
}

type PointsEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Points      int       `json:"points"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
