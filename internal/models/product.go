package models

import "time"

// Product tel que renvoyé par le backend amont. On n'en garde que ce dont
// le panier et le checkout ont besoin.
type Product struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	Stock       int        `json:"stock"`
	ImageURL    string     `json:"image_url,omitempty"`
	SellerID    string     `json:"seller_id,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
