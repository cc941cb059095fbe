package domain

import "time"

// MaxItemQuantity caps the quantity of a single product in a cart.
const MaxItemQuantity = 1000

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// CartLine is a cart entry with its product resolved at read time.
type CartLine struct {
	Product  Product
	Quantity int
	AddedAt  time.Time
}
