package domain

import (
	"strings"
	"time"
)

type OrderItem struct {
	ProductID     string  `bson:"product_id" json:"product_id"`
	ProductName   string  `bson:"product_name" json:"product_name"`
	Quantity      int     `bson:"quantity" json:"quantity"`
	UnitPrice     float64 `bson:"unit_price" json:"unit_price"`
	UnitCoinPrice int64   `bson:"unit_coin_price" json:"unit_coin_price"`
}

type ShippingAddress struct {
	Name       string `bson:"name" json:"name"`
	Contact    string `bson:"contact" json:"contact"`
	Street     string `bson:"street" json:"street"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
}

// Validate returns a *ValidationError naming the first blank field.
func (a ShippingAddress) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", a.Name},
		{"contact", a.Contact},
		{"street", a.Street},
		{"postal_code", a.PostalCode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return NewValidationError("shipping address %s is required", f.name)
		}
	}
	return nil
}

// Order is a snapshot of a checkout. Prices are captured when the order is created.
type Order struct {
	ID                string          `bson:"_id" json:"id"`
	UserID            string          `bson:"user_id" json:"user_id"`
	Items             []OrderItem     `bson:"items" json:"items"`
	TotalPrice        float64         `bson:"total_price" json:"total_price"`
	TotalCoins        int64           `bson:"total_coins" json:"total_coins"`
	ShippingAddress   ShippingAddress `bson:"shipping_address" json:"shipping_address"`
	PaymentMethod     PaymentMethod   `bson:"payment_method" json:"payment_method"`
	ExternalOrderID   string          `bson:"external_order_id,omitempty" json:"external_order_id,omitempty"`
	ExternalPaymentID string          `bson:"external_payment_id,omitempty" json:"external_payment_id,omitempty"`
	Status            OrderStatus     `bson:"status" json:"status"`
	CreatedAt         time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `bson:"updated_at" json:"updated_at"`
}
