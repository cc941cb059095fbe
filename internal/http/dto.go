package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/payment"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=1000"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"gte=1,lte=1000"`
}

type ShippingAddressDTO struct {
	Name       string `json:"name" validate:"required"`
	Contact    string `json:"contact" validate:"required"`
	Street     string `json:"street" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
}

type CheckoutRequestDTO struct {
	ShippingAddress ShippingAddressDTO `json:"shipping_address" validate:"required"`
	PaymentMethod   string             `json:"payment_method" validate:"required,oneof=external-gateway internal-currency"`
}

type VerifyPaymentRequestDTO struct {
	OrderID          string `json:"order_id" validate:"required"`
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

type CartLineDTO struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	CoinPrice int64     `json:"coin_price"`
	Available bool      `json:"available"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type CartResponseDTO struct {
	UserID string        `json:"user_id"`
	Items  []CartLineDTO `json:"items"`
}

type CheckoutResponseDTO struct {
	Order   *domain.Order   `json:"order"`
	Payment *payment.Intent `json:"payment,omitempty"`
}

func toCartResponse(userID string, lines []domain.CartLine) CartResponseDTO {
	items := make([]CartLineDTO, 0, len(lines))
	for _, l := range lines {
		items = append(items, CartLineDTO{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			CoinPrice: l.Product.CoinPrice,
			Available: l.Product.Available,
			Quantity:  l.Quantity,
			AddedAt:   l.AddedAt,
		})
	}
	return CartResponseDTO{UserID: userID, Items: items}
}

func (a ShippingAddressDTO) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:       a.Name,
		Contact:    a.Contact,
		Street:     a.Street,
		PostalCode: a.PostalCode,
	}
}

// validationDetails renders validator errors as "field: rule" pairs.
func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
