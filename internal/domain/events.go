package domain

import "time"

const (
	EventOrderPlaced  = "order.placed"
	EventOrderPaid    = "order.paid"
	EventOrderExpired = "order.expired"
)

type OutboxEvent struct {
	ID          string     `bson:"_id"`
	AggregateID string     `bson:"aggregate_id"`
	EventType   string     `bson:"event_type"`
	Payload     []byte     `bson:"payload"`
	CreatedAt   time.Time  `bson:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty"`
}

// OrderEvent is the payload published for every order lifecycle event.
type OrderEvent struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Items         []OrderItem   `json:"items"`
	TotalPrice    float64       `json:"total_price"`
	TotalCoins    int64         `json:"total_coins"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewOrderEvent(o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Items:         o.Items,
		TotalPrice:    o.TotalPrice,
		TotalCoins:    o.TotalCoins,
		OccurredAt:    at,
	}
}
