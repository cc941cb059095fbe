package domain

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPlaced     OrderStatus = "placed"
	OrderStatusExpired    OrderStatus = "expired"
)

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusProcessing, OrderStatusExpired},
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether an order may move from one status to another.
// Nothing ever moves back to pending.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
