package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/google/uuid"
)

func newOrderOutboxEvent(order *domain.Order, eventType string, at time.Time) (*domain.OutboxEvent, error) {
	payload, err := json.Marshal(domain.NewOrderEvent(order, at))
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &domain.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: order.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at,
	}, nil
}
