package http

import (
	"context"
	"testing"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

func signToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

type mockCartService struct {
	lines     []domain.CartLine
	err       error
	lastUser  string
	lastID    string
	lastQty   int
	addCalls  int
	listCalls int
}

func (m *mockCartService) AddItem(_ context.Context, userID, productID string, quantity int) error {
	m.addCalls++
	m.lastUser, m.lastID, m.lastQty = userID, productID, quantity
	return m.err
}

func (m *mockCartService) UpdateQuantity(_ context.Context, userID, productID string, quantity int) error {
	m.lastUser, m.lastID, m.lastQty = userID, productID, quantity
	return m.err
}

func (m *mockCartService) RemoveItem(_ context.Context, userID, productID string) error {
	m.lastUser, m.lastID = userID, productID
	return m.err
}

func (m *mockCartService) ListItems(_ context.Context, userID string) ([]domain.CartLine, error) {
	m.listCalls++
	m.lastUser = userID
	return m.lines, nil
}

type mockCheckoutService struct {
	result  *service.CheckoutResult
	err     error
	lastReq service.CheckoutRequest
}

func (m *mockCheckoutService) Checkout(_ context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockPaymentService struct {
	order   *domain.Order
	err     error
	lastReq service.ConfirmPaymentRequest
}

func (m *mockPaymentService) ConfirmPayment(_ context.Context, req service.ConfirmPaymentRequest) (*domain.Order, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

type mockOrderService struct {
	orders []*domain.Order
	err    error
}

func (m *mockOrderService) ListOrders(_ context.Context, _ string) ([]*domain.Order, error) {
	return m.orders, m.err
}

func (m *mockOrderService) GetOrder(_ context.Context, userID, orderID string) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.ID == orderID && o.UserID == userID {
			return o, nil
		}
	}
	return nil, domain.NotFoundf("order %s", orderID)
}
