package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/metrics"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/payment"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler  http.Handler
	cart     *mockCartService
	checkout *mockCheckoutService
	payments *mockPaymentService
	orders   *mockOrderService
	metrics  *metrics.Metrics
}

func newTestServer() *testServer {
	ts := &testServer{
		cart:     &mockCartService{},
		checkout: &mockCheckoutService{},
		payments: &mockPaymentService{},
		orders:   &mockOrderService{},
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
	ts.handler = NewRouter(RouterConfig{
		ServiceName:    "store-test",
		JWTSecret:      testSecret,
		RequestTimeout: 5 * time.Second,
	}, Handlers{
		Cart:     NewCartHandler(ts.cart, 5*time.Second),
		Checkout: NewCheckoutHandler(ts.checkout, ts.payments, ts.metrics, 5*time.Second),
		Orders:   NewOrdersHandler(ts.orders, 5*time.Second),
	}, ts.metrics, zerolog.Nop())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/cart", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/cart", signToken(t, "u1", -time.Minute), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_expired", decodeError(t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/cart", signToken(t, "u1", time.Hour), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", ts.cart.lastUser)
}

func TestCart_GetCart(t *testing.T) {
	ts := newTestServer()
	ts.cart.lines = []domain.CartLine{
		{Product: domain.Product{ID: "p1", Name: "Mug", Price: 100, CoinPrice: 100, Available: true}, Quantity: 2},
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/cart", signToken(t, "u1", time.Hour), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "u1", resp.UserID)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Mug", resp.Items[0].Name)
	assert.Equal(t, 2, resp.Items[0].Quantity)
}

func TestCart_AddItem(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "u1", time.Hour)

	rec := ts.do(t, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: "p1", Quantity: 2})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "p1", ts.cart.lastID)
	assert.Equal(t, 2, ts.cart.lastQty)

	rec = ts.do(t, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: "p1", Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation_error", resp.Code)
	assert.Contains(t, resp.Details, "quantity")

	rec = ts.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"product_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Code)

	assert.Equal(t, 1, ts.cart.addCalls)
}

func TestCart_QuantityAboveLimit(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "u1", time.Hour)

	rec := ts.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"product_id":"p1","quantity":4611686018427387905}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "quantity: lte=1000")

	rec = ts.do(t, http.MethodPut, "/api/v1/cart/items/p1", token, UpdateQuantityRequestDTO{Quantity: domain.MaxItemQuantity + 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: "p1", Quantity: domain.MaxItemQuantity})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, ts.cart.addCalls)
}

func TestCart_AddItem_UnknownProduct(t *testing.T) {
	ts := newTestServer()
	ts.cart.err = domain.NotFoundf("product %s", "ghost")

	rec := ts.do(t, http.MethodPost, "/api/v1/cart/items", signToken(t, "u1", time.Hour), AddItemRequestDTO{ProductID: "ghost", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "u1", time.Hour)

	rec := ts.do(t, http.MethodPut, "/api/v1/cart/items/p9", token, UpdateQuantityRequestDTO{Quantity: 4})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p9", ts.cart.lastID)
	assert.Equal(t, 4, ts.cart.lastQty)

	rec = ts.do(t, http.MethodDelete, "/api/v1/cart/items/p7", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p7", ts.cart.lastID)
}

func validCheckoutBody(method string) CheckoutRequestDTO {
	return CheckoutRequestDTO{
		ShippingAddress: ShippingAddressDTO{Name: "Asha", Contact: "99999", Street: "12 MG Road", PostalCode: "560001"},
		PaymentMethod:   method,
	}
}

func TestCheckout_ExternalGateway(t *testing.T) {
	ts := newTestServer()
	ts.checkout.result = &service.CheckoutResult{
		Order:  &domain.Order{ID: "o1", Status: domain.OrderStatusPending, TotalPrice: 250},
		Intent: &payment.Intent{GatewayOrderID: "order_gw_1", Amount: 25000, Currency: "INR", KeyID: "key"},
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/checkout", signToken(t, "u1", time.Hour), validCheckoutBody("external-gateway"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CheckoutResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, domain.OrderStatusPending, resp.Order.Status)
	require.NotNil(t, resp.Payment)
	assert.Equal(t, int64(25000), resp.Payment.Amount)

	assert.Equal(t, "u1", ts.checkout.lastReq.UserID)
	assert.Equal(t, domain.PaymentMethodExternalGateway, ts.checkout.lastReq.PaymentMethod)
	assert.Equal(t, "560001", ts.checkout.lastReq.ShippingAddress.PostalCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Checkouts.WithLabelValues("external-gateway", "success")))
}

func TestCheckout_RequestValidation(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "u1", time.Hour)

	body := validCheckoutBody("cash")
	rec := ts.do(t, http.MethodPost, "/api/v1/checkout", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "payment_method")

	body = validCheckoutBody("internal-currency")
	body.ShippingAddress.PostalCode = ""
	rec = ts.do(t, http.MethodPost, "/api/v1/checkout", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "shipping_address.postal_code")
}

func TestCheckout_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewValidationError("shipping address name is required"), http.StatusBadRequest, "validation_error"},
		{domain.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
		{fmt.Errorf("coin checkout: %w", domain.ErrInsufficientBalance), http.StatusPaymentRequired, "insufficient_balance"},
		{fmt.Errorf("%w: Mug", domain.ErrProductUnavailable), http.StatusConflict, "product_unavailable"},
		{fmt.Errorf("%w: dial tcp: connection refused", domain.ErrPaymentProvider), http.StatusBadGateway, "payment_provider_error"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			ts := newTestServer()
			ts.checkout.err = tc.err

			rec := ts.do(t, http.MethodPost, "/api/v1/checkout", signToken(t, "u1", time.Hour), validCheckoutBody("internal-currency"))
			assert.Equal(t, tc.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tc.code, resp.Code)
			assert.NotContains(t, resp.Error, "connection refused")
		})
	}
}

func TestVerifyPayment(t *testing.T) {
	ts := newTestServer()
	ts.payments.order = &domain.Order{ID: "o1", Status: domain.OrderStatusProcessing}
	token := signToken(t, "u1", time.Hour)

	body := VerifyPaymentRequestDTO{OrderID: "o1", GatewayOrderID: "order_gw_1", GatewayPaymentID: "pay_1", Signature: "abc"}
	rec := ts.do(t, http.MethodPost, "/api/v1/payments/verify", token, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var order domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&order))
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Equal(t, "u1", ts.payments.lastReq.UserID)
	assert.Equal(t, "pay_1", ts.payments.lastReq.GatewayPaymentID)

	ts.payments.err = domain.ErrInvalidSignature
	rec = ts.do(t, http.MethodPost, "/api/v1/payments/verify", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "invalid_signature", resp.Code)
	assert.Equal(t, "payment verification failed", resp.Error)

	ts.payments.err = domain.ErrOrderClosed
	rec = ts.do(t, http.MethodPost, "/api/v1/payments/verify", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	body.Signature = ""
	rec = ts.do(t, http.MethodPost, "/api/v1/payments/verify", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Confirmations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Confirmations.WithLabelValues("invalid_signature")))
}

func TestOrders(t *testing.T) {
	ts := newTestServer()
	ts.orders.orders = []*domain.Order{
		{ID: "o2", UserID: "u1", Status: domain.OrderStatusPending},
		{ID: "o1", UserID: "u1", Status: domain.OrderStatusPlaced},
	}
	token := signToken(t, "u1", time.Hour)

	rec := ts.do(t, http.MethodGet, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list OrderListResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Orders, 2)
	assert.Equal(t, "o2", list.Orders[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/orders/o1", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/orders/o1", signToken(t, "u2", time.Hour), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrders_EmptyListIsArray(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/v1/orders", signToken(t, "u1", time.Hour), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer()
	ts.do(t, http.MethodGet, "/health", "", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `store_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
