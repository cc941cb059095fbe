package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/pkg/circuitbreaker"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Intent is the handle the client needs to complete a payment with the gateway.
type Intent struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, receipt string, amount decimal.Decimal) (*Intent, error)
}

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Currency  string
	Timeout   time.Duration
}

type HTTPGateway struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*Intent]
}

func NewHTTPGateway(cfg Config, log zerolog.Logger) *HTTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPGateway{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[*Intent](circuitbreaker.DefaultSettings("payment-gateway"), log),
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateIntent registers a gateway order for amount (major units). Every failure,
// including an open breaker, wraps domain.ErrPaymentProvider.
func (g *HTTPGateway) CreateIntent(ctx context.Context, receipt string, amount decimal.Decimal) (*Intent, error) {
	if !InMinorUnitRange(amount) {
		return nil, fmt.Errorf("%w: amount out of range, got %s", domain.ErrPaymentProvider, amount)
	}
	minor := MinorUnits(amount)
	if minor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", domain.ErrPaymentProvider, amount)
	}

	intent, err := g.breaker.Execute(func() (*Intent, error) {
		return g.createOrder(ctx, receipt, minor)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
	}
	return intent, nil
}

func (g *HTTPGateway) createOrder(ctx context.Context, receipt string, minor int64) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(createOrderRequest{
		Amount:   minor,
		Currency: g.cfg.Currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gateway responded with status %d", resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("gateway response without order id")
	}

	currency := out.Currency
	if currency == "" {
		currency = g.cfg.Currency
	}
	return &Intent{
		GatewayOrderID: out.ID,
		Amount:         minor,
		Currency:       currency,
		KeyID:          g.cfg.KeyID,
	}, nil
}

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// MinorUnits converts a major-unit amount to minor units, rounding half away from zero.
// The result is only meaningful when InMinorUnitRange(amount) holds.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// InMinorUnitRange reports whether amount converts to minor units without overflowing int64.
func InMinorUnitRange(amount decimal.Decimal) bool {
	return amount.Mul(hundred).Round(0).Abs().LessThanOrEqual(maxMinor)
}
