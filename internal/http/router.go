package http

import (
	"net/http"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	ServiceName    string
	JWTSecret      []byte
	RequestTimeout time.Duration
}

type Handlers struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
}

// NewRouter mounts the public API. m may be nil, in which case /metrics is not served.
func NewRouter(cfg RouterConfig, handlers Handlers, m *metrics.Metrics, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(log))
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", handlers.Cart.GetCart)
			r.Post("/items", handlers.Cart.AddItem)
			r.Put("/items/{product_id}", handlers.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", handlers.Cart.RemoveItem)
		})

		r.Post("/checkout", handlers.Checkout.Checkout)
		r.Post("/payments/verify", handlers.Checkout.VerifyPayment)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", handlers.Orders.ListOrders)
			r.Get("/{order_id}", handlers.Orders.GetOrder)
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
