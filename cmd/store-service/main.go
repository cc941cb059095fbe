package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/cache"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/config"
	h "github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/http"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/metrics"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/payment"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/publisher"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/repository"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/service"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Service: "store-service"})
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Config{Service: cfg.ServiceName, Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	if err := repository.CreateIndexes(ctx, mongoDB); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("connected to MongoDB")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The cart cache is optional: every cache error falls back to MongoDB.
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed, continuing without a warm cache")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	repos := service.Repositories{
		Carts:    repository.NewCartRepository(mongoDB),
		Products: repository.NewProductRepository(mongoDB),
		Orders:   repository.NewOrderRepository(mongoDB),
		Users:    repository.NewUserRepository(mongoDB),
		Outbox:   repository.NewOutboxRepository(mongoDB),
		Tx:       repository.NewTransactor(mongoDB.Client()),
	}
	cartCache := cache.NewRedisCache(redisClient, cfg.CartCacheTTL)

	gateway := payment.NewHTTPGateway(payment.Config{
		BaseURL:   cfg.GatewayBaseURL,
		KeyID:     cfg.GatewayKeyID,
		KeySecret: cfg.GatewayKeySecret,
		Currency:  cfg.Currency,
		Timeout:   cfg.GatewayTimeout,
	}, log)
	verifier := payment.NewSignatureVerifier(cfg.GatewayKeySecret)

	cartService := service.NewCartService(repos.Carts, repos.Products, cartCache, log)
	checkoutService := service.NewCheckoutService(repos, gateway, cartCache, log)
	paymentService := service.NewPaymentService(repos, verifier, cartCache, log)
	orderService := service.NewOrderService(repos, cfg.PendingOrderTTL, log)

	poller := publisher.NewOutboxPoller(publisher.Config{
		EventTick: cfg.OutboxInterval,
		SweepTick: cfg.SweepInterval,
	}, repos.Outbox, publisher.NewKafkaWriter(cfg.OrderEventsTopic, cfg.KafkaBrokers...), orderService, m, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	router := h.NewRouter(h.RouterConfig{
		ServiceName:    cfg.ServiceName,
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.RequestTimeout,
	}, h.Handlers{
		Cart:     h.NewCartHandler(cartService, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(checkoutService, paymentService, m, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(orderService, cfg.RequestTimeout),
	}, m, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("store service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down store service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	wg.Wait()
	if err := poller.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close kafka writer")
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to disconnect from MongoDB")
	}

	log.Info().Msg("store service stopped")
}
