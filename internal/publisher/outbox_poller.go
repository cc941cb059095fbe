package publisher

import (
	"context"
	"time"

	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/domain"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/metrics"
	"github.com/A3Manav/KalawatiPutra-Edu-sub000/internal/repository"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Expirer closes abandoned pending orders.
type Expirer interface {
	ExpirePending(ctx context.Context, limit int64) (int, error)
}

type Config struct {
	EventTick time.Duration
	SweepTick time.Duration
	Timeout   time.Duration
}

type OutboxPoller struct {
	cfg     Config
	repo    repository.OutboxRepository
	writer  MessageWriter
	expirer Expirer
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewOutboxPoller wires the poller. m may be nil.
func NewOutboxPoller(cfg Config, repo repository.OutboxRepository, writer MessageWriter, expirer Expirer, m *metrics.Metrics, log zerolog.Logger) *OutboxPoller {
	if cfg.EventTick <= 0 {
		cfg.EventTick = time.Second
	}
	if cfg.SweepTick <= 0 {
		cfg.SweepTick = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &OutboxPoller{
		cfg:     cfg,
		repo:    repo,
		writer:  writer,
		expirer: expirer,
		metrics: m,
		log:     log,
	}
}

// Run blocks until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.cfg.EventTick)
	sweepTicker := time.NewTicker(p.cfg.SweepTick)
	defer eventTicker.Stop()
	defer sweepTicker.Stop()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-sweepTicker.C:
			p.expireAbandonedOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to publish event")
			// Keep per-order ordering: later events wait for this one.
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to mark event as processed")
			return
		}

		if p.metrics != nil {
			p.metrics.OutboxPublished.WithLabelValues(event.EventType).Inc()
		}
	}
}

func (p *OutboxPoller) expireAbandonedOrders(ctx context.Context) {
	n, err := p.expirer.ExpirePending(ctx, batchSize)
	if err != nil {
		p.log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		p.log.Info().Int("expired", n).Msg("expired abandoned pending orders")
		if p.metrics != nil {
			p.metrics.OrdersExpired.Add(float64(n))
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id, keeps an order's events on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
