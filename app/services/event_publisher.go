package services

import (
	"context"
	"encoding/json"
	"time"

	businessflow "github.com/amirphl/likebounty/business_flow"
	"github.com/amirphl/likebounty/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogEventSink writes every registry event as a structured log line
type LogEventSink struct {
	logger *zap.Logger
}

// NewLogEventSink creates a sink logging through logger
func NewLogEventSink(logger *zap.Logger) *LogEventSink {
	return &LogEventSink{logger: logger.Named("events")}
}

func (s *LogEventSink) Publish(ctx context.Context, evt businessflow.Event) {
	fields := []zap.Field{
		zap.String("event_id", evt.UUID.String()),
		zap.String("type", string(evt.Type)),
		zap.Time("timestamp", evt.Timestamp),
	}
	if evt.CampaignID != 0 {
		fields = append(fields, zap.Uint64("campaign_id", evt.CampaignID))
	}
	if actor := evt.Actor(); actor != "" {
		fields = append(fields, zap.String("actor", actor))
	}
	if evt.Payout != 0 {
		fields = append(fields, zap.Uint64("payout", evt.Payout))
	}
	if evt.Outcome != "" {
		fields = append(fields, zap.String("outcome", string(evt.Outcome)))
	}
	if requestID := businessflow.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	s.logger.Info("registry event", fields...)
}

// MetricsEventSink counts registry events and paid-out amounts
type MetricsEventSink struct {
	events  *prometheus.CounterVec
	payouts *prometheus.CounterVec
}

// NewMetricsEventSink creates the sink and registers its collectors with reg
func NewMetricsEventSink(reg prometheus.Registerer) (*MetricsEventSink, error) {
	s := &MetricsEventSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "likebounty_events_total",
				Help: "Registry events by type",
			},
			[]string{"type"},
		),
		payouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "likebounty_released_funds_total",
				Help: "Escrowed funds released, by outcome",
			},
			[]string{"outcome"},
		),
	}
	for _, c := range []prometheus.Collector{s.events, s.payouts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *MetricsEventSink) Publish(_ context.Context, evt businessflow.Event) {
	s.events.WithLabelValues(string(evt.Type)).Inc()

	switch {
	case evt.Type == businessflow.EventPayoutClaimed:
		s.payouts.WithLabelValues(string(evt.Outcome)).Add(float64(evt.Payout))
	case evt.Type == businessflow.EventFinished && evt.Outcome == models.CampaignOutcomeRefunded:
		s.payouts.WithLabelValues(string(evt.Outcome)).Add(float64(evt.Payout))
	}
}

// RedisPublisher is the subset of the redis client the event sink needs
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisEventSink publishes every event as JSON on a pub/sub channel.
// Delivery is best effort; failures are logged.
type RedisEventSink struct {
	client  RedisPublisher
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisEventSink creates a sink publishing to channel
func NewRedisEventSink(client RedisPublisher, channel string, logger *zap.Logger) *RedisEventSink {
	return &RedisEventSink{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

func (s *RedisEventSink) Publish(ctx context.Context, evt businessflow.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("failed to encode event", zap.String("type", string(evt.Type)), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("channel", s.channel),
			zap.String("type", string(evt.Type)),
			zap.Error(err),
		)
	}
}
