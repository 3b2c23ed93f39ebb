package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fraglink-io/fraglink/internal/app/model"
	"github.com/fraglink-io/fraglink/internal/infra/prometheus"
)

const (
	visitCountKeyPrefix = "fraglink:visits:"
	visitCountTotalKey  = "fraglink:visits:total"
)

// VisitConsumer drains visit events from NATS JetStream and keeps per-code
// tallies in Redis. The tallies are a fast aggregate view; the visit ledger
// on the record itself stays the source of truth.
type VisitConsumer struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	rdb      *redis.Client
	metrics  *prometheus.Metrics
	stopChan chan struct{}
}

// NewVisitConsumer creates a new visit event consumer. rdb and metrics may
// be nil, in which case events are only acknowledged and logged.
func NewVisitConsumer(js nats.JetStreamContext, logger *zap.Logger, rdb *redis.Client, metrics *prometheus.Metrics) *VisitConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisitConsumer{
		js:       js,
		logger:   logger,
		rdb:      rdb,
		metrics:  metrics,
		stopChan: make(chan struct{}),
	}
}

// Start ensures the stream and durable consumer exist and begins consuming.
func (c *VisitConsumer) Start() error {
	_, err := c.js.StreamInfo(model.VisitStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.VisitStreamName,
			Subjects: []string{model.VisitStreamSubject},
			MaxBytes: model.VisitStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.VisitStreamName, model.VisitConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.VisitStreamName, &nats.ConsumerConfig{
			Durable:   model.VisitConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.VisitStreamSubject, model.VisitConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

// Stop ends the consume loop after the fetch in flight returns.
func (c *VisitConsumer) Stop() {
	close(c.stopChan)
}

func (c *VisitConsumer) consume(sub *nats.Subscription) {
	for {
		select {
		case <-c.stopChan:
			c.logger.Info("visit consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			c.handle(msg)
		}
	}
}

func (c *VisitConsumer) handle(msg *nats.Msg) {
	var event model.VisitEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Error("failed to unmarshal visit event", zap.Error(err))
		msg.Nak()
		return
	}

	if c.rdb != nil {
		ctx := context.Background()
		pipe := c.rdb.Pipeline()
		pipe.Incr(ctx, visitCountKeyPrefix+event.Code)
		pipe.Incr(ctx, visitCountTotalKey)
		if _, err := pipe.Exec(ctx); err != nil {
			c.logger.Error("failed to update visit tallies",
				zap.String("id", event.ID),
				zap.String("code", event.Code),
				zap.Error(err))
			msg.Nak()
			return
		}
	}

	if c.metrics != nil {
		c.metrics.VisitEventsConsumed.Inc()
	}

	c.logger.Debug("visit event tallied",
		zap.String("id", event.ID),
		zap.String("code", event.Code),
		zap.String("ref", event.Visit.Ref),
		zap.Int64("ts", event.Visit.TS),
	)

	msg.Ack()
}

// VisitTally reads the per-code tally kept by the consumer. A missing key
// reads as zero.
func VisitTally(ctx context.Context, rdb *redis.Client, code string) (int64, error) {
	return readTally(ctx, rdb, visitCountKeyPrefix+code)
}

// TotalVisitTally reads the all-codes tally kept by the consumer.
func TotalVisitTally(ctx context.Context, rdb *redis.Client) (int64, error) {
	return readTally(ctx, rdb, visitCountTotalKey)
}

func readTally(ctx context.Context, rdb *redis.Client, key string) (int64, error) {
	n, err := rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read visit tally: %w", err)
	}
	return n, nil
}
