// Package kafkaconsumer applies image invalidation events from Kafka to the
// dimension caches.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/akamai-compat-edge/internal/core/observability"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/invalidation"
	mylog "github.com/mohammed-shakir/akamai-compat-edge/internal/logger"
)

// Invalidator purges paths from every dimension tier; *dimensions.Tiered
// satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) (int, error)
}

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	target  Invalidator
	handler *groupHandler
}

func New(cfg Config, logger *slog.Logger, target Invalidator) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Consumer{
		cfg:    cfg,
		logger: logger,
		target: target,
	}
	c.handler = &groupHandler{process: c.ProcessOne, topic: cfg.Topic}
	return c
}

// Readiness implements health.ReadinessReporter.
func (c *Consumer) Readiness() (bool, []int32) {
	return c.handler.readiness()
}

func (c *Consumer) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.ClientID = "akamai-compat-edge"
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	return cfg
}

// Start consumes invalidation events until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.target == nil {
		return errors.New("kafkaconsumer: missing invalidation target")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" || c.cfg.GroupID == "" {
		return errors.New("kafkaconsumer: brokers, topic and group are required")
	}

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, c.saramaConfig())
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	ctx = mylog.WithComponent(ctx, "kafka_consumer")
	c.logger.InfoContext(ctx, "kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, c.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.ErrorContext(ctx, "kafka consumer error",
				"err", err, "brokers", c.cfg.Brokers, "topic", c.cfg.Topic)
		}
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "kafka invalidation consumer shutting down")
			return nil
		case <-time.After(backoff):
		}
	}
}

// ProcessOne applies a single message. Undecodable or invalid events are
// logged and skipped; a failed purge is returned so the offset is not
// committed and the message is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.ObserveInvalidation("unknown", 0, err)
		c.logger.WarnContext(ctx, "dropping undecodable invalidation event",
			"kind", "decode", "topic", msg.Topic, "partition", msg.Partition,
			"offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.ObserveInvalidation(ev.Op, 0, err)
		c.logger.WarnContext(ctx, "dropping invalid invalidation event",
			"kind", "validate", "topic", msg.Topic, "partition", msg.Partition,
			"offset", msg.Offset, "err", err)
		return nil
	}

	removed, err := c.target.Invalidate(ctx, ev.Paths...)
	if err != nil {
		obs.ObserveInvalidation(ev.Op, 0, err)
		c.logger.ErrorContext(ctx, "invalidation failed",
			"kind", "purge", "topic", msg.Topic, "partition", msg.Partition,
			"paths", len(ev.Paths), "err", err)
		return fmt.Errorf("invalidate: %w", err)
	}

	obs.ObserveInvalidation(ev.Op, len(ev.Paths), nil)
	c.logger.DebugContext(ctx, "invalidated dimensions",
		"op", ev.Op, "paths", len(ev.Paths), "in_memory", removed, "source", ev.Source)
	return nil
}
