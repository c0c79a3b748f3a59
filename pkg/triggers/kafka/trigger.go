// Package kafka starts campaign executions from requests published on a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/chutney-testing/chutney-suite/pkg/triggers/queue"
)

const (
	DefaultConsumerGroup = "chutney-campaign-requests"

	kafkaSessionTimeout    = 10 * time.Second
	kafkaHeartbeatInterval = 3 * time.Second
	kafkaRetryInterval     = 5 * time.Second
)

var (
	ErrInvalidConfig  = errors.New("invalid kafka trigger config")
	ErrAlreadyStarted = errors.New("kafka trigger already started")
)

type Config struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

func (c Config) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidConfig)
	}

	if len(c.Brokers) == 0 {
		return fmt.Errorf("%w: brokers are required", ErrInvalidConfig)
	}

	return nil
}

// GroupFactory opens the consumer group the trigger reads from.
type GroupFactory func(brokers []string, group string, config *sarama.Config) (sarama.ConsumerGroup, error)

type Trigger struct {
	config   Config
	launcher queue.Launcher
	newGroup GroupFactory
	logger   *slog.Logger

	mu       sync.Mutex
	consumer sarama.ConsumerGroup
	cancel   context.CancelFunc
	loops    sync.WaitGroup
	runs     sync.WaitGroup
}

func NewTrigger(config Config, launcher queue.Launcher, logger *slog.Logger) (*Trigger, error) {
	return NewTriggerWithGroup(config, launcher, sarama.NewConsumerGroup, logger)
}

func NewTriggerWithGroup(config Config, launcher queue.Launcher, newGroup GroupFactory, logger *slog.Logger) (*Trigger, error) {
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = DefaultConsumerGroup
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Trigger{
		config:   config,
		launcher: launcher,
		newGroup: newGroup,
		logger: logger.With(
			"module", "kafka_trigger",
			"topic", config.Topic,
			"consumer_group", config.ConsumerGroup,
		),
	}, nil
}

func consumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Session.Timeout = kafkaSessionTimeout
	config.Consumer.Group.Heartbeat.Interval = kafkaHeartbeatInterval
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	return config
}

func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrAlreadyStarted
	}

	consumer, err := t.newGroup(t.config.Brokers, t.config.ConsumerGroup, consumerConfig())
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to create Kafka consumer group", "error", err)

		return fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	// campaign runs outlive the caller's request context but not Stop
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.consumer = consumer
	t.cancel = cancel

	t.loops.Add(2)

	go t.consuming(loopCtx, consumer)
	go t.monitorConsumerErrors(loopCtx, consumer)

	t.logger.InfoContext(ctx, "Kafka trigger started")

	return nil
}

// Stop closes the consumer group and waits for the campaigns it launched.
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel, consumer := t.cancel, t.consumer
	t.cancel, t.consumer = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	err := consumer.Close()
	if err != nil {
		t.logger.ErrorContext(ctx, "Error closing Kafka consumer", "error", err)
	}

	done := make(chan struct{})

	go func() {
		t.loops.Wait()
		t.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}

	t.logger.InfoContext(ctx, "Kafka trigger stopped")

	return err
}

func (t *Trigger) consuming(ctx context.Context, consumer sarama.ConsumerGroup) {
	defer t.loops.Done()

	handler := &consumerGroupHandler{trigger: t, ctx: ctx}

	for ctx.Err() == nil {
		err := consumer.Consume(ctx, []string{t.config.Topic}, handler)

		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return
		case err != nil:
			t.logger.ErrorContext(ctx, "Kafka consumer error", "error", err)

			select {
			case <-ctx.Done():
			case <-time.After(kafkaRetryInterval):
			}
		}
	}
}

func (t *Trigger) monitorConsumerErrors(ctx context.Context, consumer sarama.ConsumerGroup) {
	defer t.loops.Done()

	errs := consumer.Errors()

	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}

			t.logger.ErrorContext(ctx, "Kafka consumer group error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

func (t *Trigger) handle(ctx context.Context, message *sarama.ConsumerMessage) {
	logger := t.logger.With("partition", message.Partition, "offset", message.Offset)

	request, err := queue.Decode(message.Value)
	if err != nil {
		logger.WarnContext(ctx, "Dropping malformed campaign request", "error", err)

		return
	}

	if request.UserID == "" {
		request.UserID = userFromHeaders(message.Headers)
	}

	t.runs.Add(1)

	go func() {
		defer t.runs.Done()

		queue.Dispatch(ctx, t.launcher, request, logger)
	}()
}

func userFromHeaders(headers []*sarama.RecordHeader) string {
	for _, header := range headers {
		if string(header.Key) == "user" {
			return string(header.Value)
		}
	}

	return ""
}

type consumerGroupHandler struct {
	trigger *Trigger
	ctx     context.Context //nolint:containedctx // session contexts end on rebalance, campaign runs must not
}

func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.trigger.logger.InfoContext(session.Context(), "Kafka consumer group session started")

	return nil
}

func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.trigger.logger.InfoContext(session.Context(), "Kafka consumer group session ended")

	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			h.trigger.handle(h.ctx, message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
