package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/chutney-testing/chutney-suite/pkg/channels/gochannel"
	"github.com/chutney-testing/chutney-suite/pkg/channels/kafka"
	"github.com/chutney-testing/chutney-suite/pkg/eventbus"
	"github.com/chutney-testing/chutney-suite/pkg/events"
)

const serviceName = "chutney-engine"

// NewEventBus returns nil for the "none" provider.
func NewEventBus(provider string, brokers []string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", "none":
		return nil, nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), brokers, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}

// LogExecutionEvents subscribes a handler writing every finished execution to logger.
func LogExecutionEvents(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	logger = logger.With(slog.String("module", "execution_events"))

	handlers := map[events.EventType]eventbus.EventHandler{
		events.CampaignExecutionFinishedEvent: func(ctx context.Context, event any) error {
			finished, ok := event.(*events.CampaignExecutionFinished)
			if !ok {
				return nil
			}

			logger.InfoContext(ctx, "Campaign execution finished",
				slog.String("campaign_id", finished.CampaignID),
				slog.String("execution_id", finished.ExecutionID),
				slog.String("status", string(finished.Status)),
				slog.Int("passed", finished.Summary.Passed),
				slog.Int("failed", finished.Summary.Failed),
			)

			return nil
		},
		events.ExecutionStopRequestedEvent: func(ctx context.Context, event any) error {
			if stop, ok := event.(*events.ExecutionStopRequested); ok {
				logger.InfoContext(ctx, "Execution stop requested",
					slog.String("execution_id", stop.ExecutionID),
					slog.Bool("running", stop.Running),
				)
			}

			return nil
		},
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
