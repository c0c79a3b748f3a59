package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chutney-testing/chutney-suite/pkg/campaign"
	"github.com/chutney-testing/chutney-suite/pkg/config"
	"github.com/chutney-testing/chutney-suite/pkg/engine"
	"github.com/chutney-testing/chutney-suite/pkg/environment"
	"github.com/chutney-testing/chutney-suite/pkg/eventbus"
	"github.com/chutney-testing/chutney-suite/pkg/execution"
	"github.com/chutney-testing/chutney-suite/pkg/otelhelper"
	"github.com/chutney-testing/chutney-suite/pkg/persistence"
	"github.com/chutney-testing/chutney-suite/pkg/registry"
)

// Runtime holds the components shared by the engine commands.
type Runtime struct {
	Config       *config.Config
	Persistence  persistence.Persistence
	Registry     *registry.Registry
	Environments *environment.Resolver
	EventBus     eventbus.EventBus
	Executions   *execution.Registry
	Campaigns    *campaign.Engine

	closers []func(ctx context.Context) error
}

func NewRuntime(ctx context.Context, logger *slog.Logger, cfg *config.Config) (runtime *Runtime, err error) {
	runtime = &Runtime{Config: cfg, Executions: execution.NewRegistry()}

	defer func() {
		if err != nil {
			err = errors.Join(err, runtime.Close(ctx))
		}
	}()

	tracer := otelhelper.Tracer(serviceName)

	if cfg.Tracing.Enabled {
		var shutdownTracer func(context.Context) error

		tracer, shutdownTracer, err = otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return runtime, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		runtime.closers = append(runtime.closers, shutdownTracer)
	}

	runtime.Registry, err = NewRegistry(ctx, logger, cfg.Plugins.Path)
	if err != nil {
		return runtime, err
	}

	runtime.Environments, err = environment.Load(cfg.Environments.Path)
	if err != nil {
		return runtime, fmt.Errorf("failed to load environments: %w", err)
	}

	runtime.Persistence, err = NewPersistence(ctx, logger, cfg.Persistence.URL)
	if err != nil {
		return runtime, fmt.Errorf("failed to open persistence: %w", err)
	}

	runtime.closers = append(runtime.closers, runtime.Persistence.Close)

	runtime.EventBus, err = NewEventBus(cfg.EventBus, cfg.Kafka.Brokers, logger)
	if err != nil {
		return runtime, err
	}

	var publisher eventbus.EventPublisher

	if runtime.EventBus != nil {
		publisher = runtime.EventBus
		runtime.closers = append(runtime.closers, func(context.Context) error { return runtime.EventBus.Close() })
	}

	executor := engine.NewExecutor(logger, runtime.Registry, runtime.Environments, engine.Config{
		Parallelism:          cfg.Engine.Parallelism,
		ActionTimeout:        cfg.Engine.ActionTimeout,
		MaxConcurrentActions: cfg.Engine.MaxConcurrentActions,
		Tracer:               tracer,
	})

	runtime.Campaigns = campaign.NewEngine(runtime.Persistence, runtime.Executions, executor, publisher, logger, campaign.Config{
		ScenarioWorkers: cfg.Engine.ScenarioWorkers,
		Environments:    runtime.Environments,
	})

	return runtime, nil
}

// Close releases the components in reverse creation order.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i](ctx))
	}

	r.closers = nil

	return errors.Join(errs...)
}
