package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/chutney-testing/chutney-suite/pkg/cmd"
	"github.com/chutney-testing/chutney-suite/pkg/log"
	"github.com/chutney-testing/chutney-suite/pkg/scheduler"
	"github.com/chutney-testing/chutney-suite/pkg/triggers/kafka"
	"github.com/chutney-testing/chutney-suite/pkg/triggers/queue"
	"github.com/chutney-testing/chutney-suite/pkg/web"
)

const shutdownTimeout = 30 * time.Second

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the API, the scheduler and the queue trigger",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address of the campaign request queue, empty to disable it",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Redis list holding campaign requests",
				Sources: cli.EnvVars("QUEUE_NAME"),
			},
			&cli.StringFlag{
				Name:    "request-topic",
				Usage:   "Kafka topic holding campaign requests, empty to disable it",
				Sources: cli.EnvVars("KAFKA_REQUEST_TOPIC"),
			},
			&cli.DurationFlag{
				Name:    "scheduler-interval",
				Usage:   "Delay between two scheduler ticks",
				Sources: cli.EnvVars("SCHEDULER_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:  "no-scheduler",
				Usage: "Do not run scheduled campaigns",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			logger := log.WithModule("chutney-engine")
			logger.InfoContext(ctx, "Initializing Chutney engine")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runtime, err := cmd.NewRuntime(ctx, logger, cfg)
			if err != nil {
				return err
			}

			defer func() {
				if err := runtime.Close(context.Background()); err != nil {
					logger.Error("Failed to close runtime", slog.Any("error", err))
				}
			}()

			if runtime.EventBus != nil {
				if err := cmd.LogExecutionEvents(ctx, runtime.EventBus, logger); err != nil {
					return err
				}
			}

			var schedules *scheduler.Scheduler

			if cfg.Scheduler.Enabled {
				schedules = scheduler.New(runtime.Persistence, runtime.Campaigns, logger, scheduler.Config{
					Interval: cfg.Scheduler.Interval,
					User:     cfg.Scheduler.User,
				})

				if err := schedules.Start(ctx); err != nil {
					return err
				}
			}

			var trigger *queue.Trigger

			if cfg.Queue.RedisAddr != "" {
				trigger = queue.NewTrigger(queue.Config{Addr: cfg.Queue.RedisAddr, Queue: cfg.Queue.Name}, runtime.Campaigns, logger)

				if err := trigger.Start(ctx); err != nil {
					return err
				}
			}

			var kafkaTrigger *kafka.Trigger

			if cfg.Kafka.RequestTopic != "" {
				kafkaTrigger, err = kafka.NewTrigger(kafka.Config{
					Brokers:       cfg.Kafka.Brokers,
					Topic:         cfg.Kafka.RequestTopic,
					ConsumerGroup: cfg.Kafka.ConsumerGroup,
				}, runtime.Campaigns, logger)
				if err != nil {
					return err
				}

				if err := kafkaTrigger.Start(ctx); err != nil {
					return err
				}
			}

			api := web.NewAPI(logger, runtime.Campaigns, runtime.Registry, runtime.Persistence)

			serveErr := make(chan error, 1)

			go func() {
				serveErr <- api.Start(cfg.API.Port)
			}()

			select {
			case <-ctx.Done():
				logger.Info("Shutting down")
			case err = <-serveErr:
				logger.Error("API stopped", slog.Any("error", err))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			var errs []error

			if trigger != nil {
				errs = append(errs, trigger.Stop(shutdownCtx))
			}

			if kafkaTrigger != nil {
				errs = append(errs, kafkaTrigger.Stop(shutdownCtx))
			}

			if schedules != nil {
				errs = append(errs, schedules.Stop(shutdownCtx))
			}

			errs = append(errs, api.Shutdown(shutdownCtx), err)

			return errors.Join(errs...)
		},
	}
}
