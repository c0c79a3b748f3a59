package main

import (
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/chutney-testing/chutney-suite/pkg/channels/kafka"
	"github.com/chutney-testing/chutney-suite/pkg/config"
	"github.com/chutney-testing/chutney-suite/pkg/log"
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			Sources: cli.EnvVars("CHUTNEY_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL, a directory or postgres://...",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "environments-path",
			Usage:   "Directory holding the environment YAML files",
			Sources: cli.EnvVars("ENVIRONMENTS_PATH"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Path to the directory containing action plugins",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, gochannel, none)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers of the event bus",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces through OTLP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}
}

// loadConfig reads the configuration file, then applies the flags that were set.
func loadConfig(command *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, err
	}

	override := func(name string, apply func()) {
		if command.IsSet(name) {
			apply()
		}
	}

	override("log-level", func() { cfg.LogLevel = command.String("log-level") })
	override("database-url", func() { cfg.Persistence.URL = command.String("database-url") })
	override("environments-path", func() { cfg.Environments.Path = command.String("environments-path") })
	override("plugins-path", func() { cfg.Plugins.Path = command.String("plugins-path") })
	override("event-bus", func() { cfg.EventBus = command.String("event-bus") })
	override("kafka-brokers", func() { cfg.Kafka.Brokers = kafka.ParseBrokers(command.String("kafka-brokers")) })
	override("tracing", func() { cfg.Tracing.Enabled = command.Bool("tracing") })
	override("port", func() { cfg.API.Port = command.Int("port") })
	override("redis-addr", func() { cfg.Queue.RedisAddr = command.String("redis-addr") })
	override("request-topic", func() { cfg.Kafka.RequestTopic = command.String("request-topic") })
	override("queue", func() { cfg.Queue.Name = command.String("queue") })
	override("scheduler-interval", func() { cfg.Scheduler.Interval = command.Duration("scheduler-interval") })
	override("no-scheduler", func() { cfg.Scheduler.Enabled = !command.Bool("no-scheduler") })

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	log.Setup(cfg.LogLevel)

	return cfg, nil
}
