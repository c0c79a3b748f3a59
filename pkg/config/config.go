// Package config loads the engine configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	LogLevel     string             `yaml:"log_level"    validate:"omitempty,oneof=debug info warn error"`
	Engine       EngineConfig       `yaml:"engine"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
	Environments EnvironmentsConfig `yaml:"environments"`
	EventBus     string             `yaml:"event_bus"    validate:"oneof=kafka gochannel none"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Queue        QueueConfig        `yaml:"queue"`
	API          APIConfig          `yaml:"api"`
	Plugins      PluginsConfig      `yaml:"plugins"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

type EngineConfig struct {
	// Parallelism bounds the children a parallel step runs at once.
	Parallelism int `yaml:"parallelism" validate:"min=1"`
	// ActionTimeout applies to actions without their own timeout. Zero disables it.
	ActionTimeout time.Duration `yaml:"action_timeout" validate:"min=0"`
	// MaxConcurrentActions caps running actions across all executions. Zero disables it.
	MaxConcurrentActions int64 `yaml:"max_concurrent_actions" validate:"min=0"`
	ScenarioWorkers      int   `yaml:"scenario_workers"       validate:"min=1"`
}

type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	User     string        `yaml:"user"     validate:"required"`
}

type PersistenceConfig struct {
	URL string `yaml:"url" validate:"required"`
}

type EnvironmentsConfig struct {
	Path string `yaml:"path"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" validate:"required_with=RequestTopic"`
	// RequestTopic enables the Kafka campaign-request trigger.
	RequestTopic  string `yaml:"request_topic"`
	ConsumerGroup string `yaml:"consumer_group"`
}

type QueueConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Name      string `yaml:"name"       validate:"required_with=RedisAddr"`
}

type APIConfig struct {
	Port int `yaml:"port" validate:"min=0,max=65535"`
}

type PluginsConfig struct {
	Path string `yaml:"path"`
}

// TracingConfig enables the OTLP exporter, configured through the standard
// OTEL_EXPORTER_OTLP_* variables.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Engine: EngineConfig{
			Parallelism:     10,
			ScenarioWorkers: 4,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: time.Minute,
			User:     "scheduler",
		},
		Persistence:  PersistenceConfig{URL: "file://./data"},
		Environments: EnvironmentsConfig{Path: "./environments"},
		EventBus:     "none",
		Queue:        QueueConfig{Name: "chutney:campaign-requests"},
		API:          APIConfig{Port: 8099},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is given by the operator
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.EventBus == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka event bus requires kafka.brokers", ErrInvalidConfig)
	}

	return nil
}
