package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"

	"github.com/chutney-testing/chutney-suite/pkg/config"
)

func loadWith(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()

	var (
		cfg *config.Config
		err error
	)

	sub := NewRunCommand()
	sub.Action = func(_ context.Context, command *cli.Command) error {
		cfg, err = loadConfig(command)

		return nil
	}

	root := &cli.Command{Name: "chutney-engine", Flags: commonFlags(), Commands: []*cli.Command{sub}}
	require.NoError(t, root.Run(t.Context(), append([]string{"chutney-engine"}, args...)))

	return cfg, err
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadWith(t, "run")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chutney.yaml")
	require.NoError(t, os.WriteFile(path, []byte("persistence:\n  url: file:///var/chutney\napi:\n  port: 9000\n"), 0o600))

	cfg, err := loadWith(t,
		"--config", path,
		"--event-bus", "kafka",
		"--kafka-brokers", "k1:9092, k2:9092",
		"run",
		"--redis-addr", "localhost:6379",
		"--scheduler-interval", "30s",
		"--no-scheduler",
	)
	require.NoError(t, err)

	assert.Equal(t, "file:///var/chutney", cfg.Persistence.URL)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "kafka", cfg.EventBus)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "localhost:6379", cfg.Queue.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	_, err := loadWith(t, "--event-bus", "carrier-pigeon", "run")
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
