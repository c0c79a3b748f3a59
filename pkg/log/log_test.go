package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapture(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger, capture := NewCapture(base)
	logger = logger.With("step", "login")

	logger.Debug("ignored")
	logger.Info("request sent")
	logger.Warn("slow response")
	logger.Error("unexpected status")

	assert.Equal(t, []string{"request sent", "slow response"}, capture.Information())
	assert.Equal(t, []string{"unexpected status"}, capture.Errors())

	assert.NotContains(t, buf.String(), "request sent", "base handler level still applies")
	assert.Contains(t, buf.String(), "step=login")
	assert.Contains(t, buf.String(), "unexpected status")
}

func TestWithModule(t *testing.T) {
	Setup("debug")

	assert.True(t, WithModule("engine").Enabled(t.Context(), slog.LevelDebug))

	Setup("error")
	assert.False(t, WithModule("engine").Enabled(t.Context(), slog.LevelWarn))

	Setup("info")
}
