package log

import (
	"context"
	"log/slog"
	"sync"
)

// Capture collects the messages logged through a step logger so they can be
// attached to the step report.
type Capture struct {
	mu          sync.Mutex
	information []string
	errors      []string
}

// NewCapture returns a logger that forwards to base and records every message
// at Info level or above into the returned Capture.
func NewCapture(base *slog.Logger) (*slog.Logger, *Capture) {
	capture := &Capture{}

	return slog.New(&captureHandler{next: base.Handler(), capture: capture}), capture
}

func (c *Capture) record(level slog.Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if level >= slog.LevelError {
		c.errors = append(c.errors, message)

		return
	}

	c.information = append(c.information, message)
}

func (c *Capture) Information() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.information...)
}

func (c *Capture) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.errors...)
}

type captureHandler struct {
	next    slog.Handler
	capture *Capture
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.next.Enabled(ctx, level)
}

func (h *captureHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelInfo {
		h.capture.record(record.Level, record.Message)
	}

	if !h.next.Enabled(ctx, record.Level) {
		return nil
	}

	return h.next.Handle(ctx, record)
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{next: h.next.WithAttrs(attrs), capture: h.capture}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{next: h.next.WithGroup(name), capture: h.capture}
}
