// Package basic provides the control actions every scenario can use without a target.
package basic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

// SuccessFactory builds actions that always succeed.
type SuccessFactory struct{}

func NewSuccessFactory() *SuccessFactory { return &SuccessFactory{} }

func (*SuccessFactory) ID() string             { return "success" }
func (*SuccessFactory) Name() string           { return "Success" }
func (*SuccessFactory) Description() string    { return "Always succeeds." }
func (*SuccessFactory) Schema() map[string]any { return nil }

func (*SuccessFactory) Create(_ context.Context, _ protocol.ActionRequest) (protocol.Action, error) {
	return &successAction{}, nil
}

type successAction struct{}

func (*successAction) ValidateInputs() []string { return nil }

func (*successAction) Execute(context.Context) protocol.ActionResult {
	return protocol.Ok(nil)
}

// FailFactory builds actions that always fail.
type FailFactory struct{}

func NewFailFactory() *FailFactory { return &FailFactory{} }

func (*FailFactory) ID() string             { return "fail" }
func (*FailFactory) Name() string           { return "Fail" }
func (*FailFactory) Description() string    { return "Always fails." }
func (*FailFactory) Schema() map[string]any { return nil }

func (*FailFactory) Create(_ context.Context, request protocol.ActionRequest) (protocol.Action, error) {
	return &failAction{logger: request.Log()}, nil
}

type failAction struct {
	logger *slog.Logger
}

func (*failAction) ValidateInputs() []string { return nil }

func (a *failAction) Execute(ctx context.Context) protocol.ActionResult {
	a.logger.ErrorContext(ctx, "Failed")

	return protocol.Ko("Failed")
}

// SleepFactory builds actions pausing the scenario for a duration.
type SleepFactory struct{}

func NewSleepFactory() *SleepFactory { return &SleepFactory{} }

func (*SleepFactory) ID() string          { return "sleep" }
func (*SleepFactory) Name() string        { return "Sleep" }
func (*SleepFactory) Description() string { return "Waits for the given duration." }

func (*SleepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration": map[string]any{
				"type":        "string",
				"description": "How long to wait, as a Go duration.",
				"examples":    []string{"500ms", "5s", "1m"},
			},
		},
		"required": []string{"duration"},
	}
}

func (*SleepFactory) Create(_ context.Context, request protocol.ActionRequest) (protocol.Action, error) {
	return &sleepAction{
		raw:    request.Inputs.String("duration"),
		logger: request.Log(),
	}, nil
}

type sleepAction struct {
	raw    string
	logger *slog.Logger
}

func (a *sleepAction) ValidateInputs() []string {
	return protocol.NewValidation().
		NotBlank("duration", a.raw).
		Duration("duration", a.raw).
		Errors()
}

func (a *sleepAction) Execute(ctx context.Context) protocol.ActionResult {
	duration, err := time.ParseDuration(a.raw)
	if err != nil {
		return protocol.Ko(err.Error())
	}

	a.logger.InfoContext(ctx, fmt.Sprintf("Start sleeping for %s", duration))

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		a.logger.InfoContext(ctx, "Stop sleeping")

		return protocol.Ok(nil)
	case <-ctx.Done():
		return protocol.Ko(fmt.Sprintf("sleep interrupted: %s", ctx.Err()))
	}
}
