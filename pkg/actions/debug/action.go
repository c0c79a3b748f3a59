// Package debug provides an action that logs what a step sees.
package debug

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string { return "debug" }

func (*ActionFactory) Name() string { return "Debug" }

func (*ActionFactory) Description() string {
	return "Logs the evaluated inputs and the target of the step."
}

func (*ActionFactory) Schema() map[string]any { return nil }

func (*ActionFactory) Create(_ context.Context, request protocol.ActionRequest) (protocol.Action, error) {
	return &Action{
		inputs: request.Inputs,
		target: request.Target,
		logger: request.Log().With(slog.String("action_type", "debug")),
	}, nil
}

type Action struct {
	inputs protocol.Inputs
	target *models.Target
	logger *slog.Logger
}

func (*Action) ValidateInputs() []string { return nil }

// Execute logs one line per input, sorted by name, then the target when set.
func (a *Action) Execute(ctx context.Context) protocol.ActionResult {
	for _, key := range slices.Sorted(maps.Keys(a.inputs)) {
		a.logger.InfoContext(ctx, fmt.Sprintf("%s : [%s]", key, a.inputs.String(key)))
	}

	if a.target != nil {
		a.logger.InfoContext(ctx, fmt.Sprintf("target : [%s] %s", a.target.Name, a.target.URL))
	}

	return protocol.Ok(nil)
}
