// Package contextput provides an action publishing values to later steps.
package contextput

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string { return "context-put" }

func (*ActionFactory) Name() string { return "Context put" }

func (*ActionFactory) Description() string {
	return "Copies its entries into the step outputs so later steps can reference them."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entries": map[string]any{
				"type":        "object",
				"description": "Values to publish. Values support templating.",
				"examples": []map[string]any{
					{"token": "{{ .outputs.login.token }}"},
					{"user_id": "42", "retries": 3},
				},
			},
		},
		"required": []string{"entries"},
	}
}

func (*ActionFactory) Create(_ context.Context, request protocol.ActionRequest) (protocol.Action, error) {
	return &Action{
		entries: request.Inputs.Map("entries"),
		logger:  request.Log().With(slog.String("action_type", "context-put")),
	}, nil
}

type Action struct {
	entries map[string]any
	logger  *slog.Logger
}

func (a *Action) ValidateInputs() []string {
	return protocol.NewValidation().
		Check(a.entries != nil, "No entries provided").
		Errors()
}

func (a *Action) Execute(ctx context.Context) protocol.ActionResult {
	outputs := maps.Clone(a.entries)

	for _, key := range slices.Sorted(maps.Keys(outputs)) {
		a.logger.InfoContext(ctx, fmt.Sprintf("Adding to context %s : %s", key, protocol.Inputs(outputs).String(key)))
	}

	return protocol.Ok(outputs)
}
