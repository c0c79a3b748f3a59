// Package jsonvalidation checks a JSON document against a JSON schema.
package jsonvalidation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string { return "json-validation" }

func (*ActionFactory) Name() string { return "JSON validation" }

func (*ActionFactory) Description() string {
	return "Validates a JSON document against a JSON schema."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"json": map[string]any{
				"description": "Document to validate, as JSON text or an already decoded value.",
			},
			"schema": map[string]any{
				"description": "JSON schema, as JSON text or an object.",
			},
		},
		"required": []string{"json", "schema"},
	}
}

func (*ActionFactory) Create(_ context.Context, request protocol.ActionRequest) (protocol.Action, error) {
	return &Action{
		document: request.Inputs["json"],
		schema:   request.Inputs["schema"],
		logger:   request.Log().With(slog.String("action_type", "json-validation")),
	}, nil
}

type Action struct {
	document any
	schema   any
	logger   *slog.Logger
}

func (a *Action) ValidateInputs() []string {
	return protocol.NewValidation().
		Check(a.document != nil, "No json provided").
		Check(a.schema != nil, "No schema provided").
		Errors()
}

func (a *Action) Execute(ctx context.Context) protocol.ActionResult {
	result, err := gojsonschema.Validate(loader(a.schema), loader(a.document))
	if err != nil {
		a.logger.ErrorContext(ctx, fmt.Sprintf("Cannot validate document: %s", err))

		return protocol.Ko(err.Error())
	}

	if result.Valid() {
		a.logger.InfoContext(ctx, "Document is valid")

		return protocol.Ok(nil)
	}

	for _, violation := range result.Errors() {
		a.logger.ErrorContext(ctx, violation.String())
	}

	return protocol.Ko(fmt.Sprintf("document does not match schema: %d error(s)", len(result.Errors())))
}

// loader reads strings as JSON text and anything else as a decoded value.
func loader(value any) gojsonschema.JSONLoader {
	if text, ok := value.(string); ok {
		return gojsonschema.NewStringLoader(text)
	}

	return gojsonschema.NewGoLoader(value)
}
