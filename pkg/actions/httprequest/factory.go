package httprequest

import (
	"context"
	"net/http"
	"strings"

	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

// ActionFactory creates HTTP actions. A factory bound to a method ignores the
// method input.
type ActionFactory struct {
	method string
}

// NewActionFactory returns the generic "http-request" factory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

// NewMethodActionFactory returns a factory such as "http-get" for one method.
func NewMethodActionFactory(method string) *ActionFactory {
	return &ActionFactory{method: strings.ToUpper(method)}
}

// MethodActionFactories returns the per-method factories.
func MethodActionFactories() []*ActionFactory {
	return []*ActionFactory{
		NewMethodActionFactory(http.MethodGet),
		NewMethodActionFactory(http.MethodPost),
		NewMethodActionFactory(http.MethodPut),
		NewMethodActionFactory(http.MethodPatch),
		NewMethodActionFactory(http.MethodDelete),
	}
}

func (f *ActionFactory) Create(_ context.Context, request protocol.ActionRequest) (protocol.Action, error) {
	return newAction(f.method, request), nil
}

func (f *ActionFactory) ID() string {
	if f.method == "" {
		return "http-request"
	}

	return "http-" + strings.ToLower(f.method)
}

func (f *ActionFactory) Name() string {
	if f.method == "" {
		return "HTTP Request"
	}

	return "HTTP " + f.method
}

func (f *ActionFactory) Description() string {
	return "Sends an HTTP request to the step target and exposes status, headers and body."
}

// Schema returns the JSON schema of the step inputs.
func (f *ActionFactory) Schema() map[string]any {
	properties := map[string]any{
		"uri": map[string]any{
			"type":        "string",
			"description": "Path appended to the target URL. Supports templating with step outputs.",
			"examples": []string{
				"/users",
				"/users/{{ .outputs.create_user.body.id }}",
			},
		},
		"headers": map[string]any{
			"type":        "object",
			"description": "HTTP headers to include in the request. Values support templating.",
			"additionalProperties": map[string]any{
				"type": "string",
			},
			"examples": []map[string]string{
				{
					"Content-Type":  "application/json",
					"Authorization": "Bearer {{ .outputs.auth.body.token }}",
				},
			},
		},
		"body": map[string]any{
			"description": "Request body. Strings are sent as is, other values as JSON.",
			"examples": []any{
				`{"name": "John Doe"}`,
				map[string]any{"user_id": "{{ .outputs.create_user.body.id }}"},
			},
		},
		"timeout": map[string]any{
			"type":        "string",
			"description": "Request timeout as a Go duration.",
			"default":     defaultTimeout.String(),
		},
	}

	if f.method == "" {
		properties["method"] = map[string]any{
			"type":        "string",
			"description": "HTTP method to use",
			"default":     http.MethodGet,
			"enum":        methods,
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}
