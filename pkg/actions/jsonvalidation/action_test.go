package jsonvalidation_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chutney-testing/chutney-suite/pkg/actions/jsonvalidation"
	chutneylog "github.com/chutney-testing/chutney-suite/pkg/log"
	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

const personSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "age": {"type": "integer", "minimum": 0}
  },
  "required": ["name"]
}`

func TestJSONValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		document any
		schema   any
		status   models.Status
		errors   int
	}{
		{
			name:     "valid text document",
			document: `{"name": "alice", "age": 30}`,
			schema:   personSchema,
			status:   models.StatusSuccess,
		},
		{
			name:     "valid decoded document",
			document: map[string]any{"name": "bob"},
			schema:   map[string]any{"type": "object", "required": []any{"name"}},
			status:   models.StatusSuccess,
		},
		{
			name:     "violations",
			document: `{"age": -1}`,
			schema:   personSchema,
			status:   models.StatusFailure,
			errors:   2,
		},
		{
			name:     "malformed json",
			document: `{"name": `,
			schema:   personSchema,
			status:   models.StatusFailure,
			errors:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, capture := chutneylog.NewCapture(slog.New(slog.NewTextHandler(io.Discard, nil)))

			action, err := jsonvalidation.NewActionFactory().Create(t.Context(), protocol.ActionRequest{
				Inputs: protocol.Inputs{"json": tt.document, "schema": tt.schema},
				Logger: logger,
			})
			require.NoError(t, err)
			require.Empty(t, action.ValidateInputs())

			result := action.Execute(t.Context())

			assert.Equal(t, tt.status, result.Status)
			assert.Len(t, capture.Errors(), tt.errors)
		})
	}
}

func TestJSONValidation_MissingInputs(t *testing.T) {
	t.Parallel()

	action, err := jsonvalidation.NewActionFactory().Create(t.Context(), protocol.ActionRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"No json provided", "No schema provided"}, action.ValidateInputs())
}
