package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

func TestRender_Coercion(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
		"user":  map[string]any{"email": "john@example.com"},
	}

	testCases := []struct {
		template string
		expected any
	}{
		{template: "{{ .name }}", expected: "John"},
		{template: "{{ .isNew }}", expected: true},
		{template: "{{ .age }}", expected: 30.0},
		{template: "{{ .user.email }}", expected: "john@example.com"},
		{template: `{"who": "{{ .name }}"}`, expected: map[string]any{"who": "John"}},
		{template: "{{ json .user }}", expected: map[string]any{"email": "john@example.com"}},
	}

	for _, tc := range testCases {
		t.Run(tc.template, func(t *testing.T) {
			t.Parallel()

			result, err := Render(tc.template, data)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestRender_Errors(t *testing.T) {
	t.Parallel()

	_, err := Render("{{ .name ", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")

	_, err = Render("{{ .missing }}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute template")

	_, err = Render("[ {{ .broken }}", map[string]any{"broken": "oops ]"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")
}

func TestRenderInputs(t *testing.T) {
	t.Parallel()

	ctx := Context{
		ExecutionID: "exec-1",
		ScenarioID:  "sc-1",
		Environment: "staging",
		Target:      &models.Target{Name: "api", URL: "http://api.local"},
		Outputs: map[string]any{
			"login": map[string]any{"token": "abc"},
		},
	}

	inputs := map[string]any{
		"literal": "42",
		"number":  7,
		"url":     "{{ .target.url }}/orders",
		"headers": map[string]any{"Authorization": "Bearer {{ .outputs.login.token }}"},
		"list":    []any{"{{ .environment }}", "static"},
		"exec":    "{{ .execution.id }}",
	}

	rendered, err := RenderInputs(inputs, ctx)
	require.NoError(t, err)

	assert.Equal(t, "42", rendered["literal"])
	assert.Equal(t, 7, rendered["number"])
	assert.Equal(t, "http://api.local/orders", rendered["url"])
	assert.Equal(t, map[string]any{"Authorization": "Bearer abc"}, rendered["headers"])
	assert.Equal(t, []any{"staging", "static"}, rendered["list"])
	assert.Equal(t, "exec-1", rendered["exec"])

	assert.Equal(t, "{{ .target.url }}/orders", inputs["url"], "source inputs must not be mutated")
}

func TestRenderInputs_MissingOutput(t *testing.T) {
	t.Parallel()

	_, err := RenderInputs(map[string]any{"token": "{{ .outputs.login.token }}"}, Context{Outputs: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input 'token'")

	rendered, err := RenderInputs(nil, Context{})
	require.NoError(t, err)
	assert.Nil(t, rendered)
}
