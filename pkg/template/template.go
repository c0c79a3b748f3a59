// Package template renders step inputs against the scenario execution context.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

// Context is the data visible to input templates.
type Context struct {
	ExecutionID string
	ScenarioID  string
	Environment string
	Target      *models.Target
	// Outputs holds the outputs merged so far, keyed by step name.
	Outputs map[string]any
}

func (c Context) data() map[string]any {
	data := map[string]any{
		"outputs":     c.Outputs,
		"environment": c.Environment,
		"env":         getEnvVars(),
		"execution": map[string]any{
			"id":          c.ExecutionID,
			"scenario_id": c.ScenarioID,
		},
	}

	if c.Target != nil {
		data["target"] = map[string]any{
			"name":       c.Target.Name,
			"url":        c.Target.URL,
			"properties": c.Target.Properties,
		}
	}

	return data
}

// RenderInputs renders every templated string of inputs, descending into
// nested maps and lists. Values without template actions are kept untouched.
func RenderInputs(inputs map[string]any, ctx Context) (map[string]any, error) {
	if inputs == nil {
		return nil, nil
	}

	data := ctx.data()
	rendered := make(map[string]any, len(inputs))

	for key, value := range inputs {
		v, err := renderValue(value, data)
		if err != nil {
			return nil, fmt.Errorf("input '%s': %w", key, err)
		}

		rendered[key] = v
	}

	return rendered, nil
}

func renderValue(value any, data map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		if !NeedsTemplating(v) {
			return v, nil
		}

		return Render(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))

		for key, item := range v {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			out[key] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}

// NeedsTemplating reports whether input holds a template action.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// Render executes templateStr and coerces the output into JSON, a number or
// a bool when it parses as one.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("input").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}
				num := make([]byte, 1)
				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
			"json": func(v any) (string, error) {
				encoded, err := json.Marshal(v)

				return string(encoded), err
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
