package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Inputs are the rendered input values of a step.
type Inputs map[string]any

// String returns the named input as a string, formatting scalars.
func (in Inputs) String(key string) string {
	switch value := in[key].(type) {
	case nil:
		return ""
	case string:
		return value
	case fmt.Stringer:
		return value.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}

		return string(encoded)
	default:
		return fmt.Sprint(value)
	}
}

// Int returns the named input as an int, or fallback when absent or malformed.
func (in Inputs) Int(key string, fallback int) int {
	switch value := in[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fallback
		}

		return parsed
	default:
		return fallback
	}
}

// Bool returns the named input as a bool, or fallback when absent or malformed.
func (in Inputs) Bool(key string, fallback bool) bool {
	switch value := in[key].(type) {
	case bool:
		return value
	case string:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fallback
		}

		return parsed
	default:
		return fallback
	}
}

// Duration parses the named input ("500ms", "2s") or returns fallback.
func (in Inputs) Duration(key string, fallback time.Duration) time.Duration {
	switch value := in[key].(type) {
	case time.Duration:
		return value
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fallback
		}

		return parsed
	default:
		return fallback
	}
}

// Map returns the named input when it is an object.
func (in Inputs) Map(key string) map[string]any {
	if value, ok := in[key].(map[string]any); ok {
		return value
	}

	return nil
}

// StringMap returns an object input with every value formatted as a string.
func (in Inputs) StringMap(key string) map[string]string {
	raw := in.Map(key)
	if raw == nil {
		return nil
	}

	result := make(map[string]string, len(raw))
	for k := range raw {
		result[k] = Inputs(raw).String(k)
	}

	return result
}

// Slice returns the named input when it is a list.
func (in Inputs) Slice(key string) []any {
	if value, ok := in[key].([]any); ok {
		return value
	}

	return nil
}
