package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

func TestValidation(t *testing.T) {
	t.Parallel()

	target := &models.Target{Name: "broker", URL: "tcp://localhost:9092"}

	errs := NewValidation().
		NotBlank("topic", "orders").
		NotBlank("payload", "  ").
		Target(target).
		Scheme(target, "http", "https").
		Duration("timeout", "abc").
		Check(false, "custom").
		Errors()

	assert.Equal(t, []string{
		"No payload provided",
		"Target broker url scheme must be one of http, https",
		`Invalid timeout duration "abc"`,
		"custom",
	}, errs)
}

func TestValidation_MissingTarget(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"No target provided"}, NewValidation().Target(nil).Errors())
	assert.Equal(t, []string{"No url defined on target t"}, NewValidation().Target(&models.Target{Name: "t"}).Errors())
}

func TestValidation_IsPure(t *testing.T) {
	t.Parallel()

	validate := func() []string {
		return NewValidation().NotBlank("a", "").Duration("b", "1x").Errors()
	}

	assert.Equal(t, validate(), validate())
}

func TestValidateSchema(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url":     map[string]any{"type": "string"},
			"retries": map[string]any{"type": "integer"},
		},
	}

	assert.Empty(t, ValidateSchema(schema, map[string]any{"url": "http://x"}))
	assert.Empty(t, ValidateSchema(nil, map[string]any{}))

	errs := ValidateSchema(schema, map[string]any{"retries": "three"})
	assert.Len(t, errs, 2)
}

func TestInputs(t *testing.T) {
	t.Parallel()

	in := Inputs{
		"name":    "alice",
		"count":   float64(3),
		"digits":  "42",
		"flag":    "true",
		"wait":    "150ms",
		"headers": map[string]any{"X-Id": 7},
		"items":   []any{1, 2},
		"body":    map[string]any{"a": 1},
	}

	assert.Equal(t, "alice", in.String("name"))
	assert.Equal(t, "", in.String("missing"))
	assert.Equal(t, `{"a":1}`, in.String("body"))
	assert.Equal(t, 3, in.Int("count", 0))
	assert.Equal(t, 42, in.Int("digits", 0))
	assert.Equal(t, 9, in.Int("name", 9))
	assert.True(t, in.Bool("flag", false))
	assert.Equal(t, 150*time.Millisecond, in.Duration("wait", 0))
	assert.Equal(t, time.Second, in.Duration("name", time.Second))
	assert.Equal(t, map[string]string{"X-Id": "7"}, in.StringMap("headers"))
	assert.Len(t, in.Slice("items"), 2)
	assert.Nil(t, in.Map("name"))
}

func TestOkKo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, models.StatusSuccess, Ok(map[string]any{"a": 1}).Status)

	ko := Ko("boom")
	assert.Equal(t, models.StatusFailure, ko.Status)
	assert.Equal(t, "boom", ko.Message)
}
