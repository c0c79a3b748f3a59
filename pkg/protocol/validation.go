package protocol

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

// Validation accumulates precondition violations for ValidateInputs.
//
//	return protocol.NewValidation().
//		NotBlank("topic", a.topic).
//		Target(a.target).
//		Errors()
type Validation struct {
	errors []string
}

func NewValidation() *Validation {
	return &Validation{}
}

func (v *Validation) NotBlank(name, value string) *Validation {
	if strings.TrimSpace(value) == "" {
		v.errors = append(v.errors, fmt.Sprintf("No %s provided", name))
	}

	return v
}

// Target checks that a target was resolved and carries a parsable URL.
func (v *Validation) Target(target *models.Target) *Validation {
	if target == nil {
		v.errors = append(v.errors, "No target provided")

		return v
	}

	if strings.TrimSpace(target.URL) == "" {
		v.errors = append(v.errors, fmt.Sprintf("No url defined on target %s", target.Name))

		return v
	}

	if _, err := url.Parse(target.URL); err != nil {
		v.errors = append(v.errors, fmt.Sprintf("Invalid url on target %s: %s", target.Name, err))
	}

	return v
}

// Scheme checks that the target URL uses one of the given schemes.
func (v *Validation) Scheme(target *models.Target, schemes ...string) *Validation {
	if target == nil {
		return v
	}

	parsed, err := url.Parse(target.URL)
	if err != nil {
		return v
	}

	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return v
		}
	}

	v.errors = append(v.errors, fmt.Sprintf("Target %s url scheme must be one of %s", target.Name, strings.Join(schemes, ", ")))

	return v
}

func (v *Validation) Duration(name, value string) *Validation {
	if value == "" {
		return v
	}

	if _, err := time.ParseDuration(value); err != nil {
		v.errors = append(v.errors, fmt.Sprintf("Invalid %s duration %q", name, value))
	}

	return v
}

// Check records message when ok is false.
func (v *Validation) Check(ok bool, message string) *Validation {
	if !ok {
		v.errors = append(v.errors, message)
	}

	return v
}

// Schema validates data against a JSON schema document.
func (v *Validation) Schema(schema map[string]any, data any) *Validation {
	v.errors = append(v.errors, ValidateSchema(schema, data)...)

	return v
}

func (v *Validation) Errors() []string {
	return v.errors
}

// ValidateSchema returns one message per schema violation, nil when data is valid.
func ValidateSchema(schema map[string]any, data any) []string {
	if len(schema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return []string{fmt.Sprintf("schema validation failed: %s", err)}
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		messages = append(messages, resultErr.String())
	}

	return messages
}
