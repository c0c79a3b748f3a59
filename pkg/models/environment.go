package models

// Target is a named connection endpoint an action runs against.
type Target struct {
	Name       string            `json:"name"                 yaml:"name"                 validate:"required"`
	URL        string            `json:"url"                  yaml:"url"                  validate:"required"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Property returns the named property or fallback when absent.
func (t Target) Property(key, fallback string) string {
	if value, ok := t.Properties[key]; ok {
		return value
	}

	return fallback
}

// Environment is a named collection of targets.
type Environment struct {
	Name        string   `json:"name"                  yaml:"name"                  validate:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Targets     []Target `json:"targets"               yaml:"targets"               validate:"dive"`
}

// Target looks up a target by name.
func (e Environment) Target(name string) (Target, bool) {
	for _, target := range e.Targets {
		if target.Name == name {
			return target, true
		}
	}

	return Target{}, false
}
