package models

import "time"

// Scenario is a named step tree.
type Scenario struct {
	ID    string `json:"id"    yaml:"id"    validate:"required"`
	Title string `json:"title" yaml:"title" validate:"required"`
	Root  *Step  `json:"root"  yaml:"root"  validate:"required"`
}

// ScenarioExecution is the persisted outcome of one run of a scenario.
type ScenarioExecution struct {
	ID            string      `json:"id"`
	ScenarioID    string      `json:"scenario_id"`
	ScenarioTitle string      `json:"scenario_title"`
	Environment   string      `json:"environment"`
	UserID        string      `json:"user_id,omitempty"`
	Status        Status      `json:"status"`
	Report        *StepReport `json:"report,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       time.Time   `json:"end_time"`
}

// Duration is zero until the execution has ended.
func (e *ScenarioExecution) Duration() time.Duration {
	if e.EndTime.IsZero() {
		return 0
	}

	return e.EndTime.Sub(e.StartTime)
}
