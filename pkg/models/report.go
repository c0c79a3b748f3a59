package models

import "time"

// StepReport is the outcome of one step instance. Reports are built bottom-up
// and never mutated once the enclosing execution is terminal.
type StepReport struct {
	StepID          string         `json:"step_id"`
	Name            string         `json:"name"`
	Type            string         `json:"type,omitempty"`
	TargetName      string         `json:"target_name,omitempty"`
	Status          Status         `json:"status"`
	FailureReason   FailureReason  `json:"failure_reason,omitempty"`
	StartTime       time.Time      `json:"start_time"`
	Duration        time.Duration  `json:"duration"`
	EvaluatedInputs map[string]any `json:"evaluated_inputs,omitempty"`
	Outputs         map[string]any `json:"outputs,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	Information     []string       `json:"information,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
	Children        []*StepReport  `json:"children,omitempty"`
}

// NewNotExecutedReport mirrors the step tree with every node NotExecuted.
func NewNotExecutedReport(step *Step) *StepReport {
	report := &StepReport{
		StepID:     step.ID,
		Name:       step.Name,
		Type:       step.ActionType,
		TargetName: step.Target,
		Status:     StatusNotExecuted,
	}

	for _, child := range step.Children {
		report.Children = append(report.Children, NewNotExecutedReport(child))
	}

	return report
}

// ChildrenStatus aggregates the statuses of the direct children.
func (r *StepReport) ChildrenStatus() Status {
	statuses := make([]Status, 0, len(r.Children))
	for _, child := range r.Children {
		statuses = append(statuses, child.Status)
	}

	return Worst(statuses...)
}
