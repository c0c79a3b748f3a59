package models

import (
	"encoding/json"
	"fmt"
)

// Status is the closed set of outcomes a step, scenario or campaign execution can report.
type Status string

const (
	StatusNotExecuted Status = "NOT_EXECUTED"
	StatusRunning     Status = "RUNNING"
	StatusSuccess     Status = "SUCCESS"
	StatusStopped     Status = "STOPPED"
	StatusFailure     Status = "FAILURE"
)

// rank orders statuses for "worst wins" aggregation:
// NotExecuted < Running < Success < Stopped < Failure.
// Running is transient and never survives a finished aggregation.
func (s Status) rank() int {
	switch s {
	case StatusNotExecuted:
		return 0
	case StatusRunning:
		return 1
	case StatusSuccess:
		return 2
	case StatusStopped:
		return 3
	case StatusFailure:
		return 4
	default:
		return -1
	}
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether s is a final outcome.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusStopped
}

// Worse reports whether s dominates other in aggregation.
func (s Status) Worse(other Status) bool {
	return s.rank() > other.rank()
}

func (s Status) String() string {
	return string(s)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	status := Status(raw)
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", raw)
	}

	*s = status

	return nil
}

// Worst returns the dominating status of the given ones, or NotExecuted when empty.
func Worst(statuses ...Status) Status {
	worst := StatusNotExecuted

	for _, status := range statuses {
		if status.Worse(worst) {
			worst = status
		}
	}

	return worst
}

// FailureReason distinguishes the kinds of Failure a step report can carry.
type FailureReason string

const (
	FailureReasonNone       FailureReason = ""
	FailureReasonValidation FailureReason = "validation"
	FailureReasonAction     FailureReason = "action"
	FailureReasonTimeout    FailureReason = "timeout"
	FailureReasonFatal      FailureReason = "fatal"
	FailureReasonResolution FailureReason = "resolution"
)
