package models

import (
	"errors"
	"fmt"
	"time"
)

type StrategyType string

const (
	StrategySequential StrategyType = "sequential"
	StrategyParallel   StrategyType = "parallel"
	StrategyRetry      StrategyType = "retry"
)

var (
	ErrInvalidStep     = errors.New("invalid step")
	ErrDuplicateStepID = errors.New("duplicate step id")
)

// RetryPolicy bounds how a retried step is re-executed.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" validate:"min=1"`
	Interval    time.Duration `json:"interval"     yaml:"interval"     validate:"min=0"`
	// Timeout caps the whole retry loop; zero means attempts are bounded only by MaxAttempts.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"min=0"`
}

// Strategy governs how a step evaluates its children.
type Strategy struct {
	Type StrategyType `json:"type" yaml:"type" validate:"omitempty,oneof=sequential parallel retry"`

	// ContinueOnFailure makes a sequential step run every child even after a failure.
	ContinueOnFailure bool `json:"continue_on_failure,omitempty" yaml:"continue_on_failure,omitempty"`

	// Parallelism overrides the engine-wide fan-out bound for a parallel step.
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty" validate:"min=0"`

	Retry *RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// Step is an immutable node of a scenario tree.
type Step struct {
	ID         string         `json:"id"                    yaml:"id"                    validate:"required"`
	Name       string         `json:"name"                  yaml:"name"                  validate:"required"`
	ActionType string         `json:"action_type,omitempty" yaml:"action_type,omitempty"`
	Target     string         `json:"target,omitempty"      yaml:"target,omitempty"`
	Inputs     map[string]any `json:"inputs,omitempty"      yaml:"inputs,omitempty"`
	Strategy   Strategy       `json:"strategy"              yaml:"strategy"`
	Children   []*Step        `json:"children,omitempty"    yaml:"children,omitempty"    validate:"dive"`

	// Timeout bounds a single action call. Zero falls back to the engine default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"min=0"`
}

// IsComposite reports whether the step has children to evaluate.
func (s *Step) IsComposite() bool {
	return len(s.Children) > 0
}

// HasAction reports whether the step invokes an action.
func (s *Step) HasAction() bool {
	return s.ActionType != ""
}

// StrategyType returns the effective strategy, sequential when unset.
func (s *Step) StrategyType() StrategyType {
	if s.Strategy.Type == "" {
		return StrategySequential
	}

	return s.Strategy.Type
}

// Validate checks the structural invariants of the whole subtree.
func (s *Step) Validate() error {
	return s.validate(make(map[string]struct{}))
}

func (s *Step) validate(seen map[string]struct{}) error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidStep)
	}

	if _, ok := seen[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStepID, s.ID)
	}

	seen[s.ID] = struct{}{}

	if !s.HasAction() && !s.IsComposite() {
		return fmt.Errorf("%w: step %s has neither an action type nor children", ErrInvalidStep, s.ID)
	}

	switch s.StrategyType() {
	case StrategySequential, StrategyParallel:
	case StrategyRetry:
		if s.Strategy.Retry == nil || s.Strategy.Retry.MaxAttempts < 1 {
			return fmt.Errorf("%w: step %s retry strategy needs max_attempts >= 1", ErrInvalidStep, s.ID)
		}

		if s.Strategy.Retry.Interval < 0 || s.Strategy.Retry.Timeout < 0 {
			return fmt.Errorf("%w: step %s retry durations must not be negative", ErrInvalidStep, s.ID)
		}
	default:
		return fmt.Errorf("%w: step %s has unknown strategy %q", ErrInvalidStep, s.ID, s.Strategy.Type)
	}

	for _, child := range s.Children {
		if child == nil {
			return fmt.Errorf("%w: step %s has a nil child", ErrInvalidStep, s.ID)
		}

		if err := child.validate(seen); err != nil {
			return err
		}
	}

	return nil
}
