package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrScenarioNotFound  = errors.New("scenario not found")
	ErrExecutionNotFound = errors.New("campaign execution not found")
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrInvalidID         = errors.New("invalid id")
)

// StoreError wraps a persistence failure with the operation and entity involved.
type StoreError struct {
	Op     string // Operation being performed (e.g., "CampaignByID", "SaveSchedule")
	Entity string // campaign, scenario, execution, schedule
	ID     string
	Err    error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound reports whether err means the requested entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrScenarioNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrScheduleNotFound)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsScenarioNotFound(err error) bool {
	return errors.Is(err, ErrScenarioNotFound)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
