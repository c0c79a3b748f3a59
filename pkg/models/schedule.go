package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule marks a campaign for periodic execution.
// NextDueAt is precomputed so the scheduler tick only compares timestamps.
type Schedule struct {
	ID         string `json:"id"          yaml:"id"          validate:"required"`
	CampaignID string `json:"campaign_id" yaml:"campaign_id" validate:"required"`

	// Environment overrides the campaign default when set.
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// CronExpression uses the 5-field format (minute hour day month weekday)
	// or a descriptor such as @hourly or @every 10m.
	CronExpression string `json:"cron_expression" yaml:"cron_expression" validate:"required"`

	NextDueAt time.Time `json:"next_due_at" yaml:"next_due_at"`
	CreatedAt time.Time `json:"created_at"  yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at"  yaml:"updated_at"`

	// Inactive schedules are ignored by the scheduler.
	Active bool `json:"active" yaml:"active"`
}

// NewSchedule creates an active schedule whose first due time follows now.
func NewSchedule(id, campaignID, environment, cronExpression string) (*Schedule, error) {
	now := time.Now().UTC()
	schedule := &Schedule{
		ID:             id,
		CampaignID:     campaignID,
		Environment:    environment,
		CronExpression: cronExpression,
		CreatedAt:      now,
		UpdatedAt:      now,
		Active:         true,
	}

	if err := schedule.Advance(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// Advance moves NextDueAt to the first activation strictly after reference.
func (s *Schedule) Advance(reference time.Time) error {
	cronSchedule, err := scheduleParser.Parse(s.CronExpression)
	if err != nil {
		return err
	}

	s.NextDueAt = cronSchedule.Next(reference)
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue checks if this schedule is due for execution at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDueAt.IsZero() && !s.NextDueAt.After(now)
}

func (s *Schedule) Validate() error {
	if s.ID == "" || s.CampaignID == "" || s.CronExpression == "" {
		return ErrInvalidSchedule
	}

	if _, err := scheduleParser.Parse(s.CronExpression); err != nil {
		return errors.Join(ErrInvalidSchedule, err)
	}

	return nil
}
