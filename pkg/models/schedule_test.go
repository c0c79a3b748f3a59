package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedule(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		cronExpression string
		maxDelay       time.Duration
	}{
		{name: "every minute", cronExpression: "* * * * *", maxDelay: time.Minute},
		{name: "every 5 minutes", cronExpression: "*/5 * * * *", maxDelay: 5 * time.Minute},
		{name: "hourly descriptor", cronExpression: "@hourly", maxDelay: time.Hour},
		{name: "every descriptor", cronExpression: "@every 10m", maxDelay: 10 * time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			before := time.Now().UTC()
			schedule, err := NewSchedule("sched-1", "campaign-1", "staging", tc.cronExpression)
			require.NoError(t, err)

			assert.Equal(t, "campaign-1", schedule.CampaignID)
			assert.Equal(t, "staging", schedule.Environment)
			assert.True(t, schedule.Active)
			assert.True(t, schedule.NextDueAt.After(before))
			assert.False(t, schedule.NextDueAt.After(before.Add(tc.maxDelay+time.Second)))
		})
	}
}

func TestNewSchedule_InvalidCron(t *testing.T) {
	t.Parallel()

	_, err := NewSchedule("sched-1", "campaign-1", "", "not a cron")
	assert.Error(t, err)
}

func TestSchedule_IsDue(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	schedule := &Schedule{ID: "s", CampaignID: "c", CronExpression: "* * * * *", Active: true, NextDueAt: now.Add(-time.Second)}

	assert.True(t, schedule.IsDue(now))

	schedule.Active = false
	assert.False(t, schedule.IsDue(now))

	schedule.Active = true
	schedule.NextDueAt = now.Add(time.Minute)
	assert.False(t, schedule.IsDue(now))

	schedule.NextDueAt = time.Time{}
	assert.False(t, schedule.IsDue(now))
}

func TestSchedule_Advance(t *testing.T) {
	t.Parallel()

	reference := time.Date(2024, 3, 10, 12, 0, 30, 0, time.UTC)
	schedule := &Schedule{ID: "s", CampaignID: "c", CronExpression: "*/15 * * * *", Active: true}

	require.NoError(t, schedule.Advance(reference))
	assert.Equal(t, time.Date(2024, 3, 10, 12, 15, 0, 0, time.UTC), schedule.NextDueAt)
}

func TestSchedule_Validate(t *testing.T) {
	t.Parallel()

	valid := &Schedule{ID: "s", CampaignID: "c", CronExpression: "0 9 * * 1"}
	require.NoError(t, valid.Validate())

	assert.ErrorIs(t, (&Schedule{CampaignID: "c", CronExpression: "* * * * *"}).Validate(), ErrInvalidSchedule)
	assert.ErrorIs(t, (&Schedule{ID: "s", CampaignID: "c", CronExpression: "61 * * * *"}).Validate(), ErrInvalidSchedule)
}
