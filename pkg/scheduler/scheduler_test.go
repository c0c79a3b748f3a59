package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chutney-testing/chutney-suite/pkg/mocks"
	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/persistence/file"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	campaignID  string
	environment string
	userID      string
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	running map[string]bool
	release chan struct{}
}

func (r *fakeRunner) ExecuteByID(ctx context.Context, campaignID, environment, userID string) (*models.CampaignExecution, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{campaignID, environment, userID})
	r.mu.Unlock()

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &models.CampaignExecution{ID: "ce-" + campaignID, CampaignID: campaignID, Status: models.StatusSuccess}, nil
}

func (r *fakeRunner) IsRunning(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.running[campaignID]
}

func (r *fakeRunner) recorded() []call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]call(nil), r.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dueSchedule(t *testing.T, id, campaignID, environment string, dueAt time.Time) *models.Schedule {
	t.Helper()

	schedule, err := models.NewSchedule(id, campaignID, environment, "@hourly")
	require.NoError(t, err)

	schedule.NextDueAt = dueAt

	return schedule
}

func TestScheduler_TickRunsDueSchedules(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	now := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	store := file.NewPersistence(t.TempDir())

	require.NoError(t, store.SaveSchedule(ctx, dueSchedule(t, "due", "c-due", "staging", now.Add(-time.Minute))))
	require.NoError(t, store.SaveSchedule(ctx, dueSchedule(t, "later", "c-later", "", now.Add(time.Hour))))

	inactive := dueSchedule(t, "inactive", "c-inactive", "", now.Add(-time.Minute))
	inactive.Active = false
	require.NoError(t, store.SaveSchedule(ctx, inactive))

	runner := &fakeRunner{}
	s := New(store, runner, discardLogger(), Config{})
	s.now = func() time.Time { return now }

	launched := s.Tick(ctx)
	s.Wait()

	assert.Equal(t, []string{"c-due"}, launched)
	assert.Equal(t, []call{{"c-due", "staging", DefaultUser}}, runner.recorded())

	schedules, err := store.Schedules(ctx)
	require.NoError(t, err)

	for _, schedule := range schedules {
		if schedule.ID == "due" {
			assert.Equal(t, time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC), schedule.NextDueAt.UTC())
		}
	}

	// the advanced schedule is no longer due at the same instant
	assert.Empty(t, s.Tick(ctx))
}

func TestScheduler_SkipsRunningCampaigns(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	now := time.Now().UTC()
	store := file.NewPersistence(t.TempDir())

	require.NoError(t, store.SaveSchedule(ctx, dueSchedule(t, "busy", "c-busy", "", now.Add(-time.Minute))))

	runner := &fakeRunner{running: map[string]bool{"c-busy": true}}
	s := New(store, runner, discardLogger(), Config{User: "robot"})

	assert.Empty(t, s.Tick(ctx))
	assert.Empty(t, runner.recorded())

	schedules, err := store.Schedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.True(t, schedules[0].NextDueAt.After(now), "skipped schedule is not queued")
}

func TestScheduler_SkipsOwnInflightExecutions(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	now := time.Now().UTC()
	store := file.NewPersistence(t.TempDir())

	schedule := dueSchedule(t, "slow", "c-slow", "", now.Add(-time.Minute))
	schedule.CronExpression = "@every 1s"
	require.NoError(t, store.SaveSchedule(ctx, schedule))

	runner := &fakeRunner{release: make(chan struct{})}
	s := New(store, runner, discardLogger(), Config{})

	assert.Equal(t, []string{"c-slow"}, s.Tick(ctx))

	s.now = func() time.Time { return now.Add(time.Hour) }
	assert.Empty(t, s.Tick(ctx))

	close(runner.release)
	s.Wait()

	assert.Len(t, runner.recorded(), 1)
}

func TestScheduler_StoreError(t *testing.T) {
	t.Parallel()

	store := &mocks.MockPersistence{}
	store.On("Schedules", mock.Anything).Return(nil, errors.New("db down"))

	s := New(store, &fakeRunner{}, discardLogger(), Config{})

	assert.Empty(t, s.Tick(t.Context()))
	store.AssertExpectations(t)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := file.NewPersistence(t.TempDir())
	require.NoError(t, store.SaveSchedule(ctx, dueSchedule(t, "due", "c-1", "", time.Now().UTC().Add(-time.Minute))))

	runner := &fakeRunner{}
	s := New(store, runner, discardLogger(), Config{Interval: 50 * time.Millisecond})

	require.NoError(t, s.Start(ctx))
	require.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)

	assert.Eventually(t, func() bool { return len(runner.recorded()) == 1 }, 5*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))
}
