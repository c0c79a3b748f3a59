// Package scheduler periodically runs the campaigns whose schedules are due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/persistence"
)

const (
	DefaultInterval = time.Minute
	DefaultUser     = "scheduler"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Runner is the campaign engine as seen by the scheduler.
type Runner interface {
	ExecuteByID(ctx context.Context, campaignID, environment, userID string) (*models.CampaignExecution, error)
	IsRunning(campaignID string) bool
}

type Config struct {
	Interval time.Duration
	// User is the identity recorded as the trigger of scheduled executions.
	User string
}

// Scheduler polls the schedule store on a fixed interval. A campaign still
// running when its schedule comes due again is skipped for that tick.
type Scheduler struct {
	store  persistence.ScheduleStore
	runner Runner
	logger *slog.Logger
	config Config
	now    func() time.Time

	mu       sync.Mutex
	cron     *cron.Cron
	cancel   context.CancelFunc
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

func New(store persistence.ScheduleStore, runner Runner, logger *slog.Logger, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	if config.User == "" {
		config.User = DefaultUser
	}

	return &Scheduler{
		store:    store,
		runner:   runner,
		logger:   logger.With("module", "scheduler"),
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[string]struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{logger: s.logger}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.config.Interval), func() {
		s.Tick(runCtx)
	})
	if err != nil {
		cancel()
		s.cron = nil

		return fmt.Errorf("failed to add scheduler tick: %w", err)
	}

	s.cancel = cancel
	s.cron.Start()

	s.logger.InfoContext(ctx, "Scheduler started", "interval", s.config.Interval)

	return nil
}

// Stop halts the ticks, cancels the scheduled executions still running and
// waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	scheduler, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if scheduler == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping scheduler")

	stopped := scheduler.Stop()
	cancel()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick launches every due schedule and returns the campaign ids it started.
func (s *Scheduler) Tick(ctx context.Context) []string {
	schedules, err := s.store.Schedules(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list schedules", "error", err)

		return nil
	}

	now := s.now()

	var launched []string

	for _, schedule := range schedules {
		if !schedule.Active || !schedule.IsDue(now) {
			continue
		}

		logger := s.logger.With("schedule_id", schedule.ID, "campaign_id", schedule.CampaignID)

		if s.launch(ctx, schedule, logger) {
			launched = append(launched, schedule.CampaignID)
		}

		if err := schedule.Advance(now); err != nil {
			logger.ErrorContext(ctx, "Failed to compute next due time", "error", err)

			continue
		}

		if err := s.store.SaveSchedule(ctx, schedule); err != nil {
			logger.ErrorContext(ctx, "Failed to save schedule", "error", err)
		}
	}

	return launched
}

// Wait blocks until the executions launched so far are done.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) launch(ctx context.Context, schedule *models.Schedule, logger *slog.Logger) bool {
	s.mu.Lock()
	if _, running := s.inflight[schedule.CampaignID]; running || s.runner.IsRunning(schedule.CampaignID) {
		s.mu.Unlock()
		logger.InfoContext(ctx, "Campaign still running, skipping this tick")

		return false
	}

	s.inflight[schedule.CampaignID] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	logger.InfoContext(ctx, "Launching scheduled campaign", "due_at", schedule.NextDueAt)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, schedule.CampaignID)
			s.mu.Unlock()
		}()

		report, err := s.runner.ExecuteByID(ctx, schedule.CampaignID, schedule.Environment, s.config.User)
		if err != nil {
			logger.ErrorContext(ctx, "Scheduled campaign failed to run", "error", err)

			return
		}

		logger.InfoContext(ctx, "Scheduled campaign finished",
			"campaign_execution_id", report.ID, "status", report.Status.String())
	}()

	return true
}

// cronLogger routes the cron job wrappers' logs to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
