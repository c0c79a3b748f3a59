// Package execution runs scenario step trees and tracks live executions.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chutney-testing/chutney-suite/pkg/engine"
	"github.com/chutney-testing/chutney-suite/pkg/models"
)

// NewID returns a short execution id.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}

// ScenarioExecution wraps one run of a scenario: its step tree, its shared
// output context and its cancellation token.
type ScenarioExecution struct {
	scenario *models.Scenario
	executor *engine.Executor
	logger   *slog.Logger
	run      *engine.Run

	mu    sync.Mutex
	state models.ScenarioExecution
}

func NewScenarioExecution(
	id string,
	scenario *models.Scenario,
	environment string,
	userID string,
	executor *engine.Executor,
	logger *slog.Logger,
) *ScenarioExecution {
	return &ScenarioExecution{
		scenario: scenario,
		executor: executor,
		logger:   logger.With("execution_id", id, "scenario_id", scenario.ID),
		run:      engine.NewRun(id, scenario.ID, environment, engine.NewCancellationToken()),
		state: models.ScenarioExecution{
			ID:            id,
			ScenarioID:    scenario.ID,
			ScenarioTitle: scenario.Title,
			Environment:   environment,
			UserID:        userID,
			Status:        models.StatusNotExecuted,
		},
	}
}

func (s *ScenarioExecution) ID() string {
	return s.run.ID
}

// Run drives the step tree to completion or cancellation and returns the
// terminal execution. Parallel steps may use workers internally but Run
// itself blocks until the whole tree is done.
func (s *ScenarioExecution) Run(ctx context.Context) *models.ScenarioExecution {
	s.mu.Lock()
	s.state.Status = models.StatusRunning
	s.state.StartTime = time.Now().UTC()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Scenario execution started")

	report := s.executor.Execute(ctx, s.run, s.scenario.Root)

	s.mu.Lock()
	s.state.Report = report
	s.state.Status = report.Status
	s.state.ErrorMessage = report.ErrorMessage
	s.state.EndTime = time.Now().UTC()
	final := s.state
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Scenario execution finished",
		slog.String("status", final.Status.String()),
		slog.Duration("duration", final.Duration()))

	return &final
}

// Cancel is idempotent and has no effect once Run has returned.
func (s *ScenarioExecution) Cancel() {
	s.run.Token.Cancel()
}

// Snapshot returns the current state. Its report is nil while running.
func (s *ScenarioExecution) Snapshot() models.ScenarioExecution {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}
