// Package campaign runs campaigns: ordered sets of scenarios executed against
// one environment, tracked in the running execution registry while live.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/chutney-testing/chutney-suite/pkg/engine"
	"github.com/chutney-testing/chutney-suite/pkg/eventbus"
	"github.com/chutney-testing/chutney-suite/pkg/events"
	"github.com/chutney-testing/chutney-suite/pkg/execution"
	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/otelhelper"
	"github.com/chutney-testing/chutney-suite/pkg/persistence"
)

const DefaultScenarioWorkers = 4

// Store is the persistence the engine reads campaigns and scenarios from and
// writes execution reports to.
type Store interface {
	persistence.CampaignStore
	persistence.ScenarioStore
	persistence.ExecutionStore
}

// Environments looks environments up by name. *environment.Resolver
// implements it.
type Environments interface {
	Environment(name string) (models.Environment, error)
}

type Config struct {
	// ScenarioWorkers bounds the scenarios run at once by a parallel campaign.
	ScenarioWorkers int
	// Environments checks the environment of every execution before it
	// starts. Nil accepts any environment.
	Environments Environments
}

type Engine struct {
	store     Store
	registry  *execution.Registry
	executor  *engine.Executor
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
	config    Config

	mu   sync.RWMutex
	live map[string]*campaignRun // by campaign id
}

// NewEngine builds a campaign engine. publisher may be nil.
func NewEngine(
	store Store,
	registry *execution.Registry,
	executor *engine.Executor,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	config Config,
) *Engine {
	if config.ScenarioWorkers <= 0 {
		config.ScenarioWorkers = DefaultScenarioWorkers
	}

	return &Engine{
		store:     store,
		registry:  registry,
		executor:  executor,
		publisher: publisher,
		logger:    logger.With("module", "campaign_engine"),
		tracer:    otelhelper.Tracer("chutney.campaign"),
		config:    config,
		live:      make(map[string]*campaignRun),
	}
}

// ExecuteByName runs every campaign whose title matches pattern, one after
// the other. pattern is either a title (case-insensitive) or a glob. A
// campaign that cannot be started does not stop the others: it is reported
// as a failed, unsaved execution carrying the cause in Error.
func (e *Engine) ExecuteByName(ctx context.Context, pattern, environment, userID string) ([]*models.CampaignExecution, error) {
	campaigns, err := e.store.Campaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}

	matched := matchCampaigns(campaigns, pattern)
	if len(matched) == 0 {
		return nil, &ResolutionError{Kind: "campaign", Name: pattern, Err: persistence.ErrCampaignNotFound}
	}

	reports := make([]*models.CampaignExecution, 0, len(matched))

	for _, campaign := range matched {
		report, err := e.execute(ctx, campaign, environment, userID, nil)
		if err != nil {
			e.logger.ErrorContext(ctx, "Campaign could not be executed",
				"campaign_id", campaign.ID, "error", err)

			report = notStarted(campaign, environment, userID, err)
		}

		reports = append(reports, report)
	}

	return reports, nil
}

func (e *Engine) ExecuteByID(ctx context.Context, campaignID, environment, userID string) (*models.CampaignExecution, error) {
	campaign, err := e.store.CampaignByID(ctx, campaignID)
	if err != nil {
		if persistence.IsCampaignNotFound(err) {
			return nil, &ResolutionError{Kind: "campaign", Name: campaignID, Err: err}
		}

		return nil, err
	}

	return e.execute(ctx, campaign, environment, userID, nil)
}

// ReplayCampaignExecution re-runs the scenarios of a previous execution that
// did not succeed. Succeeded scenarios are carried over as they were.
func (e *Engine) ReplayCampaignExecution(ctx context.Context, executionID, userID string) (*models.CampaignExecution, error) {
	previous, err := e.store.CampaignExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if len(previous.FailedScenarioIDs()) == 0 {
		return nil, fmt.Errorf("%w: execution %s", ErrNoFailedScenario, executionID)
	}

	campaign, err := e.store.CampaignByID(ctx, previous.CampaignID)
	if err != nil {
		if persistence.IsCampaignNotFound(err) {
			return nil, &ResolutionError{Kind: "campaign", Name: previous.CampaignID, Err: err}
		}

		return nil, err
	}

	return e.execute(ctx, campaign, previous.Environment, userID, previous)
}

// StopExecution cancels a running campaign or scenario execution. It reports
// whether anything was running; stopping an unknown or finished execution is
// not an error.
func (e *Engine) StopExecution(ctx context.Context, executionID string) bool {
	entry, found := e.registry.Lookup(executionID)
	running := e.registry.Cancel(executionID)

	if !running {
		e.logger.InfoContext(ctx, "Stop requested for an execution that is not running", "execution_id", executionID)
	} else {
		e.logger.InfoContext(ctx, "Stop requested", "execution_id", executionID, "kind", string(entry.Kind))
	}

	campaignID := ""
	if found {
		campaignID = entry.CampaignID
	}

	e.publish(ctx, executionID, events.ExecutionStopRequested{
		BaseEvent: events.NewBaseEvent(events.ExecutionStopRequestedEvent, campaignID, executionID),
		Running:   running,
	})

	return running
}

// GetLastCampaignExecution returns the live execution of the campaign when
// there is one, otherwise the most recent stored one.
func (e *Engine) GetLastCampaignExecution(ctx context.Context, campaignID string) (*models.CampaignExecution, error) {
	e.mu.RLock()
	run, ok := e.live[campaignID]
	e.mu.RUnlock()

	if ok {
		return run.snapshot(), nil
	}

	executions, err := e.store.CampaignExecutions(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if len(executions) == 0 {
		return nil, persistence.NewStoreError("GetLastCampaignExecution", "campaign", campaignID, persistence.ErrExecutionNotFound)
	}

	for _, candidate := range executions {
		if candidate.Status == models.StatusRunning {
			return candidate, nil
		}
	}

	return executions[0], nil
}

// CampaignExecution returns an execution by id, live or stored.
func (e *Engine) CampaignExecution(ctx context.Context, executionID string) (*models.CampaignExecution, error) {
	e.mu.RLock()
	for _, run := range e.live {
		if run.id == executionID {
			e.mu.RUnlock()

			return run.snapshot(), nil
		}
	}
	e.mu.RUnlock()

	return e.store.CampaignExecutionByID(ctx, executionID)
}

// CampaignExecutions lists the stored history of a campaign, newest first.
func (e *Engine) CampaignExecutions(ctx context.Context, campaignID string) ([]*models.CampaignExecution, error) {
	return e.store.CampaignExecutions(ctx, campaignID)
}

func (e *Engine) IsRunning(campaignID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.live[campaignID]

	return ok
}

// Running lists the registered executions, oldest first.
func (e *Engine) Running() []execution.Entry {
	return e.registry.Entries()
}

func (e *Engine) execute(
	ctx context.Context,
	campaign *models.Campaign,
	environment string,
	userID string,
	replayOf *models.CampaignExecution,
) (*models.CampaignExecution, error) {
	if environment == "" {
		environment = campaign.Environment
	}

	if err := e.checkEnvironment(environment); err != nil {
		return nil, err
	}

	state := models.CampaignExecution{
		ID:            execution.NewID("ce"),
		CampaignID:    campaign.ID,
		CampaignTitle: campaign.Title,
		Environment:   environment,
		TriggeredBy:   userID,
		StartTime:     time.Now().UTC(),
	}

	scenarioIDs := campaign.ScenarioIDs
	if replayOf != nil {
		state.ReplayOf = replayOf.ID
		scenarioIDs = make([]string, len(replayOf.ScenarioExecutions))

		for i, previous := range replayOf.ScenarioExecutions {
			scenarioIDs[i] = previous.ScenarioID
		}
	}

	state.ScenarioExecutions = make([]*models.ScenarioExecution, len(scenarioIDs))
	run := newCampaignRun(state)

	e.resolveScenarios(ctx, run, scenarioIDs, environment, userID, replayOf)

	if err := e.register(run); err != nil {
		return nil, err
	}
	defer e.unregister(run)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "campaign.execute",
		attribute.String(otelhelper.CampaignIDKey, campaign.ID),
		attribute.String(otelhelper.CampaignExecutionIDKey, state.ID),
		attribute.String(otelhelper.EnvironmentKey, environment),
		attribute.String(otelhelper.TriggeredByKey, userID),
	)
	defer span.End()

	logger := e.logger.With("campaign_id", campaign.ID, "campaign_execution_id", state.ID)
	logger.InfoContext(ctx, "Campaign execution started",
		"environment", environment, "scenarios", len(scenarioIDs), "replay_of", state.ReplayOf)

	e.save(ctx, run)
	e.publish(ctx, campaign.ID, events.CampaignExecutionStarted{
		BaseEvent:     events.NewBaseEvent(events.CampaignExecutionStartedEvent, campaign.ID, state.ID),
		CampaignTitle: campaign.Title,
		Environment:   environment,
		TriggeredBy:   userID,
		ScenarioIDs:   scenarioIDs,
		ReplayOf:      state.ReplayOf,
	})

	pending := make([]int, 0, len(run.scenarios))
	for index := range scenarioIDs {
		if _, ok := run.scenarios[index]; ok {
			pending = append(pending, index)
		}
	}

	e.runScenarios(ctx, campaign, run, pending, logger)

	if campaign.RetryAuto && !run.stopRequested() {
		var retry []int

		for _, index := range pending {
			if run.status(index) == models.StatusFailure {
				retry = append(retry, index)
			}
		}

		if len(retry) > 0 {
			logger.InfoContext(ctx, "Retrying failed scenarios", "count", len(retry))
			e.runScenarios(ctx, campaign, run, retry, logger)
		}
	}

	report := run.finish()

	otelhelper.SetStatus(span, report.Status.String(), "")
	logger.InfoContext(ctx, "Campaign execution finished",
		"status", report.Status.String(), "duration", report.EndTime.Sub(report.StartTime))

	if err := e.store.SaveCampaignExecution(ctx, report); err != nil {
		logger.ErrorContext(ctx, "Failed to save campaign report", "error", err)
	}

	e.publish(ctx, campaign.ID, events.CampaignExecutionFinished{
		BaseEvent: events.NewBaseEvent(events.CampaignExecutionFinishedEvent, campaign.ID, state.ID),
		Status:    report.Status,
		Summary:   report.Summary(),
		Report:    report,
	})

	return report, nil
}

// resolveScenarios fills every slot of the run: carried-over successes on
// replay, a Failure for unknown scenarios, NotExecuted placeholders for the
// scenarios that will run.
func (e *Engine) resolveScenarios(
	ctx context.Context,
	run *campaignRun,
	scenarioIDs []string,
	environment string,
	userID string,
	replayOf *models.CampaignExecution,
) {
	for index, scenarioID := range scenarioIDs {
		if replayOf != nil && replayOf.ScenarioExecutions[index].Status == models.StatusSuccess {
			run.state.ScenarioExecutions[index] = replayOf.ScenarioExecutions[index]

			continue
		}

		placeholder := &models.ScenarioExecution{
			ScenarioID:  scenarioID,
			Environment: environment,
			UserID:      userID,
			Status:      models.StatusNotExecuted,
		}

		scenario, err := e.store.ScenarioByID(ctx, scenarioID)
		if err != nil {
			resolution := &ResolutionError{Kind: "scenario", Name: scenarioID, Err: err}
			now := time.Now().UTC()

			placeholder.Status = models.StatusFailure
			placeholder.ErrorMessage = resolution.Error()
			placeholder.StartTime = now
			placeholder.EndTime = now

			e.logger.WarnContext(ctx, "Scenario could not be resolved", "scenario_id", scenarioID, "error", err)
		} else {
			placeholder.ScenarioTitle = scenario.Title
			run.scenarios[index] = scenario
		}

		run.state.ScenarioExecutions[index] = placeholder
	}
}

func (e *Engine) runScenarios(ctx context.Context, campaign *models.Campaign, run *campaignRun, indexes []int, logger *slog.Logger) {
	if !campaign.ParallelRun {
		for _, index := range indexes {
			if !e.runScenario(ctx, run, index, logger) {
				return
			}
		}

		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.config.ScenarioWorkers)

	for _, index := range indexes {
		if run.stopRequested() {
			break
		}

		group.Go(func() error {
			e.runScenario(groupCtx, run, index, logger)

			return nil
		})
	}

	_ = group.Wait()
}

// runScenario runs the scenario of slot index and reports whether it started.
func (e *Engine) runScenario(ctx context.Context, run *campaignRun, index int, logger *slog.Logger) bool {
	scenario := run.scenarios[index]

	se := execution.NewScenarioExecution(execution.NewID("se"), scenario, run.environment, run.triggeredBy, e.executor, logger)
	if !run.attach(index, se) {
		return false
	}

	entry := execution.Entry{
		ID:         se.ID(),
		Kind:       execution.KindScenario,
		CampaignID: run.campaignID,
		ScenarioID: scenario.ID,
	}
	if err := e.registry.Insert(entry, se); err != nil {
		logger.WarnContext(ctx, "Scenario execution not registered", "error", err)
	}

	result := se.Run(ctx)

	// Persist the final report before the entry leaves the running registry.
	run.detach(index, result)
	e.save(ctx, run)
	e.registry.Remove(se.ID())

	e.publish(ctx, scenario.ID, events.ScenarioExecutionFinished{
		BaseEvent:           events.NewBaseEvent(events.ScenarioExecutionFinishedEvent, run.campaignID, result.ID),
		CampaignExecutionID: run.id,
		Report:              result,
	})

	return true
}

func (e *Engine) register(run *campaignRun) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, running := e.live[run.campaignID]; running {
		return fmt.Errorf("%w: %s", ErrCampaignAlreadyRunning, run.campaignID)
	}

	entry := execution.Entry{
		ID:         run.id,
		Kind:       execution.KindCampaign,
		CampaignID: run.campaignID,
	}
	if err := e.registry.Insert(entry, run); err != nil {
		return err
	}

	e.live[run.campaignID] = run

	return nil
}

func (e *Engine) unregister(run *campaignRun) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.Remove(run.id)
	delete(e.live, run.campaignID)
}

// save stores the current progress. Failures are logged, the run goes on.
func (e *Engine) checkEnvironment(name string) error {
	if name == "" || e.config.Environments == nil {
		return nil
	}

	if _, err := e.config.Environments.Environment(name); err != nil {
		return &ResolutionError{Kind: "environment", Name: name, Err: err}
	}

	return nil
}

// notStarted describes a campaign execution refused before it began.
func notStarted(campaign *models.Campaign, environment, userID string, err error) *models.CampaignExecution {
	if environment == "" {
		environment = campaign.Environment
	}

	now := time.Now().UTC()

	return &models.CampaignExecution{
		ID:                 execution.NewID("ce"),
		CampaignID:         campaign.ID,
		CampaignTitle:      campaign.Title,
		Environment:        environment,
		TriggeredBy:        userID,
		Status:             models.StatusFailure,
		Error:              err.Error(),
		ScenarioExecutions: []*models.ScenarioExecution{},
		StartTime:          now,
		EndTime:            now,
	}
}

func (e *Engine) save(ctx context.Context, run *campaignRun) {
	if err := e.store.SaveCampaignExecution(ctx, run.snapshot()); err != nil {
		e.logger.ErrorContext(ctx, "Failed to save campaign progress", "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", string(event.GetType()), "error", err)
	}
}

func matchCampaigns(campaigns []*models.Campaign, pattern string) []*models.Campaign {
	var matched []*models.Campaign

	for _, campaign := range campaigns {
		if strings.EqualFold(campaign.Title, pattern) || campaign.ID == pattern {
			matched = append(matched, campaign)

			continue
		}

		if ok, err := path.Match(pattern, campaign.Title); err == nil && ok {
			matched = append(matched, campaign)
		}
	}

	return matched
}
