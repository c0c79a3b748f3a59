// Package engine interprets step trees: it sequences, parallelizes and
// retries steps, invokes their actions and rolls the outcomes up into reports.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/otelhelper"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

const DefaultParallelism = 10

// ActionCatalog looks up the factory of an action type.
type ActionCatalog interface {
	ActionFactory(actionType string) (protocol.ActionFactory, error)
}

type Config struct {
	// Parallelism bounds the children of a parallel step running at once
	// unless the step sets its own bound.
	Parallelism int

	// ActionTimeout applies to steps without their own timeout. Zero disables it.
	ActionTimeout time.Duration

	// MaxConcurrentActions bounds action calls in flight across every run
	// sharing this executor. Zero means unbounded.
	MaxConcurrentActions int64

	Tracer trace.Tracer
}

type Executor struct {
	logger  *slog.Logger
	actions ActionCatalog
	targets protocol.TargetResolver
	config  Config
	tracer  trace.Tracer
	slots   *semaphore.Weighted
}

func NewExecutor(logger *slog.Logger, actions ActionCatalog, targets protocol.TargetResolver, config Config) *Executor {
	if config.Parallelism <= 0 {
		config.Parallelism = DefaultParallelism
	}

	tracer := config.Tracer
	if tracer == nil {
		tracer = otelhelper.Tracer("github.com/chutney-testing/chutney-suite/pkg/engine")
	}

	var slots *semaphore.Weighted
	if config.MaxConcurrentActions > 0 {
		slots = semaphore.NewWeighted(config.MaxConcurrentActions)
	}

	return &Executor{
		logger:  logger,
		actions: actions,
		targets: targets,
		config:  config,
		tracer:  tracer,
		slots:   slots,
	}
}

// Execute drives root to completion or cancellation. Failures never escape as
// errors: everything that goes wrong is recorded on the returned report.
func (e *Executor) Execute(ctx context.Context, run *Run, root *models.Step) *models.StepReport {
	if root == nil {
		return &models.StepReport{
			Status:        models.StatusFailure,
			FailureReason: models.FailureReasonValidation,
			StartTime:     time.Now(),
			ErrorMessage:  "scenario has no root step",
		}
	}

	if err := root.Validate(); err != nil {
		report := models.NewNotExecutedReport(root)
		report.Status = models.StatusFailure
		report.FailureReason = models.FailureReasonValidation
		report.StartTime = time.Now()
		report.ErrorMessage = err.Error()

		return report
	}

	if e.cancelled(ctx, run) {
		report := models.NewNotExecutedReport(root)
		report.Status = models.StatusStopped
		report.StartTime = time.Now()

		return report
	}

	return e.executeStep(ctx, run, root, time.Time{})
}

func (e *Executor) cancelled(ctx context.Context, run *Run) bool {
	return run.Token.Cancelled() || ctx.Err() != nil
}

// executeStep runs one step instance. deadline, when set, is inherited from an
// enclosing retry policy and caps every action call of the subtree.
func (e *Executor) executeStep(ctx context.Context, run *Run, step *models.Step, deadline time.Time) *models.StepReport {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "step "+step.Name,
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepNameKey, step.Name),
		attribute.String(otelhelper.ActionTypeKey, step.ActionType),
		attribute.String(otelhelper.ExecutionIDKey, run.ID),
	)
	defer span.End()

	var report *models.StepReport
	if step.StrategyType() == models.StrategyRetry {
		report = e.executeRetry(ctx, run, step, deadline)
	} else {
		report = e.executeOnce(ctx, run, step, deadline)
	}

	otelhelper.SetStatus(span, report.Status.String(), report.ErrorMessage)

	return report
}

// executeOnce evaluates the children of step per its strategy, then its own
// action when the children all succeeded.
func (e *Executor) executeOnce(ctx context.Context, run *Run, step *models.Step, deadline time.Time) *models.StepReport {
	report := &models.StepReport{
		StepID:     step.ID,
		Name:       step.Name,
		Type:       step.ActionType,
		TargetName: step.Target,
		Status:     models.StatusRunning,
		StartTime:  time.Now(),
	}

	statuses := make([]models.Status, 0, 2)

	if step.IsComposite() {
		var stopped bool

		if step.StrategyType() == models.StrategyParallel {
			report.Children, stopped = e.runParallel(ctx, run, step, deadline)
		} else {
			report.Children, stopped = e.runSequential(ctx, run, step, deadline)
		}

		statuses = append(statuses, report.ChildrenStatus())
		if stopped {
			statuses = append(statuses, models.StatusStopped)
		}
	}

	if step.HasAction() && models.Worst(statuses...) != models.StatusFailure && models.Worst(statuses...) != models.StatusStopped {
		e.runAction(ctx, run, step, deadline, report)
		statuses = append(statuses, report.Status)
	}

	report.Status = models.Worst(statuses...)
	if report.Status == models.StatusNotExecuted {
		report.Status = models.StatusStopped
	}

	report.Duration = time.Since(report.StartTime)

	return report
}

func (e *Executor) actionTimeout(step *models.Step, deadline time.Time) (time.Duration, bool) {
	timeout := step.Timeout
	if timeout == 0 {
		timeout = e.config.ActionTimeout
	}

	if deadline.IsZero() {
		return timeout, false
	}

	remaining := time.Until(deadline)
	if timeout == 0 || remaining < timeout {
		return remaining, true
	}

	return timeout, false
}
