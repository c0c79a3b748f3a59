package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

// runSequential runs children in declared order. It stops at the first
// Failure unless the step continues on failure, and checks for cancellation
// before each child. The second result reports that cancellation was observed.
func (e *Executor) runSequential(ctx context.Context, run *Run, step *models.Step, deadline time.Time) ([]*models.StepReport, bool) {
	reports := make([]*models.StepReport, len(step.Children))

	for i, child := range step.Children {
		if e.cancelled(ctx, run) {
			fillNotExecuted(reports, step.Children, i)

			return reports, true
		}

		reports[i] = e.executeStep(ctx, run, child, deadline)

		if reports[i].Status == models.StatusFailure && !step.Strategy.ContinueOnFailure {
			fillNotExecuted(reports, step.Children, i+1)

			return reports, false
		}

		if reports[i].Status == models.StatusStopped {
			fillNotExecuted(reports, step.Children, i+1)

			return reports, true
		}
	}

	return reports, false
}

// runParallel fans children out, at most Parallelism at a time, and waits for
// all of them. Reports come back in declared order. Cancellation is checked
// before the fan-out and whenever a queued child gets a slot; children already
// running complete.
func (e *Executor) runParallel(ctx context.Context, run *Run, step *models.Step, deadline time.Time) ([]*models.StepReport, bool) {
	reports := make([]*models.StepReport, len(step.Children))

	if e.cancelled(ctx, run) {
		fillNotExecuted(reports, step.Children, 0)

		return reports, true
	}

	limit := step.Strategy.Parallelism
	if limit <= 0 {
		limit = e.config.Parallelism
	}

	skipped := make([]bool, len(step.Children))

	var g errgroup.Group
	g.SetLimit(limit)

	for i, child := range step.Children {
		g.Go(func() error {
			if e.cancelled(ctx, run) {
				reports[i] = models.NewNotExecutedReport(child)
				skipped[i] = true

				return nil
			}

			reports[i] = e.executeStep(ctx, run, child, deadline)

			return nil
		})
	}

	_ = g.Wait()

	for _, skip := range skipped {
		if skip {
			return reports, true
		}
	}

	return reports, false
}

// executeRetry re-executes step until an attempt succeeds, the attempt budget
// is spent or the policy timeout elapses. Every attempt keeps its own report.
func (e *Executor) executeRetry(ctx context.Context, run *Run, step *models.Step, deadline time.Time) *models.StepReport {
	policy := step.Strategy.Retry

	report := &models.StepReport{
		StepID:     step.ID,
		Name:       step.Name,
		Type:       step.ActionType,
		TargetName: step.Target,
		Status:     models.StatusRunning,
		StartTime:  time.Now(),
	}

	if policy.Timeout > 0 {
		retryDeadline := report.StartTime.Add(policy.Timeout)
		if deadline.IsZero() || retryDeadline.Before(deadline) {
			deadline = retryDeadline
		}
	}

	var (
		stopped  bool
		timedOut bool
		last     *models.StepReport
	)

attempts:
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if e.cancelled(ctx, run) {
				stopped = true

				break
			}

			switch e.wait(ctx, run, policy.Interval, deadline) {
			case waitCancelled:
				stopped = true

				break attempts
			case waitDeadline:
				timedOut = true

				break attempts
			}
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			timedOut = true

			break
		}

		last = e.executeOnce(ctx, run, step, deadline)
		last.Name = fmt.Sprintf("%s (attempt %d)", step.Name, attempt)
		report.Children = append(report.Children, last)

		if last.Status == models.StatusSuccess || last.Status == models.StatusStopped {
			break
		}

		if last.FailureReason == models.FailureReasonTimeout && !deadline.IsZero() && !time.Now().Before(deadline) {
			timedOut = true

			break
		}
	}

	switch {
	case last != nil && last.Status == models.StatusSuccess:
		report.Status = models.StatusSuccess
		report.Outputs = last.Outputs
	case stopped || (last != nil && last.Status == models.StatusStopped):
		report.Status = models.StatusStopped
	case timedOut:
		report.Status = models.StatusFailure
		report.FailureReason = models.FailureReasonTimeout
		report.ErrorMessage = fmt.Sprintf("retry timeout of %s exceeded after %d attempt(s)", policy.Timeout, len(report.Children))
	default:
		report.Status = models.StatusFailure
		report.FailureReason = last.FailureReason
		report.ErrorMessage = fmt.Sprintf("failed after %d attempt(s): %s", len(report.Children), last.ErrorMessage)
	}

	report.Duration = time.Since(report.StartTime)

	return report
}

type waitOutcome int

const (
	waitElapsed waitOutcome = iota
	waitCancelled
	waitDeadline
)

// wait suspends between retry attempts.
func (e *Executor) wait(ctx context.Context, run *Run, interval time.Duration, deadline time.Time) waitOutcome {
	if !deadline.IsZero() && time.Now().Add(interval).After(deadline) {
		return waitDeadline
	}

	if interval <= 0 {
		return waitElapsed
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return waitElapsed
	case <-run.Token.Done():
		return waitCancelled
	case <-ctx.Done():
		return waitCancelled
	}
}

func fillNotExecuted(reports []*models.StepReport, steps []*models.Step, from int) {
	for i := from; i < len(steps); i++ {
		reports[i] = models.NewNotExecutedReport(steps[i])
	}
}
