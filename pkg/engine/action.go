package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	chutneylog "github.com/chutney-testing/chutney-suite/pkg/log"
	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
	"github.com/chutney-testing/chutney-suite/pkg/template"
)

// FatalFault wraps a panic raised by action code.
type FatalFault struct {
	Value any
	Stack []byte
}

func (f *FatalFault) Error() string {
	return fmt.Sprintf("fatal fault: %v", f.Value)
}

var errActionTimeout = errors.New("action timed out")

// runAction resolves, validates and executes the action of step and records
// the outcome on report. It never panics.
func (e *Executor) runAction(ctx context.Context, run *Run, step *models.Step, deadline time.Time, report *models.StepReport) {
	logger, capture := chutneylog.NewCapture(e.logger.With(
		slog.String("execution_id", run.ID),
		slog.String("step_id", step.ID),
		slog.String("step", step.Name),
		slog.String("action_type", step.ActionType),
	))

	defer func() {
		report.Information = append(report.Information, capture.Information()...)
		report.Errors = append(report.Errors, capture.Errors()...)
	}()

	var target *models.Target

	if step.Target != "" {
		resolved, err := run.target(ctx, e.targets, step.Target)
		if err != nil {
			fail(report, models.FailureReasonResolution, fmt.Sprintf("cannot resolve target '%s': %s", step.Target, err))

			return
		}

		target = &resolved
	}

	inputs, err := template.RenderInputs(step.Inputs, template.Context{
		ExecutionID: run.ID,
		ScenarioID:  run.ScenarioID,
		Environment: run.Environment,
		Target:      target,
		Outputs:     run.outputs.Snapshot(),
	})
	if err != nil {
		fail(report, models.FailureReasonValidation, err.Error())

		return
	}

	report.EvaluatedInputs = inputs

	factory, err := e.actions.ActionFactory(step.ActionType)
	if err != nil {
		fail(report, models.FailureReasonResolution, err.Error())

		return
	}

	var action protocol.Action

	fault := guard(func() error {
		var createErr error

		action, createErr = factory.Create(ctx, protocol.ActionRequest{
			StepID:   step.ID,
			StepName: step.Name,
			Target:   target,
			Inputs:   inputs,
			Logger:   logger,
		})

		return createErr
	})
	if fault != nil {
		recordFault(report, fault, "cannot create action")

		return
	}

	schemaInput := map[string]any(inputs)
	if schemaInput == nil {
		schemaInput = map[string]any{}
	}

	violations := protocol.ValidateSchema(factory.Schema(), schemaInput)

	fault = guard(func() error {
		violations = append(violations, action.ValidateInputs()...)

		return nil
	})
	if fault != nil {
		recordFault(report, fault, "cannot validate inputs")

		return
	}

	if len(violations) > 0 {
		report.Errors = append(report.Errors, violations...)
		fail(report, models.FailureReasonValidation, fmt.Sprintf("invalid inputs: %d violation(s)", len(violations)))

		return
	}

	timeout, fromDeadline := e.actionTimeout(step, deadline)
	if fromDeadline && timeout <= 0 {
		fail(report, models.FailureReasonTimeout, "retry timeout exceeded before the action started")

		return
	}

	if e.slots != nil {
		if err := e.slots.Acquire(ctx, 1); err != nil {
			fail(report, models.FailureReasonAction, err.Error())

			return
		}
		defer e.slots.Release(1)
	}

	result, err := e.invoke(ctx, run, action, timeout)

	switch {
	case errors.Is(err, errActionTimeout):
		if releaser, ok := action.(protocol.Releaser); ok {
			releaser.Release()
		}

		fail(report, models.FailureReasonTimeout, fmt.Sprintf("timeout after %s", timeout))
		logger.Warn("Action timed out", slog.Duration("timeout", timeout))
	case err != nil:
		recordFault(report, err, "action failed unexpectedly")
		logger.Error("Action raised a fatal fault", slog.Any("error", err))
	default:
		report.Outputs = result.Outputs
		report.Status = result.Status
		report.ErrorMessage = result.Message

		if result.Status != models.StatusSuccess {
			report.Status = models.StatusFailure
			report.FailureReason = models.FailureReasonAction
		}

		if len(result.Outputs) > 0 && run.outputs.Put(step.ID, step.Name, result.Outputs) {
			logger.Warn("Outputs replaced a previous step with the same name")
		}
	}

	// A call returning after cancellation was signalled ends the step as Stopped.
	if e.cancelled(ctx, run) {
		report.Status = models.StatusStopped
		report.FailureReason = models.FailureReasonNone
	}
}

// invoke races the action call against timeout. On timeout the call is
// abandoned and its goroutine ends whenever the action returns.
func (e *Executor) invoke(ctx context.Context, run *Run, action protocol.Action, timeout time.Duration) (protocol.ActionResult, error) {
	callCtx, cancel := run.Token.bind(ctx)
	defer cancel()

	if timeout > 0 {
		var cancelTimeout context.CancelFunc

		callCtx, cancelTimeout = context.WithTimeout(callCtx, timeout)
		defer cancelTimeout()
	}

	type outcome struct {
		result protocol.ActionResult
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		var result protocol.ActionResult

		err := guard(func() error {
			result = action.Execute(callCtx)

			return nil
		})

		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if timeout > 0 && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return protocol.ActionResult{}, errActionTimeout
		}

		return out.result, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return protocol.ActionResult{}, errActionTimeout
		}

		// Cancelled: the action is expected to notice and return.
		out := <-done

		return out.result, out.err
	}
}

// guard runs fn and turns a panic into a FatalFault.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalFault{Value: r, Stack: debug.Stack()}
		}
	}()

	return fn()
}

func fail(report *models.StepReport, reason models.FailureReason, message string) {
	report.Status = models.StatusFailure
	report.FailureReason = reason
	report.ErrorMessage = message
}

func recordFault(report *models.StepReport, err error, message string) {
	var fault *FatalFault
	if errors.As(err, &fault) {
		fail(report, models.FailureReasonFatal, fmt.Sprintf("%s: %s", message, fault.Error()))
		report.Errors = append(report.Errors, string(fault.Stack))

		return
	}

	fail(report, models.FailureReasonValidation, fmt.Sprintf("%s: %s", message, err))
}
