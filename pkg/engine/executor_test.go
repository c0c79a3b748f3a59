package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

func TestExecutor_Sequential(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name              string
		continueOnFailure bool
		children          []string
		expectedStatus    models.Status
		expectedChildren  []models.Status
	}{
		{
			name:             "all succeed",
			children:         []string{"success", "success", "success"},
			expectedStatus:   models.StatusSuccess,
			expectedChildren: []models.Status{models.StatusSuccess, models.StatusSuccess, models.StatusSuccess},
		},
		{
			name:             "failure skips the remaining siblings",
			children:         []string{"success", "fail", "success", "success"},
			expectedStatus:   models.StatusFailure,
			expectedChildren: []models.Status{models.StatusSuccess, models.StatusFailure, models.StatusNotExecuted, models.StatusNotExecuted},
		},
		{
			name:              "continue on failure runs everything",
			continueOnFailure: true,
			children:          []string{"fail", "success", "fail"},
			expectedStatus:    models.StatusFailure,
			expectedChildren:  []models.Status{models.StatusFailure, models.StatusSuccess, models.StatusFailure},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			children := make([]*models.Step, 0, len(tc.children))
			for i, actionType := range tc.children {
				children = append(children, leafStep(fmt.Sprintf("s%d", i), actionType))
			}

			root := group("root", models.Strategy{ContinueOnFailure: tc.continueOnFailure}, children...)
			report := newTestExecutor(Config{}).Execute(context.Background(), newTestRun(), root)

			assert.Equal(t, tc.expectedStatus, report.Status)
			assert.Equal(t, tc.expectedChildren, childStatuses(report))
		})
	}
}

func TestExecutor_SequentialOrder(t *testing.T) {
	t.Parallel()

	var order []string

	recorder := script("record", func(_ context.Context, request protocol.ActionRequest) protocol.ActionResult {
		order = append(order, request.StepName)

		return protocol.Ok(nil)
	})

	root := group("root", models.Strategy{},
		leafStep("first", "record"),
		group("nested", models.Strategy{}, leafStep("second", "record"), leafStep("third", "record")),
		leafStep("fourth", "record"),
	)

	report := newTestExecutor(Config{}, recorder).Execute(context.Background(), newTestRun(), root)

	require.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, order)
}

func TestExecutor_Parallel(t *testing.T) {
	t.Parallel()

	kinds := []string{"success", "fail", "success", "fail", "success"}

	children := make([]*models.Step, 0, len(kinds))
	for i, kind := range kinds {
		children = append(children, leafStep(fmt.Sprintf("p%d", i), kind))
	}

	executor := newTestExecutor(Config{})
	report := executor.Execute(context.Background(), newTestRun(), group("root", models.Strategy{Type: models.StrategyParallel}, children...))

	isolated := make([]models.Status, 0, len(children))
	for _, child := range children {
		isolated = append(isolated, executor.Execute(context.Background(), newTestRun(), child).Status)
	}

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, isolated, childStatuses(report))

	for i, child := range report.Children {
		assert.Equal(t, children[i].ID, child.StepID, "reports keep declared order")
	}
}

func TestExecutor_ParallelBound(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32

	slow := script("slow", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		current := active.Add(1)
		defer active.Add(-1)

		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)

		return protocol.Ok(nil)
	})

	children := make([]*models.Step, 0, 6)
	for i := range 6 {
		children = append(children, leafStep(fmt.Sprintf("c%d", i), "slow"))
	}

	root := group("root", models.Strategy{Type: models.StrategyParallel, Parallelism: 2}, children...)
	report := newTestExecutor(Config{}, slow).Execute(context.Background(), newTestRun(), root)

	require.Equal(t, models.StatusSuccess, report.Status)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(6), slow.executed.Load())
}

func TestExecutor_NestedParallelDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	inner := func(id string) *models.Step {
		return group(id, models.Strategy{Type: models.StrategyParallel},
			leafStep(id+"-a", "success"), leafStep(id+"-b", "success"), leafStep(id+"-c", "success"))
	}

	root := group("root", models.Strategy{Type: models.StrategyParallel}, inner("x"), inner("y"), inner("z"))

	report := newTestExecutor(Config{Parallelism: 1, MaxConcurrentActions: 1}).Execute(context.Background(), newTestRun(), root)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Len(t, report.Children, 3)
}

func TestExecutor_Retry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	flaky := script("flaky", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		if calls.Add(1) <= 2 {
			return protocol.Ko("not yet")
		}

		return protocol.Ok(map[string]any{"attempt": calls.Load()})
	})

	step := &models.Step{
		ID: "retry", Name: "retry", ActionType: "flaky",
		Strategy: models.Strategy{Type: models.StrategyRetry, Retry: &models.RetryPolicy{MaxAttempts: 3}},
	}

	report := newTestExecutor(Config{}, flaky).Execute(context.Background(), newTestRun(), step)

	assert.Equal(t, models.StatusSuccess, report.Status)
	require.Len(t, report.Children, 3)
	assert.Equal(t, []models.Status{models.StatusFailure, models.StatusFailure, models.StatusSuccess}, childStatuses(report))
	assert.Equal(t, "retry (attempt 3)", report.Children[2].Name)
	assert.Equal(t, map[string]any{"attempt": int32(3)}, report.Outputs)
}

func TestExecutor_RetryExhausted(t *testing.T) {
	t.Parallel()

	step := &models.Step{
		ID: "retry", Name: "retry", ActionType: "fail",
		Strategy: models.Strategy{Type: models.StrategyRetry, Retry: &models.RetryPolicy{MaxAttempts: 4, Interval: time.Millisecond}},
	}

	report := newTestExecutor(Config{}).Execute(context.Background(), newTestRun(), step)

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, models.FailureReasonAction, report.FailureReason)
	assert.Len(t, report.Children, 4)
	assert.Contains(t, report.ErrorMessage, "failed after 4 attempt(s)")
}

func TestExecutor_RetryTimeout(t *testing.T) {
	t.Parallel()

	step := &models.Step{
		ID: "retry", Name: "retry", ActionType: "fail",
		Strategy: models.Strategy{Type: models.StrategyRetry, Retry: &models.RetryPolicy{
			MaxAttempts: 100,
			Interval:    20 * time.Millisecond,
			Timeout:     50 * time.Millisecond,
		}},
	}

	report := newTestExecutor(Config{}).Execute(context.Background(), newTestRun(), step)

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, models.FailureReasonTimeout, report.FailureReason)
	assert.Less(t, len(report.Children), 100)
	assert.NotEmpty(t, report.Children)
}

func TestExecutor_RetrySubtree(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	flaky := script("flaky", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		if calls.Add(1) == 1 {
			return protocol.Ko("first call fails")
		}

		return protocol.Ok(nil)
	})

	step := group("retry", models.Strategy{Type: models.StrategyRetry, Retry: &models.RetryPolicy{MaxAttempts: 2}},
		leafStep("before", "success"), leafStep("check", "flaky"))

	report := newTestExecutor(Config{}, flaky).Execute(context.Background(), newTestRun(), step)

	require.Equal(t, models.StatusSuccess, report.Status)
	require.Len(t, report.Children, 2)
	assert.Equal(t, []models.Status{models.StatusSuccess, models.StatusFailure}, childStatuses(report.Children[0]))
	assert.Equal(t, []models.Status{models.StatusSuccess, models.StatusSuccess}, childStatuses(report.Children[1]))
}

func TestExecutor_ActionTimeout(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	blocking := script("block", blockUntilDone(started))

	step := &models.Step{ID: "slow", Name: "slow", ActionType: "block", Timeout: 30 * time.Millisecond}
	report := newTestExecutor(Config{}, blocking).Execute(context.Background(), newTestRun(), step)

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, models.FailureReasonTimeout, report.FailureReason)
	assert.Contains(t, report.ErrorMessage, "timeout after 30ms")
	assert.Equal(t, int32(1), blocking.released.Load())
}

func TestExecutor_DefaultActionTimeout(t *testing.T) {
	t.Parallel()

	blocking := script("block", blockUntilDone(make(chan struct{}, 1)))

	report := newTestExecutor(Config{ActionTimeout: 20 * time.Millisecond}, blocking).
		Execute(context.Background(), newTestRun(), leafStep("slow", "block"))

	assert.Equal(t, models.FailureReasonTimeout, report.FailureReason)
}

func TestExecutor_PanicIsContained(t *testing.T) {
	t.Parallel()

	boom := script("boom", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		panic("nil map write")
	})

	root := group("root", models.Strategy{ContinueOnFailure: true},
		leafStep("explodes", "boom"),
		leafStep("after", "success"),
	)

	report := newTestExecutor(Config{}, boom).Execute(context.Background(), newTestRun(), root)

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, models.FailureReasonFatal, report.Children[0].FailureReason)
	assert.Contains(t, report.Children[0].ErrorMessage, "nil map write")
	assert.NotEmpty(t, report.Children[0].Errors)
	assert.Equal(t, models.StatusSuccess, report.Children[1].Status)
}

func TestExecutor_ValidationSkipsExecute(t *testing.T) {
	t.Parallel()

	strict := &scriptedFactory{
		id:      "strict",
		execute: succeed,
		validate: func(in protocol.Inputs) []string {
			return protocol.NewValidation().NotBlank("topic", in.String("topic")).Errors()
		},
	}

	report := newTestExecutor(Config{}, strict).Execute(context.Background(), newTestRun(), leafStep("publish", "strict"))

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, models.FailureReasonValidation, report.FailureReason)
	assert.Equal(t, []string{"No topic provided"}, report.Errors)
	assert.Equal(t, int32(0), strict.executed.Load())
}

func TestExecutor_SchemaValidation(t *testing.T) {
	t.Parallel()

	typed := &scriptedFactory{
		id:      "typed",
		execute: succeed,
		schema: map[string]any{
			"type":     "object",
			"required": []any{"count"},
			"properties": map[string]any{
				"count": map[string]any{"type": "number"},
			},
		},
	}

	step := leafStep("typed", "typed")
	report := newTestExecutor(Config{}, typed).Execute(context.Background(), newTestRun(), step)

	assert.Equal(t, models.FailureReasonValidation, report.FailureReason)
	assert.Equal(t, int32(0), typed.executed.Load())

	step.Inputs = map[string]any{"count": 3}
	report = newTestExecutor(Config{}, typed).Execute(context.Background(), newTestRun(), step)
	assert.Equal(t, models.StatusSuccess, report.Status)
}

func TestExecutor_OutputsFlowIntoLaterSteps(t *testing.T) {
	t.Parallel()

	login := script("login", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		return protocol.Ok(map[string]any{"token": "abc"})
	})

	var seen string

	echo := script("echo", func(_ context.Context, request protocol.ActionRequest) protocol.ActionResult {
		seen = request.Inputs.String("auth")

		return protocol.Ok(nil)
	})

	use := leafStep("use", "echo")
	use.Inputs = map[string]any{"auth": "Bearer {{ .outputs.login.token }}"}

	run := newTestRun()
	report := newTestExecutor(Config{}, login, echo).Execute(context.Background(), run,
		group("root", models.Strategy{}, leafStep("login", "login"), use))

	require.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, "Bearer abc", seen)
	assert.Equal(t, map[string]any{"auth": "Bearer abc"}, report.Children[1].EvaluatedInputs)

	outputs, ok := run.Outputs().Get("login")
	require.True(t, ok)
	assert.Equal(t, "abc", outputs["token"])
}

func TestExecutor_RetryAttemptsDoNotWarnAboutReplacedOutputs(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	flaky := script("flaky", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		attempt := calls.Add(1)
		if attempt == 1 {
			return protocol.ActionResult{Status: models.StatusFailure, Message: "not yet", Outputs: map[string]any{"attempt": attempt}}
		}

		return protocol.Ok(map[string]any{"attempt": attempt})
	})

	step := &models.Step{
		ID: "poll", Name: "poll", ActionType: "flaky",
		Strategy: models.Strategy{Type: models.StrategyRetry, Retry: &models.RetryPolicy{MaxAttempts: 2}},
	}

	run := newTestRun()
	report := newTestExecutor(Config{}, flaky).Execute(context.Background(), run, step)

	require.Equal(t, models.StatusSuccess, report.Status)
	require.Len(t, report.Children, 2)

	for _, attempt := range report.Children {
		assert.NotContains(t, attempt.Information, "Outputs replaced a previous step with the same name")
	}

	outputs, ok := run.Outputs().Get("poll")
	require.True(t, ok)
	assert.Equal(t, int32(2), outputs["attempt"])
}

func TestExecutor_DuplicateStepNamesWarnAboutReplacedOutputs(t *testing.T) {
	t.Parallel()

	emit := script("emit", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		return protocol.Ok(map[string]any{"value": 1})
	})

	first := &models.Step{ID: "first", Name: "fetch", ActionType: "emit"}
	second := &models.Step{ID: "second", Name: "fetch", ActionType: "emit"}

	report := newTestExecutor(Config{}, emit).Execute(context.Background(), newTestRun(),
		group("root", models.Strategy{}, first, second))

	require.Equal(t, models.StatusSuccess, report.Status)
	assert.NotContains(t, report.Children[0].Information, "Outputs replaced a previous step with the same name")
	assert.Contains(t, report.Children[1].Information, "Outputs replaced a previous step with the same name")
}

func TestExecutor_TargetResolution(t *testing.T) {
	t.Parallel()

	var urls []string

	call := script("call", func(_ context.Context, request protocol.ActionRequest) protocol.ActionResult {
		urls = append(urls, request.Target.URL)

		return protocol.Ok(nil)
	})

	first := leafStep("first", "call")
	first.Target = "api"
	second := leafStep("second", "call")
	second.Target = "api"
	missing := leafStep("missing", "call")
	missing.Target = "db"

	report := newTestExecutor(Config{}, call).Execute(context.Background(), newTestRun(),
		group("root", models.Strategy{ContinueOnFailure: true}, first, second, missing))

	assert.Equal(t, []string{"http://staging.api.local", "http://staging.api.local"}, urls)
	assert.Equal(t, models.StatusFailure, report.Children[2].Status)
	assert.Equal(t, models.FailureReasonResolution, report.Children[2].FailureReason)
	assert.Equal(t, "db", report.Children[2].TargetName)
}

func TestExecutor_UnknownActionType(t *testing.T) {
	t.Parallel()

	report := newTestExecutor(Config{}).Execute(context.Background(), newTestRun(), leafStep("x", "teleport"))

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, models.FailureReasonResolution, report.FailureReason)
	assert.Contains(t, report.ErrorMessage, "teleport")
}

func TestExecutor_InvalidTree(t *testing.T) {
	t.Parallel()

	report := newTestExecutor(Config{}).Execute(context.Background(), newTestRun(), &models.Step{ID: "empty", Name: "empty"})

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, models.FailureReasonValidation, report.FailureReason)

	report = newTestExecutor(Config{}).Execute(context.Background(), newTestRun(), nil)
	assert.Equal(t, models.StatusFailure, report.Status)
}

func TestExecutor_PostAction(t *testing.T) {
	t.Parallel()

	step := &models.Step{
		ID: "root", Name: "root", ActionType: "success",
		Children: []*models.Step{leafStep("child", "fail")},
	}

	executor := newTestExecutor(Config{})

	report := executor.Execute(context.Background(), newTestRun(), step)
	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Empty(t, report.EvaluatedInputs)

	step.Children[0].ActionType = "success"
	report = executor.Execute(context.Background(), newTestRun(), step)
	assert.Equal(t, models.StatusSuccess, report.Status)
}

func TestExecutor_CapturesActionLogs(t *testing.T) {
	t.Parallel()

	chatty := script("chatty", func(_ context.Context, request protocol.ActionRequest) protocol.ActionResult {
		request.Logger.Info("connected", slog.String("target", "none"))
		request.Logger.Error("unexpected payload")

		return protocol.Ko("bad payload")
	})

	report := newTestExecutor(Config{}, chatty).Execute(context.Background(), newTestRun(), leafStep("talk", "chatty"))

	assert.Equal(t, []string{"connected"}, report.Information)
	assert.Equal(t, []string{"unexpected payload"}, report.Errors)
	assert.Equal(t, "bad payload", report.ErrorMessage)
}
