package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

func TestCancellationToken(t *testing.T) {
	t.Parallel()

	token := NewCancellationToken()
	assert.False(t, token.Cancelled())

	token.Cancel()
	token.Cancel()

	assert.True(t, token.Cancelled())

	select {
	case <-token.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func executeAsync(executor *Executor, run *Run, root *models.Step) <-chan *models.StepReport {
	result := make(chan *models.StepReport, 1)

	go func() {
		result <- executor.Execute(context.Background(), run, root)
	}()

	return result
}

func TestExecutor_CancelSequentialMidRun(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	executor := newTestExecutor(Config{}, script("block", blockUntilDone(started)))

	root := group("root", models.Strategy{},
		leafStep("done", "success"),
		leafStep("running", "block"),
		leafStep("pending", "success"),
		group("pending-group", models.Strategy{}, leafStep("deep", "success")),
	)

	run := newTestRun()
	result := executeAsync(executor, run, root)

	<-started
	run.Token.Cancel()

	report := <-result

	assert.Equal(t, models.StatusStopped, report.Status)
	assert.Equal(t, []models.Status{
		models.StatusSuccess,
		models.StatusStopped,
		models.StatusNotExecuted,
		models.StatusNotExecuted,
	}, childStatuses(report))
	assert.Equal(t, models.StatusNotExecuted, report.Children[3].Children[0].Status)
}

func TestExecutor_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	run := newTestRun()
	run.Token.Cancel()

	report := newTestExecutor(Config{}).Execute(context.Background(), run,
		group("root", models.Strategy{}, leafStep("a", "success")))

	assert.Equal(t, models.StatusStopped, report.Status)
	assert.Equal(t, []models.Status{models.StatusNotExecuted}, childStatuses(report))
}

func TestExecutor_CancelledParallelFanOut(t *testing.T) {
	t.Parallel()

	run := newTestRun()
	run.Token.Cancel()

	step := group("fan", models.Strategy{Type: models.StrategyParallel}, leafStep("a", "success"), leafStep("b", "success"))

	reports, stopped := newTestExecutor(Config{}).runParallel(context.Background(), run, step, time.Time{})

	assert.True(t, stopped)
	assert.Equal(t, models.StatusNotExecuted, reports[0].Status)
	assert.Equal(t, models.StatusNotExecuted, reports[1].Status)
}

func TestExecutor_CancelPreventsQueuedParallelChildren(t *testing.T) {
	t.Parallel()

	run := newTestRun()

	cancelNow := script("cancel", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		run.Token.Cancel()

		return protocol.Ok(nil)
	})

	root := group("root", models.Strategy{Type: models.StrategyParallel, Parallelism: 1},
		leafStep("first", "cancel"),
		leafStep("queued-1", "success"),
		leafStep("queued-2", "success"),
	)

	report := newTestExecutor(Config{}, cancelNow).Execute(context.Background(), run, root)

	assert.Equal(t, models.StatusStopped, report.Status)
	assert.Equal(t, []models.Status{
		models.StatusStopped,
		models.StatusNotExecuted,
		models.StatusNotExecuted,
	}, childStatuses(report))
}

func TestExecutor_CancelBetweenRetryAttempts(t *testing.T) {
	t.Parallel()

	attempted := make(chan struct{}, 10)

	flaky := script("flaky", func(context.Context, protocol.ActionRequest) protocol.ActionResult {
		attempted <- struct{}{}

		return protocol.Ko("still failing")
	})

	step := &models.Step{
		ID: "retry", Name: "retry", ActionType: "flaky",
		Strategy: models.Strategy{Type: models.StrategyRetry, Retry: &models.RetryPolicy{MaxAttempts: 5, Interval: time.Minute}},
	}

	run := newTestRun()
	result := executeAsync(newTestExecutor(Config{}, flaky), run, step)

	<-attempted
	run.Token.Cancel()

	report := <-result

	assert.Equal(t, models.StatusStopped, report.Status)
	require.Len(t, report.Children, 1)
	assert.Equal(t, int32(1), flaky.executed.Load())
}

func TestExecutor_FailureDominatesStopped(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	executor := newTestExecutor(Config{}, script("block", blockUntilDone(started)))

	root := group("root", models.Strategy{ContinueOnFailure: true},
		leafStep("broken", "fail"),
		leafStep("running", "block"),
		leafStep("pending", "success"),
	)

	run := newTestRun()
	result := executeAsync(executor, run, root)

	<-started
	run.Token.Cancel()

	report := <-result

	assert.Equal(t, models.StatusFailure, report.Status)
	assert.Equal(t, []models.Status{
		models.StatusFailure,
		models.StatusStopped,
		models.StatusNotExecuted,
	}, childStatuses(report))
}
