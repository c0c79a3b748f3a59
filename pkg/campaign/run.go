package campaign

import (
	"sync"
	"time"

	"github.com/chutney-testing/chutney-suite/pkg/execution"
	"github.com/chutney-testing/chutney-suite/pkg/models"
)

// campaignRun is the live side of a campaign execution. It is the handle
// registered for the whole campaign: cancelling it flags the stop and
// cancels whichever scenarios are currently running.
type campaignRun struct {
	id          string
	campaignID  string
	environment string
	triggeredBy string

	mu    sync.Mutex
	state models.CampaignExecution

	// running scenario executions by index in state.ScenarioExecutions
	running map[int]*execution.ScenarioExecution

	// scenarios to run, by index
	scenarios map[int]*models.Scenario
}

func newCampaignRun(state models.CampaignExecution) *campaignRun {
	return &campaignRun{
		id:          state.ID,
		campaignID:  state.CampaignID,
		environment: state.Environment,
		triggeredBy: state.TriggeredBy,
		state:       state,
		running:     make(map[int]*execution.ScenarioExecution),
		scenarios:   make(map[int]*models.Scenario),
	}
}

func (r *campaignRun) Cancel() {
	r.mu.Lock()
	r.state.StopRequested = true

	running := make([]*execution.ScenarioExecution, 0, len(r.running))
	for _, se := range r.running {
		running = append(running, se)
	}
	r.mu.Unlock()

	for _, se := range running {
		se.Cancel()
	}
}

func (r *campaignRun) stopRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.StopRequested
}

// attach marks se as the running execution of slot index. It refuses once a
// stop was requested so that no scenario starts after the stop.
func (r *campaignRun) attach(index int, se *execution.ScenarioExecution) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.StopRequested {
		return false
	}

	r.running[index] = se

	return true
}

func (r *campaignRun) detach(index int, result *models.ScenarioExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.running, index)
	r.state.ScenarioExecutions[index] = result
}

func (r *campaignRun) status(index int) models.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.ScenarioExecutions[index].Status
}

func (r *campaignRun) finish() *models.CampaignExecution {
	r.mu.Lock()
	r.state.EndTime = time.Now().UTC()
	r.mu.Unlock()

	return r.snapshot()
}

// snapshot returns a copy safe to hand out. Terminal scenario executions are
// never mutated once recorded, so they are shared.
func (r *campaignRun) snapshot() *models.CampaignExecution {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state
	snapshot.ScenarioExecutions = make([]*models.ScenarioExecution, len(r.state.ScenarioExecutions))

	copy(snapshot.ScenarioExecutions, r.state.ScenarioExecutions)

	for index, se := range r.running {
		current := se.Snapshot()
		snapshot.ScenarioExecutions[index] = &current
	}

	snapshot.Status = snapshot.ComputeStatus()

	return &snapshot
}
