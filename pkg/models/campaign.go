package models

import "time"

// Campaign is an ordered set of scenarios run together against one environment.
type Campaign struct {
	ID          string   `json:"id"                    yaml:"id"                    validate:"required"`
	Title       string   `json:"title"                 yaml:"title"                 validate:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	ScenarioIDs []string `json:"scenario_ids"          yaml:"scenario_ids"          validate:"dive,required"`

	// Environment is used when a trigger does not name one.
	Environment string `json:"environment" yaml:"environment"`

	// ParallelRun runs the scenarios concurrently instead of in declared order.
	ParallelRun bool `json:"parallel_run,omitempty" yaml:"parallel_run,omitempty"`

	// RetryAuto re-runs failed scenarios once at the end of the campaign.
	RetryAuto bool `json:"retry_auto,omitempty" yaml:"retry_auto,omitempty"`

	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CampaignExecution tracks one run of a campaign. ScenarioExecutions keep the
// campaign's declared order regardless of completion order.
type CampaignExecution struct {
	ID                 string               `json:"id"`
	CampaignID         string               `json:"campaign_id"`
	CampaignTitle      string               `json:"campaign_title"`
	Environment        string               `json:"environment"`
	TriggeredBy        string               `json:"triggered_by"`
	Status             Status               `json:"status"`
	ScenarioExecutions []*ScenarioExecution `json:"scenario_executions"`
	StopRequested      bool                 `json:"stop_requested,omitempty"`

	// ReplayOf is set when this execution re-runs the failures of another one.
	ReplayOf string `json:"replay_of,omitempty"`
	// Error explains why the execution was refused before any scenario ran.
	Error string `json:"error,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// ComputeStatus derives the campaign status from its scenarios.
func (e *CampaignExecution) ComputeStatus() Status {
	statuses := make([]Status, 0, len(e.ScenarioExecutions))
	for _, scenario := range e.ScenarioExecutions {
		if scenario.Status == StatusRunning || (scenario.Status == StatusNotExecuted && !e.StopRequested) {
			return StatusRunning
		}

		statuses = append(statuses, scenario.Status)
	}

	if e.StopRequested {
		return StatusStopped
	}

	if len(statuses) == 0 {
		return StatusSuccess
	}

	return Worst(statuses...)
}

// Summary counts scenario outcomes, surefire style.
type Summary struct {
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Stopped     int           `json:"stopped"`
	NotExecuted int           `json:"not_executed"`
	Duration    time.Duration `json:"duration"`
}

func (e *CampaignExecution) Summary() Summary {
	summary := Summary{Total: len(e.ScenarioExecutions)}

	for _, scenario := range e.ScenarioExecutions {
		switch scenario.Status {
		case StatusSuccess:
			summary.Passed++
		case StatusFailure:
			summary.Failed++
		case StatusStopped:
			summary.Stopped++
		case StatusNotExecuted, StatusRunning:
			summary.NotExecuted++
		}
	}

	if !e.EndTime.IsZero() {
		summary.Duration = e.EndTime.Sub(e.StartTime)
	}

	return summary
}

// FailedScenarioIDs lists scenarios whose run did not succeed, in declared order.
func (e *CampaignExecution) FailedScenarioIDs() []string {
	var ids []string

	for _, scenario := range e.ScenarioExecutions {
		if scenario.Status != StatusSuccess {
			ids = append(ids, scenario.ScenarioID)
		}
	}

	return ids
}
