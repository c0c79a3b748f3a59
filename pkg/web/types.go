package web

import (
	"time"

	"github.com/chutney-testing/chutney-suite/pkg/execution"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

// ExecuteRequest is the optional body of an execution request.
type ExecuteRequest struct {
	Environment string `json:"environment,omitempty" validate:"omitempty,max=255"`
	UserID      string `json:"user_id,omitempty"     validate:"omitempty,max=255"`
}

// ExecuteByNameRequest runs every campaign whose title or id matches Pattern.
type ExecuteByNameRequest struct {
	Pattern     string `json:"pattern"               validate:"required,max=255"`
	Environment string `json:"environment,omitempty" validate:"omitempty,max=255"`
	UserID      string `json:"user_id,omitempty"     validate:"omitempty,max=255"`
}

type RunningExecutionResponse struct {
	ID         string         `json:"id"`
	Kind       execution.Kind `json:"kind"`
	CampaignID string         `json:"campaign_id,omitempty"`
	ScenarioID string         `json:"scenario_id,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
}

func newRunningExecutionResponse(entry execution.Entry) RunningExecutionResponse {
	return RunningExecutionResponse{
		ID:         entry.ID,
		Kind:       entry.Kind,
		CampaignID: entry.CampaignID,
		ScenarioID: entry.ScenarioID,
		StartedAt:  entry.StartedAt,
	}
}

type ActionResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

func newActionResponse(factory protocol.ActionFactory) ActionResponse {
	return ActionResponse{
		ID:          factory.ID(),
		Name:        factory.Name(),
		Description: factory.Description(),
		Schema:      factory.Schema(),
	}
}
