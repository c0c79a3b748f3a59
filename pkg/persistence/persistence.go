// Package persistence stores campaigns, scenarios, schedules and execution reports.
package persistence

import (
	"context"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

type CampaignStore interface {
	Campaigns(ctx context.Context) ([]*models.Campaign, error)
	CampaignByID(ctx context.Context, id string) (*models.Campaign, error)
	SaveCampaign(ctx context.Context, campaign *models.Campaign) error
	DeleteCampaign(ctx context.Context, id string) error
}

type ScenarioStore interface {
	ScenarioByID(ctx context.Context, id string) (*models.Scenario, error)
	SaveScenario(ctx context.Context, scenario *models.Scenario) error
}

type ExecutionStore interface {
	SaveCampaignExecution(ctx context.Context, execution *models.CampaignExecution) error
	CampaignExecutionByID(ctx context.Context, id string) (*models.CampaignExecution, error)
	// CampaignExecutions lists the executions of a campaign, newest first.
	CampaignExecutions(ctx context.Context, campaignID string) ([]*models.CampaignExecution, error)
}

type ScheduleStore interface {
	Schedules(ctx context.Context) ([]*models.Schedule, error)
	SaveSchedule(ctx context.Context, schedule *models.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
}

type Persistence interface {
	CampaignStore
	ScenarioStore
	ExecutionStore
	ScheduleStore

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
