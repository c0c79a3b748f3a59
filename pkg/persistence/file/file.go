// Package file provides file-based persistence for campaigns, scenarios,
// schedules and execution reports.
package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a directory tree.
type Persistence struct {
	root       string
	campaigns  *collection[models.Campaign]
	scenarios  *collection[models.Scenario]
	executions *collection[models.CampaignExecution]
	schedules  *collection[models.Schedule]
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence accepts a plain path or a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:       cleanRoot,
		campaigns:  newCollection[models.Campaign](cleanRoot, "campaigns", "campaign", persistence.ErrCampaignNotFound),
		scenarios:  newCollection[models.Scenario](cleanRoot, "scenarios", "scenario", persistence.ErrScenarioNotFound),
		executions: newCollection[models.CampaignExecution](cleanRoot, "executions", "execution", persistence.ErrExecutionNotFound),
		schedules:  newCollection[models.Schedule](cleanRoot, "schedules", "schedule", persistence.ErrScheduleNotFound),
	}
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); errors.Is(err, fs.ErrNotExist) {
		return os.ErrNotExist
	}

	return nil
}

// Campaigns are sorted by title.
func (p *Persistence) Campaigns(_ context.Context) ([]*models.Campaign, error) {
	campaigns, err := p.campaigns.list("Campaigns", nil)
	if err != nil {
		return nil, err
	}

	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].Title < campaigns[j].Title
	})

	return campaigns, nil
}

func (p *Persistence) CampaignByID(_ context.Context, id string) (*models.Campaign, error) {
	return p.campaigns.get("CampaignByID", id)
}

func (p *Persistence) SaveCampaign(_ context.Context, campaign *models.Campaign) error {
	return p.campaigns.save("SaveCampaign", campaign.ID, campaign)
}

func (p *Persistence) DeleteCampaign(_ context.Context, id string) error {
	return p.campaigns.remove("DeleteCampaign", id)
}

func (p *Persistence) ScenarioByID(_ context.Context, id string) (*models.Scenario, error) {
	return p.scenarios.get("ScenarioByID", id)
}

func (p *Persistence) SaveScenario(_ context.Context, scenario *models.Scenario) error {
	return p.scenarios.save("SaveScenario", scenario.ID, scenario)
}

// SaveCampaignExecution overwrites the previous state of the execution.
func (p *Persistence) SaveCampaignExecution(_ context.Context, execution *models.CampaignExecution) error {
	return p.executions.save("SaveCampaignExecution", execution.ID, execution)
}

func (p *Persistence) CampaignExecutionByID(_ context.Context, id string) (*models.CampaignExecution, error) {
	return p.executions.get("CampaignExecutionByID", id)
}

func (p *Persistence) CampaignExecutions(_ context.Context, campaignID string) ([]*models.CampaignExecution, error) {
	executions, err := p.executions.list("CampaignExecutions", func(execution *models.CampaignExecution) bool {
		return execution.CampaignID == campaignID
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(executions)

	return executions, nil
}

func (p *Persistence) Schedules(_ context.Context) ([]*models.Schedule, error) {
	schedules, err := p.schedules.list("Schedules", nil)
	if err != nil {
		return nil, err
	}

	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].ID < schedules[j].ID
	})

	return schedules, nil
}

func (p *Persistence) SaveSchedule(_ context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	return p.schedules.save("SaveSchedule", schedule.ID, schedule)
}

func (p *Persistence) DeleteSchedule(_ context.Context, id string) error {
	return p.schedules.remove("DeleteSchedule", id)
}

func sortNewestFirst(executions []*models.CampaignExecution) {
	sort.SliceStable(executions, func(i, j int) bool {
		if executions[i].StartTime.Equal(executions[j].StartTime) {
			return executions[i].ID > executions[j].ID
		}

		return executions[i].StartTime.After(executions[j].StartTime)
	})
}
