package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/persistence"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

var _ persistence.Persistence = (*MockPersistence)(nil)

func (m *MockPersistence) Campaigns(ctx context.Context) ([]*models.Campaign, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Campaign), args.Error(1)
}

func (m *MockPersistence) CampaignByID(ctx context.Context, id string) (*models.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Campaign), args.Error(1)
}

func (m *MockPersistence) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	args := m.Called(ctx, campaign)

	return args.Error(0)
}

func (m *MockPersistence) DeleteCampaign(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) ScenarioByID(ctx context.Context, id string) (*models.Scenario, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Scenario), args.Error(1)
}

func (m *MockPersistence) SaveScenario(ctx context.Context, scenario *models.Scenario) error {
	args := m.Called(ctx, scenario)

	return args.Error(0)
}

func (m *MockPersistence) SaveCampaignExecution(ctx context.Context, execution *models.CampaignExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockPersistence) CampaignExecutionByID(ctx context.Context, id string) (*models.CampaignExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CampaignExecution), args.Error(1)
}

func (m *MockPersistence) CampaignExecutions(ctx context.Context, campaignID string) ([]*models.CampaignExecution, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.CampaignExecution), args.Error(1)
}

func (m *MockPersistence) Schedules(ctx context.Context) ([]*models.Schedule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Schedule), args.Error(1)
}

func (m *MockPersistence) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	args := m.Called(ctx, schedule)

	return args.Error(0)
}

func (m *MockPersistence) DeleteSchedule(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
