// Package postgresql provides the PostgreSQL persistence for campaigns,
// scenarios, schedules and execution reports.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/persistence"
	"github.com/chutney-testing/chutney-suite/pkg/persistence/sqlbase"
)

type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence connects and migrates the schema to the latest version.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Campaigns(ctx context.Context) ([]*models.Campaign, error) {
	return queryDocuments[models.Campaign](ctx, p.db, "Campaigns", "campaign",
		"SELECT document FROM campaigns ORDER BY title, id")
}

func (p *Persistence) CampaignByID(ctx context.Context, id string) (*models.Campaign, error) {
	return queryDocument[models.Campaign](ctx, p.db, "CampaignByID", "campaign", id, persistence.ErrCampaignNotFound,
		"SELECT document FROM campaigns WHERE id = $1")
}

func (p *Persistence) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	return p.exec(ctx, "SaveCampaign", "campaign", campaign.ID, campaign, `
		INSERT INTO campaigns (id, title, document, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, document = EXCLUDED.document, updated_at = NOW()`,
		campaign.ID, campaign.Title)
}

func (p *Persistence) DeleteCampaign(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM campaigns WHERE id = $1", id)
	if err != nil {
		return persistence.NewStoreError("DeleteCampaign", "campaign", id, err)
	}

	return nil
}

func (p *Persistence) ScenarioByID(ctx context.Context, id string) (*models.Scenario, error) {
	return queryDocument[models.Scenario](ctx, p.db, "ScenarioByID", "scenario", id, persistence.ErrScenarioNotFound,
		"SELECT document FROM scenarios WHERE id = $1")
}

func (p *Persistence) SaveScenario(ctx context.Context, scenario *models.Scenario) error {
	return p.exec(ctx, "SaveScenario", "scenario", scenario.ID, scenario, `
		INSERT INTO scenarios (id, title, document, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, document = EXCLUDED.document, updated_at = NOW()`,
		scenario.ID, scenario.Title)
}

func (p *Persistence) SaveCampaignExecution(ctx context.Context, execution *models.CampaignExecution) error {
	return p.exec(ctx, "SaveCampaignExecution", "execution", execution.ID, execution, `
		INSERT INTO campaign_executions (id, campaign_id, status, start_time, document) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, document = EXCLUDED.document`,
		execution.ID, execution.CampaignID, string(execution.Status), execution.StartTime)
}

func (p *Persistence) CampaignExecutionByID(ctx context.Context, id string) (*models.CampaignExecution, error) {
	return queryDocument[models.CampaignExecution](ctx, p.db, "CampaignExecutionByID", "execution", id, persistence.ErrExecutionNotFound,
		"SELECT document FROM campaign_executions WHERE id = $1")
}

func (p *Persistence) CampaignExecutions(ctx context.Context, campaignID string) ([]*models.CampaignExecution, error) {
	return queryDocuments[models.CampaignExecution](ctx, p.db, "CampaignExecutions", "execution",
		"SELECT document FROM campaign_executions WHERE campaign_id = $1 ORDER BY start_time DESC, id DESC", campaignID)
}

func (p *Persistence) Schedules(ctx context.Context) ([]*models.Schedule, error) {
	return queryDocuments[models.Schedule](ctx, p.db, "Schedules", "schedule",
		"SELECT document FROM schedules ORDER BY id")
}

func (p *Persistence) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	return p.exec(ctx, "SaveSchedule", "schedule", schedule.ID, schedule, `
		INSERT INTO schedules (id, campaign_id, active, next_due_at, document) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET campaign_id = EXCLUDED.campaign_id, active = EXCLUDED.active,
			next_due_at = EXCLUDED.next_due_at, document = EXCLUDED.document`,
		schedule.ID, schedule.CampaignID, schedule.Active, schedule.NextDueAt)
}

func (p *Persistence) DeleteSchedule(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return persistence.NewStoreError("DeleteSchedule", "schedule", id, err)
	}

	return nil
}

// exec marshals document and appends it as the last query argument.
func (p *Persistence) exec(ctx context.Context, op, entity, id string, document any, query string, args ...any) error {
	if id == "" {
		return persistence.NewStoreError(op, entity, id, persistence.ErrInvalidID)
	}

	data, err := json.Marshal(document)
	if err != nil {
		return persistence.NewStoreError(op, entity, id, fmt.Errorf("failed to marshal: %w", err))
	}

	_, err = p.db.ExecContext(ctx, query, append(args, data)...)
	if err != nil {
		return persistence.NewStoreError(op, entity, id, err)
	}

	return nil
}

func queryDocument[T any](ctx context.Context, db *sql.DB, op, entity, id string, notFound error, query string) (*T, error) {
	var data []byte

	err := db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError(op, entity, id, notFound)
		}

		return nil, persistence.NewStoreError(op, entity, id, err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, persistence.NewStoreError(op, entity, id, fmt.Errorf("failed to unmarshal: %w", err))
	}

	return &value, nil
}

func queryDocuments[T any](ctx context.Context, db *sql.DB, op, entity, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError(op, entity, "", err)
	}
	defer func() { _ = rows.Close() }()

	values := make([]*T, 0)

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, persistence.NewStoreError(op, entity, "", err)
		}

		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, persistence.NewStoreError(op, entity, "", fmt.Errorf("failed to unmarshal: %w", err))
		}

		values = append(values, &value)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError(op, entity, "", err)
	}

	return values, nil
}
