// Package web exposes the campaign engine over HTTP.
package web

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/chutney-testing/chutney-suite/pkg/execution"
	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

const defaultUser = "api"

// CampaignEngine is implemented by campaign.Engine.
type CampaignEngine interface {
	ExecuteByName(ctx context.Context, pattern, environment, userID string) ([]*models.CampaignExecution, error)
	ExecuteByID(ctx context.Context, campaignID, environment, userID string) (*models.CampaignExecution, error)
	ReplayCampaignExecution(ctx context.Context, executionID, userID string) (*models.CampaignExecution, error)
	StopExecution(ctx context.Context, executionID string) bool
	GetLastCampaignExecution(ctx context.Context, campaignID string) (*models.CampaignExecution, error)
	CampaignExecution(ctx context.Context, executionID string) (*models.CampaignExecution, error)
	CampaignExecutions(ctx context.Context, campaignID string) ([]*models.CampaignExecution, error)
	Running() []execution.Entry
}

// ActionCatalog is implemented by registry.Registry.
type ActionCatalog interface {
	ActionFactories() []protocol.ActionFactory
}

type APIHandlers struct {
	engine    CampaignEngine
	actions   ActionCatalog
	validator *validator.Validate
}

func NewAPIHandlers(engine CampaignEngine, actions ActionCatalog, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		actions:   actions,
		validator: validator,
	}
}

func (h *APIHandlers) ExecuteCampaign(c fiber.Ctx) error {
	var req ExecuteRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return handleEngineError(c, err)
	}

	report, err := h.engine.ExecuteByID(c.Context(), c.Params("id"), req.Environment, userOf(c, req.UserID))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) ExecuteCampaignsByName(c fiber.Ctx) error {
	var req ExecuteByNameRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return handleEngineError(c, err)
	}

	reports, err := h.engine.ExecuteByName(c.Context(), req.Pattern, req.Environment, userOf(c, req.UserID))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(reports)
}

func (h *APIHandlers) GetLastCampaignExecution(c fiber.Ctx) error {
	report, err := h.engine.GetLastCampaignExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) GetCampaignExecutions(c fiber.Ctx) error {
	reports, err := h.engine.CampaignExecutions(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(reports)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	report, err := h.engine.CampaignExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) ReplayExecution(c fiber.Ctx) error {
	var req ExecuteRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	report, err := h.engine.ReplayCampaignExecution(c.Context(), c.Params("id"), userOf(c, req.UserID))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(report)
}

// StopExecution always answers 204: stopping an execution that is unknown or
// already finished is a no-op.
func (h *APIHandlers) StopExecution(c fiber.Ctx) error {
	h.engine.StopExecution(c.Context(), c.Params("id"))

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetRunningExecutions(c fiber.Ctx) error {
	entries := h.engine.Running()

	running := make([]RunningExecutionResponse, 0, len(entries))
	for _, entry := range entries {
		running = append(running, newRunningExecutionResponse(entry))
	}

	return c.JSON(running)
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	factories := h.actions.ActionFactories()

	actions := make([]ActionResponse, 0, len(factories))
	for _, factory := range factories {
		actions = append(actions, newActionResponse(factory))
	}

	return c.JSON(actions)
}

// userOf prefers the body, then the X-Chutney-User header.
func userOf(c fiber.Ctx, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}

	if header := c.Get("X-Chutney-User"); header != "" {
		return header
	}

	return defaultUser
}
