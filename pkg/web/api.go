package web

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// HealthChecker is implemented by persistence.Persistence.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type API struct {
	logger   *slog.Logger
	engine   CampaignEngine
	actions  ActionCatalog
	health   HealthChecker
	validate *validator.Validate
	app      *fiber.App
}

func NewAPI(logger *slog.Logger, engine CampaignEngine, actions ActionCatalog, health HealthChecker) *API {
	return &API{
		logger:   logger.With(slog.String("module", "api")),
		engine:   engine,
		actions:  actions,
		health:   health,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	if a.app != nil {
		return a.app
	}

	handlers := NewAPIHandlers(a.engine, a.actions, a.validate)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.health == nil || a.health.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Chutney engine")
	})

	app.Get("/actions", handlers.GetActions)

	campaigns := app.Group("/campaigns")
	campaigns.Post("/executions", handlers.ExecuteCampaignsByName)
	campaigns.Post("/:id/executions", handlers.ExecuteCampaign)
	campaigns.Get("/:id/executions", handlers.GetCampaignExecutions)
	campaigns.Get("/:id/executions/last", handlers.GetLastCampaignExecution)

	executions := app.Group("/executions")
	executions.Get("/running", handlers.GetRunningExecutions)
	executions.Get("/:id", handlers.GetExecution)
	executions.Post("/:id/replay", handlers.ReplayExecution)
	executions.Post("/:id/stop", handlers.StopExecution)

	a.app = app

	return app
}

func (a *API) Start(port int) error {
	a.logger.Info("Starting API", slog.Int("port", port))

	return a.App().Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.app == nil {
		return nil
	}

	return a.app.ShutdownWithContext(ctx)
}
