package web

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/chutney-testing/chutney-suite/pkg/campaign"
	"github.com/chutney-testing/chutney-suite/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// handleEngineError maps campaign engine and store errors to problems.
func handleEngineError(c fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrors), errors.Is(err, persistence.ErrInvalidID):
		return badRequest(c, err.Error())

	case campaign.IsNotFound(err):
		return notFound(c, err.Error())

	case campaign.IsAlreadyRunning(err):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
