package protocol

import (
	"context"
	"log/slog"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

// ActionResult is what an action reports once execute returns.
type ActionResult struct {
	Status  models.Status
	Outputs map[string]any
	Message string
}

func Ok(outputs map[string]any) ActionResult {
	return ActionResult{Status: models.StatusSuccess, Outputs: outputs}
}

func Ko(message string) ActionResult {
	return ActionResult{Status: models.StatusFailure, Message: message}
}

// Action is a pluggable protocol operation.
//
// ValidateInputs must be pure: it inspects only what the action was created
// with and returns one message per violated precondition.
//
// Execute performs the side effect. Expected failure modes (refused connection,
// malformed response, ...) are reported through Ko, never by panicking. The
// context carries the deadline the engine enforces around the call.
type Action interface {
	ValidateInputs() []string
	Execute(ctx context.Context) ActionResult
}

// Releaser is implemented by actions holding resources that must be freed
// when the engine abandons a call on timeout. Release may run while Execute
// has not returned yet.
type Releaser interface {
	Release()
}

// ActionRequest carries everything a factory needs to build one action instance.
type ActionRequest struct {
	StepID   string
	StepName string
	Target   *models.Target
	Inputs   Inputs
	Logger   *slog.Logger
}

type ActionFactory interface {
	ID() string
	Name() string
	Description() string
	// Schema is the JSON schema the step inputs are checked against.
	Schema() map[string]any
	Create(ctx context.Context, request ActionRequest) (Action, error)
}

// Log returns the step logger, or the default logger when none was given.
func (r ActionRequest) Log() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}

	return r.Logger
}
