package protocol

import (
	"context"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

// TargetResolver supplies the endpoint of a named target within an environment.
// Implementations fail with an error matching environment.ErrTargetNotFound when
// the target is not defined.
type TargetResolver interface {
	Resolve(ctx context.Context, environment, targetName string) (models.Target, error)
}

// TargetResolverFunc adapts a function to TargetResolver.
type TargetResolverFunc func(ctx context.Context, environment, targetName string) (models.Target, error)

func (f TargetResolverFunc) Resolve(ctx context.Context, environment, targetName string) (models.Target, error) {
	return f(ctx, environment, targetName)
}
