// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chutney-testing/chutney-suite/pkg/actions"
	"github.com/chutney-testing/chutney-suite/pkg/registry"
)

// NewRegistry registers the native actions, then the plugins found under
// pluginsPath, which may replace them.
func NewRegistry(ctx context.Context, log *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	actions.RegisterDefaults(reg)

	actionPlugins, err := reg.LoadActionPlugins(ctx, pluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load action plugins: %w", err)
	}

	for _, plugin := range actionPlugins {
		reg.RegisterAction(plugin)
	}

	return reg, nil
}
