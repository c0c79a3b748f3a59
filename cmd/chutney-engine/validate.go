package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/chutney-testing/chutney-suite/pkg/cmd"
	"github.com/chutney-testing/chutney-suite/pkg/environment"
	"github.com/chutney-testing/chutney-suite/pkg/log"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Check the configuration, the environments and the persistence",
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			logger := log.WithModule("chutney-engine")

			environments, err := environment.Load(cfg.Environments.Path)
			if err != nil {
				return err
			}

			registry, err := cmd.NewRegistry(ctx, logger, cfg.Plugins.Path)
			if err != nil {
				return err
			}

			store, err := cmd.NewPersistence(ctx, logger, cfg.Persistence.URL)
			if err != nil {
				return err
			}

			defer func() { _ = store.Close(ctx) }()

			if err := store.HealthCheck(ctx); err != nil {
				return fmt.Errorf("persistence is not healthy: %w", err)
			}

			fmt.Printf("environments: %v\n", environments.Names())
			fmt.Printf("actions: %d registered\n", len(registry.ActionFactories()))
			fmt.Println("configuration is valid")

			return nil
		},
	}
}
