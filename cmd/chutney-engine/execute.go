package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/chutney-testing/chutney-suite/pkg/cmd"
	"github.com/chutney-testing/chutney-suite/pkg/log"
	"github.com/chutney-testing/chutney-suite/pkg/models"
)

var (
	ErrNoCampaign       = errors.New("one of --campaign-id or --campaign-name is required")
	ErrCampaignsFailed  = errors.New("campaign execution did not succeed")
	ErrBothCampaignArgs = errors.New("--campaign-id and --campaign-name are exclusive")
)

func NewExecuteCommand() *cli.Command {
	return &cli.Command{
		Name:    "execute",
		Aliases: []string{"x"},
		Usage:   "Run campaigns once and print their reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "campaign-id",
				Usage: "Identifier of the campaign to run",
			},
			&cli.StringFlag{
				Name:  "campaign-name",
				Usage: "Title, identifier or glob of the campaigns to run",
			},
			&cli.StringFlag{
				Name:  "environment",
				Usage: "Environment overriding the campaign default",
			},
			&cli.StringFlag{
				Name:    "user",
				Usage:   "User recorded on the executions",
				Value:   "cli",
				Sources: cli.EnvVars("USER"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			id, name := command.String("campaign-id"), command.String("campaign-name")

			switch {
			case id == "" && name == "":
				return ErrNoCampaign
			case id != "" && name != "":
				return ErrBothCampaignArgs
			}

			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			logger := log.WithModule("chutney-engine")

			runtime, err := cmd.NewRuntime(ctx, logger, cfg)
			if err != nil {
				return err
			}

			defer func() {
				if err := runtime.Close(context.Background()); err != nil {
					logger.Error("Failed to close runtime", slog.Any("error", err))
				}
			}()

			var reports []*models.CampaignExecution

			if id != "" {
				report, err := runtime.Campaigns.ExecuteByID(ctx, id, command.String("environment"), command.String("user"))
				if err != nil {
					return err
				}

				reports = append(reports, report)
			} else {
				reports, err = runtime.Campaigns.ExecuteByName(ctx, name, command.String("environment"), command.String("user"))
				if err != nil {
					return err
				}
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")

			if err := encoder.Encode(reports); err != nil {
				return err
			}

			for _, report := range reports {
				if report.Status != models.StatusSuccess {
					return fmt.Errorf("%w: %s is %s", ErrCampaignsFailed, report.CampaignID, report.Status)
				}
			}

			return nil
		},
	}
}
