package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/chutney-testing/chutney-suite/pkg/cmd"
	"github.com/chutney-testing/chutney-suite/pkg/execution"
	"github.com/chutney-testing/chutney-suite/pkg/log"
	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/persistence"
)

var ErrScheduleIDRequired = errors.New("schedule id is required")

func NewScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Manage scheduled campaigns",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Schedule a campaign with a cron expression",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "campaign-id", Required: true},
					&cli.StringFlag{Name: "cron", Required: true, Usage: "Cron expression or descriptor such as @hourly"},
					&cli.StringFlag{Name: "environment"},
				},
				Action: withPersistence(func(ctx context.Context, command *cli.Command, store persistence.Persistence) error {
					if _, err := store.CampaignByID(ctx, command.String("campaign-id")); err != nil {
						return err
					}

					schedule, err := models.NewSchedule(
						execution.NewID("sch"),
						command.String("campaign-id"),
						command.String("environment"),
						command.String("cron"),
					)
					if err != nil {
						return err
					}

					if err := store.SaveSchedule(ctx, schedule); err != nil {
						return err
					}

					fmt.Printf("%s next run at %s\n", schedule.ID, schedule.NextDueAt.Format(time.RFC3339))

					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "List scheduled campaigns",
				Action: withPersistence(func(ctx context.Context, _ *cli.Command, store persistence.Persistence) error {
					schedules, err := store.Schedules(ctx)
					if err != nil {
						return err
					}

					writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(writer, "ID\tCAMPAIGN\tENVIRONMENT\tCRON\tNEXT RUN\tACTIVE")

					for _, schedule := range schedules {
						fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%t\n",
							schedule.ID, schedule.CampaignID, schedule.Environment, schedule.CronExpression,
							schedule.NextDueAt.Format(time.RFC3339), schedule.Active)
					}

					return writer.Flush()
				}),
			},
			{
				Name:      "remove",
				Usage:     "Remove a scheduled campaign",
				ArgsUsage: "<schedule-id>",
				Action: withPersistence(func(ctx context.Context, command *cli.Command, store persistence.Persistence) error {
					id := command.Args().First()
					if id == "" {
						return ErrScheduleIDRequired
					}

					return store.DeleteSchedule(ctx, id)
				}),
			},
		},
	}
}

func withPersistence(action func(ctx context.Context, command *cli.Command, store persistence.Persistence) error) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		cfg, err := loadConfig(command)
		if err != nil {
			return err
		}

		logger := log.WithModule("chutney-engine")

		store, err := cmd.NewPersistence(ctx, logger, cfg.Persistence.URL)
		if err != nil {
			return err
		}

		defer func() {
			if err := store.Close(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to close persistence", slog.Any("error", err))
			}
		}()

		return action(ctx, command, store)
	}
}
