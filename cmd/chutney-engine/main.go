// Package main provides the chutney-engine command line.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "chutney-engine",
		Usage:                 "Run, schedule and stop test campaigns",
		EnableShellCompletion: true,
		Flags:                 commonFlags(),
		Commands: []*cli.Command{
			NewRunCommand(),
			NewExecuteCommand(),
			NewScheduleCommand(),
			NewValidateCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
