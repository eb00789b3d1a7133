package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

// version is overridden at build time with -ldflags.
var version = "0.1.0"

func main() {
	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "qms",
		Version: version,
		Usage:   "Controlled-document review and approval workflow",
		Description: "Documents move DRAFT -> review -> approval -> EFFECTIVE; executable documents\n" +
			"run pre and post phases around execution. Every command acts as --user.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Acting user",
				Sources: cli.EnvVars("QMS_USER"),
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path (overrides config)",
				Sources: cli.EnvVars("QMS_DB_PATH"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
		},
		Commands: append(documentCommands(), serveCmd(), apiKeyCmd()),
	}
}
