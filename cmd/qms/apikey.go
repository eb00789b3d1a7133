package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rpggio/qms/internal/repository"
	cli "github.com/urfave/cli/v3"
)

func apiKeyCmd() *cli.Command {
	return &cli.Command{
		Name:  "apikey",
		Usage: "Manage bearer tokens for the HTTP transport",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Issue a token that authenticates as a user",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Usage: "What the token is for"},
					&cli.StringFlag{Name: "token", Usage: "Use this token instead of generating one"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					username := strings.TrimSpace(cmd.Args().First())
					if username == "" {
						return fmt.Errorf("username argument is required")
					}
					env, err := openEnvironment(cmd, os.Stderr)
					if err != nil {
						return err
					}
					defer env.Close()

					token := cmd.String("token")
					if token == "" {
						token = newToken()
					}
					if err := env.apiKeys.Create(ctx, token, username, cmd.String("description")); err != nil {
						if errors.Is(err, repository.ErrDuplicate) {
							return fmt.Errorf("token already registered")
						}
						return err
					}
					return printMessage(cmd, map[string]string{"user": username, "token": token}, token)
				},
			},
		},
	}
}

func newToken() string {
	return "qms_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
