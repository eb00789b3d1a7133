package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/qms/internal/config"
	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/domain/document"
	"github.com/rpggio/qms/internal/metrics"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/sqlite"
	"github.com/rpggio/qms/internal/workflow"
	cli "github.com/urfave/cli/v3"
)

// environment holds everything a command needs, opened once per invocation.
type environment struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sqlite.DB
	engine  *workflow.Engine
	policy  *permission.Policy
	metrics *metrics.Recorder
	docs    *document.Service
	audit   *audit.Service
	apiKeys *sqlite.APIKeyRepository
	closers []io.Closer
}

func openEnvironment(cmd *cli.Command, logWriter io.Writer) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if path := cmd.String("db"); path != "" {
		cfg.DB.Path = path
	}

	env := &environment{cfg: cfg}
	if cfg.Log.Path != "" {
		fileWriter, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			env.closers = append(env.closers, fileWriter)
			logWriter = fileWriter
		}
	}
	env.logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		env.Close()
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.db = db
	env.closers = append(env.closers, db)
	if err := db.RunMigrations(); err != nil {
		env.Close()
		return nil, err
	}

	env.engine = workflow.NewEngine(workflow.DefaultTable())
	env.policy = permission.DefaultPolicy()
	resolver := permission.ChainResolver{
		permission.StaticResolver(cfg.Users),
		permission.AgentDirResolver{Dir: cfg.Agents.Dir},
	}
	authorizer := permission.NewAuthorizer(env.policy, resolver, env.logger)

	env.metrics = metrics.New()
	env.audit = audit.NewService(sqlite.NewAuditRepository(db), env.logger)
	env.docs = document.NewService(
		sqlite.NewDocumentRepository(db),
		env.engine,
		authorizer,
		env.audit,
		env.metrics,
		env.logger,
	)
	env.apiKeys = sqlite.NewAPIKeyRepository(db)
	return env, nil
}

// Close releases resources in reverse order of acquisition.
func (e *environment) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}

// actor returns the acting user from --user or the configured default.
func (e *environment) actor(cmd *cli.Command) (string, error) {
	if user := cmd.String("user"); user != "" {
		return user, nil
	}
	if e.cfg.DefaultUser != "" {
		return e.cfg.DefaultUser, nil
	}
	return "", fmt.Errorf("%w: --user is required", document.ErrInvalidInput)
}

// withEnvironment opens the environment for a document command and resolves the actor.
func withEnvironment(fn func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		env, err := openEnvironment(cmd, cmd.Root().ErrWriter)
		if err != nil {
			return err
		}
		defer env.Close()

		actor, err := env.actor(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, env, actor)
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
