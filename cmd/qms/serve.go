package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/qms/internal/mcp"
	"github.com/rpggio/qms/internal/transport"
	cli "github.com/urfave/cli/v3"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP tool server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Usage: "stdio or http (overrides config)"},
			&cli.StringFlag{Name: "host", Usage: "HTTP listen host (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "HTTP listen port (overrides config)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			mode := cmd.String("transport")
			// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
			var logWriter io.Writer = os.Stdout
			if mode == "stdio" || mode == "" {
				logWriter = os.Stderr
			}
			env, err := openEnvironment(cmd, logWriter)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := env.cfg
			if mode != "" {
				cfg.Transport.Mode = mode
			}
			if host := cmd.String("host"); host != "" {
				cfg.Server.Host = host
			}
			if port := int(cmd.Int("port")); port > 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			mcpServer := mcp.NewServer(mcp.Config{
				Services: mcp.Services{
					Documents: env.docs,
					Audit:     env.audit,
				},
				Engine:        env.engine,
				Policy:        env.policy,
				Resolver:      env.apiKeys,
				AuthEnabled:   cfg.Auth.Enabled,
				TransportMode: cfg.Transport.Mode,
				DefaultUser:   cfg.DefaultUser,
				Version:       cmd.Root().Version,
				Logger:        env.logger,
			})

			if cfg.Transport.Mode == "stdio" {
				return runStdioMode(ctx, env.logger, mcpServer)
			}
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			return runHTTPMode(ctx, env, mcpServer, addr, cfg.Auth.Enabled)
		},
	}
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTPMode(ctx context.Context, env *environment, mcpServer *sdkmcp.Server, addr string, authEnabled bool) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	routes := transport.RouterConfig{
		MCP:     mcpHandler,
		Metrics: env.metrics.Handler(),
		Logger:  env.logger,
	}
	if authEnabled {
		routes.Auth = transport.AuthMiddleware(env.apiKeys)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           transport.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		env.logger.Info("server listening", "addr", addr, "auth", authEnabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(ctx, env.logger, httpServer, errCh)
}

func waitForShutdown(ctx context.Context, logger *slog.Logger, server *http.Server, errCh <-chan error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}
