package mcp

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
)

// Services contains all domain services needed by MCP.
type Services struct {
	Documents DocumentService
	Audit     AuditService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Engine        *workflow.Engine
	Policy        *permission.Policy
	Resolver      UserResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	// DefaultUser acts when auth is disabled and a tool call names no user.
	DefaultUser string
	Version     string
	Logger      *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "qms",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server, buildDocResources(cfg.Engine, cfg.Policy, cfg.Services.Audit))

	// Later middleware wraps earlier middleware, so identity is resolved
	// before traffic logging runs.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	// Stdio mode: always disable auth (local use only)
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DefaultUser))
	}

	registerTools(server, NewHandler(cfg.Services.Documents), cfg.Logger)

	return server
}
