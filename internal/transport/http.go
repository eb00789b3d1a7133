package transport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires the HTTP endpoints.
type RouterConfig struct {
	// MCP serves the streamable MCP endpoint.
	MCP http.Handler
	// Auth guards /mcp when set.
	Auth func(http.Handler) http.Handler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter creates an HTTP router with middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.MCP != nil {
		r.Group(func(r chi.Router) {
			if cfg.Auth != nil {
				r.Use(cfg.Auth)
			}
			r.Use(AccessLog(cfg.Logger))
			r.Handle("/mcp", cfg.MCP)
			r.Handle("/mcp/*", cfg.MCP)
		})
	}
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
