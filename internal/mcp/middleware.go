package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const identityKey contextKey = iota

// identity is who a request acts as. An authenticated identity cannot be
// overridden by the user tool argument.
type identity struct {
	user          string
	authenticated bool
}

func getIdentity(ctx context.Context) identity {
	v, _ := ctx.Value(identityKey).(identity)
	return v
}

// UserResolver resolves a username from a bearer token.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver UserResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			user, err := resolver.ResolveUser(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if user == "" {
				return nil, fmt.Errorf("unauthorized: invalid bearer token")
			}

			ctx = context.WithValue(ctx, identityKey, identity{user: user, authenticated: true})
			return next(ctx, method, req)
		}
	}
}

// noAuthMiddleware injects a default user when auth is disabled. Tool calls may name another.
func noAuthMiddleware(defaultUser string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = context.WithValue(ctx, identityKey, identity{user: defaultUser})
			return next(ctx, method, req)
		}
	}
}

// resolveActor picks the acting user for a tool call.
func resolveActor(ctx context.Context, requested string) (string, error) {
	id := getIdentity(ctx)
	switch {
	case id.authenticated:
		if requested != "" && requested != id.user {
			return "", &APIError{
				Code:    "INVALID_INPUT",
				Message: fmt.Sprintf("user %q does not match the authenticated user", requested),
			}
		}
		return id.user, nil
	case requested != "":
		return requested, nil
	case id.user != "":
		return id.user, nil
	}
	return "", &APIError{
		Code:         "INVALID_INPUT",
		Message:      "no acting user",
		RecoveryHint: "Pass the user argument",
	}
}
