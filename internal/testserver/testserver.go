// Package testserver runs the full HTTP stack against an in-memory database.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/domain/document"
	"github.com/rpggio/qms/internal/mcp"
	"github.com/rpggio/qms/internal/metrics"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/sqlite"
	"github.com/rpggio/qms/internal/transport"
	"github.com/rpggio/qms/internal/workflow"
	"github.com/stretchr/testify/require"
)

// DefaultUsers maps the users most tests need to their groups.
var DefaultUsers = map[string]string{
	"alice": "initiator",
	"bob":   "reviewer",
	"carol": "reviewer",
	"qa":    "quality",
}

type TestServer struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Metrics *metrics.Recorder
	apiKeys *sqlite.APIKeyRepository
}

// New starts an authenticated server whose users resolve through users.
func New(t *testing.T, users map[string]string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	engine := workflow.NewEngine(workflow.DefaultTable())
	policy := permission.DefaultPolicy()
	authorizer := permission.NewAuthorizer(policy, permission.StaticResolver(users), nil)
	recorder := metrics.New()

	auditSvc := audit.NewService(sqlite.NewAuditRepository(db), nil)
	docSvc := document.NewService(sqlite.NewDocumentRepository(db), engine, authorizer, auditSvc, recorder, nil)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	mcpServer := mcp.NewServer(mcp.Config{
		Services:      mcp.Services{Documents: docSvc, Audit: auditSvc},
		Engine:        engine,
		Policy:        policy,
		Resolver:      apiKeys,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)

	server := httptest.NewServer(transport.NewRouter(transport.RouterConfig{
		MCP:     mcpHandler,
		Auth:    transport.AuthMiddleware(apiKeys),
		Metrics: recorder.Handler(),
	}))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return &TestServer{Server: server, DB: db, Metrics: recorder, apiKeys: apiKeys}
}

// AddAPIKey registers token as username.
func (ts *TestServer) AddAPIKey(token, username string) error {
	return ts.apiKeys.Create(context.Background(), token, username, "test")
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(req)
}

// Connect issues a token for username and opens an MCP session with it.
func (ts *TestServer) Connect(t *testing.T, username string) *sdkmcp.ClientSession {
	t.Helper()

	token := "token-" + username
	require.NoError(t, ts.AddAPIKey(token, username))
	return ts.ConnectWithToken(t, token)
}

// ConnectWithToken opens an MCP session that sends token on every request.
func (ts *TestServer) ConnectWithToken(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "qms-test", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: token, base: http.DefaultTransport}},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}
