package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/reading-server/internal/auth"
	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/ratelimit"
	"github.com/listenupapp/reading-server/internal/service"
	"github.com/listenupapp/reading-server/internal/sse"
	"github.com/listenupapp/reading-server/internal/store/sqlite"
)

var t0 = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

// testServer wraps the API server with handles the tests drive directly.
type testServer struct {
	*Server
	api        humatest.TestAPI
	clock      *clock.Fake
	tokens     *auth.TokenService
	sseManager *sse.Manager
	catalog    *service.CatalogService

	userID string
	bookID string
	token  string
}

type serverOption func(*testServerConfig)

type testServerConfig struct {
	limiter *ratelimit.KeyedRateLimiter
}

func withProgressLimiter(l *ratelimit.KeyedRateLimiter) serverOption {
	return func(c *testServerConfig) { c.limiter = l }
}

// setupTestServer wires the full server over a temporary SQLite database
// and seeds one reader, one book and a token for the reader.
func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	var cfg testServerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := sqlite.Open(filepath.Join(tmpDir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clk := clock.NewFake(t0)

	key, err := auth.LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute, clk)
	require.NoError(t, err)

	sseManager := sse.NewManager(logger)
	locks := service.NewKeyedLocker()
	th := service.DefaultThresholds()

	services := &Services{
		Progress: service.NewProgressService(st, locks, clk, th, sseManager, logger),
		Sessions: service.NewSessionService(st, locks, clk, th, sseManager, logger),
		History:  service.NewHistoryService(st, locks, clk, sseManager, logger),
		Catalog:  service.NewCatalogService(st, clk, logger),
	}

	if cfg.limiter != nil {
		t.Cleanup(cfg.limiter.Stop)
	}

	s := NewServer(st, services, tokens, sseManager, cfg.limiter, []string{"*"}, logger)

	ts := &testServer{
		Server:     s,
		api:        humatest.Wrap(t, s.API()),
		clock:      clk,
		tokens:     tokens,
		sseManager: sseManager,
		catalog:    services.Catalog,
	}

	ctx := context.Background()
	u, err := services.Catalog.CreateUser(ctx, service.CreateUserRequest{DisplayName: "Ada"})
	require.NoError(t, err)
	b, err := services.Catalog.CreateBook(ctx, service.CreateBookRequest{Title: "Middlemarch", Author: "George Eliot"})
	require.NoError(t, err)
	ts.userID, ts.bookID = u.ID, b.ID
	ts.token = ts.tokenFor(t, u.ID)

	return ts
}

func (ts *testServer) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := ts.tokens.GenerateAccessToken(userID)
	require.NoError(t, err)
	return token
}

func (ts *testServer) authHeader() string {
	return "Authorization: Bearer " + ts.token
}

// envelopeBody is the decoded response envelope.
type envelopeBody struct {
	Version int             `json:"v"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func decodeEnvelope(t *testing.T, body []byte) envelopeBody {
	t.Helper()
	var env envelopeBody
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	require.Equal(t, EnvelopeVersion, env.Version)
	return env
}

// decodeData unwraps a success envelope into out.
func decodeData(t *testing.T, body []byte, out any) {
	t.Helper()
	env := decodeEnvelope(t, body)
	require.True(t, env.Success, "body: %s", body)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
