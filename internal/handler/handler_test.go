package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/code-battles/internal/auth"
	"github.com/sakif/code-battles/internal/gitpoll"
	"github.com/sakif/code-battles/internal/model"
	"github.com/sakif/code-battles/internal/repository/sqlite"
	"github.com/sakif/code-battles/internal/roster"
	"github.com/sakif/code-battles/internal/service"
)

// stubSource scripts what the git-polling layer reports per player.
type stubSource struct {
	submissions map[string]gitpoll.Submission
}

func (s *stubSource) LatestSubmission(_ context.Context, username string) (gitpoll.Submission, error) {
	return s.submissions[username], nil
}

// testEnv wires real services over an in-memory store, with only the
// git-polling layer stubbed. Handlers get exercised against genuine service
// behavior, not handler-shaped mocks.
type testEnv struct {
	store   *sqlite.DB
	players *service.PlayerService
	ladder  *service.LadderService
	source  *stubSource
	tokens  *auth.TokenService
	roster  *roster.Client
	logger  *slog.Logger
}

// newTestEnv builds the environment. "prof" is the only staff login.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-key")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := &stubSource{submissions: map[string]gitpoll.Submission{}}
	return &testEnv{
		store:   store,
		players: service.NewPlayerService(store, logger),
		ladder:  service.NewLadderService(store, source, time.Time{}, logger),
		source:  source,
		tokens:  tokens,
		roster:  roster.New("", "", []string{"prof"}),
		logger:  logger,
	}
}

// enrollPlayer creates a player and enrolls a commit for them directly
// through the services, bypassing HTTP — setup, not the thing under test.
func (env *testEnv) enrollPlayer(t *testing.T, username, commit string) *model.Player {
	t.Helper()
	ctx := context.Background()

	player, err := env.players.Initialize(ctx, username)
	require.NoError(t, err)
	require.NoError(t, env.ladder.Reenroll(ctx, player, commit, "setup"))

	player, err = env.players.Lookup(ctx, username)
	require.NoError(t, err)
	return player
}

// authedRequest builds a request carrying a valid session cookie for login.
func (env *testEnv) authedRequest(t *testing.T, method, target, body, login string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	token, err := env.tokens.Generate(login)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	return req
}

// serve runs the handler behind the real session middleware, the same wrap
// the router applies.
func (env *testEnv) serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	auth.RequireAuth(env.tokens)(h).ServeHTTP(rr, req)
	return rr
}
