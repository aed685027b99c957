package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-battles/internal/handler"
	"github.com/sakif/code-battles/internal/model"
)

func TestLadderHandler_HandleStandings(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewLadderHandler(env.ladder, env.roster, env.logger)
	ctx := context.Background()

	alice := env.enrollPlayer(t, "alice", "a1")
	env.enrollPlayer(t, "bob", "b1")

	// alice takes the pair 2-0
	match, err := env.store.ClaimNextMatch(ctx, mustMatchupID(t, env, alice.ID))
	require.NoError(t, err)
	require.NoError(t, env.store.RecordMatchResult(ctx, match.ID, model.StatusP1Won, "t1", "t2"))
	match, err = env.store.ClaimNextMatch(ctx, mustMatchupID(t, env, alice.ID))
	require.NoError(t, err)
	require.NoError(t, env.store.RecordMatchResult(ctx, match.ID, model.StatusP1Won, "t1", "t2"))

	req := env.authedRequest(t, http.MethodGet, "/api/standings", "", "carol")
	rr := env.serve(h.HandleStandings, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body, 2)

	// best record first, and pseudonymous: screen names but never usernames
	assert.Equal(t, float64(alice.ID), body[0]["id"])
	assert.Equal(t, []any{float64(1), float64(0), float64(0)}, body[0]["record"])
	assert.Equal(t, []any{float64(0), float64(1), float64(0)}, body[1]["record"])
	for _, row := range body {
		assert.NotEmpty(t, row["screen_name"])
		assert.NotContains(t, row, "username")
	}
}

func TestLadderHandler_HandleAllMatchups(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewLadderHandler(env.ladder, env.roster, env.logger)

	env.enrollPlayer(t, "alice", "a1")
	env.enrollPlayer(t, "bob", "b1")

	t.Run("students are refused", func(t *testing.T) {
		req := env.authedRequest(t, http.MethodGet, "/api/matchups", "", "alice")
		rr := env.serve(h.HandleAllMatchups, req)

		require.Equal(t, http.StatusForbidden, rr.Code)
		var body handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "forbidden", body.Error)
	})

	t.Run("staff see usernames and commits", func(t *testing.T) {
		req := env.authedRequest(t, http.MethodGet, "/api/matchups", "", "prof")
		rr := env.serve(h.HandleAllMatchups, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var body []map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		require.Len(t, body, 1)

		p1 := body[0]["player_one"].(map[string]any)
		assert.Equal(t, "alice", p1["username"])
		assert.Equal(t, "a1", p1["commit"])
	})
}

// mustMatchupID returns the player's single latest matchup id. Only valid in
// two-player setups.
func mustMatchupID(t *testing.T, env *testEnv, playerID int64) int64 {
	t.Helper()
	matchups, err := env.store.LatestMatchupsForPlayer(context.Background(), playerID)
	require.NoError(t, err)
	require.Len(t, matchups, 1)
	return matchups[0].ID
}
