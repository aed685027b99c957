package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-battles/internal/handler"
)

func TestRunnerHandler_HandleNextMatchup(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewRunnerHandler(env.ladder, env.logger)

	t.Run("empty ladder answers 204", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runner/matchups/next", nil)
		rr := httptest.NewRecorder()
		h.HandleNextMatchup(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())
	})

	t.Run("queued work is handed out with both submissions", func(t *testing.T) {
		env.enrollPlayer(t, "alice", "a1")
		env.enrollPlayer(t, "bob", "b1")

		req := httptest.NewRequest(http.MethodGet, "/runner/matchups/next", nil)
		rr := httptest.NewRecorder()
		h.HandleNextMatchup(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.NotZero(t, body["matchup_id"])

		p1 := body["player_one"].(map[string]any)
		p2 := body["player_two"].(map[string]any)
		assert.Equal(t, "alice", p1["username"])
		assert.Equal(t, "a1", p1["commit"])
		assert.Equal(t, "bob", p2["username"])
	})
}

func TestRunnerHandler_HandleClaimMatch(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewRunnerHandler(env.ladder, env.logger)

	alice := env.enrollPlayer(t, "alice", "a1")
	env.enrollPlayer(t, "bob", "b1")
	matchupID := mustMatchupID(t, env, alice.ID)

	claim := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost,
			fmt.Sprintf("/runner/matchups/%d/matches/next", matchupID), nil)
		req.SetPathValue("matchupID", fmt.Sprint(matchupID))
		rr := httptest.NewRecorder()
		h.HandleClaimMatch(rr, req)
		return rr
	}

	t.Run("claims drain the matchup one match at a time", func(t *testing.T) {
		seen := map[float64]bool{}
		for {
			rr := claim()
			if rr.Code == http.StatusNoContent {
				break
			}
			require.Equal(t, http.StatusOK, rr.Code)

			var body map[string]any
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			matchID := body["match_id"].(float64)
			assert.False(t, seen[matchID], "match %v handed out twice", matchID)
			seen[matchID] = true
			assert.Contains(t, body, "start_trace")
		}

		boards, err := env.store.ListBoards(context.Background())
		require.NoError(t, err)
		assert.Len(t, seen, len(boards)) // one match per board in the catalog
	})

	t.Run("invalid matchup id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/runner/matchups/zzz/matches/next", nil)
		req.SetPathValue("matchupID", "zzz")
		rr := httptest.NewRecorder()
		h.HandleClaimMatch(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRunnerHandler_HandleSubmitResult(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewRunnerHandler(env.ladder, env.logger)

	alice := env.enrollPlayer(t, "alice", "a1")
	env.enrollPlayer(t, "bob", "b1")

	claimed, err := env.ladder.ClaimNextMatch(context.Background(), mustMatchupID(t, env, alice.ID))
	require.NoError(t, err)

	submit := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost,
			fmt.Sprintf("/runner/matches/%d/result", claimed.MatchID),
			strings.NewReader(body))
		req.SetPathValue("matchID", fmt.Sprint(claimed.MatchID))
		rr := httptest.NewRecorder()
		h.HandleSubmitResult(rr, req)
		return rr
	}

	t.Run("winner is required and bounded", func(t *testing.T) {
		for _, body := range []string{
			`{"trace_p1_starts":"x","trace_p2_starts":"y"}`,
			`{"winner":2,"trace_p1_starts":"x","trace_p2_starts":"y"}`,
			`{"winner":-3,"trace_p1_starts":"x","trace_p2_starts":"y"}`,
		} {
			rr := submit(body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, "body %s", body)
		}
	})

	t.Run("result is recorded", func(t *testing.T) {
		rr := submit(`{"winner":0,"trace_p1_starts":"endA","trace_p2_starts":"endB"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		match, err := env.store.GetMatchByID(context.Background(), claimed.MatchID)
		require.NoError(t, err)
		assert.Equal(t, "endA", match.EndTraceP1Starts)
		assert.Equal(t, "endB", match.EndTraceP2Starts)
	})

	t.Run("second result for the same match is refused", func(t *testing.T) {
		rr := submit(`{"winner":1,"trace_p1_starts":"x","trace_p2_starts":"y"}`)
		require.Equal(t, http.StatusInternalServerError, rr.Code)

		var body handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "internal_error", body.Error)
	})
}
