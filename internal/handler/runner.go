package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/service"
)

// RunnerHandler is the machine-facing side of the engine: the endpoints the
// match runner polls to find work and report outcomes.
//
// These routes live behind RequireRunnerKey, not the session middleware —
// runners are headless processes authenticating with a shared key.
//
// "NOTHING TO DO" IS NOT AN ERROR:
// A drained queue is the steady state of a healthy ladder. Both the
// next-matchup and claim endpoints answer 204 No Content when there is no
// work, so the runner's idle loop never trips error handling or log noise.
type RunnerHandler struct {
	ladder *service.LadderService
	logger *slog.Logger
}

// NewRunnerHandler creates a RunnerHandler.
func NewRunnerHandler(ladder *service.LadderService, logger *slog.Logger) *RunnerHandler {
	return &RunnerHandler{ladder: ladder, logger: logger}
}

// HandleNextMatchup returns the oldest matchup that still has queued matches.
//
// HTTP: GET /runner/matchups/next
//
// RESPONSE FORMAT:
//
//	{"matchup_id": 17,
//	 "player_one": {"id": 2, "username": "alice", "commit": "9f3a..."},
//	 "player_two": {"id": 5, "username": "bob",   "commit": "11c0..."}}
//
// 204 when the queue is drained.
func (h *RunnerHandler) HandleNextMatchup(w http.ResponseWriter, r *http.Request) {
	matchup, err := h.ladder.NextMatchupForExecution(r.Context())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("next matchup failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matchup)
}

// HandleClaimMatch atomically claims the oldest queued match of a matchup.
//
// HTTP: POST /runner/matchups/{matchupID}/matches/next
//
// The claim is a compare-and-swap in the store: two runners hitting this
// concurrently get different matches (or one gets 204). POST, not GET —
// claiming moves the match to in-progress.
func (h *RunnerHandler) HandleClaimMatch(w http.ResponseWriter, r *http.Request) {
	matchupID, err := strconv.ParseInt(r.PathValue("matchupID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid matchup id", http.StatusBadRequest)
		return
	}

	claimed, err := h.ladder.ClaimNextMatch(r.Context(), matchupID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("claim failed", slog.Int64("matchupID", matchupID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimed)
}

// HandleSubmitResult finalizes a match.
//
// HTTP: POST /runner/matches/{matchID}/result
// REQUEST BODY: {"winner": 1 | -1 | 0,
//                "trace_p1_starts": "...", "trace_p2_starts": "..."}
//
// A result for an already-finished match is rejected — the first recorded
// outcome wins, duplicates are a runner bug worth surfacing.
func (h *RunnerHandler) HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.ParseInt(r.PathValue("matchID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}

	var body struct {
		Winner        *int   `json:"winner"`
		TraceP1Starts string `json:"trace_p1_starts"`
		TraceP2Starts string `json:"trace_p2_starts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("submit result: invalid JSON", slog.String("error", err.Error()))
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.Winner == nil || *body.Winner < -1 || *body.Winner > 1 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "winner must be 1, -1 or 0",
		})
		return
	}

	if err := h.ladder.SubmitResult(r.Context(), matchID, *body.Winner, body.TraceP1Starts, body.TraceP2Starts); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "result recorded"})
}
