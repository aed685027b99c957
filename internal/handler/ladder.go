package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/code-battles/internal/auth"
	"github.com/sakif/code-battles/internal/roster"
	"github.com/sakif/code-battles/internal/service"
)

// LadderHandler serves the public and staff views of the tournament ladder.
//
// Standings are public (any authenticated course member may look); the
// all-matchups view exposes usernames and commit fingerprints, so it is
// staff-only.
type LadderHandler struct {
	ladder *service.LadderService
	roster *roster.Client
	logger *slog.Logger
}

// NewLadderHandler creates a LadderHandler.
func NewLadderHandler(ladder *service.LadderService, rosterClient *roster.Client, logger *slog.Logger) *LadderHandler {
	return &LadderHandler{
		ladder: ladder,
		roster: rosterClient,
		logger: logger,
	}
}

// HandleStandings returns the full ladder, best record first.
//
// HTTP: GET /api/standings
//
// RESPONSE FORMAT:
//
//	[
//	  {"id": 3, "screen_name": "QK2RW7", "record": [4, 1, 0]},
//	  ...
//	]
//
// Only screen names appear — the ladder is pseudonymous to everyone,
// including its own members.
func (h *LadderHandler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.ladder.Standings(r.Context())
	if err != nil {
		h.logger.Error("standings failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, standings)
}

// HandleAllMatchups returns every matchup in the tournament with usernames
// and commit fingerprints visible.
//
// HTTP: GET /api/matchups
// Auth: staff only
func (h *LadderHandler) HandleAllMatchups(w http.ResponseWriter, r *http.Request) {
	login, _ := auth.LoginFromContext(r.Context())
	if !h.roster.IsAdmin(login) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "staff access required",
		})
		return
	}

	matchups, err := h.ladder.AllMatchups(r.Context())
	if err != nil {
		h.logger.Error("all matchups failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matchups)
}
