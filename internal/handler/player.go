package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/code-battles/internal/auth"
	"github.com/sakif/code-battles/internal/model"
	"github.com/sakif/code-battles/internal/roster"
	"github.com/sakif/code-battles/internal/service"
)

// PlayerHandler serves the authenticated player's own view of the tournament:
// profile, screen name, enrollment.
//
// Every route here sits behind RequireAuth, so LoginFromContext always yields
// the caller's GitHub login — the handler never trusts a username from the
// request body or URL.
type PlayerHandler struct {
	players *service.PlayerService
	ladder  *service.LadderService
	roster  *roster.Client
	logger  *slog.Logger
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(
	players *service.PlayerService,
	ladder *service.LadderService,
	rosterClient *roster.Client,
	logger *slog.Logger,
) *PlayerHandler {
	return &PlayerHandler{
		players: players,
		ladder:  ladder,
		roster:  rosterClient,
		logger:  logger,
	}
}

// playerView is the self-profile response shape.
type playerView struct {
	ID             int64                    `json:"id"`
	Username       string                   `json:"username"`
	ScreenName     string                   `json:"screen_name"`
	EnrolledCommit string                   `json:"enrolled_commit"`
	CommitComment  string                   `json:"commit_comment"`
	Staff          bool                     `json:"staff"`
	Record         model.Record             `json:"record"`
	Matchups       []service.MatchupSummary `json:"matchups"`
}

// HandleGetPlayer returns the caller's full profile: identity, enrollment,
// record, and matchups.
//
// HTTP: GET /api/player
//
// The player row is created on first authorized access (EnsurePlayer), so a
// freshly logged-in student sees a profile immediately — unenrolled, with an
// empty record and no matchups.
func (h *PlayerHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	login, _ := auth.LoginFromContext(r.Context())

	player, err := h.players.EnsurePlayer(r.Context(), login)
	if err != nil {
		h.logger.Error("get player: ensure failed", slog.String("login", login), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	record, err := h.ladder.ComputeRecord(r.Context(), player.ID)
	if err != nil {
		h.logger.Error("get player: record failed", slog.Int64("playerID", player.ID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	staff := h.roster.IsAdmin(login)
	matchups, err := h.ladder.MatchupsForPlayer(r.Context(), login, staff)
	if err != nil {
		h.logger.Error("get player: matchups failed", slog.Int64("playerID", player.ID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, playerView{
		ID:             player.ID,
		Username:       player.Username,
		ScreenName:     player.ScreenName,
		EnrolledCommit: player.EnrolledCommit,
		CommitComment:  player.CommitComment,
		Staff:          staff,
		Record:         record,
		Matchups:       matchups,
	})
}

// HandleGetScreenName returns just the caller's screen name.
//
// HTTP: GET /api/player/screenname
func (h *PlayerHandler) HandleGetScreenName(w http.ResponseWriter, r *http.Request) {
	login, _ := auth.LoginFromContext(r.Context())

	name, err := h.players.GetScreenName(r.Context(), login)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"screen_name": name})
}

// HandleSetScreenName replaces the caller's screen name.
//
// HTTP: POST /api/player/screenname
// REQUEST BODY: {"screen_name": "NEWNAME"}
//
// Outcomes map straight from the service: identical name → 200 with a
// no_change marker, taken name → 409, otherwise 200 with the new name.
func (h *PlayerHandler) HandleSetScreenName(w http.ResponseWriter, r *http.Request) {
	login, _ := auth.LoginFromContext(r.Context())

	var body struct {
		ScreenName string `json:"screen_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("set screen name: invalid JSON", slog.String("error", err.Error()))
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	name, err := h.players.SetScreenName(r.Context(), login, body.ScreenName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"screen_name": name})
}

// HandleGetMatchups returns the caller's matchup summaries, superseded
// generations folded under the newest matchup per opponent.
//
// HTTP: GET /api/player/matchups
func (h *PlayerHandler) HandleGetMatchups(w http.ResponseWriter, r *http.Request) {
	login, _ := auth.LoginFromContext(r.Context())

	matchups, err := h.ladder.MatchupsForPlayer(r.Context(), login, h.roster.IsAdmin(login))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matchups)
}

// HandleEnroll enrolls the caller's latest pushed commit into the ladder.
//
// HTTP: POST /api/player/enroll
//
// The heavy lifting — the gating against the git-polling service and, when a
// genuinely new submission exists, the cancel-and-regenerate cascade — lives
// in LadderService.Enroll. This handler only supplies identity and staffness
// (staff may enroll past the deadline).
func (h *PlayerHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	login, _ := auth.LoginFromContext(r.Context())

	result, err := h.ladder.Enroll(r.Context(), login, h.roster.IsAdmin(login))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
