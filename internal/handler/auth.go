package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/code-battles/internal/auth"
	"github.com/sakif/code-battles/internal/roster"
	"github.com/sakif/code-battles/internal/service"
)

// AuthHandler manages the GitHub OAuth login flow and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, check the roster, issue JWT
//   - HandleLogout         → clear the JWT cookie
//
// DEPENDENCY CHAIN:
//   - github  *auth.GitHubProvider → performs the OAuth code exchange
//   - tokens  *auth.TokenService   → issues JWT session tokens
//   - roster  *roster.Client       → only course members get a session
//   - players *service.PlayerService → initializes the player row on first login
type AuthHandler struct {
	github  *auth.GitHubProvider
	tokens  *auth.TokenService
	roster  *roster.Client
	players *service.PlayerService
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	github *auth.GitHubProvider,
	tokens *auth.TokenService,
	rosterClient *roster.Client,
	players *service.PlayerService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		github:  github,
		tokens:  tokens,
		roster:  rosterClient,
		players: players,
		logger:  logger,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: not sent on cross-site POSTs (extra CSRF protection)
//   - 10-minute expiry: long enough for the user to approve, short enough to limit risk
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	// Generate a random, unguessable state value
	state := xid.New().String()

	// Store it in a cookie so we can verify it on callback
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect the browser to GitHub
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Check the login against the course roster — non-members get no session
//  4. Initialize the player row if this is their first visit
//  5. Issue a JWT session token stored in an HttpOnly cookie
//  6. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Check if GitHub sent an error (user denied authorization)
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// The registry keys players by lowercased login
	login := strings.ToLower(ghUser.Login)

	// --- Step 3: Roster gate ---
	// A valid GitHub account is not enough — only course members (and staff)
	// get a session. Everybody else sees the same "not on the roster" page.
	member, err := h.roster.IsRosterMember(r.Context(), login)
	if err != nil {
		h.logger.Error("auth callback: roster check failed",
			slog.String("login", login),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	if !member {
		h.logger.Info("auth callback: login not on roster", slog.String("login", login))
		http.Redirect(w, r, "/?auth=not_enrolled", http.StatusSeeOther)
		return
	}

	// --- Step 4: Initialize the player row on first login ---
	player, err := h.players.EnsurePlayer(r.Context(), login)
	if err != nil {
		h.logger.Error("auth callback: player initialization failed",
			slog.String("login", login),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("player authenticated",
		slog.Int64("playerID", player.ID),
		slog.String("login", login),
	)

	// --- Step 5: Issue JWT cookie ---
	tokenStr, err := h.tokens.Generate(login)
	if err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// Set the JWT as an HttpOnly cookie.
	// HttpOnly = JavaScript cannot read this cookie (XSS protection).
	// SameSite=Lax = cookie is sent on top-level navigations but not cross-site POSTs.
	// Secure should be true in production (HTTPS only). We leave it false for local dev.
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int((8 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})

	// --- Step 6: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie, effectively logging the player out.
//
// HTTP: POST /auth/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL. POST ensures intentional action.
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but without
// the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
