package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the portion of the GitHub /user API response we care about.
// GitHub returns a much larger object — we only unmarshal the fields we need.
type GitHubUser struct {
	ID        int64  `json:"id"`         // GitHub's numeric user ID — stable, never changes
	Login     string `json:"login"`      // GitHub username; lowercased, it is the player's registry key
	Name      string `json:"name"`       // Display name (may be empty)
	AvatarURL string `json:"avatar_url"` // Profile picture URL
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code
// flow.
//
// It supports both github.com and a GitHub Enterprise instance — course
// repositories usually live on an enterprise host, and enterprise OAuth uses
// the same protocol with different endpoint URLs.
//
// The code-for-token exchange happens server-to-server using the client
// secret, so the access token never touches the student's browser.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// baseURL selects the GitHub instance: empty means github.com; otherwise it
// is the enterprise host root, e.g. "https://github.example.edu", whose
// OAuth endpoints live under /login/oauth and whose REST API under /api/v3.
//
// callbackURL must exactly match the "Authorization callback URL" configured
// on the OAuth App.
func NewGitHubProvider(clientID, clientSecret, callbackURL, baseURL string) *GitHubProvider {
	endpoint := github.Endpoint
	apiURL := "https://api.github.com"

	if baseURL != "" {
		baseURL = strings.TrimSuffix(baseURL, "/")
		endpoint = oauth2.Endpoint{
			AuthURL:  baseURL + "/login/oauth/authorize",
			TokenURL: baseURL + "/login/oauth/access_token",
		}
		apiURL = baseURL + "/api/v3"
	}

	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user"},
			Endpoint:     endpoint,
		},
		apiURL: apiURL,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// The state is a random string the login handler stores in a cookie before
// redirecting; the callback verifies the returned state matches to prevent
// CSRF-initiated OAuth flows.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// GitHub user profile.
//
// Steps:
//  1. Exchange the code for an OAuth access token (server-to-server)
//  2. Use the token to call the GitHub /user API endpoint
//  3. Unmarshal the response into a GitHubUser struct
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.apiURL + "/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 || ghUser.Login == "" {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user")
	}

	return &ghUser, nil
}
