// Package roster answers "is this GitHub login allowed in?".
//
// Enrollment in the ladder is restricted to the course roster. The roster
// lives in an external course-management service; this package is a thin
// HTTP client for it plus a static staff list from config.
//
// The client deliberately knows nothing about players or matches — it maps
// a login to yes/no. Authorization decisions (what a member may do) stay in
// the handlers.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client checks roster membership against the course roster service.
//
// Staff are listed statically in config rather than fetched: the staff list
// is tiny, changes once a term, and staff need to log in even when the
// roster service is down.
type Client struct {
	baseURL string
	key     string
	staff   map[string]struct{}
	http    *http.Client
}

// New creates a roster client.
//
// baseURL is the roster service root, key its API key, and staff the list of
// GitHub logins with staff privileges (compared case-insensitively).
func New(baseURL, key string, staff []string) *Client {
	set := make(map[string]struct{}, len(staff))
	for _, login := range staff {
		set[strings.ToLower(strings.TrimSpace(login))] = struct{}{}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		key:     key,
		staff:   set,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// IsAdmin reports whether the login is on the static staff list.
//
// Purely local — no network call, so it's safe to use in request paths that
// must not depend on the roster service being up.
func (c *Client) IsAdmin(login string) bool {
	_, ok := c.staff[strings.ToLower(strings.TrimSpace(login))]
	return ok
}

// IsRosterMember reports whether the login is enrolled in the course.
//
// Staff are always members. For everyone else we ask the roster service:
//
//	GET {baseURL}/members/{login}
//	→ 200 {"enrolled": true|false}
//	→ 404 not on the roster at all
//
// Network failures are returned as errors rather than a false membership —
// the caller decides whether to fail open or closed.
func (c *Client) IsRosterMember(ctx context.Context, login string) (bool, error) {
	if c.IsAdmin(login) {
		return true, nil
	}

	url := fmt.Sprintf("%s/members/%s", c.baseURL, strings.ToLower(strings.TrimSpace(login)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("roster: building request: %w", err)
	}
	req.Header.Set("X-Roster-Key", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("roster: calling roster service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Enrolled bool `json:"enrolled"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false, fmt.Errorf("roster: decoding response: %w", err)
		}
		return body.Enrolled, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("roster: roster service returned status %d", resp.StatusCode)
	}
}
