// Package gitpoll is the client for the git-polling collaborator: the service
// that clones/pulls each participant's repository and reports what their
// latest relevant submission is. The engine performs no git operations itself
// and trusts what this layer reports.
package gitpoll

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Submission describes a participant's latest relevant push.
//
// Fingerprint is the newest commit that touched the assignment subtree —
// the commit that would actually be enrolled. HeadFingerprint is the
// repository head, which may be newer (commits that didn't touch the
// assignment). Both are needed for the enrollment gate to tell "no pushes at
// all" apart from "pushes that changed nothing relevant".
type Submission struct {
	Fingerprint     string `json:"commit_id"`
	Message         string `json:"commit_comment"`
	HeadFingerprint string `json:"head_commit"`
}

// Client talks to the polling service over HTTP with a shared key.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New creates a Client for the polling service at baseURL.
func New(baseURL, key string) *Client {
	return &Client{
		baseURL: baseURL,
		key:     key,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// LatestSubmission asks the polling service to refresh the player's
// repository and report the latest submission. A player with no repository
// or no commits comes back with empty fingerprints, not an error — deciding
// what that means is the enrollment gate's job.
func (c *Client) LatestSubmission(ctx context.Context, username string) (Submission, error) {
	endpoint := fmt.Sprintf("%s/%s/last_commit", c.baseURL, url.PathEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Submission{}, fmt.Errorf("gitpoll: building request: %w", err)
	}
	req.Header.Set("X-Poll-Key", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return Submission{}, fmt.Errorf("gitpoll: calling polling service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Submission{}, fmt.Errorf("gitpoll: polling service returned status %d", resp.StatusCode)
	}

	var sub Submission
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return Submission{}, fmt.Errorf("gitpoll: decoding submission: %w", err)
	}
	return sub, nil
}

// SubmissionFiles fetches the actual submission sources for a commit — the
// match worker feeds these to the game sandbox. Keyed by file name.
func (c *Client) SubmissionFiles(ctx context.Context, username, fingerprint string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/%s/files?commit=%s",
		c.baseURL, url.PathEscape(username), url.QueryEscape(fingerprint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("gitpoll: building request: %w", err)
	}
	req.Header.Set("X-Poll-Key", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gitpoll: fetching submission files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gitpoll: polling service returned status %d", resp.StatusCode)
	}

	var files map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("gitpoll: decoding submission files: %w", err)
	}
	return files, nil
}
