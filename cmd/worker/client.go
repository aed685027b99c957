package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sakif/code-battles/internal/service"
)

// apiClient talks to the engine's runner API with the shared runner key.
//
// The response shapes are the service layer's runner types — the worker
// decodes straight into them rather than maintaining a parallel set of
// structs that would drift.
type apiClient struct {
	baseURL string
	key     string
	http    *http.Client
}

func newAPIClient(baseURL, key string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		key:     key,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// do issues an authenticated request and decodes the JSON response into out.
// A 204 returns (false, nil): the server had no work for us.
func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}) (bool, error) {
	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return false, fmt.Errorf("encoding request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Runner-Key", c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return false, fmt.Errorf("decoding %s response: %w", path, err)
			}
		}
		return true, nil
	case http.StatusNoContent:
		return false, nil
	default:
		return false, fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
}

// nextMatchup returns the next matchup with queued matches, or (nil, nil)
// when the ladder is drained.
func (c *apiClient) nextMatchup(ctx context.Context) (*service.RunnerMatchup, error) {
	var matchup service.RunnerMatchup
	ok, err := c.do(ctx, http.MethodGet, "/runner/matchups/next", nil, &matchup)
	if err != nil || !ok {
		return nil, err
	}
	return &matchup, nil
}

// claimMatch claims the oldest queued match of the matchup, or (nil, nil)
// when another worker drained it first.
func (c *apiClient) claimMatch(ctx context.Context, matchupID int64) (*service.ClaimedMatch, error) {
	path := fmt.Sprintf("/runner/matchups/%d/matches/next", matchupID)
	var claimed service.ClaimedMatch
	ok, err := c.do(ctx, http.MethodPost, path, nil, &claimed)
	if err != nil || !ok {
		return nil, err
	}
	return &claimed, nil
}

// submitResult reports a finished match.
func (c *apiClient) submitResult(ctx context.Context, matchID int64, winner int, traceP1, traceP2 string) error {
	path := fmt.Sprintf("/runner/matches/%d/result", matchID)
	body := map[string]interface{}{
		"winner":          winner,
		"trace_p1_starts": traceP1,
		"trace_p2_starts": traceP2,
	}
	_, err := c.do(ctx, http.MethodPost, path, body, nil)
	return err
}
