package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/code-battles/internal/model"
)

// MatchupPlayer is one side of a matchup as shown to callers. Username and
// Commit are only populated on staff views — players see each other by
// screen name only.
type MatchupPlayer struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
	Username   string `json:"username,omitempty"`
	Commit     string `json:"commit,omitempty"`
}

// MatchDetail is one scheduled game inside a matchup view.
type MatchDetail struct {
	MatchID          int64             `json:"match_id"`
	BoardID          int64             `json:"board_id"`
	StartTrace       string            `json:"start_trace"`
	EndTraceP1Starts string            `json:"end_trace_p1_starts"`
	EndTraceP2Starts string            `json:"end_trace_p2_starts"`
	Status           model.MatchStatus `json:"status"`
}

// MatchupSummary is the caller-facing view of one opponent pair: the newest
// matchup fronts the pair, and the matches of every generation — current and
// superseded — are nested under their originating matchup id. Old matches
// stay visible for history even though only the newest generation counts
// toward records.
type MatchupSummary struct {
	MatchupID int64                   `json:"matchup_id"`
	PlayerOne MatchupPlayer           `json:"player_one"`
	PlayerTwo MatchupPlayer           `json:"player_two"`
	Matches   map[int64][]MatchDetail `json:"matches"`
}

// MatchupsForPlayer returns the player's matchups grouped by opponent pair.
func (s *LadderService) MatchupsForPlayer(ctx context.Context, username string, staffView bool) ([]MatchupSummary, error) {
	player, err := s.store.GetPlayerByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, err
	}

	// An unenrolled player has no matchups by construction; skip the scan.
	if !player.Enrolled() {
		return []MatchupSummary{}, nil
	}

	matchups, err := s.store.ListMatchupsForPlayer(ctx, player.ID)
	if err != nil {
		return nil, err
	}
	return s.buildSummaries(ctx, matchups, staffView)
}

// AllMatchups returns every pair in the ladder. Staff only — the handler
// enforces that; this view exposes usernames and commits.
func (s *LadderService) AllMatchups(ctx context.Context) ([]MatchupSummary, error) {
	matchups, err := s.store.ListAllMatchups(ctx)
	if err != nil {
		return nil, err
	}
	return s.buildSummaries(ctx, matchups, true)
}

// buildSummaries folds a flat matchup list into per-pair summaries.
//
// Explicit grouping by the canonical pair key, then a deterministic fold:
// group rows by (player_one, player_two), pick the highest-id matchup as the
// pair's representative, and nest every generation's matches under its own
// matchup id. Output is ordered by representative id ascending.
func (s *LadderService) buildSummaries(ctx context.Context, matchups []model.Matchup, staffView bool) ([]MatchupSummary, error) {
	groups := make(map[pairKey][]model.Matchup)
	for _, m := range matchups {
		key := pairKey{one: m.PlayerOneID, two: m.PlayerTwoID}
		groups[key] = append(groups[key], m)
	}

	boards, err := s.store.ListBoards(ctx)
	if err != nil {
		return nil, fmt.Errorf("building matchup views: %w", err)
	}
	startTraces := make(map[int64]string, len(boards))
	for _, b := range boards {
		startTraces[b.ID] = b.StartTrace
	}

	players := make(map[int64]*model.Player)

	summaries := make([]MatchupSummary, 0, len(groups))
	for _, group := range groups {
		// Rows arrive in id order, so the last row is the newest matchup.
		newest := group[len(group)-1]

		p1, err := s.playerRef(ctx, players, newest.PlayerOneID, newest.PlayerOneCommit, staffView)
		if err != nil {
			return nil, err
		}
		p2, err := s.playerRef(ctx, players, newest.PlayerTwoID, newest.PlayerTwoCommit, staffView)
		if err != nil {
			return nil, err
		}

		byGeneration := make(map[int64][]MatchDetail, len(group))
		for _, m := range group {
			matches, err := s.store.ListMatchesForMatchup(ctx, m.ID)
			if err != nil {
				return nil, fmt.Errorf("building matchup views: %w", err)
			}
			details := make([]MatchDetail, 0, len(matches))
			for _, match := range matches {
				details = append(details, MatchDetail{
					MatchID:          match.ID,
					BoardID:          match.BoardID,
					StartTrace:       startTraces[match.BoardID],
					EndTraceP1Starts: match.EndTraceP1Starts,
					EndTraceP2Starts: match.EndTraceP2Starts,
					Status:           match.Status,
				})
			}
			byGeneration[m.ID] = details
		}

		summaries = append(summaries, MatchupSummary{
			MatchupID: newest.ID,
			PlayerOne: p1,
			PlayerTwo: p2,
			Matches:   byGeneration,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].MatchupID < summaries[j].MatchupID
	})
	return summaries, nil
}

// playerRef resolves a player side with memoization across the whole view.
func (s *LadderService) playerRef(ctx context.Context, cache map[int64]*model.Player, id int64, commit string, staffView bool) (MatchupPlayer, error) {
	player, ok := cache[id]
	if !ok {
		var err error
		player, err = s.store.GetPlayerByID(ctx, id)
		if err != nil {
			return MatchupPlayer{}, err
		}
		cache[id] = player
	}

	ref := MatchupPlayer{ID: player.ID, ScreenName: player.ScreenName}
	if staffView {
		ref.Username = player.Username
		ref.Commit = commit
	}
	return ref, nil
}
