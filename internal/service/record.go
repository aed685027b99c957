package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/code-battles/internal/model"
)

// pairKey identifies an unordered opponent pair. Matchups store players in
// canonical order, so (one, two) with one < two is already the pair identity.
type pairKey struct {
	one, two int64
}

// ComputeRecord derives the player's overall (wins, losses, draws) record.
//
// Only the most recent matchup per opponent counts — the store's
// latest-per-pair query has already discarded superseded rows, including all
// of their matches. Within each surviving matchup, terminal decided matches
// are tallied relative to which seat the player holds, and the tally is
// reduced to one pair-level outcome:
//
//   - equal decided wins and losses, with at least one decision → draw
//   - every match in the matchup a draw → draw
//   - otherwise the side with strictly more decided wins takes the pair
//
// A pair with no decisions and not all draws (still queued, cancelled, or a
// mix) contributes to no category at all.
func (s *LadderService) ComputeRecord(ctx context.Context, playerID int64) (model.Record, error) {
	latest, err := s.store.LatestMatchupsForPlayer(ctx, playerID)
	if err != nil {
		return model.Record{}, fmt.Errorf("computing record for player %d: %w", playerID, err)
	}

	var record model.Record
	for i := range latest {
		matchup := &latest[i]

		matches, err := s.store.ListMatchesForMatchup(ctx, matchup.ID)
		if err != nil {
			return model.Record{}, fmt.Errorf("computing record for player %d: %w", playerID, err)
		}

		wins, losses, draws := tallyMatches(matches, matchup.PlayerOneID == playerID)

		switch {
		case (wins == losses && wins > 0) || (len(matches) > 0 && draws == len(matches)):
			record.Draws++
		case wins > losses:
			record.Wins++
		case wins < losses:
			record.Losses++
		}
	}
	return record, nil
}

// tallyMatches counts decided outcomes relative to the seat the player holds.
// Non-terminal and cancelled matches contribute nothing.
func tallyMatches(matches []model.Match, isPlayerOne bool) (wins, losses, draws int) {
	for _, m := range matches {
		switch m.Status {
		case model.StatusP1Won:
			if isPlayerOne {
				wins++
			} else {
				losses++
			}
		case model.StatusP2Won:
			if isPlayerOne {
				losses++
			} else {
				wins++
			}
		case model.StatusDraw:
			draws++
		}
	}
	return wins, losses, draws
}

// Standing is one row of the standings table.
type Standing struct {
	ID         int64        `json:"id"`
	ScreenName string       `json:"screen_name"`
	Record     model.Record `json:"record"`
}

// Standings ranks every enrolled player by wins − losses, descending. Ties
// break by ascending player id — arbitrary but deterministic, so the table
// doesn't shuffle between refreshes. Enrolled players with no completed
// matches appear with a zero record rather than being hidden.
func (s *LadderService) Standings(ctx context.Context) ([]Standing, error) {
	players, err := s.store.ListEnrolledPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing standings: %w", err)
	}

	standings := make([]Standing, 0, len(players))
	for _, p := range players {
		record, err := s.ComputeRecord(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		standings = append(standings, Standing{
			ID:         p.ID,
			ScreenName: p.ScreenName,
			Record:     record,
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		si, sj := standings[i].Record.Score(), standings[j].Record.Score()
		if si != sj {
			return si > sj
		}
		return standings[i].ID < standings[j].ID
	})
	return standings, nil
}
