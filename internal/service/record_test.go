package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-battles/internal/model"
)

// decidePair claims matches from the latest a-vs-b matchup and records the
// given outcomes, oldest match first. Outcomes are from player a's
// perspective only when a holds seat one; callers pass seat-one statuses.
func decidePair(t *testing.T, fx *ladderFixture, a, b *model.Player, outcomes ...model.MatchStatus) {
	t.Helper()
	ctx := context.Background()

	var matchup model.Matchup
	for _, m := range fx.latestPairs(t, a.ID) {
		if m.Involves(b.ID) {
			matchup = m
		}
	}
	require.NotZero(t, matchup.ID, "no matchup between %s and %s", a.Username, b.Username)

	for _, outcome := range outcomes {
		match, err := fx.store.ClaimNextMatch(ctx, matchup.ID)
		require.NoError(t, err)
		require.NoError(t, fx.store.RecordMatchResult(ctx, match.ID, outcome, "t1", "t2"))
	}
}

// =========================================================================
// PAIR-LEVEL OUTCOMES
// =========================================================================

func TestComputeRecord_PairOutcomes(t *testing.T) {
	fx := newLadderFixture(t)
	ctx := context.Background()

	// alice enrolls first, so she holds seat one against everyone below
	alice := fx.addEnrolledPlayer(t, "alice", "a1")
	bob := fx.addEnrolledPlayer(t, "bob", "b1")
	carol := fx.addEnrolledPlayer(t, "carol", "c1")
	dave := fx.addEnrolledPlayer(t, "dave", "d1")
	erin := fx.addEnrolledPlayer(t, "erin", "e1")

	// vs bob: strict majority of decisions — a win, even with a loss and
	// draws mixed in
	decidePair(t, fx, alice, bob,
		model.StatusP1Won, model.StatusP1Won, model.StatusP2Won,
		model.StatusDraw, model.StatusDraw)

	// vs carol: decisions split evenly — a draw, with matches still queued
	decidePair(t, fx, alice, carol, model.StatusP1Won, model.StatusP2Won)

	// vs dave: every match drawn — a draw
	decidePair(t, fx, alice, dave,
		model.StatusDraw, model.StatusDraw, model.StatusDraw,
		model.StatusDraw, model.StatusDraw)

	// vs erin: nothing decided — contributes to no category

	record, err := fx.ladder.ComputeRecord(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Record{Wins: 1, Losses: 0, Draws: 2}, record)

	// the same pairs from the opposite seat
	bobRecord, err := fx.ladder.ComputeRecord(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Record{Wins: 0, Losses: 1, Draws: 0}, bobRecord)

	erinRecord, err := fx.ladder.ComputeRecord(ctx, erin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Record{}, erinRecord)
}

func TestComputeRecord_SupersededMatchupsIgnored(t *testing.T) {
	fx := newLadderFixture(t)
	ctx := context.Background()

	alice := fx.addEnrolledPlayer(t, "alice", "a1")
	bob := fx.addEnrolledPlayer(t, "bob", "b1")

	// alice sweeps the first generation
	decidePair(t, fx, alice, bob,
		model.StatusP1Won, model.StatusP1Won, model.StatusP1Won,
		model.StatusP1Won, model.StatusP1Won)

	record, err := fx.ladder.ComputeRecord(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Record{Wins: 1}, record)

	// bob re-enrolls: the swept matchup no longer counts for either side
	bobRow, err := fx.players.Lookup(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, fx.ladder.Reenroll(ctx, bobRow, "b2", "second try"))

	record, err = fx.ladder.ComputeRecord(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Record{}, record)

	// bob loses again on the fresh matchup
	decidePair(t, fx, alice, bob, model.StatusP1Won, model.StatusP1Won, model.StatusP1Won)

	record, err = fx.ladder.ComputeRecord(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Record{Losses: 1}, record)
}

// =========================================================================
// STANDINGS
// =========================================================================

func TestStandings_OrderingAndTieBreak(t *testing.T) {
	fx := newLadderFixture(t)
	ctx := context.Background()

	alice := fx.addEnrolledPlayer(t, "alice", "a1")
	bob := fx.addEnrolledPlayer(t, "bob", "b1")
	carol := fx.addEnrolledPlayer(t, "carol", "c1")
	dave := fx.addEnrolledPlayer(t, "dave", "d1")

	// alice beats bob; every other pair stays undecided
	decidePair(t, fx, alice, bob, model.StatusP1Won, model.StatusP1Won)

	standings, err := fx.ladder.Standings(ctx)
	require.NoError(t, err)
	require.Len(t, standings, 4)

	// score descending, ties by ascending player id
	assert.Equal(t, alice.ID, standings[0].ID)
	assert.Equal(t, carol.ID, standings[1].ID)
	assert.Equal(t, dave.ID, standings[2].ID)
	assert.Equal(t, bob.ID, standings[3].ID)

	assert.Equal(t, model.Record{Wins: 1}, standings[0].Record)
	assert.Equal(t, model.Record{Losses: 1}, standings[3].Record)

	// enrolled but matchless players still show up, zeroed
	assert.Equal(t, model.Record{}, standings[1].Record)
}

func TestStandings_UnenrolledPlayersHidden(t *testing.T) {
	fx := newLadderFixture(t)
	ctx := context.Background()

	fx.addEnrolledPlayer(t, "alice", "a1")
	_, err := fx.players.Initialize(ctx, "lurker")
	require.NoError(t, err)

	standings, err := fx.ladder.Standings(ctx)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.NotEmpty(t, standings[0].ScreenName)
}
