package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/service"
)

func TestInitialize(t *testing.T) {
	fx := newLadderFixture(t)
	ctx := context.Background()

	player, err := fx.players.Initialize(ctx, "  Alice  ")
	require.NoError(t, err)

	// logins are normalized before they reach the registry
	assert.Equal(t, "alice", player.Username)
	assert.False(t, player.Enrolled())

	// generated screen names are six characters from the fixed alphabet
	assert.Len(t, player.ScreenName, 6)
	for _, r := range player.ScreenName {
		assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			"unexpected screen name character %q", r)
	}

	_, err = fx.players.Initialize(ctx, "alice")
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = fx.players.Initialize(ctx, "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestEnsurePlayer(t *testing.T) {
	fx := newLadderFixture(t)
	ctx := context.Background()

	created, err := fx.players.EnsurePlayer(ctx, "octocat")
	require.NoError(t, err)

	// second call is a plain lookup, not a duplicate insert
	again, err := fx.players.EnsurePlayer(ctx, "OctoCat")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, created.ScreenName, again.ScreenName)
}

func TestSetScreenName(t *testing.T) {
	fx := newLadderFixture(t)
	ctx := context.Background()

	_, err := fx.players.Initialize(ctx, "alice")
	require.NoError(t, err)
	bob, err := fx.players.Initialize(ctx, "bob")
	require.NoError(t, err)

	name, err := fx.players.SetScreenName(ctx, "alice", "GRANDMASTER")
	require.NoError(t, err)
	assert.Equal(t, "GRANDMASTER", name)

	got, err := fx.players.GetScreenName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "GRANDMASTER", got)

	t.Run("same name is no change", func(t *testing.T) {
		_, err := fx.players.SetScreenName(ctx, "alice", "GRANDMASTER")
		assert.ErrorIs(t, err, apperror.ErrNoChange)
	})

	t.Run("taken name conflicts", func(t *testing.T) {
		_, err := fx.players.SetScreenName(ctx, "bob", "GRANDMASTER")
		assert.ErrorIs(t, err, apperror.ErrConflict)

		// bob keeps his generated name after the failed rename
		got, err := fx.players.GetScreenName(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, bob.ScreenName, got)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := fx.players.SetScreenName(ctx, "alice", "   ")
		assert.ErrorIs(t, err, apperror.ErrValidation)

		_, err = fx.players.SetScreenName(ctx, "alice",
			strings.Repeat("X", service.MaxScreenNameLength+1))
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("unknown player", func(t *testing.T) {
		_, err := fx.players.SetScreenName(ctx, "stranger", "WHOAMI")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}
