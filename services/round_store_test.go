package services

import (
	"testing"

	"phrase-game/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRounds_BootstrapOpensRoundOne(t *testing.T) {
	f := newFixture(t)

	r := f.currentRound(t)
	assert.Equal(t, 1, r.Number)
	assert.True(t, r.IsOpen())

	st := f.state(t, testRootAdmin)
	assert.Equal(t, 1, st.ResponsesLeft)
	assert.Equal(t, 1, st.CoinMultiplier)
	assert.False(t, st.TieBreakFavor)
	assert.Zero(t, st.PointPenalty)
}

func TestRounds_OnlyOneOpenRound(t *testing.T) {
	f := newFixture(t)

	_, err := f.rounds.OpenRound(f.ctx, 2)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = f.rounds.OpenRound(f.ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRounds_DatabaseRefusesSecondOpenRow(t *testing.T) {
	f := newFixture(t)

	err := f.db.Create(&models.Round{Number: 7, Status: models.RoundStatusOpen}).Error
	require.Error(t, err)
	assert.True(t, isDuplicateKey(err))

	require.NoError(t, f.db.Create(&models.Round{Number: 8, Status: models.RoundStatusClosed}).Error)
}

func TestRounds_CloseIsOneWay(t *testing.T) {
	f := newFixture(t)
	r := f.currentRound(t)

	require.NoError(t, f.rounds.CloseRound(f.ctx, r.ID))
	assert.ErrorIs(t, f.rounds.CloseRound(f.ctx, r.ID), ErrRoundClosed)

	_, err := f.rounds.CurrentOpenRound(f.ctx)
	assert.ErrorIs(t, err, ErrNoOpenRound)

	closed, err := f.rounds.GetRound(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	next, err := f.rounds.OpenRound(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number)
}

func TestRounds_OpenRoundEnrollsOnlyActiveAccounts(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, "ana")
	f.addPlayer(t, "bob")
	require.NoError(t, f.ledger.SetActive(f.ctx, "bob", false))

	require.NoError(t, f.rounds.CloseRound(f.ctx, f.currentRound(t).ID))
	r, err := f.rounds.OpenRound(f.ctx, 2)
	require.NoError(t, err)

	states, err := f.rounds.ListPlayerStates(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Contains(t, states, "ana")
	assert.Contains(t, states, testRootAdmin)
	assert.NotContains(t, states, "bob")
}

func TestRounds_PlayerStateMutations(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, "ana")
	rid := f.currentRound(t).ID

	require.NoError(t, f.rounds.AdjustResponsesLeft(f.ctx, rid, "ana", 2))
	require.NoError(t, f.rounds.SetTieBreakFavor(f.ctx, rid, "ana"))
	require.NoError(t, f.rounds.SetCoinMultiplier(f.ctx, rid, "ana", 2))
	require.NoError(t, f.rounds.SetCoinMultiplier(f.ctx, rid, "ana", 5))
	require.NoError(t, f.rounds.AdjustPenalty(f.ctx, rid, "ana", -4))
	require.NoError(t, f.rounds.AdjustPenalty(f.ctx, rid, "ana", 1))

	st := f.state(t, "ana")
	assert.Equal(t, 3, st.ResponsesLeft)
	assert.True(t, st.TieBreakFavor)
	assert.Equal(t, 2, st.CoinMultiplier)
	assert.Equal(t, -3, st.PointPenalty)

	assert.ErrorIs(t, f.rounds.AdjustPenalty(f.ctx, rid, "ghost", 1), ErrNotEnrolled)
}

func TestRounds_EnrollIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, "ana")
	rid := f.currentRound(t).ID
	require.NoError(t, f.rounds.AdjustResponsesLeft(f.ctx, rid, "ana", 1))

	require.NoError(t, f.rounds.Enroll(f.ctx, rid, "ana"))
	st, err := f.rounds.GetOrCreatePlayerState(f.ctx, rid, "ana")
	require.NoError(t, err)
	assert.Equal(t, 2, st.ResponsesLeft)
}

func TestClampMultiplier(t *testing.T) {
	assert.Equal(t, 1, clampMultiplier(0))
	assert.Equal(t, 1, clampMultiplier(1))
	assert.Equal(t, 2, clampMultiplier(2))
	assert.Equal(t, 2, clampMultiplier(9))
}
