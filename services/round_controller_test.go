package services

import (
	"sync"
	"testing"

	"phrase-game/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// playedRound sets up round 1 with three players and two judges (the root
// admin and "jud"), one phrase each, and returns the phrases in order.
func playedRound(t *testing.T, f *fixture) []*models.Submission {
	t.Helper()
	f.addJudge(t, "jud")
	for _, p := range []string{"ana", "bob", "cid"} {
		f.addPlayer(t, p)
	}
	return []*models.Submission{
		f.submit(t, "ana", "first"),
		f.submit(t, "bob", "second"),
		f.submit(t, "cid", "third"),
	}
}

func TestAutoClose_WaitsForEveryJudge(t *testing.T) {
	f := newFixture(t)
	subs := playedRound(t, f)
	rid := f.currentRound(t).ID

	report, err := f.controller.CheckAndAutoClose(f.ctx, rid)
	require.NoError(t, err)
	assert.Nil(t, report)

	require.NoError(t, f.ballots.CastVote(f.ctx, "jud", rid, ids(subs...)))
	report, err = f.controller.CheckAndAutoClose(f.ctx, rid)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, rid, f.currentRound(t).ID)
}

func TestAutoClose_ScoresRewardsEliminatesAndAdvances(t *testing.T) {
	f := newFixture(t)
	subs := playedRound(t, f)
	rid := f.currentRound(t).ID
	require.NoError(t, f.rounds.SetCoinMultiplier(f.ctx, rid, "bob", 2))

	require.NoError(t, f.ballots.CastVote(f.ctx, "jud", rid, ids(subs...)))
	require.NoError(t, f.ballots.CastVote(f.ctx, testRootAdmin, rid, ids(subs...)))

	report, err := f.controller.CheckAndAutoClose(f.ctx, rid)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "cid", report.Eliminated)
	assert.Equal(t, 1, report.RoundNumber)
	assert.Equal(t, 2, report.NextRound)
	assert.Equal(t, models.CloseTriggerAuto, report.Trigger)
	assert.Equal(t, int64(10+14+5), report.CoinsAwarded)
	require.Len(t, report.Standings, 3)
	assert.Equal(t, 6, report.Standings[0].Total)

	assert.Equal(t, int64(10), f.coins(t, "ana"))
	assert.Equal(t, int64(14), f.coins(t, "bob"))
	assert.Equal(t, int64(5), f.coins(t, "cid"))

	cid, err := f.ledger.GetAccount(f.ctx, "cid")
	require.NoError(t, err)
	assert.False(t, cid.Active)

	next := f.currentRound(t)
	assert.Equal(t, 2, next.Number)
	states, err := f.rounds.ListPlayerStates(f.ctx, next.ID)
	require.NoError(t, err)
	assert.Len(t, states, 4)
	assert.NotContains(t, states, "cid")
	assert.Equal(t, 1, states["bob"].CoinMultiplier)

	n, err := f.settings.CurrentRound(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	result, err := f.history.Results(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cid", result.Eliminated)
	assert.Equal(t, report.Standings, result.Standings)
}

func TestAutoClose_ConcurrentCallersCloseOnce(t *testing.T) {
	f := newFixture(t)
	subs := playedRound(t, f)
	rid := f.currentRound(t).ID
	require.NoError(t, f.ballots.CastVote(f.ctx, "jud", rid, ids(subs...)))
	require.NoError(t, f.ballots.CastVote(f.ctx, testRootAdmin, rid, ids(subs...)))

	const callers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reports int
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.controller.CheckAndAutoClose(f.ctx, rid)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if r != nil {
				reports++
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, reports)
	assert.Equal(t, int64(10), f.coins(t, "ana"))

	var rounds int64
	require.NoError(t, f.db.Model(&models.Round{}).Count(&rounds).Error)
	assert.Equal(t, int64(2), rounds)
}

func TestCloseAndAdvance_LosingRacerWritesNothing(t *testing.T) {
	f := newFixture(t)
	playedRound(t, f)
	stale := f.currentRound(t)

	_, err := f.controller.ForceClose(f.ctx)
	require.NoError(t, err)
	before := f.coins(t, "ana")

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.controller.closeAndAdvance(tx, stale, models.CloseTriggerAdmin)
		return err
	})
	assert.ErrorIs(t, err, ErrRoundClosed)
	assert.Equal(t, before, f.coins(t, "ana"))
	assert.Equal(t, 2, f.currentRound(t).Number)
}

func TestForceClose(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.ForceClose(f.ctx)
	assert.ErrorIs(t, err, ErrNoSubmissions)

	playedRound(t, f)
	report, err := f.controller.ForceClose(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CloseTriggerAdmin, report.Trigger)
	// Nobody voted, so everything ties at zero and the last phrase goes.
	assert.Equal(t, "cid", report.Eliminated)
	assert.Equal(t, 2, f.currentRound(t).Number)
}

func TestStatus_RunsAutoClose(t *testing.T) {
	f := newFixture(t)
	subs := playedRound(t, f)
	rid := f.currentRound(t).ID

	st, err := f.controller.Status(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, st.JustClosed)
	assert.Equal(t, int64(3), st.Submissions)
	assert.Equal(t, VotingStatus{JudgesNeeded: 2}, st.Voting)

	require.NoError(t, f.ballots.CastVote(f.ctx, "jud", rid, ids(subs...)))
	require.NoError(t, f.ballots.CastVote(f.ctx, testRootAdmin, rid, ids(subs...)))

	st, err = f.controller.Status(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, st.JustClosed)
	assert.Equal(t, 2, st.Round.Number)
	assert.Zero(t, st.Submissions)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	playedRound(t, f)
	_, err := f.controller.ForceClose(f.ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.controller.Reset(f.ctx, false), ErrNotConfirmed)
	assert.Equal(t, 2, f.currentRound(t).Number)

	require.NoError(t, f.controller.Reset(f.ctx, true))

	accounts, err := f.ledger.ListAccounts(f.ctx, false)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, testRootAdmin, accounts[0].Identity)

	r := f.currentRound(t)
	assert.Equal(t, 1, r.Number)
	states, err := f.rounds.ListPlayerStates(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{testRootAdmin}, keys(states))

	var subs, results int64
	require.NoError(t, f.db.Model(&models.Submission{}).Count(&subs).Error)
	require.NoError(t, f.db.Model(&models.RoundResult{}).Count(&results).Error)
	assert.Zero(t, subs)
	assert.Zero(t, results)

	n, err := f.settings.CurrentRound(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBootstrap_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Bootstrap(f.ctx, "ignored"))

	var open int64
	require.NoError(t, f.db.Model(&models.Round{}).Where("status = ?", models.RoundStatusOpen).Count(&open).Error)
	assert.Equal(t, int64(1), open)

	root, err := f.ledger.Authenticate(f.ctx, testRootAdmin, "root-secret")
	require.NoError(t, err)
	assert.True(t, root.IsAdmin)
	assert.True(t, root.IsJudge())
	assert.Zero(t, root.Coins)
}

func TestBootstrap_ReopensAfterClosedRound(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rounds.CloseRound(f.ctx, f.currentRound(t).ID))

	require.NoError(t, f.controller.Bootstrap(f.ctx, "ignored"))
	assert.Equal(t, 2, f.currentRound(t).Number)
}

func TestAdminAccountLifecycle(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, "ana")
	rid := f.currentRound(t).ID

	assert.ErrorIs(t, f.controller.Deactivate(f.ctx, testRootAdmin), ErrInvalidInput)

	require.NoError(t, f.controller.Deactivate(f.ctx, "ana"))
	require.NoError(t, f.controller.AdjustPlayer(f.ctx, "ana", PlayerAdjustment{Responses: 2}))
	require.NoError(t, f.controller.Rehabilitate(f.ctx, "ana"))

	acc, err := f.ledger.GetAccount(f.ctx, "ana")
	require.NoError(t, err)
	assert.True(t, acc.Active)
	st, err := f.rounds.GetPlayerState(f.ctx, rid, "ana")
	require.NoError(t, err)
	assert.Equal(t, 3, st.ResponsesLeft)
}

func TestAdjustPlayer(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, "ana")

	require.NoError(t, f.controller.AdjustPlayer(f.ctx, "ana", PlayerAdjustment{Coins: -4, Penalty: -2, Responses: 1}))

	assert.Equal(t, int64(-4), f.coins(t, "ana"))
	st := f.state(t, "ana")
	assert.Equal(t, -2, st.PointPenalty)
	assert.Equal(t, 2, st.ResponsesLeft)

	assert.ErrorIs(t, f.controller.AdjustPlayer(f.ctx, "ghost", PlayerAdjustment{Coins: 1}), ErrNotFound)
}

func keys(m map[string]models.PlayerRoundState) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
