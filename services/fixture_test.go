package services

import (
	"context"
	"testing"

	"phrase-game/models"
	"phrase-game/testutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testRootAdmin = "admin"

type fixture struct {
	ctx         context.Context
	db          *gorm.DB
	ledger      *LedgerService
	rounds      *RoundService
	submissions *SubmissionService
	ballots     *BallotService
	shop        *ShopService
	settings    *SettingsService
	history     *HistoryService
	controller  *RoundController
}

// newFixture returns booted services: default settings, the root admin
// (an active judge) and round 1 open.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	logger := testutil.DiscardLogger()

	ledger := NewLedgerService(db, logger)
	ledger.HashCost = bcrypt.MinCost

	f := &fixture{
		ctx:         context.Background(),
		db:          db,
		ledger:      ledger,
		rounds:      NewRoundService(db, logger),
		submissions: NewSubmissionService(db, logger, nil),
		ballots:     NewBallotService(db, logger, nil),
		shop:        NewShopService(db, logger, nil),
		settings:    NewSettingsService(db, logger),
		history:     NewHistoryService(db, logger),
		controller:  NewRoundController(db, ledger, testRootAdmin, SumPerAuthor, logger, nil),
	}
	require.NoError(t, f.controller.Bootstrap(f.ctx, "root-secret"))
	return f
}

func (f *fixture) addPlayer(t *testing.T, identity string) {
	t.Helper()
	_, err := f.controller.AddAccount(f.ctx, identity, identity+"-pw", models.RolePlayer)
	require.NoError(t, err)
}

func (f *fixture) addJudge(t *testing.T, identity string) {
	t.Helper()
	_, err := f.controller.AddAccount(f.ctx, identity, identity+"-pw", models.RoleJudge)
	require.NoError(t, err)
}

func (f *fixture) giveCoins(t *testing.T, identity string, coins int64) {
	t.Helper()
	require.NoError(t, f.ledger.AdjustCoins(f.ctx, identity, coins))
}

func (f *fixture) coins(t *testing.T, identity string) int64 {
	t.Helper()
	acc, err := f.ledger.GetAccount(f.ctx, identity)
	require.NoError(t, err)
	return acc.Coins
}

func (f *fixture) currentRound(t *testing.T) *models.Round {
	t.Helper()
	r, err := f.rounds.CurrentOpenRound(f.ctx)
	require.NoError(t, err)
	return r
}

func (f *fixture) state(t *testing.T, identity string) *models.PlayerRoundState {
	t.Helper()
	st, err := f.rounds.GetPlayerState(f.ctx, f.currentRound(t).ID, identity)
	require.NoError(t, err)
	return st
}

func (f *fixture) submit(t *testing.T, author, text string) *models.Submission {
	t.Helper()
	sub, err := f.submissions.Submit(f.ctx, author, text)
	require.NoError(t, err)
	return sub
}

func ids(subs ...*models.Submission) []uint {
	out := make([]uint, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}
