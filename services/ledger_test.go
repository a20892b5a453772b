package services

import (
	"testing"

	"phrase-game/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_CreateAccount(t *testing.T) {
	f := newFixture(t)

	acc, err := f.ledger.CreateAccount(f.ctx, "  ana ", "pw", models.RolePlayer, false)
	require.NoError(t, err)
	assert.Equal(t, "ana", acc.Identity)
	assert.Zero(t, acc.Coins)
	assert.True(t, acc.Active)
	assert.NotEqual(t, "pw", acc.CredentialHash)

	_, err = f.ledger.CreateAccount(f.ctx, "ana", "other", models.RoleJudge, false)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestLedger_CreateAccountValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		identity   string
		credential string
		role       string
	}{
		{"blank identity", " ", "pw", models.RolePlayer},
		{"blank credential", "bob", "", models.RolePlayer},
		{"unknown role", "bob", "pw", "host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.CreateAccount(f.ctx, tt.identity, tt.credential, tt.role, false)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLedger_Authenticate(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, "ana")

	acc, err := f.ledger.Authenticate(f.ctx, "ana", "ana-pw")
	require.NoError(t, err)
	assert.Equal(t, "ana", acc.Identity)

	_, err = f.ledger.Authenticate(f.ctx, "ana", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = f.ledger.Authenticate(f.ctx, "nobody", "ana-pw")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	require.NoError(t, f.ledger.SetActive(f.ctx, "ana", false))
	_, err = f.ledger.Authenticate(f.ctx, "ana", "ana-pw")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestLedger_AdjustCoinsAllowsNegativeBalance(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, "ana")

	require.NoError(t, f.ledger.AdjustCoins(f.ctx, "ana", 4))
	require.NoError(t, f.ledger.AdjustCoins(f.ctx, "ana", -9))
	assert.Equal(t, int64(-5), f.coins(t, "ana"))

	assert.ErrorIs(t, f.ledger.AdjustCoins(f.ctx, "ghost", 1), ErrNotFound)
}

func TestLedger_ListAccounts(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, "zoe")
	f.addPlayer(t, "ana")
	require.NoError(t, f.ledger.SetActive(f.ctx, "zoe", false))

	all, err := f.ledger.ListAccounts(f.ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, testRootAdmin, all[0].Identity)

	active, err := f.ledger.ListAccounts(f.ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "ana", active[1].Identity)
}
