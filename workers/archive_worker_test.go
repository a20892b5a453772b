package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"phrase-game/models"
	"phrase-game/services"
	"phrase-game/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	objects map[string][]byte
	fail    bool
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.fail {
		return "", errors.New("bucket unavailable")
	}
	m.objects[key] = data
	return "https://cdn.example/" + key, nil
}

func closedRounds(t *testing.T, n int) (*services.HistoryService, *services.SettingsService) {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	logger := testutil.DiscardLogger()
	ledger := services.NewLedgerService(db, logger)
	ledger.HashCost = bcrypt.MinCost
	ctrl := services.NewRoundController(db, ledger, "admin", services.SumPerAuthor, logger, nil)
	subs := services.NewSubmissionService(db, logger, nil)
	require.NoError(t, ctrl.Bootstrap(ctx, "root"))

	for i := 0; i < n; i++ {
		for _, p := range []string{"p1", "p2"} {
			id := fmt.Sprintf("%s-%d", p, i)
			_, err := ctrl.AddAccount(ctx, id, "pw", models.RolePlayer)
			require.NoError(t, err)
			_, err = subs.Submit(ctx, id, "phrase")
			require.NoError(t, err)
		}
		_, err := ctrl.ForceClose(ctx)
		require.NoError(t, err)
	}
	return services.NewHistoryService(db, logger), services.NewSettingsService(db, logger)
}

func TestArchiveWorker_UploadsOnce(t *testing.T) {
	history, settings := closedRounds(t, 2)
	store := &memStore{objects: map[string][]byte{}}
	w := NewArchiveWorker(store, history, settings, testutil.DiscardLogger())
	ctx := context.Background()

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.objects, 2)

	title, err := settings.Title(ctx)
	require.NoError(t, err)
	results, err := history.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		key := ArchiveKey(title, r.RoundNumber, r.ClosedAt)
		require.Contains(t, store.objects, key)
		assert.Regexp(t, fmt.Sprintf(`^twowte-phrase-reality/round-%03d-\d{8}T\d{6}Z\.json$`, r.RoundNumber), key)

		var got models.RoundResult
		require.NoError(t, json.Unmarshal(store.objects[key], &got))
		assert.Equal(t, r.RoundNumber, got.RoundNumber)
		assert.NotEmpty(t, got.Eliminated)
	}

	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveWorker_FailedUploadIsRetried(t *testing.T) {
	history, settings := closedRounds(t, 1)
	store := &memStore{objects: map[string][]byte{}, fail: true}
	w := NewArchiveWorker(store, history, settings, testutil.DiscardLogger())
	ctx := context.Background()

	_, err := w.RunOnce(ctx)
	assert.Error(t, err)

	store.fail = false
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestArchiveKey(t *testing.T) {
	closed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "season-2/round-007-20260304T050607Z.json", ArchiveKey("Season 2!", 7, closed))
	assert.Equal(t, "season/round-010-20260304T050607Z.json", ArchiveKey("", 10, closed))

	// Numbering restarts after a reset; the close time keeps the keys apart.
	later := closed.Add(48 * time.Hour)
	assert.NotEqual(t, ArchiveKey("Season", 1, closed), ArchiveKey("Season", 1, later))
}
