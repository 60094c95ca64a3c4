package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDelta_CreatesBalanceAndEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	balance, err := env.svc.Ledger.ApplyDelta(ctx, "alice", 150, models.ReasonContentPublished, "post-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)

	entries := env.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, int64(150), entries[0].Delta)
	assert.Equal(t, models.ReasonContentPublished, entries[0].Reason)
	assert.Equal(t, "post-1", entries[0].ReferenceID)
	assert.Len(t, entries[0].ID, 26, "entry ids are ULIDs")
}

func TestApplyDelta_ClampsAtZeroButRecordsRequestedDelta(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ledger.ApplyDelta(ctx, "alice", 10, models.ReasonLikeGiven, "c1:alice")
	require.NoError(t, err)

	balance, err := env.svc.Ledger.ApplyDelta(ctx, "alice", -150, models.ReasonContentDeleted, "c9")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, int64(0), env.balance(t, "alice"))

	entries := env.store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(-150), entries[1].Delta)
}

func TestApplyDelta_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		user   string
		delta  int64
		reason models.Reason
		ref    string
	}{
		{"missing user", "", 10, models.ReasonLikeGiven, "r"},
		{"missing reference", "alice", 10, models.ReasonLikeGiven, ""},
		{"zero delta", "alice", 0, models.ReasonModerationAdjustment, "r"},
		{"negative award", "alice", -150, models.ReasonContentPublished, "r"},
		{"positive reversal", "alice", 10, models.ReasonLikeReversedGiven, "r"},
		{"unknown reason", "alice", 10, models.Reason("lottery"), "r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Ledger.ApplyDelta(ctx, tt.user, tt.delta, tt.reason, tt.ref)
			assert.ErrorIs(t, err, apperror.ErrInvalidInput)
		})
	}
	assert.Empty(t, env.store.Entries())
}

func TestApplyDelta_RetriesConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.store.InjectConflicts(env.cfg.Ledger.MaxRetries)

	balance, err := env.svc.Ledger.ApplyDelta(context.Background(), "alice", 10, models.ReasonLikeGiven, "c1:alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
	assert.Equal(t, env.cfg.Ledger.MaxRetries+1, env.store.TxCalls)
	assert.Len(t, env.store.Entries(), 1)
}

func TestApplyDelta_LedgerCommitFailedAfterRetries(t *testing.T) {
	env := newTestEnv(t)
	env.store.InjectConflicts(env.cfg.Ledger.MaxRetries + 1)

	_, err := env.svc.Ledger.ApplyDelta(context.Background(), "alice", 10, models.ReasonLikeGiven, "c1:alice")
	require.ErrorIs(t, err, apperror.ErrLedgerCommitFailed)
	assert.Equal(t, env.cfg.Ledger.MaxRetries+1, env.store.TxCalls)
	assert.Empty(t, env.store.Entries())
	assert.Equal(t, int64(0), env.balance(t, "alice"))
}

func TestApplyDelta_StoreFailureIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailNext("balance.update", errors.New("disk full"))

	_, err := env.svc.Ledger.ApplyDelta(context.Background(), "alice", 10, models.ReasonLikeGiven, "c1:alice")
	require.ErrorIs(t, err, apperror.ErrLedgerCommitFailed)

	assert.Empty(t, env.store.Entries(), "entry must not be visible without its balance update")
	b, err := env.repos.Balance.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestApplyDelta_CompletesWhenCallerCancels(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	balance, err := env.svc.Ledger.ApplyDelta(ctx, "alice", 150, models.ReasonContentPublished, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)
	assert.Len(t, env.store.Entries(), 1)
}

func TestApplyDelta_ConcurrentSameUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.Ledger.ApplyDelta(ctx, "alice", 10, models.ReasonLikeReceived, fmt.Sprintf("c1:u%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(workers*10), env.balance(t, "alice"))
	assert.Len(t, env.store.Entries(), workers)
}

func TestAdjust(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	balance, err := env.svc.Ledger.Adjust(ctx, "alice", 40, "contest bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	balance, err = env.svc.Ledger.Adjust(ctx, "alice", -15, "spam penalty")
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)

	_, err = env.svc.Ledger.Adjust(ctx, "alice", 5, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	history, err := env.svc.Ledger.History(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "spam penalty", history[0].Note)
	assert.Equal(t, models.ReasonModerationAdjustment, history[0].Reason)
}

func TestGetUserBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ledger.GetUserBalance(ctx, "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.svc.Account.Upsert(ctx, &models.Account{ID: "newbie", AccountType: models.AccountTypeViewer})
	require.NoError(t, err)
	b, err := env.svc.Ledger.GetUserBalance(ctx, "newbie")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.PointsBalance)

	_, err = env.svc.Ledger.ApplyDelta(ctx, "alice", 100, models.ReasonContentPublished, "m1")
	require.NoError(t, err)
	b, err = env.svc.Ledger.GetUserBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.PointsBalance)
}

func TestHistory_Limits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.svc.Ledger.ApplyDelta(ctx, "alice", 10, models.ReasonCommentGiven, fmt.Sprintf("cm%d", i))
		require.NoError(t, err)
	}

	history, err := env.svc.Ledger.History(ctx, "alice", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "cm4", history[0].ReferenceID, "newest first")
	assert.Greater(t, history[0].Seq, history[1].Seq)

	_, err = env.svc.Ledger.History(ctx, "alice", -1)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	empty, err := env.svc.Ledger.History(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestAudit_DetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ledger.ApplyDelta(ctx, "alice", 150, models.ReasonContentPublished, "b1")
	require.NoError(t, err)
	_, err = env.svc.Ledger.ApplyDelta(ctx, "bob", 10, models.ReasonLikeGiven, "b1:bob")
	require.NoError(t, err)

	report, err := env.svc.Ledger.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.UsersChecked)
	assert.Equal(t, 2, report.EntriesChecked)
	assert.Empty(t, report.Drifts)

	// Someone writes a balance behind the ledger's back.
	require.NoError(t, env.repos.Balance.Update(ctx, &models.Balance{UserID: "bob", PointsBalance: 999}))

	report, err = env.svc.Ledger.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, models.BalanceDrift{UserID: "bob", Stored: 999, Replayed: 10, Entries: 1}, report.Drifts[0])
}

func TestLedgerCommitInvalidatesLeaderboard(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Ranking.CacheTTL = time.Hour })
	ctx := context.Background()

	_, err := env.svc.Ledger.ApplyDelta(ctx, "alice", 10, models.ReasonLikeGiven, "x:alice")
	require.NoError(t, err)
	board, err := env.svc.Ranking.GetLedgerLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 1)

	_, err = env.svc.Ledger.ApplyDelta(ctx, "bob", 20, models.ReasonLikeGiven, "x:bob")
	require.NoError(t, err)
	board, err = env.svc.Ranking.GetLedgerLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].UserID)
}
