package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/points-ledger-engine/internal/mocks"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_WithinTxRollsBack(t *testing.T) {
	store := mocks.NewMemStore()
	repos := store.Repositories()
	ctx := context.Background()

	boom := errors.New("boom")
	err := repos.Tx.WithinTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		b, err := r.Balance.GetOrCreateForUpdate(ctx, "user-1")
		require.NoError(t, err)
		b.PointsBalance = 150
		require.NoError(t, r.Balance.Update(ctx, b))
		require.NoError(t, r.Ledger.Append(ctx, &models.LedgerEntry{
			ID: "e1", UserID: "user-1", Delta: 150, Reason: models.ReasonContentPublished, ReferenceID: "c1",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := repos.Balance.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, balance, "balance created inside a failed transaction must not survive")
	assert.Empty(t, store.Entries())
}

func TestMemStore_InjectedConflicts(t *testing.T) {
	store := mocks.NewMemStore()
	repos := store.Repositories()
	store.InjectConflicts(2)

	calls := 0
	run := func() error {
		return repos.Tx.WithinTx(context.Background(), func(ctx context.Context, r *repository.Repositories) error {
			calls++
			return nil
		})
	}

	assert.ErrorIs(t, run(), repository.ErrConflict)
	assert.ErrorIs(t, run(), repository.ErrConflict)
	assert.NoError(t, run())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, store.TxCalls)
}

func TestMemStore_FailNextIsOneShot(t *testing.T) {
	store := mocks.NewMemStore()
	repos := store.Repositories()
	ctx := context.Background()
	boom := errors.New("disk full")

	store.FailNext("ledger.append:user-2", boom)

	entry := &models.LedgerEntry{ID: "e1", UserID: "user-1", Delta: 10, Reason: models.ReasonLikeGiven}
	require.NoError(t, repos.Ledger.Append(ctx, entry), "failure is scoped to user-2")

	entry2 := &models.LedgerEntry{ID: "e2", UserID: "user-2", Delta: 10, Reason: models.ReasonLikeReceived}
	assert.ErrorIs(t, repos.Ledger.Append(ctx, entry2), boom)
	assert.NoError(t, repos.Ledger.Append(ctx, entry2))

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Less(t, entries[0].Seq, entries[1].Seq)
}

func TestMemStore_LedgerQueries(t *testing.T) {
	store := mocks.NewMemStore()
	repos := store.Repositories()
	ctx := context.Background()

	appendEntry := func(id, user string, delta int64, reason models.Reason, ref, content string) {
		require.NoError(t, repos.Ledger.Append(ctx, &models.LedgerEntry{
			ID: id, UserID: user, Delta: delta, Reason: reason, ReferenceID: ref, ContentID: content,
		}))
	}

	appendEntry("e1", "author", 150, models.ReasonContentPublished, "c1", "c1")
	appendEntry("e2", "author", 10, models.ReasonLikeReceived, "c1:bob", "c1")
	appendEntry("e3", "bob", 10, models.ReasonLikeGiven, "c1:bob", "c1")
	appendEntry("e4", "author", -10, models.ReasonLikeReversedReceived, "c1:bob", "c1")
	appendEntry("e5", "author", 100, models.ReasonContentPublished, "c2", "c2")

	n, err := repos.Ledger.CountByReference(ctx, "author", "c1:bob", models.ReasonLikeReceived)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sum, err := repos.Ledger.SumByContent(ctx, "author", "c1", []models.Reason{
		models.ReasonContentPublished, models.ReasonLikeReceived, models.ReasonLikeReversedReceived,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), sum)

	recent, err := repos.Ledger.ListByUser(ctx, "author", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "e5", recent[0].ID)
	assert.Equal(t, "e4", recent[1].ID)

	used, err := repos.Ledger.ExistsByContent(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, used)
	used, err = repos.Ledger.ExistsByContent(ctx, "c3")
	require.NoError(t, err)
	assert.False(t, used)

	used, err = repos.Ledger.ExistsByReference(ctx, "c1:bob", models.ReasonLikeGiven)
	require.NoError(t, err)
	assert.True(t, used)
	used, err = repos.Ledger.ExistsByReference(ctx, "c1:bob", models.ReasonCommentGiven)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestMemStore_RelationsAreUnique(t *testing.T) {
	store := mocks.NewMemStore()
	repos := store.Repositories()
	ctx := context.Background()

	like := &models.Like{ContentID: "c1", LikerID: "bob", CreatedAt: time.Now()}
	require.NoError(t, repos.Like.Create(ctx, like))
	assert.ErrorIs(t, repos.Like.Create(ctx, like), repository.ErrDuplicate)

	report := &models.Report{ContentID: "c1", ReporterID: "bob", Reason: models.ReportReasonSpam}
	require.NoError(t, repos.Report.Create(ctx, report))
	assert.ErrorIs(t, repos.Report.Create(ctx, report), repository.ErrDuplicate)

	removed, err := repos.Like.Delete(ctx, "c1", "bob")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repos.Like.Delete(ctx, "c1", "bob")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemStore_IntentClaim(t *testing.T) {
	store := mocks.NewMemStore()
	repos := store.Repositories()
	ctx := context.Background()

	old := time.Now().Add(-time.Hour).UTC()
	intent := &models.Intent{ID: "i1", Kind: models.IntentLike, Status: models.IntentStatusPending, CreatedAt: old, UpdatedAt: old}
	require.NoError(t, repos.Intent.Create(ctx, intent))

	stale, err := repos.Intent.ListStale(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	claimed, err := repos.Intent.MarkRunning(ctx, "i1", models.IntentStatusPending, stale[0].UpdatedAt)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repos.Intent.MarkRunning(ctx, "i1", models.IntentStatusPending, stale[0].UpdatedAt)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")
}

func TestMemStore_ContentDeleteCascades(t *testing.T) {
	store := mocks.NewMemStore()
	repos := store.Repositories()
	ctx := context.Background()

	require.NoError(t, repos.Content.Create(ctx, &models.Content{ID: "c1", AuthorID: "a", Type: models.ContentTypeBlog}))
	require.NoError(t, repos.Like.Create(ctx, &models.Like{ContentID: "c1", LikerID: "bob"}))
	require.NoError(t, repos.Report.Create(ctx, &models.Report{ContentID: "c1", ReporterID: "eve"}))

	require.NoError(t, repos.Content.Delete(ctx, "c1"))

	exists, err := repos.Like.Exists(ctx, "c1", "bob")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := repos.Report.CountByContent(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemStore_EngagementTotalsKeepHiddenAuthors(t *testing.T) {
	store := mocks.NewMemStore()
	repos := store.Repositories()
	ctx := context.Background()

	require.NoError(t, repos.Content.Create(ctx, &models.Content{ID: "a1", AuthorID: "alice", Type: models.ContentTypeBlog, LikeCount: 2}))
	require.NoError(t, repos.Content.Create(ctx, &models.Content{ID: "b1", AuthorID: "bob", Type: models.ContentTypeBlog, LikeCount: 5}))
	require.NoError(t, repos.Content.SetHidden(ctx, "b1", true))

	totals, err := repos.Content.EngagementTotals(ctx)
	require.NoError(t, err)

	byAuthor := make(map[string]models.EngagementTotals)
	for _, row := range totals {
		byAuthor[row.AuthorID] = *row
	}
	assert.Equal(t, models.EngagementTotals{AuthorID: "alice", PostCount: 1, TotalLikes: 2}, byAuthor["alice"])
	assert.Equal(t, models.EngagementTotals{AuthorID: "bob"}, byAuthor["bob"])
}
