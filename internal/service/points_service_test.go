package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardForLike_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Points.AwardForLike(ctx, "bob", "alice", "b1"))
	require.NoError(t, env.svc.Points.AwardForLike(ctx, "bob", "alice", "b1"))

	assert.Equal(t, int64(10), env.balance(t, "alice"))
	assert.Equal(t, int64(10), env.balance(t, "bob"))
	assert.Len(t, env.store.Entries(), 2)

	for _, e := range env.store.Entries() {
		assert.Equal(t, "b1:bob", e.ReferenceID)
		assert.Equal(t, "b1", e.ContentID)
	}
}

func TestReverseForUnlike_NeverLiked(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.Points.ReverseForUnlike(context.Background(), "bob", "alice", "b1")
	assert.ErrorIs(t, err, apperror.ErrInconsistentState)
	assert.Empty(t, env.store.Entries())
}

func TestReverseForUnlike_ReversesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Points.AwardForLike(ctx, "bob", "alice", "b1"))
	require.NoError(t, env.svc.Points.ReverseForUnlike(ctx, "bob", "alice", "b1"))
	require.NoError(t, env.svc.Points.ReverseForUnlike(ctx, "bob", "alice", "b1"))

	assert.Equal(t, int64(0), env.balance(t, "alice"))
	assert.Equal(t, int64(0), env.balance(t, "bob"))
	assert.Len(t, env.store.Entries(), 4)

	// liking again after an unlike pays again
	require.NoError(t, env.svc.Points.AwardForLike(ctx, "bob", "alice", "b1"))
	assert.Equal(t, int64(10), env.balance(t, "alice"))
}

func TestAwardForLike_PartialTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.FailNext("ledger.append:alice", errors.New("connection reset"))

	err := env.svc.Points.AwardForLike(ctx, "bob", "alice", "b1")
	var partial *service.PartialTransferError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "bob", partial.Completed)
	assert.Equal(t, "alice", partial.Pending)
	assert.ErrorIs(t, err, apperror.ErrLedgerCommitFailed)

	// retry pays only the missing half
	require.NoError(t, env.svc.Points.AwardForLike(ctx, "bob", "alice", "b1"))
	assert.Equal(t, int64(10), env.balance(t, "alice"))
	assert.Equal(t, int64(10), env.balance(t, "bob"))
}

func TestAwardForPublish_Tariffs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Points.AwardForPublish(ctx, "alice", models.ContentTypeBlog, "b1"))
	require.NoError(t, env.svc.Points.AwardForPublish(ctx, "alice", models.ContentTypeMedia, "m1"))
	require.NoError(t, env.svc.Points.AwardForPublish(ctx, "alice", models.ContentTypeMedia, "m1"))
	assert.Equal(t, int64(250), env.balance(t, "alice"))

	err := env.svc.Points.AwardForPublish(ctx, "alice", models.ContentType("podcast"), "p1")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestAwardForPublish_OncePerContentID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.publish(t, "alice", "b1", models.ContentTypeBlog)
	reversed, err := env.svc.Points.ReverseForDelete(ctx, "alice", "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), reversed)

	require.NoError(t, env.svc.Points.AwardForPublish(ctx, "alice", models.ContentTypeBlog, "b1"))
	assert.Equal(t, int64(0), env.balance(t, "alice"), "a reversed publish is not paid again")

	reversed, err = env.svc.Points.ReverseForDelete(ctx, "alice", "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), reversed)
	assert.Len(t, env.store.Entries(), 2)
}

func TestReverseForDelete_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Points.ReverseForDelete(ctx, "alice", "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	env.publish(t, "alice", "b1", models.ContentTypeBlog)
	_, err = env.svc.Points.ReverseForDelete(ctx, "bob", "b1")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	// content without a publish award
	require.NoError(t, env.repos.Content.Create(ctx, &models.Content{ID: "b2", AuthorID: "alice", Type: models.ContentTypeBlog}))
	_, err = env.svc.Points.ReverseForDelete(ctx, "alice", "b2")
	assert.ErrorIs(t, err, apperror.ErrInconsistentState)
}

func TestReverseForDelete_ExactAndOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.publish(t, "alice", "b1", models.ContentTypeBlog)
	require.NoError(t, env.svc.Content.Like(ctx, "bob", "b1"))
	require.NoError(t, env.svc.Content.Like(ctx, "carol", "b1"))
	_, err := env.svc.Content.Comment(ctx, "bob", "b1", "cm1")
	require.NoError(t, err)
	require.NoError(t, env.svc.Content.Unlike(ctx, "carol", "b1"))

	env.publish(t, "alice", "m1", models.ContentTypeMedia)
	assert.Equal(t, int64(150+10+10+100), env.balance(t, "alice"))

	reversed, err := env.svc.Points.ReverseForDelete(ctx, "alice", "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(170), reversed)
	assert.Equal(t, int64(100), env.balance(t, "alice"))

	reversed, err = env.svc.Points.ReverseForDelete(ctx, "alice", "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), reversed)
	assert.Equal(t, int64(100), env.balance(t, "alice"))
}

func TestReverseForDelete_Sources(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected int64
	}{
		{"ledger", config.ReversalSourceLedger, 160},
		{"counters", config.ReversalSourceCounters, 150 + 10 + 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(c *config.Config) { c.Ledger.ReversalSource = tt.source })
			ctx := context.Background()

			env.publish(t, "alice", "b1", models.ContentTypeBlog)
			require.NoError(t, env.svc.Content.Like(ctx, "bob", "b1"))
			// counters drift from the ledger: a like recorded without a transfer
			require.NoError(t, env.repos.Content.AdjustLikeCount(ctx, "b1", 1))

			reversed, err := env.svc.Points.ReverseForDelete(ctx, "alice", "b1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, reversed)
		})
	}
}
