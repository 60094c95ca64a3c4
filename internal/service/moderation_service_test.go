package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportN(t *testing.T, env *testEnv, contentID string, from, to int) *models.ReportOutcome {
	t.Helper()
	var last *models.ReportOutcome
	for i := from; i <= to; i++ {
		out, err := env.svc.Moderation.ReportContent(context.Background(), contentID, fmt.Sprintf("reporter-%d", i), models.ReportReasonSpam, "")
		require.NoError(t, err)
		last = out
	}
	return last
}

func TestReportContent_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publish(t, "alice", "b1", models.ContentTypeBlog)

	_, err := env.svc.Moderation.ReportContent(ctx, "b1", "bob", models.ReportReason("boring"), "")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = env.svc.Moderation.ReportContent(ctx, "b1", "bob", models.ReportReasonOther, strings.Repeat("x", models.MaxReportDetailsLength+1))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = env.svc.Moderation.ReportContent(ctx, "missing", "bob", models.ReportReasonSpam, "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestReportContent_OncePerReporter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publish(t, "alice", "b1", models.ContentTypeBlog)

	out, err := env.svc.Moderation.ReportContent(ctx, "b1", "bob", models.ReportReasonAbuse, "rude")
	require.NoError(t, err)
	assert.Equal(t, 1, out.ReportCount)

	_, err = env.svc.Moderation.ReportContent(ctx, "b1", "bob", models.ReportReasonSpam, "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyReported)
	assert.Equal(t, 1, env.content(t, "b1").ReportCount)
}

func TestReportContent_HidesAtThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publish(t, "alice", "b1", models.ContentTypeBlog)

	out := reportN(t, env, "b1", 1, 19)
	assert.Equal(t, 19, out.ReportCount)
	assert.False(t, out.Hidden)

	out = reportN(t, env, "b1", 20, 20)
	assert.Equal(t, 20, out.ReportCount)
	assert.True(t, out.Hidden)
	assert.True(t, out.JustHidden)

	out = reportN(t, env, "b1", 21, 21)
	assert.Equal(t, 21, out.ReportCount)
	assert.True(t, out.Hidden)
	assert.False(t, out.JustHidden)

	queue, err := env.svc.Moderation.Queue(ctx, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "b1", queue[0].ID)

	require.NoError(t, env.svc.Moderation.RestoreContent(ctx, "b1"))
	c := env.content(t, "b1")
	assert.False(t, c.Hidden)
	assert.Equal(t, 0, c.ReportCount)

	remaining, err := env.repos.Report.CountByContent(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// restore never touches the ledger
	assert.Equal(t, int64(150), env.balance(t, "alice"))

	// earlier reporters may report again after a restore
	_, err = env.svc.Moderation.ReportContent(ctx, "b1", "reporter-1", models.ReportReasonSpam, "")
	assert.NoError(t, err)
}

func TestReportContent_CustomThreshold(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Moderation.ReportThreshold = 2 })
	env.publish(t, "alice", "b1", models.ContentTypeBlog)

	out := reportN(t, env, "b1", 1, 2)
	assert.True(t, out.JustHidden)
}

func TestPermanentDelete_KeepsPointsByDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publish(t, "alice", "b1", models.ContentTypeBlog)
	require.NoError(t, env.svc.Content.Like(ctx, "bob", "b1"))

	err := env.svc.Moderation.PermanentDeleteContent(ctx, "b1")
	assert.ErrorIs(t, err, apperror.ErrInconsistentState, "only hidden content can be removed")

	reportN(t, env, "b1", 1, 20)
	require.NoError(t, env.svc.Moderation.PermanentDeleteContent(ctx, "b1"))

	assert.Nil(t, env.content(t, "b1"))
	assert.Equal(t, int64(160), env.balance(t, "alice"))
	assert.Equal(t, int64(10), env.balance(t, "bob"))

	err = env.svc.Moderation.PermanentDeleteContent(ctx, "b1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPermanentDelete_ReverseOnRemove(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Moderation.ReverseOnRemove = true })
	ctx := context.Background()
	env.publish(t, "alice", "b1", models.ContentTypeBlog)
	env.publish(t, "alice", "b2", models.ContentTypeBlog)
	require.NoError(t, env.svc.Content.Like(ctx, "bob", "b1"))

	reportN(t, env, "b1", 1, 20)
	require.NoError(t, env.svc.Moderation.PermanentDeleteContent(ctx, "b1"))

	assert.Equal(t, int64(150), env.balance(t, "alice"))
	assert.Equal(t, int64(10), env.balance(t, "bob"), "likers keep their points")
}

func TestQueue_Limits(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Moderation.Queue(context.Background(), -1)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	queue, err := env.svc.Moderation.Queue(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, queue)
}
