package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/mocks"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/points-ledger-engine/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store *mocks.MemStore
	repos *repository.Repositories
	cfg   *config.Config
	svc   *service.Services
}

func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Defaults()
	cfg.Ledger.MaxRetries = 3
	cfg.Ledger.RetryInitial = time.Millisecond
	cfg.Ledger.RetryMax = 2 * time.Millisecond
	cfg.Reconcile.GracePeriod = -time.Minute
	for _, opt := range opts {
		opt(cfg)
	}
	require.NoError(t, cfg.Validate())

	store := mocks.NewMemStore()
	repos := store.Repositories()
	return &testEnv{
		store: store,
		repos: repos,
		cfg:   cfg,
		svc:   service.NewServices(repos, cfg, zerolog.Nop()),
	}
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := e.repos.Balance.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	if b == nil {
		return 0
	}
	return b.PointsBalance
}

func (e *testEnv) content(t *testing.T, contentID string) *models.Content {
	t.Helper()
	c, err := e.repos.Content.GetByID(context.Background(), contentID)
	require.NoError(t, err)
	return c
}

func (e *testEnv) publish(t *testing.T, authorID, contentID string, contentType models.ContentType) {
	t.Helper()
	_, err := e.svc.Content.Publish(context.Background(), authorID, &models.PublishRequest{ContentID: contentID, Type: contentType})
	require.NoError(t, err)
}

// unfinishedIntents returns pending and running intents
func (e *testEnv) unfinishedIntents(t *testing.T) []*models.Intent {
	t.Helper()
	intents, err := e.repos.Intent.ListStale(context.Background(), time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	return intents
}
