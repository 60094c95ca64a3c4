package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/points-ledger-engine/internal/cli"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/mocks"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	up    []string
	downs []int
}

func (m *fakeMigrator) RunMigrations(path string) error {
	m.up = append(m.up, path)
	return nil
}

func (m *fakeMigrator) MigrateDown(path string, steps int) error {
	m.downs = append(m.downs, steps)
	return nil
}

type harness struct {
	store    *mocks.MemStore
	services *service.Services
	migrator *fakeMigrator
	closed   bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: mocks.NewMemStore(), migrator: &fakeMigrator{}}
	h.services = service.NewServices(h.store.Repositories(), config.Defaults(), zerolog.Nop())
	return h
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	open := func(cfg *config.Config, log zerolog.Logger) (*cli.Runtime, error) {
		return &cli.Runtime{
			Config:   cfg,
			Services: h.services,
			Migrator: h.migrator,
			Close:    func() error { h.closed = true; return nil },
		}, nil
	}

	cmd := cli.NewRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBalanceAndLeaderboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.services.Ledger.Adjust(ctx, "alice", 300, "seed")
	require.NoError(t, err)
	_, err = h.services.Ledger.Adjust(ctx, "bob", 200, "seed")
	require.NoError(t, err)

	out, err := h.run(t, "balance", "alice")
	require.NoError(t, err)
	var balance models.Balance
	require.NoError(t, json.Unmarshal([]byte(out), &balance))
	assert.Equal(t, int64(300), balance.PointsBalance)
	assert.True(t, h.closed)

	out, err = h.run(t, "leaderboard", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "first_prize")
	assert.NotContains(t, out, "bob")

	_, err = h.run(t, "balance")
	assert.Error(t, err)
}

func TestAudit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.services.Ledger.Adjust(ctx, "alice", 10, "seed")
	require.NoError(t, err)

	out, err := h.run(t, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, `"users_checked": 1`)

	repos := h.store.Repositories()
	require.NoError(t, repos.Balance.Update(ctx, &models.Balance{UserID: "alice", PointsBalance: 11}))

	_, err = h.run(t, "audit")
	assert.EqualError(t, err, "1 balance(s) drifted from the ledger")
}

func TestReconcile(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, `"claimed": 0`)
}

func TestMigrate(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, []string{"./migrations"}, h.migrator.up)

	_, err = h.run(t, "migrate", "down", "2")
	require.NoError(t, err)
	_, err = h.run(t, "migrate", "down")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, h.migrator.downs)

	_, err = h.run(t, "migrate", "down", "zero")
	assert.Error(t, err)
}

func TestOpenerFailure(t *testing.T) {
	cmd := cli.NewRootCommand(func(cfg *config.Config, log zerolog.Logger) (*cli.Runtime, error) {
		return nil, errors.New("connection refused")
	})
	cmd.SetArgs([]string{"audit"})
	cmd.SetOut(&bytes.Buffer{})

	assert.EqualError(t, cmd.Execute(), "connection refused")
}
