package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountUpsertAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.svc.Account.Upsert(ctx, &models.Account{ID: "alice", DisplayName: "Alice", AccountType: "Creator"})
	require.NoError(t, err)
	assert.Equal(t, models.AccountTypeCreator, account.AccountType)

	got, err := env.svc.Account.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	_, err = env.svc.Account.Get(ctx, "nobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.svc.Account.Upsert(ctx, &models.Account{ID: "bob", AccountType: "admin"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestImportCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"id,display_name,account_type",
		"alice,Alice,creator",
		"bob,Bob,VIEWER",
		"alice,Dup,creator",
		"bad id,Nope,creator",
		"carol,Carol,robot",
		"dave,Dave,",
	}, "\n")

	result, err := env.svc.Account.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 4, result.Failed)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, 4, result.Errors[0].Line)

	bob, err := env.svc.Account.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.AccountTypeViewer, bob.AccountType)

	count, err := env.repos.Account.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestImportCSV_BadHeader(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Account.ImportCSV(ctx, strings.NewReader(""))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = env.svc.Account.ImportCSV(ctx, strings.NewReader("name,type\nx,y\n"))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}
