package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/models"
)

// accountRepo is the concrete implementation of AccountRepository
type accountRepo struct {
	q database.Querier
}

// Upsert inserts an account or updates its name and type
func (r *accountRepo) Upsert(ctx context.Context, account *models.Account) error {
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (id, display_name, account_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			account_type = EXCLUDED.account_type,
			updated_at = EXCLUDED.updated_at
	`, account.ID, account.DisplayName, string(account.AccountType), account.CreatedAt, account.UpdatedAt)
	return translate(err)
}

// GetByID retrieves an account by ID
func (r *accountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	var accountType string
	err := r.q.QueryRowContext(ctx, `
		SELECT id, display_name, account_type, created_at, updated_at FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.DisplayName, &accountType, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.AccountType = models.AccountType(accountType)
	return &a, nil
}

// ListByType returns all accounts of one type ordered by id
func (r *accountRepo) ListByType(ctx context.Context, accountType models.AccountType) ([]*models.Account, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, display_name, account_type, created_at, updated_at
		FROM accounts WHERE account_type = $1 ORDER BY id
	`, string(accountType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var a models.Account
		var t string
		if err := rows.Scan(&a.ID, &a.DisplayName, &t, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.AccountType = models.AccountType(t)
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// Count returns the total number of accounts
func (r *accountRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	return count, err
}
