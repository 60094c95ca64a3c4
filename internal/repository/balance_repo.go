package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/models"
)

// balanceRepo is the concrete implementation of BalanceRepository
type balanceRepo struct {
	q database.Querier
}

// GetOrCreateForUpdate creates the balance row if missing and locks it.
// Both statements run in the caller's transaction, so there is no window
// between the existence check and the create.
func (r *balanceRepo) GetOrCreateForUpdate(ctx context.Context, userID string) (*models.Balance, error) {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO balances (user_id, points_balance, last_updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, time.Now().UTC())
	if err != nil {
		return nil, translate(err)
	}

	var b models.Balance
	err = r.q.QueryRowContext(ctx, `
		SELECT user_id, points_balance, last_updated_at
		FROM balances WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&b.UserID, &b.PointsBalance, &b.LastUpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// Update writes the balance and its update time
func (r *balanceRepo) Update(ctx context.Context, balance *models.Balance) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE balances SET points_balance = $1, last_updated_at = $2
		WHERE user_id = $3
	`, balance.PointsBalance, balance.LastUpdatedAt, balance.UserID)
	return translate(err)
}

// GetByUserID retrieves a balance, or nil if the user never transacted
func (r *balanceRepo) GetByUserID(ctx context.Context, userID string) (*models.Balance, error) {
	var b models.Balance
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, points_balance, last_updated_at FROM balances WHERE user_id = $1
	`, userID).Scan(&b.UserID, &b.PointsBalance, &b.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListAll returns every balance ordered by user id
func (r *balanceRepo) ListAll(ctx context.Context) ([]*models.Balance, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT user_id, points_balance, last_updated_at FROM balances ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*models.Balance
	for rows.Next() {
		var b models.Balance
		if err := rows.Scan(&b.UserID, &b.PointsBalance, &b.LastUpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, &b)
	}
	return balances, rows.Err()
}
