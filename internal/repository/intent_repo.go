package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/models"
)

const intentColumns = `id, kind, status, payload, attempts, last_error, created_at, updated_at`

// intentRepo is the concrete implementation of IntentRepository
type intentRepo struct {
	q database.Querier
}

// Create inserts a new intent
func (r *intentRepo) Create(ctx context.Context, intent *models.Intent) error {
	payload, err := json.Marshal(intent.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode intent payload: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO intents (id, kind, status, payload, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, intent.ID, string(intent.Kind), string(intent.Status), payload, intent.Attempts,
		intent.LastError, intent.CreatedAt, intent.UpdatedAt)
	return translate(err)
}

// Update writes status, attempts and last error
func (r *intentRepo) Update(ctx context.Context, intent *models.Intent) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE intents SET status = $1, attempts = $2, last_error = $3, updated_at = $4
		WHERE id = $5
	`, string(intent.Status), intent.Attempts, intent.LastError, intent.UpdatedAt, intent.ID)
	return translate(err)
}

// GetByID retrieves an intent by ID
func (r *intentRepo) GetByID(ctx context.Context, id string) (*models.Intent, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+intentColumns+` FROM intents WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanIntent(rows)
}

// ListStale returns unfinished intents untouched since olderThan, oldest first
func (r *intentRepo) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Intent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+intentColumns+` FROM intents
		WHERE status IN ('pending', 'running') AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []*models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// MarkRunning atomically claims an intent
func (r *intentRepo) MarkRunning(ctx context.Context, id string, from models.IntentStatus, seen time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE intents SET status = 'running', updated_at = $1
		WHERE id = $2 AND status = $3 AND updated_at = $4
	`, time.Now().UTC(), id, string(from), seen)
	if err != nil {
		return false, translate(err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func scanIntent(rows *sql.Rows) (*models.Intent, error) {
	var intent models.Intent
	var kind, status string
	var payload []byte
	if err := rows.Scan(&intent.ID, &kind, &status, &payload, &intent.Attempts,
		&intent.LastError, &intent.CreatedAt, &intent.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &intent.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode intent %s payload: %w", intent.ID, err)
	}
	intent.Kind = models.IntentKind(kind)
	intent.Status = models.IntentStatus(status)
	return &intent, nil
}
