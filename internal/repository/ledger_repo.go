package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/models"
)

const ledgerColumns = `seq, id, user_id, delta, reason, reference_id, content_id, note, created_at`

// ledgerRepo is the concrete implementation of LedgerRepository
type ledgerRepo struct {
	q database.Querier
}

// Append inserts an entry and fills in its commit sequence
func (r *ledgerRepo) Append(ctx context.Context, entry *models.LedgerEntry) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, delta, reason, reference_id, content_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`, entry.ID, entry.UserID, entry.Delta, string(entry.Reason), entry.ReferenceID,
		entry.ContentID, entry.Note, entry.CreatedAt,
	).Scan(&entry.Seq)
	return translate(err)
}

// ListByUser returns the user's most recent entries, newest first
func (r *ledgerRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE user_id = $1 ORDER BY seq DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByReference counts entries for one (user, reference, reason)
func (r *ledgerRepo) CountByReference(ctx context.Context, userID, referenceID string, reason models.Reason) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ledger_entries
		WHERE user_id = $1 AND reference_id = $2 AND reason = $3
	`, userID, referenceID, string(reason)).Scan(&count)
	return count, translate(err)
}

// SumByContent sums the user's deltas on contentID restricted to reasons
func (r *ledgerRepo) SumByContent(ctx context.Context, userID, contentID string, reasons []models.Reason) (int64, error) {
	names := make([]string, len(reasons))
	for i, reason := range reasons {
		names[i] = string(reason)
	}

	var sum int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(delta), 0) FROM ledger_entries
		WHERE user_id = $1 AND content_id = $2 AND reason = ANY($3)
	`, userID, contentID, pq.Array(names)).Scan(&sum)
	return sum, translate(err)
}

// ExistsByContent checks whether contentID has any ledger history
func (r *ledgerRepo) ExistsByContent(ctx context.Context, contentID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE content_id = $1)`,
		contentID,
	).Scan(&exists)
	return exists, translate(err)
}

// ExistsByReference checks whether any user has an entry for referenceID with reason
func (r *ledgerRepo) ExistsByReference(ctx context.Context, referenceID string, reason models.Reason) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE reference_id = $1 AND reason = $2)`,
		referenceID, string(reason),
	).Scan(&exists)
	return exists, translate(err)
}

// StreamAll streams all entries in commit order
func (r *ledgerRepo) StreamAll(ctx context.Context, fn func(*models.LedgerEntry) error) error {
	rows, err := r.q.QueryContext(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries ORDER BY seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanEntry(rows *sql.Rows) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	var reason string
	err := rows.Scan(&e.Seq, &e.ID, &e.UserID, &e.Delta, &reason, &e.ReferenceID,
		&e.ContentID, &e.Note, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Reason = models.Reason(reason)
	return &e, nil
}
