package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/models"
)

const contentColumns = `id, author_id, type, like_count, comment_count, report_count, hidden, created_at, updated_at`

// contentRepo is the concrete implementation of ContentRepository
type contentRepo struct {
	q database.Querier
}

// Create inserts a new content item. An existing id yields ErrDuplicate.
func (r *contentRepo) Create(ctx context.Context, c *models.Content) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO contents (id, author_id, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.AuthorID, string(c.Type), c.CreatedAt)
	return insertedOrDuplicate(res, err)
}

// GetByID retrieves a content item by ID
func (r *contentRepo) GetByID(ctx context.Context, id string) (*models.Content, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM contents WHERE id = $1`, id)

	var c models.Content
	var contentType string
	err := row.Scan(&c.ID, &c.AuthorID, &contentType, &c.LikeCount, &c.CommentCount,
		&c.ReportCount, &c.Hidden, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	c.Type = models.ContentType(contentType)
	return &c, nil
}

// AdjustLikeCount adds delta to the like counter
func (r *contentRepo) AdjustLikeCount(ctx context.Context, id string, delta int) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE contents SET like_count = like_count + $1, updated_at = $2 WHERE id = $3
	`, delta, time.Now().UTC(), id)
	return translate(err)
}

// AdjustCommentCount adds delta to the comment counter
func (r *contentRepo) AdjustCommentCount(ctx context.Context, id string, delta int) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE contents SET comment_count = comment_count + $1, updated_at = $2 WHERE id = $3
	`, delta, time.Now().UTC(), id)
	return translate(err)
}

// IncrementReportCount bumps the report counter and re-reads it in the same statement
func (r *contentRepo) IncrementReportCount(ctx context.Context, id string) (int, bool, error) {
	var count int
	var hidden bool
	err := r.q.QueryRowContext(ctx, `
		UPDATE contents SET report_count = report_count + 1, updated_at = $1
		WHERE id = $2
		RETURNING report_count, hidden
	`, time.Now().UTC(), id).Scan(&count, &hidden)
	return count, hidden, translate(err)
}

// SetHidden sets the visibility flag
func (r *contentRepo) SetHidden(ctx context.Context, id string, hidden bool) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE contents SET hidden = $1, updated_at = $2 WHERE id = $3
	`, hidden, time.Now().UTC(), id)
	return translate(err)
}

// ResetModeration clears the report counter and unhides the item
func (r *contentRepo) ResetModeration(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE contents SET report_count = 0, hidden = FALSE, updated_at = $1 WHERE id = $2
	`, time.Now().UTC(), id)
	return translate(err)
}

// Delete removes the content item; relation rows cascade
func (r *contentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM contents WHERE id = $1`, id)
	return translate(err)
}

// ListHidden returns hidden items, most reported first
func (r *contentRepo) ListHidden(ctx context.Context, limit int) ([]*models.Content, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+contentColumns+` FROM contents
		WHERE hidden
		ORDER BY report_count DESC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Content
	for rows.Next() {
		var c models.Content
		var contentType string
		if err := rows.Scan(&c.ID, &c.AuthorID, &contentType, &c.LikeCount, &c.CommentCount,
			&c.ReportCount, &c.Hidden, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Type = models.ContentType(contentType)
		items = append(items, &c)
	}
	return items, rows.Err()
}

// EngagementTotals aggregates visible content per author. Authors whose
// content is all hidden get a zero row.
func (r *contentRepo) EngagementTotals(ctx context.Context) ([]*models.EngagementTotals, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT author_id,
		       COUNT(*) FILTER (WHERE NOT hidden),
		       COALESCE(SUM(like_count) FILTER (WHERE NOT hidden), 0),
		       COALESCE(SUM(comment_count) FILTER (WHERE NOT hidden), 0)
		FROM contents
		GROUP BY author_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []*models.EngagementTotals
	for rows.Next() {
		var t models.EngagementTotals
		if err := rows.Scan(&t.AuthorID, &t.PostCount, &t.TotalLikes, &t.TotalComments); err != nil {
			return nil, err
		}
		totals = append(totals, &t)
	}
	return totals, rows.Err()
}

// insertedOrDuplicate turns an ON CONFLICT DO NOTHING miss into ErrDuplicate.
// A unique violation would abort the surrounding transaction, so inserts
// that may collide skip the row instead.
func insertedOrDuplicate(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}
