package repository

import (
	"context"
	"database/sql"

	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/models"
)

// likeRepo is the concrete implementation of LikeRepository
type likeRepo struct {
	q database.Querier
}

// Create inserts a like relation
func (r *likeRepo) Create(ctx context.Context, like *models.Like) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO likes (content_id, liker_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_id, liker_id) DO NOTHING
	`, like.ContentID, like.LikerID, like.CreatedAt)
	return insertedOrDuplicate(res, err)
}

// Delete removes a like relation
func (r *likeRepo) Delete(ctx context.Context, contentID, likerID string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM likes WHERE content_id = $1 AND liker_id = $2`, contentID, likerID)
	return affected(res, err)
}

// Exists checks if the liker likes the content
func (r *likeRepo) Exists(ctx context.Context, contentID, likerID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM likes WHERE content_id = $1 AND liker_id = $2)",
		contentID, likerID,
	).Scan(&exists)
	return exists, translate(err)
}

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	q database.Querier
}

// Create inserts a comment relation
func (r *commentRepo) Create(ctx context.Context, comment *models.Comment) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO comments (id, content_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, comment.ID, comment.ContentID, comment.UserID, comment.CreatedAt)
	return insertedOrDuplicate(res, err)
}

// GetByID retrieves a comment by ID
func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	err := r.q.QueryRowContext(ctx,
		`SELECT id, content_id, user_id, created_at FROM comments WHERE id = $1`, id,
	).Scan(&c.ID, &c.ContentID, &c.UserID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// Delete removes a comment relation
func (r *commentRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return affected(res, err)
}

// reportRepo is the concrete implementation of ReportRepository
type reportRepo struct {
	q database.Querier
}

// Create inserts a report
func (r *reportRepo) Create(ctx context.Context, report *models.Report) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO reports (content_id, reporter_id, reason, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_id, reporter_id) DO NOTHING
	`, report.ContentID, report.ReporterID, string(report.Reason), report.Details, report.CreatedAt)
	return insertedOrDuplicate(res, err)
}

// DeleteByContent removes all reports of a content item
func (r *reportRepo) DeleteByContent(ctx context.Context, contentID string) (int, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM reports WHERE content_id = $1`, contentID)
	if err != nil {
		return 0, translate(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CountByContent returns the number of reports of a content item
func (r *reportRepo) CountByContent(ctx context.Context, contentID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports WHERE content_id = $1", contentID).Scan(&count)
	return count, translate(err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
