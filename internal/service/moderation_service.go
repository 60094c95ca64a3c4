package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/points-ledger-engine/internal/validation"
	"github.com/rs/zerolog"
)

const (
	defaultQueueLimit = 50
	maxQueueLimit     = 500
)

// moderationService is the concrete implementation of ModerationService.
// Visible -> Hidden once the report count reaches the threshold; Hidden ->
// Visible on restore; Hidden -> removed on permanent delete.
type moderationService struct {
	repos   *repository.Repositories
	points  PointsService
	ranking RankingService
	cfg     config.ModerationConfig
	tx      *txRetrier
	log     zerolog.Logger
	now     func() time.Time
}

// newModerationService creates a new ModerationService
func newModerationService(repos *repository.Repositories, points PointsService, ranking RankingService, cfg *config.Config, log zerolog.Logger) *moderationService {
	log = log.With().Str("service", "moderation").Logger()
	return &moderationService{
		repos:   repos,
		points:  points,
		ranking: ranking,
		cfg:     cfg.Moderation,
		tx:      &txRetrier{tx: repos.Tx, cfg: cfg.Ledger, log: log},
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ReportContent records one report per reporter and hides the content in
// the same transaction when the incremented count reaches the threshold.
func (s *moderationService) ReportContent(ctx context.Context, contentID, reporterID string, reason models.ReportReason, details string) (*models.ReportOutcome, error) {
	if err := validation.CheckIDs("content_id", contentID, "reporter_id", reporterID); err != nil {
		return nil, err
	}
	if err := validation.CheckReport(&models.ReportRequest{Reason: reason, Details: details}); err != nil {
		return nil, err
	}

	var outcome models.ReportOutcome
	_, err := s.tx.run(ctx, func(ctx context.Context, r *repository.Repositories) error {
		outcome = models.ReportOutcome{ContentID: contentID}

		content, err := r.Content.GetByID(ctx, contentID)
		if err != nil {
			return err
		}
		if content == nil {
			return apperror.NotFound("content", contentID)
		}

		err = r.Report.Create(ctx, &models.Report{
			ContentID:  contentID,
			ReporterID: reporterID,
			Reason:     reason,
			Details:    details,
			CreatedAt:  s.now(),
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return apperror.AlreadyReported(contentID, reporterID)
		}
		if err != nil {
			return err
		}

		count, hidden, err := r.Content.IncrementReportCount(ctx, contentID)
		if err != nil {
			return err
		}
		if count >= s.cfg.ReportThreshold && !hidden {
			if err := r.Content.SetHidden(ctx, contentID, true); err != nil {
				return err
			}
			hidden = true
			outcome.JustHidden = true
		}

		outcome.ReportCount = count
		outcome.Hidden = hidden
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.JustHidden {
		s.ranking.InvalidateScoreboard()
		s.log.Info().
			Str("content_id", contentID).
			Int("report_count", outcome.ReportCount).
			Int("threshold", s.cfg.ReportThreshold).
			Msg("Content hidden by report threshold")
	}
	return &outcome, nil
}

// RestoreContent removes every report and makes the content visible again.
// It never touches the ledger.
func (s *moderationService) RestoreContent(ctx context.Context, contentID string) error {
	if err := validation.CheckID("content_id", contentID); err != nil {
		return err
	}

	var cleared int
	_, err := s.tx.run(ctx, func(ctx context.Context, r *repository.Repositories) error {
		content, err := r.Content.GetByID(ctx, contentID)
		if err != nil {
			return err
		}
		if content == nil {
			return apperror.NotFound("content", contentID)
		}

		cleared, err = r.Report.DeleteByContent(ctx, contentID)
		if err != nil {
			return err
		}
		return r.Content.ResetModeration(ctx, contentID)
	})
	if err != nil {
		return err
	}

	s.ranking.InvalidateScoreboard()
	s.log.Info().
		Str("content_id", contentID).
		Int("reports_cleared", cleared).
		Msg("Content restored")
	return nil
}

// PermanentDeleteContent removes a hidden item and its reports. Points the
// author earned from it are kept unless reverse-on-remove is enabled.
func (s *moderationService) PermanentDeleteContent(ctx context.Context, contentID string) error {
	if err := validation.CheckID("content_id", contentID); err != nil {
		return err
	}

	content, err := s.repos.Content.GetByID(ctx, contentID)
	if err != nil {
		return err
	}
	if content == nil {
		return apperror.NotFound("content", contentID)
	}
	if !content.Hidden {
		return apperror.InconsistentState(fmt.Sprintf("content %s is not hidden", contentID))
	}

	var reversed int64
	if s.cfg.ReverseOnRemove {
		reversed, err = s.points.ReverseForDelete(ctx, content.AuthorID, contentID)
		if err := ignoreInconsistent(err); err != nil {
			return err
		}
	}

	var cleared int
	_, err = s.tx.run(ctx, func(ctx context.Context, r *repository.Repositories) error {
		var err error
		cleared, err = r.Report.DeleteByContent(ctx, contentID)
		if err != nil {
			return err
		}
		return r.Content.Delete(ctx, contentID)
	})
	if err != nil {
		return err
	}

	s.ranking.InvalidateScoreboard()
	s.log.Info().
		Str("content_id", contentID).
		Str("author_id", content.AuthorID).
		Int("reports_cleared", cleared).
		Bool("points_reversed", s.cfg.ReverseOnRemove).
		Int64("reversed", reversed).
		Msg("Content permanently deleted")
	return nil
}

// Queue lists hidden content awaiting a moderator, most reported first
func (s *moderationService) Queue(ctx context.Context, limit int) ([]*models.Content, error) {
	switch {
	case limit < 0:
		return nil, apperror.InvalidInput("limit", "limit must not be negative")
	case limit == 0:
		limit = defaultQueueLimit
	case limit > maxQueueLimit:
		limit = maxQueueLimit
	}

	items, err := s.repos.Content.ListHidden(ctx, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Content{}
	}
	return items, nil
}
