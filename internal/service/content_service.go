package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/points-ledger-engine/internal/validation"
	"github.com/rs/zerolog"
)

// contentService is the concrete implementation of ContentService.
//
// Every workflow records an intent before its first step. The relation
// change (content row, like, comment) commits first, then the ledger
// transfers. When the first transfer fails the relation change is undone
// and the intent is aborted. When a later step fails the intent stays
// pending for the reconciler and the caller gets an error.
type contentService struct {
	repos   *repository.Repositories
	points  PointsService
	ranking RankingService
	log     zerolog.Logger
	now     func() time.Time
}

// newContentService creates a new ContentService
func newContentService(repos *repository.Repositories, points PointsService, ranking RankingService, log zerolog.Logger) *contentService {
	return &contentService{
		repos:   repos,
		points:  points,
		ranking: ranking,
		log:     log.With().Str("service", "content").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a visible content item
func (s *contentService) Get(ctx context.Context, contentID string) (*models.Content, error) {
	if err := validation.CheckID("content_id", contentID); err != nil {
		return nil, err
	}
	content, err := s.repos.Content.GetByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if content == nil || content.Hidden {
		return nil, apperror.NotFound("content", contentID)
	}
	return content, nil
}

// Publish creates the content item and awards the publish tariff
func (s *contentService) Publish(ctx context.Context, authorID string, req *models.PublishRequest) (*models.Content, error) {
	if req.ContentID == "" {
		req.ContentID = uuid.NewString()
	}
	if err := validation.CheckIDs("author_id", authorID, "content_id", req.ContentID); err != nil {
		return nil, err
	}
	if err := validation.CheckContentType(req.Type); err != nil {
		return nil, err
	}

	// Content ids are single-use: an id whose item is gone still owns its
	// ledger history.
	used, err := s.repos.Ledger.ExistsByContent(ctx, req.ContentID)
	if err != nil {
		return nil, err
	}
	if used {
		existing, err := s.repos.Content.GetByID(ctx, req.ContentID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apperror.InvalidInput("content_id", fmt.Sprintf("content id %s was used before", req.ContentID))
		}
	}

	content := &models.Content{
		ID:        req.ContentID,
		AuthorID:  authorID,
		Type:      req.Type,
		CreatedAt: s.now(),
	}

	intent, err := s.begin(ctx, models.IntentPublish, models.IntentPayload{
		ContentID:   content.ID,
		ContentType: content.Type,
		AuthorID:    authorID,
	})
	if err != nil {
		return nil, err
	}

	created := true
	if err := s.repos.Content.Create(ctx, content); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			s.finish(ctx, intent, models.IntentStatusAborted, err)
			return nil, err
		}
		// A retried publish of the same item resumes instead of failing.
		existing, getErr := s.repos.Content.GetByID(ctx, content.ID)
		if getErr != nil {
			s.finish(ctx, intent, models.IntentStatusAborted, getErr)
			return nil, getErr
		}
		if existing == nil || existing.AuthorID != authorID || existing.Type != req.Type {
			s.finish(ctx, intent, models.IntentStatusAborted, err)
			return nil, apperror.InvalidInput("content_id", fmt.Sprintf("content %s already exists", content.ID))
		}
		content = existing
		created = false
	}

	if err := s.points.AwardForPublish(ctx, authorID, content.Type, content.ID); err != nil {
		if created {
			if delErr := s.repos.Content.Delete(ctx, content.ID); delErr != nil {
				s.log.Error().Err(delErr).Str("content_id", content.ID).Msg("Failed to remove content after award failure")
				s.finish(ctx, intent, models.IntentStatusPending, err)
				return nil, err
			}
		}
		s.finish(ctx, intent, models.IntentStatusAborted, err)
		return nil, err
	}

	s.finish(ctx, intent, models.IntentStatusCompleted, nil)
	s.ranking.InvalidateScoreboard()

	s.log.Info().
		Str("content_id", content.ID).
		Str("author_id", authorID).
		Str("type", string(content.Type)).
		Msg("Content published")
	return content, nil
}

// Delete reverses the author's points for the content, then deletes it.
// A failed delete leaves the reversal committed and the intent pending.
func (s *contentService) Delete(ctx context.Context, userID, contentID string) error {
	if err := validation.CheckIDs("user_id", userID, "content_id", contentID); err != nil {
		return err
	}

	content, err := s.repos.Content.GetByID(ctx, contentID)
	if err != nil {
		return err
	}
	if content == nil {
		return apperror.NotFound("content", contentID)
	}
	if content.AuthorID != userID {
		return apperror.Forbidden("only the author may delete content")
	}

	intent, err := s.begin(ctx, models.IntentDelete, models.IntentPayload{
		ContentID:   contentID,
		ContentType: content.Type,
		AuthorID:    content.AuthorID,
	})
	if err != nil {
		return err
	}

	reversed, err := s.points.ReverseForDelete(ctx, content.AuthorID, contentID)
	if err != nil {
		s.finish(ctx, intent, models.IntentStatusAborted, err)
		return err
	}

	if err := s.repos.Content.Delete(ctx, contentID); err != nil {
		s.log.Error().
			Err(err).
			Str("content_id", contentID).
			Int64("reversed", reversed).
			Msg("Content delete failed after reversal; left for reconciliation")
		s.finish(ctx, intent, models.IntentStatusPending, err)
		return apperror.PartiallyApplied(
			fmt.Sprintf("points for content %s were reversed but the content was not removed; retry the delete", contentID), err)
	}

	s.finish(ctx, intent, models.IntentStatusCompleted, nil)
	s.ranking.InvalidateScoreboard()

	s.log.Info().
		Str("content_id", contentID).
		Str("author_id", content.AuthorID).
		Int64("reversed", reversed).
		Msg("Content deleted")
	return nil
}

// Like records the like relation and pays both sides. Liking twice is a no-op.
func (s *contentService) Like(ctx context.Context, likerID, contentID string) error {
	if err := validation.CheckIDs("liker_id", likerID, "content_id", contentID); err != nil {
		return err
	}
	content, err := s.Get(ctx, contentID)
	if err != nil {
		return err
	}

	intent, err := s.begin(ctx, models.IntentLike, models.IntentPayload{
		ContentID: contentID,
		AuthorID:  content.AuthorID,
		ActorID:   likerID,
	})
	if err != nil {
		return err
	}

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		if err := r.Like.Create(ctx, &models.Like{ContentID: contentID, LikerID: likerID, CreatedAt: s.now()}); err != nil {
			return err
		}
		return r.Content.AdjustLikeCount(ctx, contentID, 1)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		s.finish(ctx, intent, models.IntentStatusCompleted, nil)
		return nil
	}
	if err != nil {
		s.finish(ctx, intent, models.IntentStatusAborted, err)
		return err
	}

	err = s.points.AwardForLike(ctx, likerID, content.AuthorID, contentID)
	if err != nil {
		return s.settleFailedTransfer(ctx, intent, err, func(ctx context.Context, r *repository.Repositories) error {
			if _, err := r.Like.Delete(ctx, contentID, likerID); err != nil {
				return err
			}
			return r.Content.AdjustLikeCount(ctx, contentID, -1)
		})
	}

	s.finish(ctx, intent, models.IntentStatusCompleted, nil)
	s.ranking.InvalidateScoreboard()
	return nil
}

// Unlike removes the like relation and reverses both sides. Unliking content
// that is not liked is a no-op.
func (s *contentService) Unlike(ctx context.Context, likerID, contentID string) error {
	if err := validation.CheckIDs("liker_id", likerID, "content_id", contentID); err != nil {
		return err
	}
	content, err := s.repos.Content.GetByID(ctx, contentID)
	if err != nil {
		return err
	}
	if content == nil {
		return apperror.NotFound("content", contentID)
	}

	intent, err := s.begin(ctx, models.IntentUnlike, models.IntentPayload{
		ContentID: contentID,
		AuthorID:  content.AuthorID,
		ActorID:   likerID,
	})
	if err != nil {
		return err
	}

	var likedAt time.Time
	removed := false
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		removed = false
		ok, err := r.Like.Delete(ctx, contentID, likerID)
		if err != nil || !ok {
			return err
		}
		removed = true
		likedAt = s.now()
		return r.Content.AdjustLikeCount(ctx, contentID, -1)
	})
	if err != nil {
		s.finish(ctx, intent, models.IntentStatusAborted, err)
		return err
	}
	if !removed {
		s.finish(ctx, intent, models.IntentStatusCompleted, nil)
		return nil
	}

	err = s.points.ReverseForUnlike(ctx, likerID, content.AuthorID, contentID)
	if err != nil {
		return s.settleFailedTransfer(ctx, intent, err, func(ctx context.Context, r *repository.Repositories) error {
			if err := r.Like.Create(ctx, &models.Like{ContentID: contentID, LikerID: likerID, CreatedAt: likedAt}); err != nil {
				return err
			}
			return r.Content.AdjustLikeCount(ctx, contentID, 1)
		})
	}

	s.finish(ctx, intent, models.IntentStatusCompleted, nil)
	s.ranking.InvalidateScoreboard()
	return nil
}

// Comment records the comment relation and pays both sides
func (s *contentService) Comment(ctx context.Context, commenterID, contentID, commentID string) (*models.Comment, error) {
	if commentID == "" {
		commentID = uuid.NewString()
	}
	if err := validation.CheckIDs("commenter_id", commenterID, "content_id", contentID, "comment_id", commentID); err != nil {
		return nil, err
	}
	content, err := s.Get(ctx, contentID)
	if err != nil {
		return nil, err
	}

	used, err := s.repos.Ledger.ExistsByReference(ctx, commentID, models.ReasonCommentGiven)
	if err != nil {
		return nil, err
	}
	if used {
		existing, err := s.repos.Comment.GetByID(ctx, commentID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apperror.InvalidInput("comment_id", fmt.Sprintf("comment id %s was used before", commentID))
		}
	}

	comment := &models.Comment{ID: commentID, ContentID: contentID, UserID: commenterID, CreatedAt: s.now()}

	intent, err := s.begin(ctx, models.IntentComment, models.IntentPayload{
		ContentID: contentID,
		AuthorID:  content.AuthorID,
		ActorID:   commenterID,
		CommentID: commentID,
	})
	if err != nil {
		return nil, err
	}

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		if err := r.Comment.Create(ctx, comment); err != nil {
			return err
		}
		return r.Content.AdjustCommentCount(ctx, contentID, 1)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		existing, getErr := s.repos.Comment.GetByID(ctx, commentID)
		if getErr == nil && existing != nil && existing.UserID == commenterID && existing.ContentID == contentID {
			s.finish(ctx, intent, models.IntentStatusCompleted, nil)
			return existing, nil
		}
		s.finish(ctx, intent, models.IntentStatusAborted, err)
		return nil, apperror.InvalidInput("comment_id", fmt.Sprintf("comment %s already exists", commentID))
	}
	if err != nil {
		s.finish(ctx, intent, models.IntentStatusAborted, err)
		return nil, err
	}

	err = s.points.AwardForComment(ctx, commenterID, content.AuthorID, contentID, commentID)
	if err != nil {
		return nil, s.settleFailedTransfer(ctx, intent, err, func(ctx context.Context, r *repository.Repositories) error {
			if _, err := r.Comment.Delete(ctx, commentID); err != nil {
				return err
			}
			return r.Content.AdjustCommentCount(ctx, contentID, -1)
		})
	}

	s.finish(ctx, intent, models.IntentStatusCompleted, nil)
	s.ranking.InvalidateScoreboard()
	return comment, nil
}

// Uncomment removes the comment relation and reverses both sides. The
// commenter or the content author may remove a comment.
func (s *contentService) Uncomment(ctx context.Context, userID, contentID, commentID string) error {
	if err := validation.CheckIDs("user_id", userID, "content_id", contentID, "comment_id", commentID); err != nil {
		return err
	}

	comment, err := s.repos.Comment.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment == nil || comment.ContentID != contentID {
		return apperror.NotFound("comment", commentID)
	}
	content, err := s.repos.Content.GetByID(ctx, contentID)
	if err != nil {
		return err
	}
	if content == nil {
		return apperror.NotFound("content", contentID)
	}
	if userID != comment.UserID && userID != content.AuthorID {
		return apperror.Forbidden("only the commenter or the author may remove a comment")
	}

	intent, err := s.begin(ctx, models.IntentUncomment, models.IntentPayload{
		ContentID: contentID,
		AuthorID:  content.AuthorID,
		ActorID:   comment.UserID,
		CommentID: commentID,
	})
	if err != nil {
		return err
	}

	removed := false
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		removed = false
		ok, err := r.Comment.Delete(ctx, commentID)
		if err != nil || !ok {
			return err
		}
		removed = true
		return r.Content.AdjustCommentCount(ctx, contentID, -1)
	})
	if err != nil {
		s.finish(ctx, intent, models.IntentStatusAborted, err)
		return err
	}
	if !removed {
		s.finish(ctx, intent, models.IntentStatusCompleted, nil)
		return nil
	}

	err = s.points.ReverseForComment(ctx, comment.UserID, content.AuthorID, contentID, commentID)
	if err != nil {
		return s.settleFailedTransfer(ctx, intent, err, func(ctx context.Context, r *repository.Repositories) error {
			if err := r.Comment.Create(ctx, comment); err != nil {
				return err
			}
			return r.Content.AdjustCommentCount(ctx, contentID, 1)
		})
	}

	s.finish(ctx, intent, models.IntentStatusCompleted, nil)
	s.ranking.InvalidateScoreboard()
	return nil
}

// Resume replays the remaining steps of an intent. Each step is guarded by
// the ledger, so steps that already committed are skipped.
func (s *contentService) Resume(ctx context.Context, intent *models.Intent) error {
	p := intent.Payload

	switch intent.Kind {
	case models.IntentPublish:
		content, err := s.repos.Content.GetByID(ctx, p.ContentID)
		if err != nil || content == nil {
			return err
		}
		return s.points.AwardForPublish(ctx, content.AuthorID, content.Type, content.ID)

	case models.IntentDelete:
		content, err := s.repos.Content.GetByID(ctx, p.ContentID)
		if err != nil || content == nil {
			// the reversal always commits before the delete
			return err
		}
		if _, err := s.points.ReverseForDelete(ctx, p.AuthorID, p.ContentID); err != nil {
			return err
		}
		if err := s.repos.Content.Delete(ctx, p.ContentID); err != nil {
			return err
		}
		s.ranking.InvalidateScoreboard()
		return nil

	case models.IntentLike:
		liked, err := s.repos.Like.Exists(ctx, p.ContentID, p.ActorID)
		if err != nil || !liked {
			return err
		}
		return s.points.AwardForLike(ctx, p.ActorID, p.AuthorID, p.ContentID)

	case models.IntentUnlike:
		liked, err := s.repos.Like.Exists(ctx, p.ContentID, p.ActorID)
		if err != nil || liked {
			return err
		}
		return ignoreInconsistent(s.points.ReverseForUnlike(ctx, p.ActorID, p.AuthorID, p.ContentID))

	case models.IntentComment:
		comment, err := s.repos.Comment.GetByID(ctx, p.CommentID)
		if err != nil || comment == nil {
			return err
		}
		return s.points.AwardForComment(ctx, p.ActorID, p.AuthorID, p.ContentID, p.CommentID)

	case models.IntentUncomment:
		comment, err := s.repos.Comment.GetByID(ctx, p.CommentID)
		if err != nil || comment != nil {
			return err
		}
		return ignoreInconsistent(s.points.ReverseForComment(ctx, p.ActorID, p.AuthorID, p.ContentID, p.CommentID))

	default:
		return fmt.Errorf("unknown intent kind %q", intent.Kind)
	}
}

// settleFailedTransfer handles a failed two-sided transfer. If nothing was
// paid the relation change is undone and the intent aborted. If one side was
// paid the intent stays pending and the caller is told the commit failed.
func (s *contentService) settleFailedTransfer(ctx context.Context, intent *models.Intent, err error, compensate func(ctx context.Context, r *repository.Repositories) error) error {
	var partial *PartialTransferError
	if errors.As(err, &partial) {
		s.log.Warn().
			Err(partial.Err).
			Str("intent_id", intent.ID).
			Str("completed", partial.Completed).
			Str("pending", partial.Pending).
			Msg("Transfer half committed; left for reconciliation")
		s.finish(ctx, intent, models.IntentStatusPending, err)
		if errors.Is(err, apperror.ErrLedgerCommitFailed) {
			return err
		}
		return apperror.LedgerCommitFailed(partial.Pending, err)
	}

	if compErr := s.repos.Tx.WithinTx(context.WithoutCancel(ctx), compensate); compErr != nil {
		s.log.Error().
			Err(compErr).
			Str("intent_id", intent.ID).
			Msg("Compensation failed; left for reconciliation")
		s.finish(ctx, intent, models.IntentStatusPending, err)
		return err
	}

	s.finish(ctx, intent, models.IntentStatusAborted, err)
	return err
}

// begin records a pending intent
func (s *contentService) begin(ctx context.Context, kind models.IntentKind, payload models.IntentPayload) (*models.Intent, error) {
	now := s.now()
	intent := &models.Intent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    models.IntentStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Intent.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to record %s intent: %w", kind, err)
	}
	return intent, nil
}

// finish records the outcome of an intent. Failing to do so is logged only:
// an intent left pending is picked up by the reconciler, whose steps are
// idempotent.
func (s *contentService) finish(ctx context.Context, intent *models.Intent, status models.IntentStatus, cause error) {
	intent.Status = status
	intent.UpdatedAt = s.now()
	if cause != nil {
		intent.LastError = cause.Error()
	}

	if err := s.repos.Intent.Update(context.WithoutCancel(ctx), intent); err != nil {
		s.log.Error().
			Err(err).
			Str("intent_id", intent.ID).
			Str("status", string(status)).
			Msg("Failed to update intent")
	}
}

func ignoreInconsistent(err error) error {
	if errors.Is(err, apperror.ErrInconsistentState) {
		return nil
	}
	return err
}
