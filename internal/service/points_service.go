package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/points-ledger-engine/internal/validation"
	"github.com/rs/zerolog"
)

// authorContentReasons are the author-side reasons attributed to a content item
var authorContentReasons = []models.Reason{
	models.ReasonContentPublished,
	models.ReasonLikeReceived,
	models.ReasonLikeReversedReceived,
	models.ReasonCommentReceived,
	models.ReasonCommentReversedReceived,
}

// PartialTransferError is returned when the first half of a two-sided
// transfer committed and the second did not. Retrying the operation is
// safe: the committed half is skipped.
type PartialTransferError struct {
	Completed string
	Pending   string
	Err       error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("transfer to %s committed, transfer to %s failed: %v", e.Completed, e.Pending, e.Err)
}

func (e *PartialTransferError) Unwrap() error {
	return e.Err
}

// pointsService is the concrete implementation of PointsService
type pointsService struct {
	ledger *ledgerService
	cfg    config.LedgerConfig
	log    zerolog.Logger
}

// newPointsService creates a new PointsService
func newPointsService(ledger *ledgerService, cfg config.LedgerConfig, log zerolog.Logger) *pointsService {
	return &pointsService{
		ledger: ledger,
		cfg:    cfg,
		log:    log.With().Str("service", "points").Logger(),
	}
}

// AwardForPublish credits the publish tariff to the author
func (s *pointsService) AwardForPublish(ctx context.Context, userID string, contentType models.ContentType, contentID string) error {
	if err := validation.CheckIDs("user_id", userID, "content_id", contentID); err != nil {
		return err
	}
	if err := validation.CheckContentType(contentType); err != nil {
		return err
	}

	// The tariff is paid once per content id, including after a delete.
	prepare := func(ctx context.Context, r *repository.Repositories, p *posting) error {
		published, err := r.Ledger.CountByReference(ctx, userID, contentID, models.ReasonContentPublished)
		if err != nil {
			return err
		}
		if published > 0 {
			return errSkip
		}
		return nil
	}

	_, err := s.ledger.post(ctx, posting{
		userID:      userID,
		delta:       models.BasePublishTariff(contentType),
		reason:      models.ReasonContentPublished,
		referenceID: contentID,
		contentID:   contentID,
	}, prepare)
	return err
}

// ReverseForDelete takes back everything the author earned from the content
// in one entry. The amount comes from the author's ledger entries on the
// content or from the live counters, depending on configuration; the other
// source is computed as a cross-check.
func (s *pointsService) ReverseForDelete(ctx context.Context, userID, contentID string) (int64, error) {
	if err := validation.CheckIDs("user_id", userID, "content_id", contentID); err != nil {
		return 0, err
	}

	var reversed int64
	prepare := func(ctx context.Context, r *repository.Repositories, p *posting) error {
		reversed = 0

		content, err := r.Content.GetByID(ctx, contentID)
		if err != nil {
			return err
		}
		if content == nil {
			return apperror.NotFound("content", contentID)
		}
		if content.AuthorID != userID {
			return apperror.InvalidInput("user_id", fmt.Sprintf("user %s is not the author of %s", userID, contentID))
		}

		done, err := r.Ledger.CountByReference(ctx, userID, contentID, models.ReasonContentDeleted)
		if err != nil {
			return err
		}
		if done > 0 {
			return errSkip
		}
		published, err := r.Ledger.CountByReference(ctx, userID, contentID, models.ReasonContentPublished)
		if err != nil {
			return err
		}
		if published == 0 {
			return apperror.InconsistentState(fmt.Sprintf("content %s was never awarded to %s", contentID, userID))
		}

		fromLedger, err := r.Ledger.SumByContent(ctx, userID, contentID, authorContentReasons)
		if err != nil {
			return err
		}
		fromCounters := models.BasePublishTariff(content.Type) +
			models.TariffLike*int64(content.LikeCount) +
			models.TariffComment*int64(content.CommentCount)

		if fromLedger != fromCounters {
			s.log.Warn().
				Str("content_id", contentID).
				Str("author_id", userID).
				Int64("ledger", fromLedger).
				Int64("counters", fromCounters).
				Str("source", s.cfg.ReversalSource).
				Msg("Reversal sources disagree")
		}

		amount := fromLedger
		if s.cfg.ReversalSource == config.ReversalSourceCounters {
			amount = fromCounters
		}
		if amount <= 0 {
			return errSkip
		}

		p.delta = -amount
		reversed = amount
		return nil
	}

	_, err := s.ledger.post(ctx, posting{
		userID:      userID,
		reason:      models.ReasonContentDeleted,
		referenceID: contentID,
		contentID:   contentID,
	}, prepare)
	if err != nil {
		return 0, err
	}
	return reversed, nil
}

// AwardForLike credits the like tariff to the liker, then to the author
func (s *pointsService) AwardForLike(ctx context.Context, likerID, authorID, contentID string) error {
	if err := validation.CheckIDs("liker_id", likerID, "author_id", authorID, "content_id", contentID); err != nil {
		return err
	}

	ref := models.LikeReference(contentID, likerID)
	return s.awardBoth(ctx, likerID, authorID, models.ReasonLikeGiven, models.ReasonLikeReceived, ref, contentID, models.TariffLike)
}

// ReverseForUnlike negates both halves of a like
func (s *pointsService) ReverseForUnlike(ctx context.Context, likerID, authorID, contentID string) error {
	if err := validation.CheckIDs("liker_id", likerID, "author_id", authorID, "content_id", contentID); err != nil {
		return err
	}

	ref := models.LikeReference(contentID, likerID)
	return s.reverseBoth(ctx, likerID, authorID, models.ReasonLikeGiven, models.ReasonLikeReceived, ref, contentID, models.TariffLike)
}

// AwardForComment credits the comment tariff to the commenter, then to the author
func (s *pointsService) AwardForComment(ctx context.Context, commenterID, authorID, contentID, commentID string) error {
	if err := validation.CheckIDs("commenter_id", commenterID, "author_id", authorID, "content_id", contentID, "comment_id", commentID); err != nil {
		return err
	}

	return s.awardBoth(ctx, commenterID, authorID, models.ReasonCommentGiven, models.ReasonCommentReceived, commentID, contentID, models.TariffComment)
}

// ReverseForComment negates both halves of a comment
func (s *pointsService) ReverseForComment(ctx context.Context, commenterID, authorID, contentID, commentID string) error {
	if err := validation.CheckIDs("commenter_id", commenterID, "author_id", authorID, "content_id", contentID, "comment_id", commentID); err != nil {
		return err
	}

	return s.reverseBoth(ctx, commenterID, authorID, models.ReasonCommentGiven, models.ReasonCommentReceived, commentID, contentID, models.TariffComment)
}

func (s *pointsService) awardBoth(ctx context.Context, actorID, authorID string, given, received models.Reason, ref, contentID string, amount int64) error {
	if err := s.award(ctx, actorID, given, ref, contentID, amount); err != nil {
		return err
	}
	if err := s.award(ctx, authorID, received, ref, contentID, amount); err != nil {
		return &PartialTransferError{Completed: actorID, Pending: authorID, Err: err}
	}
	return nil
}

// reverseBoth reverses the actor half, then the author half. A missing actor
// award means the interaction never happened. A missing author award means
// the award was interrupted before its second half and there is nothing to
// take back.
func (s *pointsService) reverseBoth(ctx context.Context, actorID, authorID string, given, received models.Reason, ref, contentID string, amount int64) error {
	if err := s.reverse(ctx, actorID, given, ref, contentID, amount); err != nil {
		return err
	}

	err := s.reverse(ctx, authorID, received, ref, contentID, amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperror.ErrInconsistentState):
		s.log.Warn().
			Str("author_id", authorID).
			Str("reference_id", ref).
			Str("reason", string(received)).
			Msg("Author half was never awarded, nothing to reverse")
		return nil
	default:
		return &PartialTransferError{Completed: actorID, Pending: authorID, Err: err}
	}
}

// award posts amount unless the user already holds an unreversed award for
// the same reference and reason.
func (s *pointsService) award(ctx context.Context, userID string, reason models.Reason, ref, contentID string, amount int64) error {
	prepare := func(ctx context.Context, r *repository.Repositories, p *posting) error {
		awards, reversals, err := awardCounts(ctx, r, userID, ref, reason)
		if err != nil {
			return err
		}
		if awards > reversals {
			return errSkip
		}
		return nil
	}

	_, err := s.ledger.post(ctx, posting{
		userID:      userID,
		delta:       amount,
		reason:      reason,
		referenceID: ref,
		contentID:   contentID,
	}, prepare)
	return err
}

// reverse posts the negation of an award. Every award is reversed at most once.
func (s *pointsService) reverse(ctx context.Context, userID string, awardReason models.Reason, ref, contentID string, amount int64) error {
	prepare := func(ctx context.Context, r *repository.Repositories, p *posting) error {
		awards, reversals, err := awardCounts(ctx, r, userID, ref, awardReason)
		if err != nil {
			return err
		}
		if awards == 0 {
			return apperror.InconsistentState(fmt.Sprintf("no %s recorded for user %s on %s", awardReason, userID, ref))
		}
		if reversals >= awards {
			return errSkip
		}
		return nil
	}

	_, err := s.ledger.post(ctx, posting{
		userID:      userID,
		delta:       -amount,
		reason:      models.ReversalOf[awardReason],
		referenceID: ref,
		contentID:   contentID,
	}, prepare)
	return err
}

func awardCounts(ctx context.Context, r *repository.Repositories, userID, ref string, reason models.Reason) (int, int, error) {
	awards, err := r.Ledger.CountByReference(ctx, userID, ref, reason)
	if err != nil {
		return 0, 0, err
	}
	reversals, err := r.Ledger.CountByReference(ctx, userID, ref, models.ReversalOf[reason])
	if err != nil {
		return 0, 0, err
	}
	return awards, reversals, nil
}
