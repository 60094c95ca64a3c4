package service

import (
	"context"
	"sort"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/rs/zerolog"
)

// rankingService is the concrete implementation of RankingService.
// The two views are computed independently and cached separately.
type rankingService struct {
	repos       *repository.Repositories
	cfg         config.RankingConfig
	log         zerolog.Logger
	leaderboard *snapshotCache[[]models.LeaderboardEntry]
	scoreboard  *snapshotCache[[]models.ScoreboardEntry]
}

// newRankingService creates a new RankingService
func newRankingService(repos *repository.Repositories, cfg config.RankingConfig, log zerolog.Logger) *rankingService {
	return &rankingService{
		repos:       repos,
		cfg:         cfg,
		log:         log.With().Str("service", "ranking").Logger(),
		leaderboard: newSnapshotCache[[]models.LeaderboardEntry](cfg.CacheTTL),
		scoreboard:  newSnapshotCache[[]models.ScoreboardEntry](cfg.CacheTTL),
	}
}

// GetLedgerLeaderboard ranks users by points balance, ties by ascending user id
func (s *rankingService) GetLedgerLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	limit, err := s.resolveLimit(limit)
	if err != nil {
		return nil, err
	}

	all, err := s.leaderboard.Get(ctx, s.computeLeaderboard)
	if err != nil {
		return nil, err
	}
	return head(all, limit), nil
}

// GetEngagementScoreboard ranks creators by engagement score over their
// visible content, ties by ascending user id
func (s *rankingService) GetEngagementScoreboard(ctx context.Context, limit int) ([]models.ScoreboardEntry, error) {
	limit, err := s.resolveLimit(limit)
	if err != nil {
		return nil, err
	}

	all, err := s.scoreboard.Get(ctx, s.computeScoreboard)
	if err != nil {
		return nil, err
	}
	return head(all, limit), nil
}

// InvalidateLeaderboard drops the cached leaderboard; called after every ledger commit
func (s *rankingService) InvalidateLeaderboard() {
	s.leaderboard.Invalidate()
}

// InvalidateScoreboard drops the cached scoreboard; called after content and moderation writes
func (s *rankingService) InvalidateScoreboard() {
	s.scoreboard.Invalidate()
}

func (s *rankingService) computeLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	balances, err := s.repos.Balance.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(balances, func(i, j int) bool {
		if balances[i].PointsBalance != balances[j].PointsBalance {
			return balances[i].PointsBalance > balances[j].PointsBalance
		}
		return balances[i].UserID < balances[j].UserID
	})

	entries := make([]models.LeaderboardEntry, len(balances))
	for i, b := range balances {
		entries[i] = models.LeaderboardEntry{
			UserID:        b.UserID,
			Rank:          i + 1,
			PointsBalance: b.PointsBalance,
			PrizeTier:     models.PrizeTierForRank(i + 1),
		}
	}

	s.log.Debug().Int("users", len(entries)).Msg("Leaderboard computed")
	return entries, nil
}

// computeScoreboard includes every registered creator and every author
// without an account record, with zero when they have no visible content.
// Authors registered as viewers are left out.
func (s *rankingService) computeScoreboard(ctx context.Context) ([]models.ScoreboardEntry, error) {
	totals, err := s.repos.Content.EngagementTotals(ctx)
	if err != nil {
		return nil, err
	}
	creators, err := s.repos.Account.ListByType(ctx, models.AccountTypeCreator)
	if err != nil {
		return nil, err
	}
	viewers, err := s.repos.Account.ListByType(ctx, models.AccountTypeViewer)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(viewers))
	for _, v := range viewers {
		excluded[v.ID] = true
	}

	byUser := make(map[string]*models.ScoreboardEntry)
	for _, c := range creators {
		byUser[c.ID] = &models.ScoreboardEntry{UserID: c.ID}
	}
	for _, t := range totals {
		if excluded[t.AuthorID] {
			continue
		}
		byUser[t.AuthorID] = &models.ScoreboardEntry{
			UserID:        t.AuthorID,
			PostCount:     t.PostCount,
			TotalLikes:    t.TotalLikes,
			TotalComments: t.TotalComments,
			EngagementScore: int64(t.PostCount)*models.EngagementWeightPost +
				int64(t.TotalLikes)*models.EngagementWeightLike +
				int64(t.TotalComments)*models.EngagementWeightComment,
		}
	}

	entries := make([]models.ScoreboardEntry, 0, len(byUser))
	for _, e := range byUser {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EngagementScore != entries[j].EngagementScore {
			return entries[i].EngagementScore > entries[j].EngagementScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	s.log.Debug().Int("creators", len(entries)).Msg("Scoreboard computed")
	return entries, nil
}

// resolveLimit maps 0 to the default and caps at the maximum
func (s *rankingService) resolveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, apperror.InvalidInput("limit", "limit must not be negative")
	case limit == 0:
		return s.cfg.DefaultLimit, nil
	case limit > s.cfg.MaxLimit:
		return s.cfg.MaxLimit, nil
	default:
		return limit, nil
	}
}

// head returns a copy of the first n items so callers cannot mutate the cache
func head[T any](items []T, n int) []T {
	if n > len(items) {
		n = len(items)
	}
	out := make([]T, n)
	copy(out, items[:n])
	return out
}
