package service

import (
	"context"
	"io"

	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/rs/zerolog"
)

// LedgerService appends ledger entries and maintains balances
type LedgerService interface {
	// ApplyDelta atomically records delta for the user and returns the new,
	// zero-clamped balance.
	ApplyDelta(ctx context.Context, userID string, delta int64, reason models.Reason, referenceID string) (int64, error)
	GetUserBalance(ctx context.Context, userID string) (*models.Balance, error)
	History(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error)
	// Adjust records a moderation_adjustment made by an operator
	Adjust(ctx context.Context, userID string, delta int64, note string) (int64, error)
	Audit(ctx context.Context) (*models.AuditReport, error)
}

// PointsService translates content events into ledger calls with fixed tariffs
type PointsService interface {
	AwardForPublish(ctx context.Context, userID string, contentType models.ContentType, contentID string) error
	// ReverseForDelete returns the number of points taken back from the author
	ReverseForDelete(ctx context.Context, userID, contentID string) (int64, error)
	AwardForLike(ctx context.Context, likerID, authorID, contentID string) error
	ReverseForUnlike(ctx context.Context, likerID, authorID, contentID string) error
	AwardForComment(ctx context.Context, commenterID, authorID, contentID, commentID string) error
	ReverseForComment(ctx context.Context, commenterID, authorID, contentID, commentID string) error
}

// ContentService runs the content lifecycle workflows
type ContentService interface {
	Publish(ctx context.Context, authorID string, req *models.PublishRequest) (*models.Content, error)
	Delete(ctx context.Context, userID, contentID string) error
	Like(ctx context.Context, likerID, contentID string) error
	Unlike(ctx context.Context, likerID, contentID string) error
	Comment(ctx context.Context, commenterID, contentID, commentID string) (*models.Comment, error)
	Uncomment(ctx context.Context, userID, contentID, commentID string) error
	Get(ctx context.Context, contentID string) (*models.Content, error)
	// Resume drives an interrupted workflow forward; it is safe to call repeatedly
	Resume(ctx context.Context, intent *models.Intent) error
}

// ModerationService is the report threshold gate
type ModerationService interface {
	ReportContent(ctx context.Context, contentID, reporterID string, reason models.ReportReason, details string) (*models.ReportOutcome, error)
	RestoreContent(ctx context.Context, contentID string) error
	PermanentDeleteContent(ctx context.Context, contentID string) error
	Queue(ctx context.Context, limit int) ([]*models.Content, error)
}

// RankingService computes the ledger leaderboard and the engagement scoreboard.
// Only the leaderboard is authoritative for payouts.
type RankingService interface {
	GetLedgerLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetEngagementScoreboard(ctx context.Context, limit int) ([]models.ScoreboardEntry, error)
	InvalidateLeaderboard()
	InvalidateScoreboard()
}

// ReconcileService repairs workflows left unfinished by partial failures
type ReconcileService interface {
	Sweep(ctx context.Context) (*models.SweepResult, error)
}

// ExportService streams the ledger for operators
type ExportService interface {
	StreamLedger(ctx context.Context, w io.Writer, format string) error
}

// AccountService manages the account types the scoreboard relies on
type AccountService interface {
	Upsert(ctx context.Context, account *models.Account) (*models.Account, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	ImportCSV(ctx context.Context, r io.Reader) (*models.ImportResult, error)
}

// Services holds all service interfaces
type Services struct {
	Ledger     LedgerService
	Points     PointsService
	Content    ContentService
	Moderation ModerationService
	Ranking    RankingService
	Reconcile  ReconcileService
	Export     ExportService
	Account    AccountService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *Services {
	rankingSvc := newRankingService(repos, cfg.Ranking, log)
	ledgerSvc := newLedgerService(repos, cfg.Ledger, log)
	ledgerSvc.onCommit = rankingSvc.InvalidateLeaderboard

	pointsSvc := newPointsService(ledgerSvc, cfg.Ledger, log)
	contentSvc := newContentService(repos, pointsSvc, rankingSvc, log)
	moderationSvc := newModerationService(repos, pointsSvc, rankingSvc, cfg, log)

	return &Services{
		Ledger:     ledgerSvc,
		Points:     pointsSvc,
		Content:    contentSvc,
		Moderation: moderationSvc,
		Ranking:    rankingSvc,
		Reconcile:  newReconcileService(repos.Intent, contentSvc, cfg.Reconcile, log),
		Export:     newExportService(repos, log),
		Account:    newAccountService(repos, rankingSvc, log),
	}
}
