package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/models"
)

var (
	// ErrConflict is returned when a transaction lost a serialization race
	// and may be retried as a whole.
	ErrConflict = errors.New("transaction conflict")
	// ErrDuplicate is returned when an insert hits an existing key
	ErrDuplicate = errors.New("duplicate key")
)

// BalanceRepository defines the interface for balance data operations.
// Only the points ledger writes balances.
type BalanceRepository interface {
	// GetOrCreateForUpdate returns the user's balance, creating a zero
	// balance first if none exists, and locks it for the transaction.
	GetOrCreateForUpdate(ctx context.Context, userID string) (*models.Balance, error)
	Update(ctx context.Context, balance *models.Balance) error
	GetByUserID(ctx context.Context, userID string) (*models.Balance, error)
	ListAll(ctx context.Context) ([]*models.Balance, error)
}

// LedgerRepository defines the interface for ledger entry operations.
// Entries are append-only.
type LedgerRepository interface {
	Append(ctx context.Context, entry *models.LedgerEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error)
	// CountByReference counts the user's entries with the given reference and reason
	CountByReference(ctx context.Context, userID, referenceID string, reason models.Reason) (int, error)
	// SumByContent sums the user's deltas attributed to contentID for the given reasons
	SumByContent(ctx context.Context, userID, contentID string, reasons []models.Reason) (int64, error)
	// ExistsByContent reports whether any user has an entry attributed to contentID
	ExistsByContent(ctx context.Context, contentID string) (bool, error)
	// ExistsByReference reports whether any user has an entry with the reference and reason
	ExistsByReference(ctx context.Context, referenceID string, reason models.Reason) (bool, error)
	// StreamAll calls fn for every entry in commit order
	StreamAll(ctx context.Context, fn func(*models.LedgerEntry) error) error
}

// ContentRepository defines the interface for content data operations
type ContentRepository interface {
	Create(ctx context.Context, content *models.Content) error
	GetByID(ctx context.Context, id string) (*models.Content, error)
	AdjustLikeCount(ctx context.Context, id string, delta int) error
	AdjustCommentCount(ctx context.Context, id string, delta int) error
	// IncrementReportCount returns the count and hidden flag after the increment
	IncrementReportCount(ctx context.Context, id string) (int, bool, error)
	SetHidden(ctx context.Context, id string, hidden bool) error
	ResetModeration(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListHidden(ctx context.Context, limit int) ([]*models.Content, error)
	// EngagementTotals aggregates visible content per author; every author
	// with any content gets a row
	EngagementTotals(ctx context.Context) ([]*models.EngagementTotals, error)
}

// LikeRepository defines the interface for like relation operations
type LikeRepository interface {
	// Create returns ErrDuplicate when the liker already likes the content
	Create(ctx context.Context, like *models.Like) error
	// Delete reports whether a like was removed
	Delete(ctx context.Context, contentID, likerID string) (bool, error)
	Exists(ctx context.Context, contentID, likerID string) (bool, error)
}

// CommentRepository defines the interface for comment relation operations
type CommentRepository interface {
	// Create returns ErrDuplicate when the comment id is taken
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ReportRepository defines the interface for report operations
type ReportRepository interface {
	// Create returns ErrDuplicate when the reporter already reported the content
	Create(ctx context.Context, report *models.Report) error
	DeleteByContent(ctx context.Context, contentID string) (int, error)
	CountByContent(ctx context.Context, contentID string) (int, error)
}

// IntentRepository defines the interface for workflow intent operations
type IntentRepository interface {
	Create(ctx context.Context, intent *models.Intent) error
	Update(ctx context.Context, intent *models.Intent) error
	GetByID(ctx context.Context, id string) (*models.Intent, error)
	// ListStale returns pending or running intents not updated since olderThan
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Intent, error)
	// MarkRunning atomically claims an intent last seen with the given status
	// and update time. It reports false when another worker got there first.
	MarkRunning(ctx context.Context, id string, from models.IntentStatus, seen time.Time) (bool, error)
}

// AccountRepository defines the interface for account data operations
type AccountRepository interface {
	Upsert(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	ListByType(ctx context.Context, accountType models.AccountType) ([]*models.Account, error)
	Count(ctx context.Context) (int, error)
}

// TxRunner runs fn inside one store transaction. The Repositories passed to
// fn are bound to that transaction. Implementations return ErrConflict when
// the transaction lost a race and may be retried.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	Balance BalanceRepository
	Ledger  LedgerRepository
	Content ContentRepository
	Like    LikeRepository
	Comment CommentRepository
	Report  ReportRepository
	Intent  IntentRepository
	Account AccountRepository
	Tx      TxRunner
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	repos := bind(db.DB)
	repos.Tx = &pgTxRunner{db: db}
	return repos
}

func bind(q database.Querier) *Repositories {
	return &Repositories{
		Balance: &balanceRepo{q: q},
		Ledger:  &ledgerRepo{q: q},
		Content: &contentRepo{q: q},
		Like:    &likeRepo{q: q},
		Comment: &commentRepo{q: q},
		Report:  &reportRepo{q: q},
		Intent:  &intentRepo{q: q},
		Account: &accountRepo{q: q},
	}
}

type pgTxRunner struct {
	db *database.DB
}

// WithinTx runs fn in a serializable transaction
func (p *pgTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	err := p.db.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		repos := bind(tx)
		repos.Tx = nestedTx{repos: repos}
		return fn(ctx, repos)
	})
	return translate(err)
}

// nestedTx joins the surrounding transaction
type nestedTx struct {
	repos *Repositories
}

func (n nestedTx) WithinTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return fn(ctx, n.repos)
}

// translate maps driver errors onto the repository sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsRetryable(err):
		return errors.Join(ErrConflict, err)
	case database.IsUniqueViolation(err):
		return errors.Join(ErrDuplicate, err)
	default:
		return err
	}
}
