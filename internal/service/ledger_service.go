package service

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/points-ledger-engine/internal/validation"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// errSkip aborts a posting without writing; the caller treats it as success
var errSkip = errors.New("posting skipped")

// posting is one ledger write request. prepare hooks may rewrite delta
// inside the transaction.
type posting struct {
	userID      string
	delta       int64
	reason      models.Reason
	referenceID string
	contentID   string
	note        string
}

type postResult struct {
	balance int64
	posted  bool
	entry   *models.LedgerEntry
}

// prepareFunc runs inside the ledger transaction before the balance is locked
type prepareFunc func(ctx context.Context, r *repository.Repositories, p *posting) error

// entryIDs hands out time-ordered ledger entry ids
type entryIDs struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newEntryIDs() *entryIDs {
	return &entryIDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *entryIDs) next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

// ledgerService is the concrete implementation of LedgerService
type ledgerService struct {
	repos    *repository.Repositories
	cfg      config.LedgerConfig
	log      zerolog.Logger
	tx       *txRetrier
	ids      *entryIDs
	now      func() time.Time
	onCommit func()
}

// newLedgerService creates a new LedgerService
func newLedgerService(repos *repository.Repositories, cfg config.LedgerConfig, log zerolog.Logger) *ledgerService {
	log = log.With().Str("service", "ledger").Logger()
	return &ledgerService{
		repos: repos,
		cfg:   cfg,
		log:   log,
		tx:    &txRetrier{tx: repos.Tx, cfg: cfg, log: log},
		ids:   newEntryIDs(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ApplyDelta records one entry and updates the balance in a single transaction
func (s *ledgerService) ApplyDelta(ctx context.Context, userID string, delta int64, reason models.Reason, referenceID string) (int64, error) {
	if err := validation.CheckID("user_id", userID); err != nil {
		return 0, err
	}
	if referenceID == "" {
		return 0, apperror.InvalidInput("reference_id", "reference_id is required")
	}
	if err := validation.CheckLedgerDelta(delta, reason); err != nil {
		return 0, err
	}

	res, err := s.post(ctx, posting{
		userID:      userID,
		delta:       delta,
		reason:      reason,
		referenceID: referenceID,
	}, nil)
	return res.balance, err
}

// Adjust records a signed operator correction
func (s *ledgerService) Adjust(ctx context.Context, userID string, delta int64, note string) (int64, error) {
	if err := validation.CheckID("user_id", userID); err != nil {
		return 0, err
	}
	if err := validation.CheckLedgerDelta(delta, models.ReasonModerationAdjustment); err != nil {
		return 0, err
	}
	if note == "" {
		return 0, apperror.InvalidInput("note", "note is required for adjustments")
	}

	res, err := s.post(ctx, posting{
		userID:      userID,
		delta:       delta,
		reason:      models.ReasonModerationAdjustment,
		referenceID: uuid.NewString(),
		note:        note,
	}, nil)
	if err != nil {
		return 0, err
	}

	s.log.Info().
		Str("user_id", userID).
		Int64("delta", delta).
		Int64("balance", res.balance).
		Str("note", note).
		Msg("Moderation adjustment recorded")
	return res.balance, nil
}

// post commits p in one transaction: lock the balance, clamp the new value
// at zero, append the entry with the requested delta and write the balance.
func (s *ledgerService) post(ctx context.Context, p posting, prepare prepareFunc) (postResult, error) {
	var res postResult
	attempts, err := s.tx.run(ctx, func(ctx context.Context, r *repository.Repositories) error {
		res = postResult{}
		cur := p
		if prepare != nil {
			if err := prepare(ctx, r, &cur); err != nil {
				return err
			}
		}

		balance, err := r.Balance.GetOrCreateForUpdate(ctx, cur.userID)
		if err != nil {
			return err
		}

		next := balance.PointsBalance + cur.delta
		if next < 0 {
			next = 0
		}

		now := s.now()
		entry := &models.LedgerEntry{
			ID:          s.ids.next(now),
			UserID:      cur.userID,
			Delta:       cur.delta,
			Reason:      cur.reason,
			ReferenceID: cur.referenceID,
			ContentID:   cur.contentID,
			Note:        cur.note,
			CreatedAt:   now,
		}
		if err := r.Ledger.Append(ctx, entry); err != nil {
			return err
		}

		balance.PointsBalance = next
		balance.LastUpdatedAt = now
		if err := r.Balance.Update(ctx, balance); err != nil {
			return err
		}

		res = postResult{balance: next, posted: true, entry: entry}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errSkip):
		return s.currentBalance(context.WithoutCancel(ctx), p.userID)
	default:
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return postResult{}, err
		}
		s.log.Error().
			Err(err).
			Str("user_id", p.userID).
			Str("reason", string(p.reason)).
			Str("reference_id", p.referenceID).
			Int("attempts", attempts).
			Msg("Ledger commit failed")
		return postResult{}, apperror.LedgerCommitFailed(p.userID, err)
	}

	s.log.Debug().
		Str("user_id", p.userID).
		Str("entry_id", res.entry.ID).
		Str("reason", string(res.entry.Reason)).
		Int64("delta", res.entry.Delta).
		Int64("balance", res.balance).
		Msg("Ledger entry committed")

	if s.onCommit != nil {
		s.onCommit()
	}
	return res, nil
}

func (s *ledgerService) currentBalance(ctx context.Context, userID string) (postResult, error) {
	balance, err := s.repos.Balance.GetByUserID(ctx, userID)
	if err != nil {
		return postResult{}, err
	}
	if balance == nil {
		return postResult{}, nil
	}
	return postResult{balance: balance.PointsBalance}, nil
}

// GetUserBalance returns the user's balance. Known accounts that never
// transacted have a zero balance.
func (s *ledgerService) GetUserBalance(ctx context.Context, userID string) (*models.Balance, error) {
	if err := validation.CheckID("user_id", userID); err != nil {
		return nil, err
	}

	balance, err := s.repos.Balance.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		return balance, nil
	}

	account, err := s.repos.Account.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.NotFound("user", userID)
	}
	return &models.Balance{UserID: userID, LastUpdatedAt: account.CreatedAt}, nil
}

// History returns the user's most recent entries, newest first
func (s *ledgerService) History(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	if err := validation.CheckID("user_id", userID); err != nil {
		return nil, err
	}
	switch {
	case limit < 0:
		return nil, apperror.InvalidInput("limit", "limit must not be negative")
	case limit == 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	entries, err := s.repos.Ledger.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	return entries, nil
}

// Audit replays every entry with the zero clamp and compares the result
// with the stored balances. It runs in one transaction so that the entries
// and balances it compares belong to the same snapshot.
func (s *ledgerService) Audit(ctx context.Context) (*models.AuditReport, error) {
	start := time.Now()
	report := &models.AuditReport{Drifts: []models.BalanceDrift{}}

	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		replayed := make(map[string]int64)
		counts := make(map[string]int)

		err := r.Ledger.StreamAll(ctx, func(e *models.LedgerEntry) error {
			next := replayed[e.UserID] + e.Delta
			if next < 0 {
				next = 0
			}
			replayed[e.UserID] = next
			counts[e.UserID]++
			report.EntriesChecked++
			return nil
		})
		if err != nil {
			return err
		}

		balances, err := r.Balance.ListAll(ctx)
		if err != nil {
			return err
		}

		stored := make(map[string]int64, len(balances))
		for _, b := range balances {
			stored[b.UserID] = b.PointsBalance
		}
		for userID := range replayed {
			if _, ok := stored[userID]; !ok {
				stored[userID] = 0
			}
		}

		for userID, balance := range stored {
			report.UsersChecked++
			if balance != replayed[userID] {
				report.Drifts = append(report.Drifts, models.BalanceDrift{
					UserID:   userID,
					Stored:   balance,
					Replayed: replayed[userID],
					Entries:  counts[userID],
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(report.Drifts, func(i, j int) bool {
		return report.Drifts[i].UserID < report.Drifts[j].UserID
	})
	report.DurationMs = time.Since(start).Milliseconds()

	for _, d := range report.Drifts {
		s.log.Warn().
			Str("user_id", d.UserID).
			Int64("stored", d.Stored).
			Int64("replayed", d.Replayed).
			Msg("Balance drift detected")
	}
	s.log.Info().
		Int("users", report.UsersChecked).
		Int("entries", report.EntriesChecked).
		Int("drifts", len(report.Drifts)).
		Int64("duration_ms", report.DurationMs).
		Msg("Balance audit completed")

	return report, nil
}
