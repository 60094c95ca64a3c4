package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
)

// MemStore is an in-memory implementation of every repository contract.
// WithinTx serializes transactions behind one mutex and restores a snapshot
// when fn fails, so tests observe the same all-or-nothing behaviour as the
// PostgreSQL store. Conflicts and single operation failures can be injected.
type MemStore struct {
	mu    sync.Mutex
	state *memState
	seq   int64

	conflicts int
	failures  map[string]error

	// TxCalls counts WithinTx invocations including injected conflicts
	TxCalls int
}

type memState struct {
	balances map[string]models.Balance
	entries  []models.LedgerEntry
	contents map[string]models.Content
	likes    map[string]models.Like
	comments map[string]models.Comment
	reports  map[string]models.Report
	intents  map[string]models.Intent
	accounts map[string]models.Account
}

type txKey struct{}

// NewMemStore returns an empty store
func NewMemStore() *MemStore {
	return &MemStore{
		state: &memState{
			balances: make(map[string]models.Balance),
			contents: make(map[string]models.Content),
			likes:    make(map[string]models.Like),
			comments: make(map[string]models.Comment),
			reports:  make(map[string]models.Report),
			intents:  make(map[string]models.Intent),
			accounts: make(map[string]models.Account),
		},
		failures: make(map[string]error),
	}
}

// Repositories returns the repository bundle backed by the store
func (s *MemStore) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Balance: &memBalanceRepo{s},
		Ledger:  &memLedgerRepo{s},
		Content: &memContentRepo{s},
		Like:    &memLikeRepo{s},
		Comment: &memCommentRepo{s},
		Report:  &memReportRepo{s},
		Intent:  &memIntentRepo{s},
		Account: &memAccountRepo{s},
		Tx:      s,
	}
}

// InjectConflicts makes the next n transactions fail with ErrConflict
func (s *MemStore) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// FailNext makes the next call of op return err. Ops are named
// "<repo>.<method>", optionally suffixed with ":<user id>" for ledger appends.
func (s *MemStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Entries returns a copy of all ledger entries in commit order
func (s *MemStore) Entries() []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LedgerEntry(nil), s.state.entries...)
}

// WithinTx runs fn with all-or-nothing semantics
func (s *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r *repository.Repositories) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx, s.Repositories())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.TxCalls++

	if s.conflicts > 0 {
		s.conflicts--
		return repository.ErrConflict
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.state.clone()
	seq := s.seq
	if err := fn(context.WithValue(ctx, txKey{}, s), s.Repositories()); err != nil {
		s.state = snapshot
		s.seq = seq
		return err
	}
	return nil
}

// do runs fn under the store lock unless ctx is already inside a transaction
func (s *MemStore) do(ctx context.Context, fn func(st *memState) error) error {
	if ctx.Value(txKey{}) != s {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}

// fail consumes an injected failure; the caller holds the lock
func (s *MemStore) fail(ops ...string) error {
	for _, op := range ops {
		if err, ok := s.failures[op]; ok {
			delete(s.failures, op)
			return err
		}
	}
	return nil
}

func (st *memState) clone() *memState {
	c := &memState{
		balances: make(map[string]models.Balance, len(st.balances)),
		entries:  append([]models.LedgerEntry(nil), st.entries...),
		contents: make(map[string]models.Content, len(st.contents)),
		likes:    make(map[string]models.Like, len(st.likes)),
		comments: make(map[string]models.Comment, len(st.comments)),
		reports:  make(map[string]models.Report, len(st.reports)),
		intents:  make(map[string]models.Intent, len(st.intents)),
		accounts: make(map[string]models.Account, len(st.accounts)),
	}
	for k, v := range st.balances {
		c.balances[k] = v
	}
	for k, v := range st.contents {
		c.contents[k] = v
	}
	for k, v := range st.likes {
		c.likes[k] = v
	}
	for k, v := range st.comments {
		c.comments[k] = v
	}
	for k, v := range st.reports {
		c.reports[k] = v
	}
	for k, v := range st.intents {
		c.intents[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	return c
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

type memBalanceRepo struct{ s *MemStore }

func (r *memBalanceRepo) GetOrCreateForUpdate(ctx context.Context, userID string) (*models.Balance, error) {
	var out models.Balance
	err := r.s.do(ctx, func(st *memState) error {
		if err := r.s.fail("balance.get"); err != nil {
			return err
		}
		b, ok := st.balances[userID]
		if !ok {
			b = models.Balance{UserID: userID, LastUpdatedAt: time.Now().UTC()}
			st.balances[userID] = b
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *memBalanceRepo) Update(ctx context.Context, balance *models.Balance) error {
	return r.s.do(ctx, func(st *memState) error {
		if err := r.s.fail("balance.update"); err != nil {
			return err
		}
		st.balances[balance.UserID] = *balance
		return nil
	})
}

func (r *memBalanceRepo) GetByUserID(ctx context.Context, userID string) (*models.Balance, error) {
	var out *models.Balance
	err := r.s.do(ctx, func(st *memState) error {
		if b, ok := st.balances[userID]; ok {
			out = &b
		}
		return nil
	})
	return out, err
}

func (r *memBalanceRepo) ListAll(ctx context.Context) ([]*models.Balance, error) {
	var out []*models.Balance
	err := r.s.do(ctx, func(st *memState) error {
		for _, b := range st.balances {
			b := b
			out = append(out, &b)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, err
}

type memLedgerRepo struct{ s *MemStore }

func (r *memLedgerRepo) Append(ctx context.Context, entry *models.LedgerEntry) error {
	return r.s.do(ctx, func(st *memState) error {
		if err := r.s.fail("ledger.append:"+entry.UserID, "ledger.append"); err != nil {
			return err
		}
		r.s.seq++
		entry.Seq = r.s.seq
		st.entries = append(st.entries, *entry)
		return nil
	})
}

func (r *memLedgerRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	var out []*models.LedgerEntry
	err := r.s.do(ctx, func(st *memState) error {
		for i := len(st.entries) - 1; i >= 0 && len(out) < limit; i-- {
			if st.entries[i].UserID == userID {
				e := st.entries[i]
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

func (r *memLedgerRepo) CountByReference(ctx context.Context, userID, referenceID string, reason models.Reason) (int, error) {
	count := 0
	err := r.s.do(ctx, func(st *memState) error {
		for _, e := range st.entries {
			if e.UserID == userID && e.ReferenceID == referenceID && e.Reason == reason {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *memLedgerRepo) SumByContent(ctx context.Context, userID, contentID string, reasons []models.Reason) (int64, error) {
	wanted := make(map[models.Reason]bool, len(reasons))
	for _, reason := range reasons {
		wanted[reason] = true
	}

	var sum int64
	err := r.s.do(ctx, func(st *memState) error {
		for _, e := range st.entries {
			if e.UserID == userID && e.ContentID == contentID && wanted[e.Reason] {
				sum += e.Delta
			}
		}
		return nil
	})
	return sum, err
}

func (r *memLedgerRepo) ExistsByContent(ctx context.Context, contentID string) (bool, error) {
	exists := false
	err := r.s.do(ctx, func(st *memState) error {
		for _, e := range st.entries {
			if e.ContentID == contentID {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *memLedgerRepo) ExistsByReference(ctx context.Context, referenceID string, reason models.Reason) (bool, error) {
	exists := false
	err := r.s.do(ctx, func(st *memState) error {
		for _, e := range st.entries {
			if e.ReferenceID == referenceID && e.Reason == reason {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *memLedgerRepo) StreamAll(ctx context.Context, fn func(*models.LedgerEntry) error) error {
	var entries []models.LedgerEntry
	_ = r.s.do(ctx, func(st *memState) error {
		entries = append(entries, st.entries...)
		return nil
	})
	for i := range entries {
		if err := fn(&entries[i]); err != nil {
			return err
		}
	}
	return nil
}

type memContentRepo struct{ s *MemStore }

func (r *memContentRepo) Create(ctx context.Context, c *models.Content) error {
	return r.s.do(ctx, func(st *memState) error {
		if err := r.s.fail("content.create"); err != nil {
			return err
		}
		if _, ok := st.contents[c.ID]; ok {
			return repository.ErrDuplicate
		}
		stored := *c
		stored.UpdatedAt = c.CreatedAt
		st.contents[c.ID] = stored
		return nil
	})
}

func (r *memContentRepo) GetByID(ctx context.Context, id string) (*models.Content, error) {
	var out *models.Content
	err := r.s.do(ctx, func(st *memState) error {
		if c, ok := st.contents[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *memContentRepo) update(ctx context.Context, id string, fn func(c *models.Content)) error {
	return r.s.do(ctx, func(st *memState) error {
		c, ok := st.contents[id]
		if !ok {
			return nil
		}
		fn(&c)
		c.UpdatedAt = time.Now().UTC()
		st.contents[id] = c
		return nil
	})
}

func (r *memContentRepo) AdjustLikeCount(ctx context.Context, id string, delta int) error {
	return r.update(ctx, id, func(c *models.Content) { c.LikeCount += delta })
}

func (r *memContentRepo) AdjustCommentCount(ctx context.Context, id string, delta int) error {
	return r.update(ctx, id, func(c *models.Content) { c.CommentCount += delta })
}

func (r *memContentRepo) IncrementReportCount(ctx context.Context, id string) (int, bool, error) {
	var count int
	var hidden bool
	err := r.update(ctx, id, func(c *models.Content) {
		c.ReportCount++
		count, hidden = c.ReportCount, c.Hidden
	})
	return count, hidden, err
}

func (r *memContentRepo) SetHidden(ctx context.Context, id string, hidden bool) error {
	return r.update(ctx, id, func(c *models.Content) { c.Hidden = hidden })
}

func (r *memContentRepo) ResetModeration(ctx context.Context, id string) error {
	return r.update(ctx, id, func(c *models.Content) {
		c.ReportCount = 0
		c.Hidden = false
	})
}

// Delete removes the content and cascades to its relations like the schema does
func (r *memContentRepo) Delete(ctx context.Context, id string) error {
	return r.s.do(ctx, func(st *memState) error {
		if err := r.s.fail("content.delete"); err != nil {
			return err
		}
		delete(st.contents, id)
		for k, l := range st.likes {
			if l.ContentID == id {
				delete(st.likes, k)
			}
		}
		for k, c := range st.comments {
			if c.ContentID == id {
				delete(st.comments, k)
			}
		}
		for k, rep := range st.reports {
			if rep.ContentID == id {
				delete(st.reports, k)
			}
		}
		return nil
	})
}

func (r *memContentRepo) ListHidden(ctx context.Context, limit int) ([]*models.Content, error) {
	var out []*models.Content
	err := r.s.do(ctx, func(st *memState) error {
		for _, c := range st.contents {
			if c.Hidden {
				c := c
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportCount != out[j].ReportCount {
			return out[i].ReportCount > out[j].ReportCount
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *memContentRepo) EngagementTotals(ctx context.Context) ([]*models.EngagementTotals, error) {
	byAuthor := make(map[string]*models.EngagementTotals)
	err := r.s.do(ctx, func(st *memState) error {
		for _, c := range st.contents {
			t, ok := byAuthor[c.AuthorID]
			if !ok {
				t = &models.EngagementTotals{AuthorID: c.AuthorID}
				byAuthor[c.AuthorID] = t
			}
			if c.Hidden {
				continue
			}
			t.PostCount++
			t.TotalLikes += c.LikeCount
			t.TotalComments += c.CommentCount
		}
		return nil
	})

	out := make([]*models.EngagementTotals, 0, len(byAuthor))
	for _, t := range byAuthor {
		out = append(out, t)
	}
	return out, err
}

type memLikeRepo struct{ s *MemStore }

func (r *memLikeRepo) Create(ctx context.Context, like *models.Like) error {
	return r.s.do(ctx, func(st *memState) error {
		key := pairKey(like.ContentID, like.LikerID)
		if _, ok := st.likes[key]; ok {
			return repository.ErrDuplicate
		}
		st.likes[key] = *like
		return nil
	})
}

func (r *memLikeRepo) Delete(ctx context.Context, contentID, likerID string) (bool, error) {
	var removed bool
	err := r.s.do(ctx, func(st *memState) error {
		key := pairKey(contentID, likerID)
		_, removed = st.likes[key]
		delete(st.likes, key)
		return nil
	})
	return removed, err
}

func (r *memLikeRepo) Exists(ctx context.Context, contentID, likerID string) (bool, error) {
	var exists bool
	err := r.s.do(ctx, func(st *memState) error {
		_, exists = st.likes[pairKey(contentID, likerID)]
		return nil
	})
	return exists, err
}

type memCommentRepo struct{ s *MemStore }

func (r *memCommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	return r.s.do(ctx, func(st *memState) error {
		if _, ok := st.comments[comment.ID]; ok {
			return repository.ErrDuplicate
		}
		st.comments[comment.ID] = *comment
		return nil
	})
}

func (r *memCommentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var out *models.Comment
	err := r.s.do(ctx, func(st *memState) error {
		if c, ok := st.comments[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *memCommentRepo) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := r.s.do(ctx, func(st *memState) error {
		_, removed = st.comments[id]
		delete(st.comments, id)
		return nil
	})
	return removed, err
}

type memReportRepo struct{ s *MemStore }

func (r *memReportRepo) Create(ctx context.Context, report *models.Report) error {
	return r.s.do(ctx, func(st *memState) error {
		key := pairKey(report.ContentID, report.ReporterID)
		if _, ok := st.reports[key]; ok {
			return repository.ErrDuplicate
		}
		st.reports[key] = *report
		return nil
	})
}

func (r *memReportRepo) DeleteByContent(ctx context.Context, contentID string) (int, error) {
	removed := 0
	err := r.s.do(ctx, func(st *memState) error {
		for k, rep := range st.reports {
			if rep.ContentID == contentID {
				delete(st.reports, k)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (r *memReportRepo) CountByContent(ctx context.Context, contentID string) (int, error) {
	count := 0
	err := r.s.do(ctx, func(st *memState) error {
		for _, rep := range st.reports {
			if rep.ContentID == contentID {
				count++
			}
		}
		return nil
	})
	return count, err
}

type memIntentRepo struct{ s *MemStore }

func (r *memIntentRepo) Create(ctx context.Context, intent *models.Intent) error {
	return r.s.do(ctx, func(st *memState) error {
		if err := r.s.fail("intent.create"); err != nil {
			return err
		}
		if _, ok := st.intents[intent.ID]; ok {
			return repository.ErrDuplicate
		}
		st.intents[intent.ID] = *intent
		return nil
	})
}

func (r *memIntentRepo) Update(ctx context.Context, intent *models.Intent) error {
	return r.s.do(ctx, func(st *memState) error {
		if err := r.s.fail("intent.update"); err != nil {
			return err
		}
		stored, ok := st.intents[intent.ID]
		if !ok {
			return nil
		}
		stored.Status = intent.Status
		stored.Attempts = intent.Attempts
		stored.LastError = intent.LastError
		stored.UpdatedAt = intent.UpdatedAt
		st.intents[intent.ID] = stored
		return nil
	})
}

func (r *memIntentRepo) GetByID(ctx context.Context, id string) (*models.Intent, error) {
	var out *models.Intent
	err := r.s.do(ctx, func(st *memState) error {
		if i, ok := st.intents[id]; ok {
			out = &i
		}
		return nil
	})
	return out, err
}

func (r *memIntentRepo) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Intent, error) {
	var out []*models.Intent
	err := r.s.do(ctx, func(st *memState) error {
		for _, i := range st.intents {
			unfinished := i.Status == models.IntentStatusPending || i.Status == models.IntentStatusRunning
			if unfinished && i.UpdatedAt.Before(olderThan) {
				i := i
				out = append(out, &i)
			}
		}
		return nil
	})
	sort.Slice(out, func(a, b int) bool {
		if !out[a].UpdatedAt.Equal(out[b].UpdatedAt) {
			return out[a].UpdatedAt.Before(out[b].UpdatedAt)
		}
		return out[a].ID < out[b].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *memIntentRepo) MarkRunning(ctx context.Context, id string, from models.IntentStatus, seen time.Time) (bool, error) {
	var claimed bool
	err := r.s.do(ctx, func(st *memState) error {
		i, ok := st.intents[id]
		if !ok || i.Status != from || !i.UpdatedAt.Equal(seen) {
			return nil
		}
		i.Status = models.IntentStatusRunning
		i.UpdatedAt = time.Now().UTC()
		st.intents[id] = i
		claimed = true
		return nil
	})
	return claimed, err
}

type memAccountRepo struct{ s *MemStore }

func (r *memAccountRepo) Upsert(ctx context.Context, account *models.Account) error {
	return r.s.do(ctx, func(st *memState) error {
		now := time.Now().UTC()
		if existing, ok := st.accounts[account.ID]; ok {
			account.CreatedAt = existing.CreatedAt
		} else if account.CreatedAt.IsZero() {
			account.CreatedAt = now
		}
		account.UpdatedAt = now
		st.accounts[account.ID] = *account
		return nil
	})
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var out *models.Account
	err := r.s.do(ctx, func(st *memState) error {
		if a, ok := st.accounts[id]; ok {
			out = &a
		}
		return nil
	})
	return out, err
}

func (r *memAccountRepo) ListByType(ctx context.Context, accountType models.AccountType) ([]*models.Account, error) {
	var out []*models.Account
	err := r.s.do(ctx, func(st *memState) error {
		for _, a := range st.accounts {
			if a.AccountType == accountType {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *memAccountRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.s.do(ctx, func(st *memState) error {
		count = len(st.accounts)
		return nil
	})
	return count, err
}
