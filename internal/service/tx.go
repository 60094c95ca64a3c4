package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/rs/zerolog"
)

// txRetrier runs store transactions, retrying the whole transaction with
// exponential backoff when it loses a serialization race. The caller's
// cancellation is not propagated: once started, a transaction either
// commits or fails on its own per-attempt timeout.
type txRetrier struct {
	tx  repository.TxRunner
	cfg config.LedgerConfig
	log zerolog.Logger
}

// run returns the number of attempts made and the last error
func (t *txRetrier) run(ctx context.Context, fn func(ctx context.Context, r *repository.Repositories) error) (int, error) {
	ctx = context.WithoutCancel(ctx)

	attempts := 0
	op := func() error {
		attempts++

		txCtx, cancel := context.WithTimeout(ctx, t.cfg.TxTimeout)
		defer cancel()

		err := t.tx.WithinTx(txCtx, fn)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrConflict), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		t.log.Warn().
			Err(err).
			Int("attempt", attempts).
			Dur("backoff", wait).
			Msg("Transaction conflict, retrying")
	}

	return attempts, backoff.RetryNotify(op, t.newBackOff(), notify)
}

func (t *txRetrier) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.RetryInitial
	b.MaxInterval = t.cfg.RetryMax
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(t.cfg.MaxRetries))
}
