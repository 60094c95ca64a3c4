package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/rs/zerolog"
)

// reconcileService is the concrete implementation of ReconcileService.
// It claims intents that stayed pending or running past the grace period
// and resumes them on a bounded pool of workers.
type reconcileService struct {
	intents repository.IntentRepository
	content ContentService
	cfg     config.ReconcileConfig
	log     zerolog.Logger
	now     func() time.Time
}

// newReconcileService creates a new ReconcileService
func newReconcileService(intents repository.IntentRepository, content ContentService, cfg config.ReconcileConfig, log zerolog.Logger) *reconcileService {
	return &reconcileService{
		intents: intents,
		content: content,
		cfg:     cfg,
		log:     log.With().Str("service", "reconcile").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sweep resumes one batch of stale intents. The returned error aggregates
// store failures; intents that fail to resume are counted and retried on a
// later sweep until they run out of attempts.
func (s *reconcileService) Sweep(ctx context.Context) (*models.SweepResult, error) {
	start := time.Now()
	result := &models.SweepResult{}

	stale, err := s.intents.ListStale(ctx, s.now().Add(-s.cfg.GracePeriod), s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale intents: %w", err)
	}
	if len(stale) == 0 {
		return result, nil
	}

	var (
		mu   sync.Mutex
		errs *multierror.Error
		wg   sync.WaitGroup
		sem  = make(chan struct{}, s.cfg.Workers)
	)

dispatch:
	for _, intent := range stale {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		claimed, err := s.intents.MarkRunning(ctx, intent.ID, intent.Status, intent.UpdatedAt)
		if err != nil || !claimed {
			<-sem
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("claim intent %s: %w", intent.ID, err))
				mu.Unlock()
			}
			continue
		}

		mu.Lock()
		result.Claimed++
		mu.Unlock()

		wg.Add(1)
		go func(intent *models.Intent) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("intent_id", intent.ID).
						Msg("Intent resume panicked - recovered")
					mu.Lock()
					errs = multierror.Append(errs, fmt.Errorf("intent %s panicked: %v", intent.ID, r))
					mu.Unlock()
				}
			}()

			status, err := s.resume(ctx, intent)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case models.IntentStatusCompleted:
				result.Completed++
			case models.IntentStatusFailed:
				result.Failed++
			default:
				result.Retrying++
			}
			if err != nil {
				errs = multierror.Append(errs, err)
			}
		}(intent)
	}

	wg.Wait()
	result.DurationMs = time.Since(start).Milliseconds()

	s.log.Info().
		Int("claimed", result.Claimed).
		Int("completed", result.Completed).
		Int("retrying", result.Retrying).
		Int("failed", result.Failed).
		Int64("duration_ms", result.DurationMs).
		Msg("Reconciliation sweep finished")

	return result, errs.ErrorOrNil()
}

// resume runs one claimed intent and records its new status. Only a failure
// to record the status is returned as an error.
func (s *reconcileService) resume(ctx context.Context, intent *models.Intent) (models.IntentStatus, error) {
	intent.Attempts++

	err := s.content.Resume(ctx, intent)
	switch {
	case err == nil:
		intent.Status = models.IntentStatusCompleted
		intent.LastError = ""
	case intent.Attempts >= s.cfg.MaxAttempts:
		intent.Status = models.IntentStatusFailed
		intent.LastError = err.Error()
	default:
		intent.Status = models.IntentStatusPending
		intent.LastError = err.Error()
	}
	intent.UpdatedAt = s.now()

	logEvent := s.log.Info()
	if err != nil {
		logEvent = s.log.Warn().Err(err)
	}
	logEvent.
		Str("intent_id", intent.ID).
		Str("kind", string(intent.Kind)).
		Str("status", string(intent.Status)).
		Int("attempts", intent.Attempts).
		Msg("Intent resumed")

	if err := s.intents.Update(context.WithoutCancel(ctx), intent); err != nil {
		return intent.Status, fmt.Errorf("update intent %s: %w", intent.ID, err)
	}
	return intent.Status, nil
}
