// Package jobs runs the periodic maintenance tasks: the intent reconciler
// and the balance audit.
package jobs

import (
	"context"
	"fmt"

	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Auditor replays the ledger against stored balances
type Auditor interface {
	Audit(ctx context.Context) (*models.AuditReport, error)
}

// Scheduler runs background jobs on cron schedules
type Scheduler struct {
	cron      *cron.Cron
	reconcile service.ReconcileService
	auditor   Auditor
	cfg       config.ReconcileConfig
	log       zerolog.Logger
}

// NewScheduler creates a scheduler in UTC. Overlapping runs of the same
// job are skipped.
func NewScheduler(reconcile service.ReconcileService, auditor Auditor, cfg config.ReconcileConfig, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cron.PrintfLogger(&log)

	c := cron.New(
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &Scheduler{
		cron:      c,
		reconcile: reconcile,
		auditor:   auditor,
		cfg:       cfg,
		log:       log,
	}
}

// Start registers the jobs and starts the scheduler. An empty audit
// schedule disables the audit.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.RunReconcile(ctx) }); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", s.cfg.Schedule, err)
	}
	if s.cfg.AuditSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.AuditSchedule, func() { s.RunAudit(ctx) }); err != nil {
			return fmt.Errorf("invalid audit schedule %q: %w", s.cfg.AuditSchedule, err)
		}
	}

	s.cron.Start()
	s.log.Info().
		Str("reconcile", s.cfg.Schedule).
		Str("audit", s.cfg.AuditSchedule).
		Msg("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// RunReconcile runs one reconciliation sweep
func (s *Scheduler) RunReconcile(ctx context.Context) {
	result, err := s.reconcile.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Reconciliation sweep failed")
		return
	}
	if result.Failed > 0 {
		s.log.Warn().Int("failed", result.Failed).Msg("Intents gave up after max attempts")
	}
}

// RunAudit runs one balance audit
func (s *Scheduler) RunAudit(ctx context.Context) {
	report, err := s.auditor.Audit(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Balance audit failed")
		return
	}
	if len(report.Drifts) > 0 {
		s.log.Error().Int("drifts", len(report.Drifts)).Msg("Balance audit found drift")
	}
}
