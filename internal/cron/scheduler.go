package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"oppwapay/internal/config"
	"oppwapay/internal/models"
	"oppwapay/internal/payment"
)

const (
	batchSize  = 100
	jobTimeout = 5 * time.Minute
)

// PaymentStore is the payment persistence the jobs need.
type PaymentStore interface {
	FindPendingWithResource(ctx context.Context, limit int) ([]models.OrderPayment, error)
	FindStaleCreated(ctx context.Context, before time.Time, limit int) ([]models.OrderPayment, error)
	TransitionPayment(ctx context.Context, p *models.OrderPayment, to string) error
}

// SettingsStore reads typed provider settings.
type SettingsStore interface {
	ProviderConfig(ctx context.Context, eventID uint, brand string) (payment.ProviderConfig, error)
}

// CronRepos bundles repositories needed by cron jobs.
type CronRepos struct {
	Payments PaymentStore
	Settings SettingsStore
}

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron       *cron.Cron
	cfg        config.CronConfig
	logger     *zap.Logger
	repos      *CronRepos
	adapter    *payment.Adapter
	registry   *payment.Registry
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// New creates a new cron scheduler.
func New(cfg config.CronConfig, repos *CronRepos, adapter *payment.Adapter, registry *payment.Registry, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		logger:   logger,
		repos:    repos,
		adapter:  adapter,
		registry: registry,
		now:      time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxElapsedTime = 30 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...")

	// Re-poll pending payments
	if _, err := s.cron.AddFunc(s.cfg.ReconcileSpec, func() {
		s.logger.Debug("Running: reconcile pending payments")
		s.runJob("reconcilePending", s.ReconcilePending)
	}); err != nil {
		return fmt.Errorf("schedule reconcile job: %w", err)
	}

	// Expire abandoned checkouts
	if _, err := s.cron.AddFunc(s.cfg.ExpireSpec, func() {
		s.logger.Debug("Running: expire stale checkouts")
		s.runJob("expireStaleCheckouts", s.ExpireStaleCheckouts)
	}); err != nil {
		return fmt.Errorf("schedule expiry job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runJob(name string, job func(ctx context.Context) int) {
	defer s.recoverFromPanic(name)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n := job(ctx)
	s.logger.Debug("Cron job completed", zap.String("job", name), zap.Int("processed", n))
}

// ── Pending reconciliation ───────────────────────────────────────────

// ReconcilePending re-fetches the last known resource of every pending
// payment and applies the result. It returns the number of payments that
// left the pending state.
func (s *Scheduler) ReconcilePending(ctx context.Context) int {
	payments, err := s.repos.Payments.FindPendingWithResource(ctx, batchSize)
	if err != nil {
		s.logger.Error("Failed to load pending payments", zap.Error(err))
		return 0
	}

	settled := 0
	for i := range payments {
		p := &payments[i]
		if ctx.Err() != nil {
			break
		}
		if s.reconcile(ctx, p) && p.State != models.PaymentStatePending {
			settled++
		}
	}
	return settled
}

func (s *Scheduler) reconcile(ctx context.Context, p *models.OrderPayment) bool {
	prov, ok := s.registry.Provider(p.Provider)
	if !ok || p.Order == nil {
		s.logger.Warn("Skipping payment with unknown provider", zap.Uint("payment_id", p.ID), zap.String("provider", p.Provider))
		return false
	}
	cfg, err := s.repos.Settings.ProviderConfig(ctx, p.Order.EventID, prov.Brand.Identifier)
	if err != nil {
		s.logger.Error("Failed to load provider settings", zap.Uint("payment_id", p.ID), zap.Error(err))
		return false
	}

	var result payment.Payload
	op := func() error {
		payload, err := s.adapter.FetchPaymentResult(ctx, p, prov, cfg, p.ResourcePath)
		if err == nil {
			result = payload
			return nil
		}
		if errors.Is(err, payment.ErrGatewayUnreachable) {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
		s.logger.Warn("Reconciliation fetch failed", zap.Uint("payment_id", p.ID), zap.Error(err))
		return false
	}

	if err := s.adapter.ApplyPaymentResult(ctx, p, result); err != nil {
		s.logger.Error("Failed to apply reconciled result", zap.Uint("payment_id", p.ID), zap.Error(err))
		return false
	}
	return true
}

// ── Stale checkout expiry ────────────────────────────────────────────

// ExpireStaleCheckouts cancels created payments nobody finished within the
// checkout TTL.
func (s *Scheduler) ExpireStaleCheckouts(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.CheckoutTTL)
	payments, err := s.repos.Payments.FindStaleCreated(ctx, cutoff, batchSize)
	if err != nil {
		s.logger.Error("Failed to load stale payments", zap.Error(err))
		return 0
	}

	expired := 0
	for i := range payments {
		p := &payments[i]
		err := s.repos.Payments.TransitionPayment(ctx, p, models.PaymentStateCanceled)
		if errors.Is(err, models.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			s.logger.Error("Failed to expire payment", zap.Uint("payment_id", p.ID), zap.Error(err))
			continue
		}
		expired++
		s.logger.Info("Expired stale checkout", zap.Uint("payment_id", p.ID))
	}
	return expired
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
