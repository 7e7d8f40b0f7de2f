package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratecatalog/internal/advisor"
	"ratecatalog/internal/alerting"
	"ratecatalog/internal/catalog"
	"ratecatalog/internal/config"
	"ratecatalog/internal/fetcher"
	"ratecatalog/internal/metrics"
	"ratecatalog/internal/scheduler"
	"ratecatalog/internal/storage"
)

// Service orchestrates normalisation, trust scoring, merging, moderation and
// ranking on top of a RecordStore.
type Service struct {
	store      storage.RecordStore
	fetcher    fetcher.ObservationFetcher
	advisor    advisor.Advisor
	dispatcher *alerting.Dispatcher
	scheduler  *scheduler.Scheduler
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time

	trust          catalog.TrustPolicy
	candidateLimit int
	topN           int
	sweep          SweepOptions
	locker         storage.AdvisoryLocker
	lockKey        int64
}

// SweepOptions tune the nightly refresh.
type SweepOptions struct {
	Delay       time.Duration
	Concurrency int
	Policy      catalog.RefreshPolicy
	ItemTimeout time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithFetcher sets the observation source used by sweeps and refreshes.
func WithFetcher(f fetcher.ObservationFetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithAdvisor sets the AI ranking collaborator.
func WithAdvisor(a advisor.Advisor) Option {
	return func(s *Service) { s.advisor = a }
}

// WithDispatcher sets the background notification dispatcher.
func WithDispatcher(d *alerting.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithScheduler sets the cron scheduler driving Run.
func WithScheduler(sched *scheduler.Scheduler) Option {
	return func(s *Service) { s.scheduler = sched }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the catalog service. The store doubles as the advisory
// locker when it supports it.
func New(cfg *config.Config, store storage.RecordStore, logger zerolog.Logger, opts ...Option) (*Service, error) {
	policy, err := catalog.ParseRefreshPolicy(cfg.Sweep.RefreshPolicy)
	if err != nil {
		return nil, fmt.Errorf("sweep.refresh_policy: %w", err)
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	s := &Service{
		store:  store,
		logger: logger.With().Str("component", "service").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		trust: catalog.TrustPolicy{
			Ceiling:         decimal.NewFromFloat(cfg.Trust.CeilingAPY),
			OutlierMultiple: decimal.NewFromFloat(cfg.Trust.OutlierMultiple),
		},
		candidateLimit: cfg.Ranking.CandidateLimit,
		topN:           cfg.Ranking.TopN,
		sweep: SweepOptions{
			Delay:       cfg.Sweep.Delay,
			Concurrency: cfg.Sweep.Concurrency,
			Policy:      policy,
			ItemTimeout: cfg.Sweep.ItemTimeout,
		},
		locker:  locker,
		lockKey: cfg.Scheduler.AdvisoryLockKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TargetSource yields the institutions a scheduled sweep refreshes.
type TargetSource func() ([]fetcher.Target, error)

// Run drives scheduled sweeps until ctx is cancelled.
func (s *Service) Run(ctx context.Context, targets TargetSource) error {
	if s.scheduler == nil {
		return errors.New("scheduler not configured")
	}
	return s.scheduler.Run(ctx, func(ctx context.Context, firedAt time.Time) error {
		list, err := targets()
		if err != nil {
			return fmt.Errorf("load sweep targets: %w", err)
		}
		report, err := s.Sweep(ctx, list)
		if err != nil {
			return err
		}
		s.logger.Info().
			Time("fired_at", firedAt).
			Int("targets", report.Total).
			Int("updated", report.Updated).
			Int("inserted", report.Inserted).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("sweep complete")
		return nil
	})
}

// Wait blocks until background notifications have been delivered.
func (s *Service) Wait() {
	s.dispatcher.Wait()
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
