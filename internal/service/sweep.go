package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/fetcher"
)

// SweepFailure describes one target that could not be refreshed.
type SweepFailure struct {
	Target fetcher.Target
	Err    string
}

// SweepReport summarises a sweep run.
type SweepReport struct {
	Total    int
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Failures []SweepFailure
	Duration time.Duration
	// LockHeld is set when another instance was already sweeping.
	LockHeld bool
}

// Sweep refreshes every target with the configured refresh policy. Items run
// under a connection cap and a shared politeness throttle; a failing item is
// recorded and does not stop the others.
func (s *Service) Sweep(ctx context.Context, targets []fetcher.Target) (SweepReport, error) {
	if s.fetcher == nil {
		return SweepReport{}, errors.New("fetcher not configured")
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	if !proceed {
		s.logger.Info().Msg("skip sweep because advisory lock held elsewhere")
		return SweepReport{LockHeld: true}, nil
	}
	if unlock != nil {
		defer unlock()
	}

	start := time.Now()
	report := SweepReport{Total: len(targets)}
	var mu sync.Mutex

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.sweep.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.sweep.Delay), 1)
	}

	concurrency := s.sweep.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, target := range targets {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		g.Go(func() error {
			action, itemErr := s.refreshTarget(ctx, target, s.sweep.Policy)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case itemErr != nil:
				report.Failed++
				report.Failures = append(report.Failures, SweepFailure{Target: target, Err: itemErr.Error()})
				s.metrics.IncSweepItem("failed")
				s.logger.Error().Err(itemErr).Str("target", target.String()).Msg("sweep item failed")
			case action == catalog.MergeInsert:
				report.Inserted++
				s.metrics.IncSweepItem("inserted")
			case action == catalog.MergeUpdate:
				report.Updated++
				s.metrics.IncSweepItem("updated")
			default:
				report.Skipped++
				s.metrics.IncSweepItem("skipped")
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	s.metrics.ObserveSweep(report.Duration)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sweep interrupted: %w", err)
	}
	return report, nil
}

// RefreshOne fetches and merges a single target. Manual refreshes normally
// use PreserveTrust so community verifications survive.
func (s *Service) RefreshOne(ctx context.Context, target fetcher.Target, policy catalog.RefreshPolicy) (*catalog.Record, error) {
	if s.fetcher == nil {
		return nil, errors.New("fetcher not configured")
	}
	obs, err := s.fetch(ctx, target)
	if err != nil || obs == nil {
		return nil, err
	}
	return s.MergeSourcedObservation(ctx, *obs, policy)
}

func (s *Service) refreshTarget(ctx context.Context, target fetcher.Target, policy catalog.RefreshPolicy) (catalog.MergeAction, error) {
	if s.sweep.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sweep.ItemTimeout)
		defer cancel()
	}

	obs, err := s.fetch(ctx, target)
	if err != nil {
		return catalog.MergeSkip, err
	}
	if obs == nil {
		return catalog.MergeSkip, nil
	}
	_, action, err := s.mergeSourced(ctx, *obs, policy)
	return action, err
}

func (s *Service) fetch(ctx context.Context, target fetcher.Target) (*catalog.Observation, error) {
	obs, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	if obs == nil {
		s.logger.Info().Str("target", target.String()).Msg("no observation returned")
	}
	return obs, nil
}
