package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/fetcher"
	"ratecatalog/internal/service"
)

// SweepOptions configure a one-off sweep.
type SweepOptions struct {
	TargetsFile string
	Out         io.Writer
}

// RefreshOptions configure a targeted refresh. Target fields left empty are
// filled from the targets file entry with the same institution and type.
type RefreshOptions struct {
	Target      fetcher.Target
	TargetsFile string
	Policy      string
	Out         io.Writer
}

// Sweep refreshes every configured target once.
func (a *App) Sweep(ctx context.Context, opts SweepOptions) error {
	path := opts.TargetsFile
	if path == "" {
		path = a.Config.Sweep.TargetsFile
	}
	targets, err := fetcher.LoadTargets(path)
	if err != nil {
		return err
	}

	return a.withService(ctx, func(svc *service.Service) error {
		report, err := svc.Sweep(ctx, targets)
		if err != nil {
			return err
		}
		if report.LockHeld {
			fmt.Fprintln(opts.Out, "another sweep holds the lock; nothing done")
			return nil
		}

		fmt.Fprintf(opts.Out, "targets: %d  inserted: %d  updated: %d  skipped: %d  failed: %d  took: %s\n",
			report.Total, report.Inserted, report.Updated, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))

		if len(report.Failures) > 0 {
			writer := tabwriter.NewWriter(opts.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "Target\tError")
			for _, f := range report.Failures {
				fmt.Fprintf(writer, "%s\t%s\n", f.Target, sanitizeInline(f.Err))
			}
			writer.Flush()
			return errors.New("some targets failed to refresh, check logs")
		}
		return nil
	})
}

// Refresh fetches and merges a single institution.
func (a *App) Refresh(ctx context.Context, opts RefreshOptions) error {
	policy, err := catalog.ParseRefreshPolicy(opts.Policy)
	if err != nil {
		return err
	}

	target, err := a.resolveTarget(opts)
	if err != nil {
		return err
	}

	return a.withService(ctx, func(svc *service.Service) error {
		rec, err := svc.RefreshOne(ctx, target, policy)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Fprintf(opts.Out, "no rate found for %s\n", target)
			return nil
		}
		writeRecords(opts.Out, []catalog.Record{*rec})
		return nil
	})
}

func (a *App) resolveTarget(opts RefreshOptions) (fetcher.Target, error) {
	target := opts.Target
	if target.URL != "" {
		return target, nil
	}

	path := opts.TargetsFile
	if path == "" {
		path = a.Config.Sweep.TargetsFile
	}
	targets, err := fetcher.LoadTargets(path)
	if err != nil {
		// a missing file just means AI search handles the target
		a.Logger.Debug().Err(err).Msg("targets file unavailable for refresh lookup")
		return target, nil
	}

	key := catalog.NewKey(target.Institution, target.AccountType)
	for _, t := range targets {
		if catalog.NewKey(t.Institution, t.AccountType) != key {
			continue
		}
		if target.TermMonths > 0 {
			t.TermMonths = target.TermMonths
		}
		return t, nil
	}
	return target, nil
}
