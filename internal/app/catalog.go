package app

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/service"
)

func (a *App) withService(ctx context.Context, fn func(*service.Service) error) error {
	rt, err := a.build(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(rt.svc)
}

// Submit stores a community observation and prints its trust outcome.
func (a *App) Submit(ctx context.Context, obs catalog.Observation, out io.Writer) error {
	return a.withService(ctx, func(svc *service.Service) error {
		rec, err := svc.SubmitCommunityObservation(ctx, obs)
		if err != nil {
			return err
		}
		status := "accepted"
		if !catalog.Visible(rec) {
			status = "flagged (hidden until verified)"
		}
		fmt.Fprintf(out, "id: %s\nstatus: %s\nverifications: %d\nreports: %d\n",
			rec.ID, status, rec.VerificationCount, rec.ReportCount)
		if rec.Notes != "" {
			fmt.Fprintf(out, "notes: %s\n", sanitizeInline(rec.Notes))
		}
		return nil
	})
}

// Check trust-scores an observation without storing it.
func (a *App) Check(ctx context.Context, obs catalog.Observation, out io.Writer) error {
	return a.withService(ctx, func(svc *service.Service) error {
		eval, err := svc.EvaluateCommunity(ctx, obs)
		if err != nil {
			return err
		}
		baseline := "none"
		if eval.Baseline.Samples > 0 {
			baseline = fmt.Sprintf("%s%% over %d sourced records", eval.Baseline.Mean.StringFixed(2), eval.Baseline.Samples)
		}
		verdict := "accepted"
		if eval.Decision.Flagged {
			verdict = "flagged: " + eval.Decision.Reason()
		}
		fmt.Fprintf(out, "apy: %s%%\nbaseline: %s\nverdict: %s\n", eval.Record.APY.String(), baseline, verdict)
		return nil
	})
}

// Verify adds one verification to a record.
func (a *App) Verify(ctx context.Context, id uuid.UUID, out io.Writer) error {
	return a.withService(ctx, func(svc *service.Service) error {
		counts, err := svc.Verify(ctx, id)
		if err != nil {
			return err
		}
		printCounts(out, counts)
		return nil
	})
}

// Report adds one report to a record and alerts moderators.
func (a *App) Report(ctx context.Context, id uuid.UUID, reason string, out io.Writer) error {
	return a.withService(ctx, func(svc *service.Service) error {
		counts, err := svc.Report(ctx, id, reason)
		if err != nil {
			return err
		}
		printCounts(out, counts)
		return nil
	})
}

// ResetCounters clears the ledger of a record.
func (a *App) ResetCounters(ctx context.Context, id uuid.UUID, out io.Writer) error {
	return a.withService(ctx, func(svc *service.Service) error {
		counts, err := svc.ResetCounters(ctx, id)
		if err != nil {
			return err
		}
		printCounts(out, counts)
		return nil
	})
}

// Delete removes a record.
func (a *App) Delete(ctx context.Context, id uuid.UUID, out io.Writer) error {
	return a.withService(ctx, func(svc *service.Service) error {
		if err := svc.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", id)
		return nil
	})
}

func printCounts(out io.Writer, counts catalog.Counts) {
	fmt.Fprintf(out, "verifications: %d\nreports: %d\nvisible: %t\n", counts.Verifications, counts.Reports, counts.Visible())
}
