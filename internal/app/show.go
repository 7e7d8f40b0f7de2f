package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/service"
	"ratecatalog/internal/storage"
)

// ListOptions configure the list command.
type ListOptions struct {
	Filter storage.Filter
	Out    io.Writer
}

// RankOptions configure the rank command.
type RankOptions struct {
	AccountType    catalog.AccountType
	Preferences    catalog.Preferences
	CandidateLimit int
	Out            io.Writer
}

// AdminOptions configure the admin overview.
type AdminOptions struct {
	Filter storage.Filter
	Out    io.Writer
}

// AlertsOptions configure the alerts command.
type AlertsOptions struct {
	AccountType catalog.AccountType
	TargetAPY   decimal.Decimal
	Out         io.Writer
}

// List prints the public catalog.
func (a *App) List(ctx context.Context, opts ListOptions) error {
	return a.withService(ctx, func(svc *service.Service) error {
		records, err := svc.ListVisible(ctx, opts.Filter)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(opts.Out, "no records found")
			return nil
		}
		writeRecords(opts.Out, records)
		return nil
	})
}

// Rank prints recommendations for the given preferences.
func (a *App) Rank(ctx context.Context, opts RankOptions) error {
	limit := a.Config.ResolveCandidateLimit(opts.CandidateLimit)
	return a.withService(ctx, func(svc *service.Service) error {
		recs, err := svc.Rank(ctx, opts.AccountType, opts.Preferences, limit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(opts.Out, "no matching accounts")
			return nil
		}

		writer := tabwriter.NewWriter(opts.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "#\tScore\tInstitution\tAPY%\tMin Deposit\tReasoning")
		for i, r := range recs {
			fmt.Fprintf(writer, "%d\t%.0f\t%s\t%s\t%s\t%s\n",
				i+1,
				r.Score,
				r.Record.InstitutionName,
				formatDecimal(r.Record.APY, 2),
				formatDecimal(r.Record.MinDeposit, 0),
				sanitizeInline(r.Reasoning),
			)
		}
		return writer.Flush()
	})
}

// Admin prints every record and the high-reports bucket.
func (a *App) Admin(ctx context.Context, opts AdminOptions) error {
	return a.withService(ctx, func(svc *service.Service) error {
		view, err := svc.AdminOverview(ctx, opts.Filter)
		if err != nil {
			return err
		}

		fmt.Fprintf(opts.Out, "records: %d\n", len(view.Records))
		if len(view.Records) > 0 {
			writeRecords(opts.Out, view.Records)
		}

		fmt.Fprintf(opts.Out, "\nhigh reports (>= %d): %d\n", catalog.HighReportThreshold, len(view.HighReports))
		if len(view.HighReports) > 0 {
			writeRecords(opts.Out, view.HighReports)
		}
		return nil
	})
}

// Alerts prints visible records at or above the target APY.
func (a *App) Alerts(ctx context.Context, opts AlertsOptions) error {
	return a.withService(ctx, func(svc *service.Service) error {
		records, err := svc.RecordsAtOrAbove(ctx, opts.AccountType, opts.TargetAPY)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintf(opts.Out, "no %s accounts at or above %s%% APY\n", opts.AccountType, opts.TargetAPY.String())
			return nil
		}
		writeRecords(opts.Out, records)
		return nil
	})
}

func writeRecords(out io.Writer, records []catalog.Record) {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tInstitution\tType\tAPY%\tMin Deposit\tTerm\tOrigin\tVerified\tReports\tUpdated (UTC)\tNotes")

	for _, r := range records {
		term := "-"
		if r.TermMonths != nil {
			term = fmt.Sprintf("%dm", *r.TermMonths)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.InstitutionName,
			r.AccountType,
			formatDecimal(r.APY, 2),
			formatDecimal(r.MinDeposit, 0),
			term,
			r.SourceOrigin,
			r.VerificationCount,
			r.ReportCount,
			r.UpdatedAt.UTC().Format(time.RFC3339),
			sanitizeInline(r.Notes),
		)
	}

	writer.Flush()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
