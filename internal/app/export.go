package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/service"
	"ratecatalog/internal/storage"
)

// maxChartBars caps the PNG chart so labels stay readable.
const maxChartBars = 15

// ExportOptions hold parameters for exporting the catalog.
type ExportOptions struct {
	AccountType catalog.AccountType
	// IncludeHidden exports suppressed records too (admin use).
	IncludeHidden bool
	PNGPath       string
	CSVPath       string
	MaxRecords    int
}

// Export renders the catalog as CSV and/or a PNG APY chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRecords = a.Config.ResolveMaxRecords(opts.MaxRecords)
	filter := storage.Filter{
		AccountType: opts.AccountType,
		Sort:        storage.SortAPY,
		Limit:       opts.MaxRecords,
	}

	return a.withService(ctx, func(svc *service.Service) error {
		var (
			records []catalog.Record
			err     error
		)
		if opts.IncludeHidden {
			var view service.AdminView
			view, err = svc.AdminOverview(ctx, filter)
			records = view.Records
		} else {
			records, err = svc.ListVisible(ctx, filter)
		}
		if err != nil {
			return err
		}
		if len(records) == 0 {
			a.Logger.Info().Msg("no records found for export")
			return nil
		}

		a.Logger.Info().Int("records", len(records)).Msg("exporting catalog")

		if opts.CSVPath != "" {
			if err := writeRecordsCSV(opts.CSVPath, records); err != nil {
				return err
			}
		}
		if opts.PNGPath != "" {
			if err := writeRecordsPNG(opts.PNGPath, records); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeRecordsCSV(path string, records []catalog.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "institution", "account_type", "rate", "apy", "min_deposit", "term_months", "features", "origin", "source_url", "scope", "location", "verifications", "reports", "last_verified_at", "updated_at", "notes"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		term := ""
		if r.TermMonths != nil {
			term = strconv.Itoa(*r.TermMonths)
		}
		verified := ""
		if r.LastVerifiedAt != nil {
			verified = r.LastVerifiedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			r.ID.String(),
			r.InstitutionName,
			string(r.AccountType),
			r.Rate.String(),
			r.APY.String(),
			r.MinDeposit.String(),
			term,
			strings.Join(r.Features, ";"),
			string(r.SourceOrigin),
			r.SourceURL,
			string(r.AvailabilityScope),
			r.Location,
			strconv.Itoa(r.VerificationCount),
			strconv.Itoa(r.ReportCount),
			verified,
			r.UpdatedAt.UTC().Format(time.RFC3339),
			r.Notes,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeRecordsPNG(path string, records []catalog.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	if len(records) > maxChartBars {
		records = records[:maxChartBars]
	}

	bars := make([]chart.Value, 0, len(records))
	top := 1.0
	for _, r := range records {
		label := r.InstitutionName
		if r.TermMonths != nil {
			label = fmt.Sprintf("%s %dm", label, *r.TermMonths)
		}
		apy := r.APY.InexactFloat64()
		top = max(top, apy)
		bars = append(bars, chart.Value{
			Label: label,
			Value: apy,
		})
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.BarChart{
		Title:    "APY by institution (%)",
		Width:    1280,
		Height:   720,
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			// a fixed zero floor keeps single-bar and equal-rate charts renderable
			Range:          &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: rateFormatter,
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
