package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/storage"
)

// AdminView is the unfiltered moderation view of the catalog.
type AdminView struct {
	Records     []catalog.Record
	HighReports []catalog.Record
}

// Verify records one community confirmation. Retried requests count twice.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) (catalog.Counts, error) {
	rec, err := s.store.IncrementVerification(ctx, id, s.now())
	if err != nil {
		return catalog.Counts{}, err
	}
	s.metrics.IncLedger("verify")
	s.logger.Debug().Str("record_id", id.String()).Int("verifications", rec.VerificationCount).Msg("record verified")
	return rec.Counts(), nil
}

// Report records one community dispute. The reason is logged and forwarded
// to moderators but not stored.
func (s *Service) Report(ctx context.Context, id uuid.UUID, reason string) (catalog.Counts, error) {
	rec, err := s.store.IncrementReport(ctx, id, s.now())
	if err != nil {
		return catalog.Counts{}, err
	}
	s.metrics.IncLedger("report")
	s.logger.Info().
		Str("record_id", id.String()).
		Int("reports", rec.ReportCount).
		Int("verifications", rec.VerificationCount).
		Bool("visible", catalog.Visible(rec)).
		Str("reason", reason).
		Msg("record reported")

	s.dispatcher.Report(rec, reason)
	return rec.Counts(), nil
}

// ResetCounters zeroes both counters of a record.
func (s *Service) ResetCounters(ctx context.Context, id uuid.UUID) (catalog.Counts, error) {
	rec, err := s.store.ResetCounters(ctx, id, s.now())
	if err != nil {
		return catalog.Counts{}, err
	}
	s.metrics.IncLedger("reset")
	s.logger.Info().Str("record_id", id.String()).Msg("record counters reset")
	return rec.Counts(), nil
}

// Delete removes a record permanently.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.IncLedger("delete")
	s.logger.Info().Str("record_id", id.String()).Msg("record deleted")
	return nil
}

// Get returns one record regardless of visibility.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (catalog.Record, error) {
	return s.store.Get(ctx, id)
}

// ListVisible returns the public catalog: records whose reports do not
// exceed their verifications.
func (s *Service) ListVisible(ctx context.Context, filter storage.Filter) ([]catalog.Record, error) {
	filter.VisibleOnly = true
	return s.store.List(ctx, filter)
}

// AdminOverview returns every record matching filter plus the high-reports
// triage bucket.
func (s *Service) AdminOverview(ctx context.Context, filter storage.Filter) (AdminView, error) {
	filter.VisibleOnly = false
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return AdminView{}, err
	}

	high, err := s.store.List(ctx, storage.Filter{
		AccountType: filter.AccountType,
		MinReports:  catalog.HighReportThreshold,
		Sort:        storage.SortReports,
	})
	if err != nil {
		return AdminView{}, err
	}
	return AdminView{Records: records, HighReports: high}, nil
}

// RecordsAtOrAbove returns visible records of accountType whose APY meets
// target, highest first. Rate alert pollers use it.
func (s *Service) RecordsAtOrAbove(ctx context.Context, accountType catalog.AccountType, target decimal.Decimal) ([]catalog.Record, error) {
	if !accountType.Valid() {
		return nil, &catalog.ValidationError{Field: "accountType", Reason: "unknown account type"}
	}
	return s.store.List(ctx, storage.Filter{
		AccountType: accountType,
		MinAPY:      &target,
		VisibleOnly: true,
		Sort:        storage.SortAPY,
	})
}
