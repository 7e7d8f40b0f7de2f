package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/storage"
)

// Evaluation is the dry-run outcome of a community submission.
type Evaluation struct {
	Record   catalog.Record
	Decision catalog.TrustDecision
	Baseline catalog.Baseline
}

// EvaluateCommunity normalises and trust-scores a community observation
// without persisting it.
func (s *Service) EvaluateCommunity(ctx context.Context, obs catalog.Observation) (Evaluation, error) {
	obs.Origin = catalog.OriginCommunity
	now := s.now()

	rec, err := catalog.Normalize(obs, now)
	if err != nil {
		return Evaluation{}, err
	}

	base, err := s.store.AverageAPY(ctx, rec.AccountType, storage.SourcedOrigins)
	if err != nil {
		return Evaluation{}, err
	}

	decision := s.trust.Score(rec.APY, base)
	decision.Apply(&rec, now)
	return Evaluation{Record: rec, Decision: decision, Baseline: base}, nil
}

// SubmitCommunityObservation stores a community observation as a new record
// with its initial trust state and notifies moderators.
func (s *Service) SubmitCommunityObservation(ctx context.Context, obs catalog.Observation) (catalog.Record, error) {
	eval, err := s.EvaluateCommunity(ctx, obs)
	if err != nil {
		if errors.Is(err, catalog.ErrValidation) {
			s.metrics.IncSubmission("rejected")
		}
		return catalog.Record{}, err
	}

	outcome := catalog.Plan(catalog.AlwaysNewRecord{}, eval.Record, nil, s.now())
	saved, err := s.store.Insert(ctx, outcome.Record)
	if err != nil {
		return catalog.Record{}, err
	}

	outcomeLabel, level := "accepted", zerolog.InfoLevel
	if eval.Decision.Flagged {
		outcomeLabel, level = "flagged", zerolog.WarnLevel
	}
	s.metrics.IncSubmission(outcomeLabel)
	s.logger.WithLevel(level).
		Str("reason", eval.Decision.Reason()).
		Str("record_id", saved.ID.String()).
		Str("institution", saved.InstitutionName).
		Str("account_type", string(saved.AccountType)).
		Str("apy", saved.APY.String()).
		Msg("community submission stored")

	s.dispatcher.Submission(saved)
	return saved, nil
}

// MergeSourcedObservation folds a scraped or api observation into the single
// record for its key. It returns nil when the observation was a zero-result
// placeholder for an unknown key.
func (s *Service) MergeSourcedObservation(ctx context.Context, obs catalog.Observation, policy catalog.RefreshPolicy) (*catalog.Record, error) {
	rec, _, err := s.mergeSourced(ctx, obs, policy)
	return rec, err
}

func (s *Service) mergeSourced(ctx context.Context, obs catalog.Observation, policy catalog.RefreshPolicy) (*catalog.Record, catalog.MergeAction, error) {
	if !obs.Origin.Authoritative() {
		return nil, catalog.MergeSkip, &catalog.ValidationError{Field: "origin", Reason: "must be scraped or api"}
	}

	now := s.now()
	candidate, err := catalog.Normalize(obs, now)
	if err != nil {
		return nil, catalog.MergeSkip, err
	}

	var existing *catalog.Record
	found, err := s.store.FindByKey(ctx, candidate.Key())
	switch {
	case err == nil:
		existing = &found
	case errors.Is(err, catalog.ErrNotFound):
	default:
		return nil, catalog.MergeSkip, err
	}

	outcome := catalog.Plan(catalog.StrategyFor(candidate.SourceOrigin, policy), candidate, existing, now)
	s.metrics.IncMerge(string(candidate.SourceOrigin), outcome.Action.String())

	if outcome.Action == catalog.MergeSkip {
		s.logger.Debug().
			Str("institution", candidate.InstitutionName).
			Str("account_type", string(candidate.AccountType)).
			Msg("skipping zero-yield observation for unknown key")
		return nil, catalog.MergeSkip, nil
	}

	saved, err := s.store.UpsertByKey(ctx, outcome.Record, policy)
	if err != nil {
		return nil, catalog.MergeSkip, err
	}

	s.logger.Info().
		Str("record_id", saved.ID.String()).
		Str("institution", saved.InstitutionName).
		Str("account_type", string(saved.AccountType)).
		Str("origin", string(saved.SourceOrigin)).
		Str("action", outcome.Action.String()).
		Str("policy", policy.String()).
		Str("apy", saved.APY.String()).
		Msg("sourced observation merged")
	return &saved, outcome.Action, nil
}
