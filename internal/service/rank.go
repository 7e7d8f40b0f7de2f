package service

import (
	"context"
	"sort"
	"strings"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/storage"
)

// Rank recommends up to topN visible records of accountType for prefs. The
// AI advisor orders candidates when configured; any advisor failure falls
// back to rule-based scoring and is never returned to the caller.
func (s *Service) Rank(ctx context.Context, accountType catalog.AccountType, prefs catalog.Preferences, candidateLimit int) ([]catalog.Recommendation, error) {
	if !accountType.Valid() {
		return nil, &catalog.ValidationError{Field: "accountType", Reason: "unknown account type"}
	}
	if candidateLimit <= 0 {
		candidateLimit = s.candidateLimit
	}
	if candidateLimit <= 0 {
		candidateLimit = catalog.DefaultCandidateLimit
	}

	candidates, err := s.rankCandidates(ctx, accountType, prefs, candidateLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []catalog.Recommendation{}, nil
	}

	if s.advisor != nil {
		recs, advErr := s.advisor.Order(ctx, accountType, prefs, candidates)
		if advErr == nil && len(recs) > 0 {
			s.metrics.IncRanking("ai")
			return recs, nil
		}
		s.logger.Warn().Err(advErr).Str("account_type", string(accountType)).Msg("ai ranking unavailable, using rule-based scoring")
		s.metrics.IncRanking("fallback")
	} else {
		s.metrics.IncRanking("rules")
	}

	return catalog.Rank(candidates, prefs, s.now(), s.topN), nil
}

// rankCandidates loads the visible records eligible for ranking. With a
// location preference, national offers and offers at that location each
// get their own limit.
func (s *Service) rankCandidates(ctx context.Context, accountType catalog.AccountType, prefs catalog.Preferences, limit int) ([]catalog.Record, error) {
	base := storage.Filter{
		AccountType: accountType,
		MinAPY:      prefs.MinRate,
		VisibleOnly: true,
		Sort:        storage.SortAPY,
		Limit:       limit,
	}

	location := strings.TrimSpace(prefs.Location)
	if location == "" {
		return s.store.List(ctx, base)
	}

	national := base
	national.Scope = catalog.ScopeNational
	records, err := s.store.List(ctx, national)
	if err != nil {
		return nil, err
	}

	local := base
	local.Location = location
	nearby, err := s.store.List(ctx, local)
	if err != nil {
		return nil, err
	}

	records = append(records, nearby...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].APY.GreaterThan(records[j].APY)
	})
	return records, nil
}
