package fetcher

import (
	"context"
	"errors"
	"fmt"

	"ratecatalog/internal/catalog"
)

// ErrNoFetcher is returned when no collaborator can serve a target.
var ErrNoFetcher = errors.New("no fetcher configured for target")

// Target names one institution/account pair the sweep refreshes. Targets with
// a URL are scraped; the rest are resolved through AI search.
type Target struct {
	Institution        string              `yaml:"institution"`
	AccountType        catalog.AccountType `yaml:"account_type"`
	URL                string              `yaml:"url,omitempty"`
	RateSelector       string              `yaml:"rate_selector,omitempty"`
	APYSelector        string              `yaml:"apy_selector,omitempty"`
	MinDepositSelector string              `yaml:"min_deposit_selector,omitempty"`
	TermMonths         int                 `yaml:"term_months,omitempty"`
	Features           []string            `yaml:"features,omitempty"`
}

// String identifies the target in logs.
func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Institution, t.AccountType)
}

// ObservationFetcher produces a raw observation for a target. A nil
// observation with a nil error means the source had no data.
type ObservationFetcher interface {
	Fetch(ctx context.Context, target Target) (*catalog.Observation, error)
}

// Router sends targets with a URL to the scraper and everything else to
// AI search.
type Router struct {
	Scraper ObservationFetcher
	Search  ObservationFetcher
}

// Fetch implements ObservationFetcher.
func (r Router) Fetch(ctx context.Context, target Target) (*catalog.Observation, error) {
	switch {
	case target.URL != "" && r.Scraper != nil:
		return r.Scraper.Fetch(ctx, target)
	case target.URL == "" && r.Search != nil:
		return r.Search.Fetch(ctx, target)
	default:
		return nil, fmt.Errorf("fetch %s: %w", target, ErrNoFetcher)
	}
}

func termFor(target Target) *int {
	if target.AccountType == catalog.AccountCD && target.TermMonths > 0 {
		return catalog.IntPtr(target.TermMonths)
	}
	return nil
}

var _ ObservationFetcher = Router{}
