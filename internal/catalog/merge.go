package catalog

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RefreshPolicy selects what happens to ledger counters when a sourced
// observation overwrites an existing record.
type RefreshPolicy int

const (
	// PreserveTrust keeps historical verification/report counts (targeted updates).
	PreserveTrust RefreshPolicy = iota
	// ResetTrust zeroes both counters (nightly full refresh).
	ResetTrust
)

func (p RefreshPolicy) String() string {
	switch p {
	case ResetTrust:
		return "reset-trust"
	default:
		return "preserve-trust"
	}
}

// ParseRefreshPolicy parses "preserve-trust" or "reset-trust".
func ParseRefreshPolicy(v string) (RefreshPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "preserve", "preserve-trust":
		return PreserveTrust, nil
	case "reset", "reset-trust":
		return ResetTrust, nil
	default:
		return PreserveTrust, fmt.Errorf("unknown refresh policy %q", v)
	}
}

// MergeStrategy is a closed set of merge rules selected by origin.
type MergeStrategy interface {
	isMergeStrategy()
	String() string
}

// AlwaysNewRecord inserts every observation as an independent record.
type AlwaysNewRecord struct{}

func (AlwaysNewRecord) isMergeStrategy() {}
func (AlwaysNewRecord) String() string  { return "always-new-record" }

// UpsertByKey converges observations onto one record per (institution, account type).
type UpsertByKey struct {
	Policy RefreshPolicy
}

func (UpsertByKey) isMergeStrategy() {}
func (u UpsertByKey) String() string  { return "upsert-by-key(" + u.Policy.String() + ")" }

// StrategyFor picks the merge strategy for an origin. Community observations
// never overwrite; scraped and api observations always do.
func StrategyFor(origin Origin, policy RefreshPolicy) MergeStrategy {
	if origin.Authoritative() {
		return UpsertByKey{Policy: policy}
	}
	return AlwaysNewRecord{}
}

// MergeAction is what the store must do with a planned record.
type MergeAction int

const (
	MergeSkip MergeAction = iota
	MergeInsert
	MergeUpdate
)

func (a MergeAction) String() string {
	switch a {
	case MergeInsert:
		return "insert"
	case MergeUpdate:
		return "update"
	default:
		return "skip"
	}
}

// MergeOutcome is the planned effect of merging one candidate.
type MergeOutcome struct {
	Action MergeAction
	Record Record
}

// Plan decides how candidate merges into the catalog given the existing
// sourced record for its key (nil when there is none).
func Plan(strategy MergeStrategy, candidate Record, existing *Record, now time.Time) MergeOutcome {
	switch s := strategy.(type) {
	case AlwaysNewRecord:
		rec := candidate
		rec.ID = uuid.New()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return MergeOutcome{Action: MergeInsert, Record: rec}

	case UpsertByKey:
		if existing != nil {
			return MergeOutcome{Action: MergeUpdate, Record: ApplySourced(*existing, candidate, s.Policy, now)}
		}
		if !candidate.APY.IsPositive() {
			return MergeOutcome{Action: MergeSkip}
		}
		return MergeOutcome{Action: MergeInsert, Record: NewSourced(candidate, now)}

	default:
		panic(fmt.Sprintf("catalog: unhandled merge strategy %T", strategy))
	}
}

// NewSourced prepares a first-seen scraped/api record.
func NewSourced(candidate Record, now time.Time) Record {
	rec := candidate
	rec.ID = uuid.New()
	rec.VerificationCount = 0
	rec.ReportCount = 0
	verified, scraped := now, now
	rec.LastVerifiedAt = &verified
	rec.LastScrapedAt = &scraped
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return rec
}

// ApplySourced overwrites the sourced fields of existing with incoming.
// Identity, scope, location and notes are kept; counters follow policy.
func ApplySourced(existing, incoming Record, policy RefreshPolicy, now time.Time) Record {
	rec := existing
	rec.Rate = incoming.Rate
	rec.APY = incoming.APY
	rec.MinDeposit = incoming.MinDeposit
	rec.TermMonths = nil
	if incoming.TermMonths != nil {
		rec.TermMonths = IntPtr(*incoming.TermMonths)
	}
	rec.Features = slices.Clone(incoming.Features)
	rec.SourceURL = incoming.SourceURL
	rec.SourceOrigin = incoming.SourceOrigin
	scraped := now
	rec.LastScrapedAt = &scraped
	rec.UpdatedAt = now

	if policy == ResetTrust {
		rec.VerificationCount = 0
		rec.ReportCount = 0
	}
	return rec
}
