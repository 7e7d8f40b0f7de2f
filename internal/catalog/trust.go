package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	defaultAPYCeiling      = decimal.NewFromInt(15)
	defaultOutlierMultiple = decimal.NewFromInt(2)
)

// TrustPolicy holds the bounds used to auto-flag community submissions.
type TrustPolicy struct {
	Ceiling         decimal.Decimal
	OutlierMultiple decimal.Decimal
}

// DefaultTrustPolicy flags anything above 15% APY or twice the sourced average.
func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{Ceiling: defaultAPYCeiling, OutlierMultiple: defaultOutlierMultiple}
}

// Baseline is the live mean APY of sourced records for one account type.
type Baseline struct {
	Mean    decimal.Decimal
	Samples int
}

// TrustDecision is the outcome of scoring a community submission.
type TrustDecision struct {
	Flagged bool
	Reasons []string
}

// Reason joins all flag reasons.
func (d TrustDecision) Reason() string {
	return strings.Join(d.Reasons, "; ")
}

// Score applies the absolute ceiling and relative outlier checks to apy.
func (p TrustPolicy) Score(apy decimal.Decimal, base Baseline) TrustDecision {
	var decision TrustDecision

	if apy.GreaterThan(p.Ceiling) {
		decision.Flagged = true
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("exceeds %s%% APY", p.Ceiling.String()))
	}

	// A zero mean cannot express a ratio; the ceiling check still applies.
	if base.Samples > 0 && base.Mean.IsPositive() {
		if apy.GreaterThan(base.Mean.Mul(p.OutlierMultiple)) {
			decision.Flagged = true
			ratio := apy.Div(base.Mean)
			decision.Reasons = append(decision.Reasons, fmt.Sprintf("%sx higher than average", ratio.StringFixed(1)))
		}
	}

	return decision
}

// Apply sets the initial ledger state of a new community record.
// Unflagged submissions count the submitter's claim as one verification;
// flagged ones start self-reported so they stay hidden until verified.
func (d TrustDecision) Apply(rec *Record, now time.Time) {
	if !d.Flagged {
		rec.VerificationCount = 1
		rec.ReportCount = 0
		verified := now
		rec.LastVerifiedAt = &verified
		return
	}

	rec.VerificationCount = 0
	rec.ReportCount = 1
	rec.LastVerifiedAt = nil

	prefix := fmt.Sprintf("[auto-flagged: %s]", d.Reason())
	if rec.Notes == "" {
		rec.Notes = prefix
	} else {
		rec.Notes = prefix + " " + rec.Notes
	}
}
