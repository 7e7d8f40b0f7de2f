package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultTopN is how many recommendations a ranking returns.
	DefaultTopN = 5
	// DefaultCandidateLimit bounds how many catalog records are ranked.
	DefaultCandidateLimit = 20

	baseScore = 50.0
	day       = 24 * time.Hour
)

// Preferences captures what a user is looking for.
type Preferences struct {
	MinRate           *decimal.Decimal
	MaxMinDeposit     *decimal.Decimal
	PreferredFeatures []string
	Location          string
}

// Recommendation is one ranked record with its explanation.
type Recommendation struct {
	Record    Record
	Score     float64
	Reasoning string
}

type yieldBand struct {
	floor  decimal.Decimal
	points float64
	label  string
}

var yieldBands = []yieldBand{
	{decimal.NewFromInt(5), 30, "top-tier"},
	{decimal.NewFromInt(4), 25, "excellent"},
	{decimal.NewFromInt(3), 20, "strong"},
	{decimal.NewFromInt(2), 15, "competitive"},
}

func bandFor(apy decimal.Decimal) (float64, string) {
	for _, b := range yieldBands {
		if apy.GreaterThanOrEqual(b.floor) {
			return b.points, b.label
		}
	}
	return 10, "modest"
}

// Score computes the 0-100 match score of a record for prefs at now.
func Score(r Record, prefs Preferences, now time.Time) float64 {
	score := baseScore

	yield, _ := bandFor(r.APY)
	score += yield

	switch {
	case r.VerificationCount >= 10:
		score += 20
	case r.VerificationCount >= 5:
		score += 15
	case r.VerificationCount >= 2:
		score += 10
	default:
		score += 5
	}

	// Deposit fit only ranks; records over the cap stay in the list.
	if prefs.MaxMinDeposit != nil {
		switch {
		case r.MinDeposit.IsZero():
			score += 15
		case r.MinDeposit.LessThanOrEqual(*prefs.MaxMinDeposit):
			score += 10
		default:
			score -= 10
		}
	}

	if wanted := NormalizeFeatures(prefs.PreferredFeatures); len(wanted) > 0 {
		matched := matchFeatures(r.Features, wanted)
		score += 20 * float64(len(matched)) / float64(len(wanted))
	}

	score += freshness(r.LastVerifiedAt, now)
	score -= 5 * float64(r.ReportCount)

	return clamp(score, 0, 100)
}

func freshness(lastVerified *time.Time, now time.Time) float64 {
	if lastVerified == nil {
		return 0
	}
	age := now.Sub(*lastVerified)
	switch {
	case age <= 7*day:
		return 15
	case age <= 30*day:
		return 10
	case age <= 90*day:
		return 5
	default:
		return 0
	}
}

func matchFeatures(have, wanted []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, f := range NormalizeFeatures(have) {
		set[f] = struct{}{}
	}
	matched := make([]string, 0, len(wanted))
	for _, w := range wanted {
		if _, ok := set[w]; ok {
			matched = append(matched, w)
		}
	}
	return matched
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rank scores candidates, sorts them by score (stable, so ties keep query
// order) and returns at most limit recommendations.
func Rank(candidates []Record, prefs Preferences, now time.Time, limit int) []Recommendation {
	if limit <= 0 {
		limit = DefaultTopN
	}

	recs := make([]Recommendation, 0, len(candidates))
	for _, r := range candidates {
		recs = append(recs, Recommendation{
			Record:    r,
			Score:     Score(r, prefs, now),
			Reasoning: Reasoning(r, prefs),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// Reasoning builds the one-sentence explanation of a recommendation:
// yield band, verification count, deposit fit and matched features.
func Reasoning(r Record, prefs Preferences) string {
	_, band := bandFor(r.APY)
	parts := []string{fmt.Sprintf("%s %s%% APY", band, r.APY.StringFixed(2))}

	if r.VerificationCount >= 5 {
		parts = append(parts, fmt.Sprintf("verified by %d users", r.VerificationCount))
	}

	switch {
	case r.MinDeposit.IsZero():
		parts = append(parts, "no minimum deposit")
	case prefs.MaxMinDeposit == nil:
	case r.MinDeposit.LessThanOrEqual(*prefs.MaxMinDeposit):
		parts = append(parts, fmt.Sprintf("$%s minimum fits your budget", r.MinDeposit.StringFixed(0)))
	default:
		parts = append(parts, fmt.Sprintf("$%s minimum is above your budget", r.MinDeposit.StringFixed(0)))
	}

	if wanted := NormalizeFeatures(prefs.PreferredFeatures); len(wanted) > 0 {
		if matched := matchFeatures(r.Features, wanted); len(matched) > 0 {
			parts = append(parts, "includes "+strings.Join(matched, " and "))
		}
	}

	sentence := strings.Join(parts, ", ")
	return strings.ToUpper(sentence[:1]) + sentence[1:] + "."
}
