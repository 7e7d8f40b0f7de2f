package catalog

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankRecord(name, apy string, verifications int, minDeposit string, verified *time.Time) Record {
	return Record{
		InstitutionName:   name,
		AccountType:       AccountSavings,
		APY:               decimal.RequireFromString(apy),
		Rate:              decimal.RequireFromString(apy),
		MinDeposit:        decimal.RequireFromString(minDeposit),
		VerificationCount: verifications,
		LastVerifiedAt:    verified,
	}
}

func TestRankPrefersFreshVerifiedHighYield(t *testing.T) {
	now := time.Now().UTC()
	stale := now.Add(-120 * day)

	a := rankRecord("A", "4.6", 12, "0", &now)
	b := rankRecord("B", "3.2", 1, "10000", &stale)
	prefs := Preferences{MinRate: dec("3.0"), MaxMinDeposit: dec("500")}

	scoreA := Score(a, prefs, now)
	scoreB := Score(b, prefs, now)
	assert.Greater(t, scoreA, scoreB)
	assert.Equal(t, 100.0, scoreA, "clamped at the ceiling")
	assert.Equal(t, 65.0, scoreB)

	ranked := Rank([]Record{b, a}, prefs, now, 5)
	require.Len(t, ranked, 2)
	assert.Equal(t, "A", ranked[0].Record.InstitutionName)
}

func TestScoreTiers(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		apy   string
		verif int
		want  float64
	}{
		{"5.0", 10, 50 + 30 + 20},
		{"4.0", 5, 50 + 25 + 15},
		{"3.0", 2, 50 + 20 + 10},
		{"2.0", 1, 50 + 15 + 5},
		{"1.99", 0, 50 + 10 + 5},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("apy %s", tc.apy), func(t *testing.T) {
			r := rankRecord("x", tc.apy, tc.verif, "0", nil)
			assert.Equal(t, tc.want, Score(r, Preferences{}, now))
		})
	}
}

func TestScoreFreshness(t *testing.T) {
	now := time.Now().UTC()
	at := func(d time.Duration) *time.Time { v := now.Add(-d); return &v }

	base := Score(rankRecord("x", "1", 0, "0", nil), Preferences{}, now)
	assert.Equal(t, base+15, Score(rankRecord("x", "1", 0, "0", at(7*day)), Preferences{}, now))
	assert.Equal(t, base+10, Score(rankRecord("x", "1", 0, "0", at(30*day)), Preferences{}, now))
	assert.Equal(t, base+5, Score(rankRecord("x", "1", 0, "0", at(90*day)), Preferences{}, now))
	assert.Equal(t, base, Score(rankRecord("x", "1", 0, "0", at(91*day)), Preferences{}, now))
}

func TestScoreDepositAndFeatures(t *testing.T) {
	now := time.Now().UTC()
	capAt := Preferences{MaxMinDeposit: dec("1000")}

	none := rankRecord("x", "1", 0, "0", nil)
	within := rankRecord("x", "1", 0, "1000", nil)
	over := rankRecord("x", "1", 0, "1000.01", nil)
	assert.Equal(t, 80.0, Score(none, capAt, now))
	assert.Equal(t, 75.0, Score(within, capAt, now))
	assert.Equal(t, 55.0, Score(over, capAt, now))

	featured := rankRecord("x", "1", 0, "0", nil)
	featured.Features = []string{"mobile app", "atm refunds"}
	prefs := Preferences{PreferredFeatures: []string{"Mobile App", "no fees", "ATM refunds", "zelle"}}
	assert.Equal(t, 65.0+10, Score(featured, prefs, now))
}

func TestScoreReportPenaltyClampsAtZero(t *testing.T) {
	r := rankRecord("x", "1", 0, "0", nil)
	r.ReportCount = 3
	assert.Equal(t, 50.0, Score(r, Preferences{}, time.Now()))

	r.ReportCount = 40
	assert.Equal(t, 0.0, Score(r, Preferences{}, time.Now()))
}

func TestRankStableAndBounded(t *testing.T) {
	now := time.Now().UTC()
	var cands []Record
	for i := 0; i < 8; i++ {
		cands = append(cands, rankRecord(fmt.Sprintf("bank-%d", i), "3.5", 3, "0", nil))
	}

	ranked := Rank(cands, Preferences{}, now, 0)
	require.Len(t, ranked, DefaultTopN)
	for i, r := range ranked {
		assert.Equal(t, fmt.Sprintf("bank-%d", i), r.Record.InstitutionName, "ties keep query order")
	}
}

func TestReasoning(t *testing.T) {
	r := rankRecord("A", "4.6", 12, "0", nil)
	r.Features = []string{"mobile app", "no fees"}
	prefs := Preferences{MaxMinDeposit: dec("500"), PreferredFeatures: []string{"no fees", "mobile app"}}

	assert.Equal(t, "Excellent 4.60% APY, verified by 12 users, no minimum deposit, includes mobile app and no fees.", Reasoning(r, prefs))

	b := rankRecord("B", "3.2", 1, "10000", nil)
	assert.Equal(t, "Strong 3.20% APY, $10000 minimum is above your budget.", Reasoning(b, prefs))
	assert.Equal(t, "Strong 3.20% APY.", Reasoning(b, Preferences{}))
}
