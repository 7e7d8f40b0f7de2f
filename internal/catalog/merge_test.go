package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, AlwaysNewRecord{}, StrategyFor(OriginCommunity, ResetTrust))
	assert.Equal(t, UpsertByKey{Policy: ResetTrust}, StrategyFor(OriginScraped, ResetTrust))
	assert.Equal(t, UpsertByKey{Policy: PreserveTrust}, StrategyFor(OriginAPI, PreserveTrust))
}

func TestParseRefreshPolicy(t *testing.T) {
	p, err := ParseRefreshPolicy("reset-trust")
	require.NoError(t, err)
	assert.Equal(t, ResetTrust, p)

	p, err = ParseRefreshPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PreserveTrust, p)

	_, err = ParseRefreshPolicy("sometimes")
	assert.Error(t, err)
}

func existingAlly(now time.Time) Record {
	verified := now.Add(-48 * time.Hour)
	return Record{
		ID:                uuid.New(),
		InstitutionName:   "Ally Bank",
		AccountType:       AccountSavings,
		Rate:              decimal.RequireFromString("4.00"),
		APY:               decimal.RequireFromString("4.10"),
		Features:          []string{"no fees"},
		SourceOrigin:      OriginScraped,
		SourceURL:         "https://ally.example/old",
		AvailabilityScope: ScopeNational,
		Notes:             "kept",
		VerificationCount: 7,
		ReportCount:       2,
		LastVerifiedAt:    &verified,
		CreatedAt:         now.Add(-30 * 24 * time.Hour),
	}
}

func TestPlanUpsertPreservesTrust(t *testing.T) {
	now := time.Now().UTC()
	existing := existingAlly(now)
	incoming := Record{
		InstitutionName: "Ally Bank",
		AccountType:     AccountSavings,
		Rate:            decimal.RequireFromString("4.15"),
		APY:             decimal.RequireFromString("4.25"),
		Features:        []string{"mobile app"},
		SourceOrigin:    OriginAPI,
		SourceURL:       "https://ally.example/new",
	}

	out := Plan(UpsertByKey{Policy: PreserveTrust}, incoming, &existing, now)
	require.Equal(t, MergeUpdate, out.Action)

	rec := out.Record
	assert.Equal(t, existing.ID, rec.ID)
	assert.Equal(t, "4.25", rec.APY.String())
	assert.Equal(t, "https://ally.example/new", rec.SourceURL)
	assert.Equal(t, OriginAPI, rec.SourceOrigin)
	assert.Equal(t, []string{"mobile app"}, rec.Features)
	assert.Equal(t, 7, rec.VerificationCount)
	assert.Equal(t, 2, rec.ReportCount)
	assert.Equal(t, "kept", rec.Notes)
	require.NotNil(t, rec.LastScrapedAt)
	assert.Equal(t, now, *rec.LastScrapedAt)
	assert.Equal(t, existing.CreatedAt, rec.CreatedAt)
}

func TestPlanUpsertResetsTrust(t *testing.T) {
	now := time.Now().UTC()
	existing := existingAlly(now)
	incoming := existing
	incoming.APY = decimal.RequireFromString("3.90")

	out := Plan(UpsertByKey{Policy: ResetTrust}, incoming, &existing, now)
	require.Equal(t, MergeUpdate, out.Action)
	assert.Equal(t, 0, out.Record.VerificationCount)
	assert.Equal(t, 0, out.Record.ReportCount)
}

func TestPlanUpsertInsertsNewKey(t *testing.T) {
	now := time.Now().UTC()
	incoming := Record{InstitutionName: "Marcus", AccountType: AccountSavings, APY: decimal.RequireFromString("4.40"), SourceOrigin: OriginScraped}

	out := Plan(UpsertByKey{Policy: PreserveTrust}, incoming, nil, now)
	require.Equal(t, MergeInsert, out.Action)
	assert.NotEqual(t, uuid.Nil, out.Record.ID)
	assert.Equal(t, 0, out.Record.VerificationCount)
	assert.Equal(t, 0, out.Record.ReportCount)
	require.NotNil(t, out.Record.LastVerifiedAt)
	assert.Equal(t, now, *out.Record.LastVerifiedAt)
}

func TestPlanUpsertSkipsWithoutYield(t *testing.T) {
	incoming := Record{InstitutionName: "Marcus", AccountType: AccountSavings, SourceOrigin: OriginScraped}

	out := Plan(UpsertByKey{}, incoming, nil, time.Now())
	assert.Equal(t, MergeSkip, out.Action)
}

func TestPlanCommunityAlwaysInserts(t *testing.T) {
	now := time.Now().UTC()
	existing := existingAlly(now)
	candidate := Record{InstitutionName: "Ally Bank", AccountType: AccountSavings, APY: decimal.RequireFromString("4.2"), SourceOrigin: OriginCommunity, VerificationCount: 1}

	first := Plan(AlwaysNewRecord{}, candidate, &existing, now)
	second := Plan(AlwaysNewRecord{}, candidate, &existing, now)

	assert.Equal(t, MergeInsert, first.Action)
	assert.NotEqual(t, existing.ID, first.Record.ID)
	assert.NotEqual(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, 1, first.Record.VerificationCount, "community counters come from the trust scorer")
}

func TestVisibility(t *testing.T) {
	assert.True(t, Visible(Record{}))
	assert.True(t, Visible(Record{VerificationCount: 2, ReportCount: 2}))
	assert.False(t, Visible(Record{VerificationCount: 1, ReportCount: 2}))

	assert.False(t, HighReports(Record{ReportCount: 2}))
	assert.True(t, HighReports(Record{ReportCount: 3, VerificationCount: 50}))

	in := []Record{{InstitutionName: "a"}, {InstitutionName: "b", ReportCount: 1}, {InstitutionName: "c"}}
	out := FilterVisible(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].InstitutionName)
	assert.Equal(t, "c", out[1].InstitutionName)
}
