package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func savingsObservation() Observation {
	return Observation{
		InstitutionName: "  Ally   Bank ",
		AccountType:     AccountSavings,
		Rate:            dec("4.20"),
		Origin:          OriginCommunity,
	}
}

func TestNormalizeDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := Normalize(savingsObservation(), now)
	require.NoError(t, err)

	assert.Equal(t, "Ally Bank", rec.InstitutionName)
	assert.True(t, rec.APY.Equal(decimal.RequireFromString("4.20")), "apy falls back to rate")
	assert.True(t, rec.MinDeposit.IsZero())
	assert.Empty(t, rec.Features)
	assert.Nil(t, rec.TermMonths)
	assert.Equal(t, ScopeNational, rec.AvailabilityScope)
	assert.Equal(t, 0, rec.VerificationCount)
	assert.Equal(t, now, rec.CreatedAt)
}

func TestNormalizeScope(t *testing.T) {
	now := time.Now()

	obs := savingsObservation()
	obs.Location = "Portland, OR"
	rec, err := Normalize(obs, now)
	require.NoError(t, err)
	assert.Equal(t, ScopeRegional, rec.AvailabilityScope)

	obs.Origin = OriginScraped
	rec, err = Normalize(obs, now)
	require.NoError(t, err)
	assert.Equal(t, ScopeNational, rec.AvailabilityScope, "sourced records are national")
}

func TestNormalizeKeepsExplicitAPY(t *testing.T) {
	obs := savingsObservation()
	obs.APY = dec("4.35")
	obs.MinDeposit = dec("100")
	obs.Features = []string{"Mobile App", "no fees", "mobile app", " "}

	rec, err := Normalize(obs, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "4.35", rec.APY.String())
	assert.Equal(t, "4.2", rec.Rate.String())
	assert.Equal(t, "100", rec.MinDeposit.String())
	assert.Equal(t, []string{"mobile app", "no fees"}, rec.Features)
}

func TestNormalizeValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Observation)
		field  string
	}{
		{"missing rate", func(o *Observation) { o.Rate = nil }, "rate"},
		{"negative rate", func(o *Observation) { o.Rate = dec("-0.1") }, "rate"},
		{"negative apy", func(o *Observation) { o.APY = dec("-1") }, "apy"},
		{"apy too large", func(o *Observation) { o.APY = dec("20000") }, "apy"},
		{"rate too precise", func(o *Observation) { o.Rate = dec("4.12345") }, "rate"},
		{"deposit too precise", func(o *Observation) { o.MinDeposit = dec("10.001") }, "minDeposit"},
		{"deposit too large", func(o *Observation) { o.MinDeposit = dec("1000000000000") }, "minDeposit"},
		{"unknown account type", func(o *Observation) { o.AccountType = "brokerage" }, "accountType"},
		{"unknown origin", func(o *Observation) { o.Origin = "rumour" }, "origin"},
		{"blank institution", func(o *Observation) { o.InstitutionName = "   " }, "institutionName"},
		{"cd without term", func(o *Observation) { o.AccountType = AccountCD }, "term"},
		{"cd with zero term", func(o *Observation) { o.AccountType = AccountCD; o.TermMonths = IntPtr(0) }, "term"},
		{"term on savings", func(o *Observation) { o.TermMonths = IntPtr(12) }, "term"},
		{"bad source url", func(o *Observation) { o.SourceURL = "not a url" }, "sourceUrl"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := savingsObservation()
			tc.mutate(&obs)

			_, err := Normalize(obs, time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestNormalizeAcceptsStorableBounds(t *testing.T) {
	obs := savingsObservation()
	obs.Rate = dec("1000")
	obs.APY = dec("4.12340")
	obs.MinDeposit = dec("999999999999.99")

	rec, err := Normalize(obs, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "4.1234", rec.APY.String())
	assert.Equal(t, "1000", rec.Rate.String())
}

func TestNormalizeCDTerm(t *testing.T) {
	obs := savingsObservation()
	obs.AccountType = AccountCD
	obs.TermMonths = IntPtr(12)

	rec, err := Normalize(obs, time.Now())
	require.NoError(t, err)
	require.NotNil(t, rec.TermMonths)
	assert.Equal(t, 12, *rec.TermMonths)
}

func TestParseAccountType(t *testing.T) {
	at, err := ParseAccountType(" Money_Market ")
	require.NoError(t, err)
	assert.Equal(t, AccountMoneyMarket, at)

	_, err = ParseAccountType("ira")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewKeyFoldsCase(t *testing.T) {
	assert.Equal(t, NewKey("ally bank", AccountSavings), NewKey(" Ally  BANK", AccountSavings))
	assert.NotEqual(t, NewKey("Ally Bank", AccountSavings), NewKey("Ally Bank", AccountChecking))
}
