package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustCeiling(t *testing.T) {
	policy := DefaultTrustPolicy()

	d := policy.Score(decimal.RequireFromString("15.01"), Baseline{})
	assert.True(t, d.Flagged)
	assert.Equal(t, []string{"exceeds 15% APY"}, d.Reasons)

	d = policy.Score(decimal.RequireFromString("15.00"), Baseline{})
	assert.False(t, d.Flagged, "the ceiling itself is allowed")
}

func TestTrustOutlier(t *testing.T) {
	policy := DefaultTrustPolicy()
	base := Baseline{Mean: decimal.RequireFromString("4.00"), Samples: 3}

	d := policy.Score(decimal.RequireFromString("8.00"), base)
	assert.False(t, d.Flagged, "exactly twice the mean is not an outlier")

	d = policy.Score(decimal.RequireFromString("9.00"), base)
	require.True(t, d.Flagged)
	assert.Equal(t, "2.3x higher than average", d.Reason())
}

func TestTrustOutlierSkippedWithoutBaseline(t *testing.T) {
	policy := DefaultTrustPolicy()

	assert.False(t, policy.Score(decimal.RequireFromString("12"), Baseline{}).Flagged)
	assert.False(t, policy.Score(decimal.RequireFromString("12"), Baseline{Mean: decimal.Zero, Samples: 2}).Flagged)
}

func TestTrustBothReasons(t *testing.T) {
	d := DefaultTrustPolicy().Score(decimal.RequireFromString("20"), Baseline{Mean: decimal.NewFromInt(4), Samples: 1})
	require.True(t, d.Flagged)
	assert.Equal(t, "exceeds 15% APY; 5.0x higher than average", d.Reason())
}

func TestTrustApply(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("unflagged starts pre-verified", func(t *testing.T) {
		rec := Record{Notes: "branch rate"}
		TrustDecision{}.Apply(&rec, now)
		assert.Equal(t, 1, rec.VerificationCount)
		assert.Equal(t, 0, rec.ReportCount)
		require.NotNil(t, rec.LastVerifiedAt)
		assert.Equal(t, now, *rec.LastVerifiedAt)
		assert.Equal(t, "branch rate", rec.Notes)
		assert.True(t, Visible(rec))
	})

	t.Run("flagged starts self-reported", func(t *testing.T) {
		rec := Record{Notes: "saw it online"}
		TrustDecision{Flagged: true, Reasons: []string{"exceeds 15% APY"}}.Apply(&rec, now)
		assert.Equal(t, 0, rec.VerificationCount)
		assert.Equal(t, 1, rec.ReportCount)
		assert.Nil(t, rec.LastVerifiedAt)
		assert.Equal(t, "[auto-flagged: exceeds 15% APY] saw it online", rec.Notes)
		assert.False(t, Visible(rec))
	})
}
