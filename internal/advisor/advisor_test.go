package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/config"
	"ratecatalog/internal/metrics"
)

type fakeCompleter struct {
	reply string
	err   error
	user  string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, user string, out any) error {
	f.user = user
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

type mockAdvisor struct {
	mock.Mock
}

func (m *mockAdvisor) Order(ctx context.Context, at catalog.AccountType, prefs catalog.Preferences, cands []catalog.Record) ([]catalog.Recommendation, error) {
	args := m.Called(ctx, at, prefs, cands)
	recs, _ := args.Get(0).([]catalog.Recommendation)
	return recs, args.Error(1)
}

func candidates() []catalog.Record {
	mk := func(name, apy string) catalog.Record {
		return catalog.Record{
			ID:                uuid.New(),
			InstitutionName:   name,
			AccountType:       catalog.AccountSavings,
			Rate:              decimal.RequireFromString(apy),
			APY:               decimal.RequireFromString(apy),
			AvailabilityScope: catalog.ScopeNational,
		}
	}
	return []catalog.Record{mk("Ally Bank", "4.2"), mk("Marcus", "4.4"), mk("Discover", "3.9")}
}

func TestOpenAIOrder(t *testing.T) {
	llm := &fakeCompleter{reply: `{"picks":[{"index":1,"score":91,"reasoning":"Highest APY."},{"index":1,"score":90},{"index":0,"score":140,"reasoning":""}]}`}
	adv := NewOpenAI(llm, 5, zerolog.Nop())
	cands := candidates()

	recs, err := adv.Order(context.Background(), catalog.AccountSavings, catalog.Preferences{PreferredFeatures: []string{"no fees"}}, cands)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, cands[1].ID, recs[0].Record.ID)
	assert.Equal(t, "Highest APY.", recs[0].Reasoning)
	assert.Equal(t, 100.0, recs[1].Score)
	assert.NotEmpty(t, recs[1].Reasoning)

	assert.Contains(t, llm.user, "Account type: savings")
	assert.Contains(t, llm.user, "Wanted features: no fees")
	assert.Contains(t, llm.user, `"institution":"Marcus"`)
}

func TestOpenAIOrderMalformed(t *testing.T) {
	cases := map[string]string{
		"no picks":     `{"picks":[]}`,
		"out of range": `{"picks":[{"index":7,"score":50}]}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			adv := NewOpenAI(&fakeCompleter{reply: reply}, 5, zerolog.Nop())
			_, err := adv.Order(context.Background(), catalog.AccountSavings, catalog.Preferences{}, candidates())
			assert.ErrorIs(t, err, catalog.ErrUpstreamUnavailable)
		})
	}
}

func TestOpenAIOrderUpstreamError(t *testing.T) {
	adv := NewOpenAI(&fakeCompleter{err: errors.New("429 rate limited")}, 5, zerolog.Nop())
	_, err := adv.Order(context.Background(), catalog.AccountSavings, catalog.Preferences{}, candidates())
	assert.ErrorIs(t, err, catalog.ErrUpstreamUnavailable)
}

func TestOpenAIOrderTopN(t *testing.T) {
	adv := NewOpenAI(&fakeCompleter{reply: `{"picks":[{"index":0,"score":1},{"index":1,"score":2},{"index":2,"score":3}]}`}, 2, zerolog.Nop())
	recs, err := adv.Order(context.Background(), catalog.AccountSavings, catalog.Preferences{}, candidates())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestGuardedOpensAfterConsecutiveFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	next := &mockAdvisor{}
	next.On("Order", mock.Anything, catalog.AccountSavings, mock.Anything, mock.Anything).
		Return(nil, errors.New("boom")).Times(2)

	g := NewGuarded(next, config.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 2}, time.Second, m, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := g.Order(context.Background(), catalog.AccountSavings, catalog.Preferences{}, candidates())
		require.ErrorIs(t, err, catalog.ErrUpstreamUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("ai-advisor")))

	_, err := g.Order(context.Background(), catalog.AccountSavings, catalog.Preferences{}, candidates())
	require.ErrorIs(t, err, catalog.ErrUpstreamUnavailable)
	next.AssertNumberOfCalls(t, "Order", 2)
}

func TestGuardedPassesThroughSuccess(t *testing.T) {
	cands := candidates()
	want := []catalog.Recommendation{{Record: cands[0], Score: 80, Reasoning: "Good."}}
	next := &mockAdvisor{}
	next.On("Order", mock.Anything, catalog.AccountSavings, mock.Anything, cands).Return(want, nil).Once()

	g := NewGuarded(next, config.BreakerConfig{}, 0, nil, zerolog.Nop())
	got, err := g.Order(context.Background(), catalog.AccountSavings, catalog.Preferences{}, cands)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, gobreaker.StateClosed, g.State())
	next.AssertExpectations(t)
}
