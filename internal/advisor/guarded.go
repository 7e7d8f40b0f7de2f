package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/config"
	"ratecatalog/internal/metrics"
)

// Guarded wraps an Advisor with a circuit breaker so a failing model stops
// costing a round trip per ranking.
type Guarded struct {
	next    Advisor
	cb      *gobreaker.CircuitBreaker[[]catalog.Recommendation]
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGuarded builds the breaker from configuration.
func NewGuarded(next Advisor, cfg config.BreakerConfig, timeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Guarded {
	log := logger.With().Str("component", "advisor_breaker").Logger()
	trip := cfg.ConsecutiveFailures
	if trip == 0 {
		trip = 3
	}

	const name = "ai-advisor"
	m.SetBreakerState(name, stateValue(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[[]catalog.Recommendation](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("from", from.String()).Str("to", to.String()).Msg("breaker state transition")
			m.SetBreakerState(name, stateValue(to))
		},
	})

	return &Guarded{next: next, cb: cb, timeout: timeout, logger: log}
}

// Order implements Advisor.
func (g *Guarded) Order(ctx context.Context, accountType catalog.AccountType, prefs catalog.Preferences, candidates []catalog.Record) ([]catalog.Recommendation, error) {
	recs, err := g.cb.Execute(func() ([]catalog.Recommendation, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.next.Order(callCtx, accountType, prefs, candidates)
	})
	if err != nil {
		if errors.Is(err, catalog.ErrUpstreamUnavailable) {
			return nil, err
		}
		// open state, half-open saturation and raw adapter errors
		return nil, fmt.Errorf("%w: %v", catalog.ErrUpstreamUnavailable, err)
	}
	return recs, nil
}

// State exposes the breaker state for diagnostics.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

var _ Advisor = (*Guarded)(nil)
