package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/metrics"
)

// Dispatcher delivers notifications in the background so callers never
// wait on, or fail because of, a notification channel.
type Dispatcher struct {
	next    Notifier
	timeout time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher wraps next. A nil next makes every dispatch a no-op.
func NewDispatcher(next Notifier, timeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		next:    next,
		timeout: timeout,
		metrics: m,
		logger:  logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

// Submission schedules an OnSubmission delivery.
func (d *Dispatcher) Submission(rec catalog.Record) {
	d.dispatch(EventSubmission, rec.ID.String(), func(ctx context.Context) error {
		return d.next.OnSubmission(ctx, rec)
	})
}

// Report schedules an OnReport delivery.
func (d *Dispatcher) Report(rec catalog.Record, reason string) {
	d.dispatch(EventReport, rec.ID.String(), func(ctx context.Context) error {
		return d.next.OnReport(ctx, rec, reason)
	})
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and by
// short-lived CLI commands.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(kind EventKind, recordID string, fn func(context.Context) error) {
	if d == nil || d.next == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.metrics.IncNotifyFailure(string(kind))
			d.logger.Error().Err(err).
				Str("event", string(kind)).
				Str("record_id", recordID).
				Msg("notification failed")
		}
	}()
}
