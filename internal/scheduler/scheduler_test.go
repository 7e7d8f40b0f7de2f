package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(Options{Spec: "nightly"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNextNightly(t *testing.T) {
	s, err := New(Options{Spec: "0 3 * * *"}, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), s.Next(now))

	early := time.Date(2026, 3, 10, 2, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), s.Next(early))
}

func TestNextHonoursLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	s, err := New(Options{Spec: "0 3 * * *", Location: loc}, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), s.Next(now).UTC())
}

func TestRunFiresAndSurvivesErrors(t *testing.T) {
	s, err := New(Options{Spec: "@every 1s", RunOnStart: true}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	err = s.Run(ctx, func(context.Context, time.Time) error {
		calls.Add(1)
		return errors.New("fetch failed")
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRunStopsDuringStartupDelay(t *testing.T) {
	s, err := New(Options{Spec: "@hourly", StartupDelay: time.Hour, RunOnStart: true}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = s.Run(ctx, func(context.Context, time.Time) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
