package warmer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"futuresquotes/internal/quote"
)

type countingGetter struct {
	calls    atomic.Int32
	deadline atomic.Bool
}

func (g *countingGetter) Get(ctx context.Context) quote.Prices {
	g.calls.Add(1)
	_, ok := ctx.Deadline()
	g.deadline.Store(ok)
	return quote.Prices{"NQ=F": &quote.Snapshot{Price: "1"}, "MNQ=F": nil}
}

func TestRun_CallsGetWithTimeout(t *testing.T) {
	t.Parallel()

	// Arrange
	g := &countingGetter{}
	w := New(g, "@every 1h", time.Second, zerolog.Nop())

	// Act
	w.run()

	// Assert
	require.EqualValues(t, 1, g.calls.Load())
	require.True(t, g.deadline.Load())
}

func TestRun_NoTimeout(t *testing.T) {
	t.Parallel()

	g := &countingGetter{}
	w := New(g, "@every 1h", 0, zerolog.Nop())

	w.run()

	require.False(t, g.deadline.Load())
}

func TestStart_InvalidSchedule(t *testing.T) {
	t.Parallel()

	w := New(&countingGetter{}, "every now and then", time.Second, zerolog.Nop())

	require.Error(t, w.Start())
}

func TestStart_FiresOnSchedule(t *testing.T) {
	t.Parallel()

	// Arrange
	g := &countingGetter{}
	w := New(g, "@every 1s", time.Second, zerolog.Nop())

	// Act
	require.NoError(t, w.Start())
	defer w.Stop()

	// Assert
	require.Eventually(t, func() bool { return g.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}
