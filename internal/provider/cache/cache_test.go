package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratefeed/internal/provider"
)

type countingAdapter struct {
	calls atomic.Int32
	fail  bool
	gate  chan struct{}
}

func (a *countingAdapter) Name() string                    { return "counting" }
func (a *countingAdapter) Capability() provider.Capability { return provider.CapCurrency | provider.CapEquity }

func (a *countingAdapter) FetchQuote(_ context.Context, pair provider.Pair) provider.Result {
	a.calls.Add(1)
	if a.gate != nil {
		<-a.gate
	}
	if a.fail {
		return provider.Fail(errors.New("counting: down"))
	}
	return provider.Ok(provider.Succeeded(pair, decimal.RequireFromString("22.6548"), "counting", time.Now()))
}

func TestWrap_DisabledReturnsInner(t *testing.T) {
	inner := &countingAdapter{}
	require.Same(t, provider.Adapter(inner), Wrap(inner, 0, 0))
}

func TestFetchQuote_HitWithinTTL(t *testing.T) {
	inner := &countingAdapter{}
	c := &Provider{P: inner, TTL: time.Minute}
	pair := provider.NewPair("AED", "INR")

	for range 3 {
		res := c.FetchQuote(t.Context(), pair)
		require.NoError(t, res.Err)
		require.Equal(t, "22.6548", res.Quote.Rate.String())
	}
	require.EqualValues(t, 1, inner.calls.Load())
	require.Equal(t, "counting", c.Name())
}

func TestFetchQuote_ExpiryRefetches(t *testing.T) {
	inner := &countingAdapter{}
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	c := &Provider{P: inner, TTL: time.Second, now: func() time.Time { return now }}
	pair := provider.NewPair("AED", "INR")

	c.FetchQuote(t.Context(), pair)
	now = now.Add(2 * time.Second)
	c.FetchQuote(t.Context(), pair)
	require.EqualValues(t, 2, inner.calls.Load())
}

func TestFetchQuote_FailuresAreNotCached(t *testing.T) {
	inner := &countingAdapter{fail: true}
	c := &Provider{P: inner, TTL: time.Minute}
	pair := provider.NewPair("USD", "INR")

	require.Error(t, c.FetchQuote(t.Context(), pair).Err)
	require.Error(t, c.FetchQuote(t.Context(), pair).Err)
	require.EqualValues(t, 2, inner.calls.Load())
	require.Zero(t, c.Len())
}

func TestFetchQuote_CoalescesConcurrentLookups(t *testing.T) {
	inner := &countingAdapter{gate: make(chan struct{})}
	c := &Provider{P: inner, TTL: time.Minute}
	pair := provider.NewPair("AED", "MYR")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.FetchQuote(context.Background(), pair).Err)
		}()
	}
	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.gate)
	wg.Wait()
	require.EqualValues(t, 1, inner.calls.Load())
}

func TestFetchQuote_KeepsCallerLabel(t *testing.T) {
	inner := &countingAdapter{}
	c := &Provider{P: inner, TTL: time.Minute}

	c.FetchQuote(t.Context(), provider.NewEquity("AAPL", "Apple"))
	res := c.FetchQuote(t.Context(), provider.NewEquity("AAPL", "Apple Inc."))
	require.Equal(t, "Apple Inc.", res.Quote.Currency)
	require.EqualValues(t, 1, inner.calls.Load())
}

func TestStore_CapsSize(t *testing.T) {
	inner := &countingAdapter{}
	c := &Provider{P: inner, TTL: time.Minute, MaxItems: 2}
	for _, target := range []string{"INR", "MYR", "USD", "EUR"} {
		c.FetchQuote(t.Context(), provider.NewPair("AED", target))
	}
	require.Equal(t, 2, c.Len())
}

// ctxAdapter fails when the context it was handed is done by the time the gate opens.
type ctxAdapter struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (a *ctxAdapter) Name() string                    { return "ctx" }
func (a *ctxAdapter) Capability() provider.Capability { return provider.CapCurrency }

func (a *ctxAdapter) FetchQuote(ctx context.Context, pair provider.Pair) provider.Result {
	a.calls.Add(1)
	<-a.gate
	if err := ctx.Err(); err != nil {
		return provider.Fail(err)
	}
	return provider.Ok(provider.Succeeded(pair, decimal.RequireFromString("3.6725"), "ctx", time.Now()))
}

func TestFetchQuote_CancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := &ctxAdapter{gate: make(chan struct{})}
	c := &Provider{P: inner, TTL: time.Minute}
	pair := provider.NewPair("USD", "AED")

	firstCtx, cancelFirst := context.WithCancel(t.Context())
	first := make(chan provider.Result, 1)
	go func() { first <- c.FetchQuote(firstCtx, pair) }()
	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan provider.Result, 1)
	go func() { second <- c.FetchQuote(t.Context(), pair) }()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	res := <-first
	require.ErrorIs(t, res.Err, context.Canceled)

	close(inner.gate)
	res = <-second
	require.NoError(t, res.Err)
	require.Equal(t, "3.6725", res.Quote.Rate.String())
	require.EqualValues(t, 1, inner.calls.Load())
	require.Equal(t, 1, c.Len())
}
