package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ratefeed/internal/httpx"
	"ratefeed/internal/provider"
	"ratefeed/internal/provider/fx"
)

type stubAdapter struct {
	name  string
	cap   provider.Capability
	rate  string
	err   error
	panic bool
	calls int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Capability() provider.Capability {
	if s.cap == 0 {
		return provider.CapCurrency
	}
	return s.cap
}

func (s *stubAdapter) FetchQuote(_ context.Context, pair provider.Pair) provider.Result {
	s.calls++
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return provider.Fail(fmt.Errorf("%s: %w", s.name, s.err))
	}
	return provider.Ok(provider.Succeeded(pair, decimal.RequireFromString(s.rate), s.name, time.Now()))
}

func ok(name, rate string) *stubAdapter { return &stubAdapter{name: name, rate: rate} }

func failing(name string, err error) *stubAdapter { return &stubAdapter{name: name, err: err} }

func TestResolve_FirstSuccessWins(t *testing.T) {
	a, b := ok("a", "22.6548"), ok("b", "22.7")
	r := New([]provider.Adapter{a, b}, nil)

	q := r.Resolve(t.Context(), provider.NewPair("AED", "INR"))
	require.True(t, q.OK())
	require.Equal(t, "a", q.Source)
	require.Equal(t, "22.6548", q.Rate.String())
	require.Equal(t, 0, b.calls)
}

func TestResolve_FallsBackInOrder(t *testing.T) {
	a := failing("a", provider.ErrProviderTimeout)
	b := failing("b", provider.ErrFieldMissing)
	c := ok("c", "1.1523")
	d := ok("d", "9")
	r := New([]provider.Adapter{a, b, c, d}, nil)

	q := r.Resolve(t.Context(), provider.NewPair("AED", "MYR"))
	require.Equal(t, "c", q.Source)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
	require.Equal(t, 0, d.calls)
}

func TestResolve_SameSourceWhenStable(t *testing.T) {
	r := New([]provider.Adapter{failing("a", errors.New("down")), ok("b", "3.6725")}, nil)
	pair := provider.NewPair("USD", "AED")

	first := r.Resolve(t.Context(), pair)
	second := r.Resolve(t.Context(), pair)
	require.Equal(t, first.Source, second.Source)
	require.True(t, first.Rate.Equal(*second.Rate))
}

func TestResolve_Exhausted(t *testing.T) {
	r := New([]provider.Adapter{
		failing("a", provider.ErrProviderTimeout),
		failing("b", provider.ErrMalformedResponse),
		&stubAdapter{name: "c", panic: true},
	}, nil)
	r.now = func() time.Time { return time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC) }

	q := r.Resolve(t.Context(), provider.NewPair("USD", "INR"))
	require.False(t, q.OK())
	require.Equal(t, provider.StatusError, q.Status)
	require.Equal(t, "All currency APIs failed", q.Error)
	require.Equal(t, "2026-10-19", q.Today)
	require.Equal(t, "USD to INR", q.Currency)
	require.Nil(t, q.Rate)
	require.Empty(t, q.Source)
}

func TestResolve_EmptyChain(t *testing.T) {
	q := New(nil, nil).Resolve(t.Context(), provider.NewPair("AED", "INR"))
	require.Equal(t, provider.ExhaustedCurrency, q.Error)
	require.Equal(t, time.Now().Format(provider.DateLayout), q.Today)
}

func TestResolve_SkipsOtherCapability(t *testing.T) {
	equity := &stubAdapter{name: "yahoo", cap: provider.CapEquity, rate: "190"}
	fxa := ok("fx", "22.6")
	r := New([]provider.Adapter{equity, fxa}, nil)

	q := r.Resolve(t.Context(), provider.NewPair("AED", "INR"))
	require.Equal(t, "fx", q.Source)
	require.Equal(t, 0, equity.calls)

	eq := r.ResolveEquity(t.Context(), "aapl", "Apple")
	require.Equal(t, "yahoo", eq.Source)
	require.Equal(t, "Apple", eq.Currency)
	require.Equal(t, 1, fxa.calls)
}

func TestResolveEquity_Exhausted(t *testing.T) {
	r := New([]provider.Adapter{ok("fx", "22.6")}, nil)
	q := r.ResolveEquity(t.Context(), "AAPL", "")
	require.Equal(t, ExhaustedEquity, q.Error)
	require.Equal(t, "AAPL", q.Currency)
}

func TestResolve_CancelledContextStops(t *testing.T) {
	a := ok("a", "1")
	r := New([]provider.Adapter{a}, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	q := r.Resolve(ctx, provider.NewPair("AED", "INR"))
	require.False(t, q.OK())
	require.Equal(t, 0, a.calls)
}

func TestResolve_RealAdaptersScenario(t *testing.T) {
	// Arrange: A answers, B is unreachable.
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"INR":83.12}}`))
	}))
	defer a.Close()
	b := httptest.NewServer(http.NotFoundHandler())
	b.Close()

	hc := httpx.New(time.Second)
	r := New([]provider.Adapter{
		fx.NewExchangeRateAPI(fx.Config{Name: "A", Endpoint: a.URL}, hc),
		fx.NewFrankfurter(fx.Config{Name: "B", Endpoint: b.URL}, hc),
	}, nil)

	// Act
	q := r.Resolve(t.Context(), provider.NewPair("USD", "INR"))

	// Assert
	require.True(t, q.OK())
	require.Equal(t, "83.12", q.Rate.String())
	require.Equal(t, "A", q.Source)
}

func TestResolve_AllUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	hc := httpx.New(time.Second)
	r := New([]provider.Adapter{
		fx.NewExchangeRateAPI(fx.Config{Endpoint: dead.URL}, hc),
		fx.NewFixer(fx.Config{Endpoint: dead.URL}, hc),
		fx.NewCurrencyAPI(fx.Config{Endpoint: dead.URL, APIKey: "k"}, hc),
		fx.NewFrankfurter(fx.Config{Endpoint: dead.URL}, hc),
	}, nil)

	q := r.Resolve(t.Context(), provider.NewPair("USD", "INR"))
	require.Equal(t, provider.StatusError, q.Status)
	require.Equal(t, "All currency APIs failed", q.Error)
	require.Equal(t, time.Now().Format(provider.DateLayout), q.Today)
}

func TestResolve_RoundsToFourPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"MYR":1.152349999}}`))
	}))
	defer srv.Close()

	r := New([]provider.Adapter{fx.NewFrankfurter(fx.Config{Endpoint: srv.URL}, httpx.New(time.Second))}, nil)
	q := r.Resolve(t.Context(), provider.NewPair("AED", "MYR"))
	require.True(t, q.OK())
	require.Equal(t, "1.1523", q.Rate.String())
	require.LessOrEqual(t, -q.Rate.Exponent(), int32(4))
	require.True(t, q.Rate.IsPositive())
}

func TestProbe(t *testing.T) {
	r := New([]provider.Adapter{
		ok("a", "83"),
		failing("b", provider.ErrProviderTimeout),
		&stubAdapter{name: "yahoo", cap: provider.CapEquity, rate: "190"},
		&stubAdapter{name: "c", panic: true},
	}, nil)

	got := r.Probe(t.Context())
	require.Equal(t, map[string]string{
		"a":     ProbeWorking,
		"b":     ProbeFailed,
		"yahoo": ProbeWorking,
		"c":     ProbeFailed,
	}, got)
}
