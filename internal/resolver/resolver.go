// Package resolver walks the configured provider chain for a pair and returns the first
// usable quote.
//
// Order is the order adapters were handed to New; there is no scoring, shuffling or retry.
// Every failure is logged and counted and the walk continues. When nothing succeeds the
// caller still gets a Quote, with status=error and today's date, never a Go error.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/sourcegraph/conc/pool"

	"ratefeed/internal/provider"
	"ratefeed/internal/telemetry"
)

const (
	// ExhaustedEquity is the error text of an equity lookup nobody could serve.
	ExhaustedEquity = "All equity APIs failed"

	ProbeWorking = "working"
	ProbeFailed  = "failed"
)

var (
	probePair   = provider.NewPair("USD", "INR")
	probeEquity = provider.NewEquity("AAPL", "Apple")
)

type Resolver struct {
	adapters []provider.Adapter
	logger   hclog.Logger
	now      func() time.Time
}

func New(adapters []provider.Adapter, logger hclog.Logger) *Resolver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Resolver{
		adapters: adapters,
		logger:   logger.Named("resolver"),
		now:      time.Now,
	}
}

// Adapters returns the chain in priority order.
func (r *Resolver) Adapters() []provider.Adapter { return r.adapters }

// Resolve returns the first successful quote for a currency pair.
func (r *Resolver) Resolve(ctx context.Context, pair provider.Pair) provider.Quote {
	return r.walk(ctx, pair, provider.CapCurrency, provider.ExhaustedCurrency)
}

// ResolveEquity returns the first successful quote for ticker, labelled for display.
func (r *Resolver) ResolveEquity(ctx context.Context, ticker, label string) provider.Quote {
	return r.walk(ctx, provider.NewEquity(ticker, label), provider.CapEquity, ExhaustedEquity)
}

func (r *Resolver) walk(ctx context.Context, pair provider.Pair, want provider.Capability, exhausted string) provider.Quote {
	defer telemetry.MeasureResolve(time.Now())

	for _, a := range r.adapters {
		if !a.Capability().Has(want) {
			continue
		}
		if ctx.Err() != nil {
			r.logger.Debug("resolution cancelled", "pair", pair.Key(), "error", ctx.Err())
			break
		}

		telemetry.IncrProviderAttempt(a.Name())
		res := r.call(ctx, a, pair)
		if res.Err == nil && res.Quote.OK() {
			telemetry.IncrProviderSuccess(a.Name())
			r.logger.Debug("resolved", "pair", pair.Key(), "source", res.Quote.Source, "rate", res.Quote.Rate)
			return res.Quote
		}

		kind := provider.Kind(res.Err)
		telemetry.IncrProviderFailure(a.Name(), kind)
		r.logger.Warn("provider failed", "provider", a.Name(), "pair", pair.Key(), "kind", kind, "error", res.Err)
	}

	chain := "currency"
	if want == provider.CapEquity {
		chain = "equity"
	}
	telemetry.IncrExhausted(chain)
	r.logger.Error("all providers failed", "pair", pair.Key(), "chain", chain)
	return provider.Failed(pair, exhausted, r.now())
}

// call shields the walk from an adapter that panics or hands back a malformed success.
func (r *Resolver) call(ctx context.Context, a provider.Adapter, pair provider.Pair) (res provider.Result) {
	defer func() {
		if v := recover(); v != nil {
			res = provider.Fail(fmt.Errorf("%s: panic: %v", a.Name(), v))
		}
	}()
	res = a.FetchQuote(ctx, pair)
	if res.Err == nil && !res.Quote.OK() {
		res = provider.Fail(fmt.Errorf("%s: success without rate: %w", a.Name(), provider.ErrMalformedResponse))
	}
	return res
}

// Probe asks every adapter once, concurrently, and reports working/failed per name.
func (r *Resolver) Probe(ctx context.Context) map[string]string {
	var (
		mu  sync.Mutex
		out = make(map[string]string, len(r.adapters))
	)
	p := pool.New().WithContext(ctx)
	for _, a := range r.adapters {
		p.Go(func(ctx context.Context) error {
			pair := probePair
			if !a.Capability().Has(provider.CapCurrency) {
				pair = probeEquity
			}
			status := ProbeWorking
			if res := r.call(ctx, a, pair); res.Err != nil {
				status = ProbeFailed
				r.logger.Info("probe failed", "provider", a.Name(), "error", res.Err)
			}
			mu.Lock()
			out[a.Name()] = status
			mu.Unlock()
			return nil
		})
	}
	_ = p.Wait()
	return out
}
