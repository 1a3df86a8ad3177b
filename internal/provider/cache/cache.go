package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ratefeed/internal/provider"
)

// flightTimeout bounds a shared upstream call, which no single caller's context owns.
const flightTimeout = 30 * time.Second

// entry stores the cached quote for a single pair with expiry.
type entry struct {
	expiresAt time.Time
	quote     provider.Quote
}

// Provider caches successful quotes per pair for a TTL.
// Concurrent lookups of the same pair share one upstream call; failures are never cached.
type Provider struct {
	P        provider.Adapter
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry // key: pair key
	group singleflight.Group
	now   func() time.Time
}

var _ provider.Adapter = (*Provider)(nil)

// Wrap decorates p with a cache. A non-positive ttl returns p unchanged.
func Wrap(p provider.Adapter, ttl time.Duration, maxItems int) provider.Adapter {
	if p == nil || ttl <= 0 {
		return p
	}
	return &Provider{P: p, TTL: ttl, MaxItems: maxItems}
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) Capability() provider.Capability { return c.P.Capability() }

// FetchQuote returns the cached quote for pair when still valid, otherwise asks the wrapped adapter.
func (c *Provider) FetchQuote(ctx context.Context, pair provider.Pair) provider.Result {
	if c.TTL <= 0 {
		return c.P.FetchQuote(ctx, pair)
	}

	key := pair.Key()
	if q, ok := c.lookup(key); ok {
		return relabel(provider.Ok(q), pair)
	}

	flight := c.group.DoChan(key, func() (any, error) {
		// Another caller may have filled the slot while we waited for the flight.
		if q, ok := c.lookup(key); ok {
			return provider.Ok(q), nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		res := c.P.FetchQuote(fctx, pair)
		if res.Err == nil && res.Quote.OK() {
			c.store(key, res.Quote)
		}
		return res, nil
	})

	select {
	case r := <-flight:
		return relabel(r.Val.(provider.Result), pair)
	case <-ctx.Done():
		return provider.Fail(fmt.Errorf("%s: waiting for shared lookup: %w", c.P.Name(), ctx.Err()))
	}
}

// relabel stamps the caller's pair on a shared or cached quote; equity labels differ per request.
func relabel(res provider.Result, pair provider.Pair) provider.Result {
	if res.Err == nil {
		res.Quote.Pair = pair
		res.Quote.Currency = pair.String()
	}
	return res
}

func (c *Provider) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Provider) lookup(key string) (provider.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.clock().Before(e.expiresAt) {
		return provider.Quote{}, false
	}
	return e.quote, true
}

func (c *Provider) store(key string, q provider.Quote) {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = entry{expiresAt: now.Add(c.TTL), quote: q}

	// best-effort cap cache size
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// remove expired first, then arbitrary
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if !now.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != key {
				delete(c.items, k)
			}
		}
	}
}

// Len reports the number of entries currently held, expired ones included.
func (c *Provider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
