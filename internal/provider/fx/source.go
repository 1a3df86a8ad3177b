// Package fx holds the currency-pair adapters. Each one is a Source configured with the
// URL layout and payload shape of a particular third-party API.
package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ratefeed/internal/httpx"
	"ratefeed/internal/provider"
)

// Config is shared by every fx adapter.
type Config struct {
	Name     string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type extractFunc func(body []byte, target string) (decimal.Decimal, error)

// Source is one currency provider.
type Source struct {
	cfg     Config
	client  *httpx.Client
	url     func(p provider.Pair) string
	extract extractFunc
	now     func() time.Time
}

var _ provider.Adapter = (*Source)(nil)

func newSource(cfg Config, hc *httpx.Client, url func(Config, provider.Pair) string, extract extractFunc) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpx.DefaultTimeout
	}
	s := &Source{cfg: cfg, client: hc, extract: extract, now: time.Now}
	s.url = func(p provider.Pair) string { return url(s.cfg, p) }
	return s
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) Capability() provider.Capability { return provider.CapCurrency }

// Endpoint returns the configured base URL.
func (s *Source) Endpoint() string { return s.cfg.Endpoint }

// FetchQuote performs one lookup bounded by the source's timeout.
func (s *Source) FetchQuote(ctx context.Context, pair provider.Pair) provider.Result {
	if !pair.Valid() || pair.IsEquity() {
		return provider.Fail(fmt.Errorf("%s: %q is not a currency pair: %w", s.cfg.Name, pair.Key(), provider.ErrFieldMissing))
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	body, err := s.client.GetBody(ctx, s.url(pair))
	if err != nil {
		return provider.Fail(fmt.Errorf("%s: %w", s.cfg.Name, err))
	}
	rate, err := s.extract(body, pair.Target)
	if err != nil {
		return provider.Fail(fmt.Errorf("%s: %w", s.cfg.Name, err))
	}
	return provider.Ok(provider.Succeeded(pair, rate, s.cfg.Name, s.now()))
}
