package yahooadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shopspring/decimal"

	"ratefeed/internal/httpx"
	"ratefeed/internal/normalize"
	"ratefeed/internal/provider"
	"ratefeed/internal/provider/yahoo"
)

// Name is the source identifier stamped on Yahoo quotes.
const Name = "yahoo_finance"

type Config struct {
	Name    string // display name, default: yahoo_finance
	Timeout time.Duration
	// SkipDayRange disables the secondary same-day high/low lookup.
	SkipDayRange bool
}

// Adapter serves the equity chain from the Yahoo Finance chart API.
type Adapter struct {
	cfg    Config
	client *yahoo.Client
	logger hclog.Logger
	now    func() time.Time
}

var _ provider.Adapter = (*Adapter)(nil)

func New(cfg Config, client *yahoo.Client, logger hclog.Logger) *Adapter {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpx.DefaultTimeout
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Adapter{cfg: cfg, client: client, logger: logger.Named("yahoo"), now: time.Now}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Capability() provider.Capability { return provider.CapEquity }

// FetchQuote reads the live price, then tries to attach today's high and low.
// Only the live price decides success.
func (a *Adapter) FetchQuote(ctx context.Context, pair provider.Pair) provider.Result {
	if !pair.Valid() || !pair.IsEquity() {
		return provider.Fail(fmt.Errorf("%s: %q is not a ticker: %w", a.cfg.Name, pair.Key(), provider.ErrFieldMissing))
	}
	symbol := pair.Base

	primaryCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	chart, err := a.client.GetChart(primaryCtx, symbol, "", "")
	cancel()
	if err != nil {
		return provider.Fail(fmt.Errorf("%s %s: %w", a.cfg.Name, symbol, err))
	}
	rate, err := normalize.Price(chart.Meta.RegularMarketPrice)
	if err != nil {
		return provider.Fail(fmt.Errorf("%s %s: %w", a.cfg.Name, symbol, err))
	}

	q := provider.Succeeded(pair, rate, a.cfg.Name, a.now())
	if !a.cfg.SkipDayRange {
		q.TodayHigh, q.TodayLow = a.dayRange(ctx, symbol)
	}
	return provider.Ok(q)
}

// dayRange asks for today's 1d candle. Failures only cost the high/low fields.
func (a *Adapter) dayRange(ctx context.Context, symbol string) (high, low *decimal.Decimal) {
	rangeCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	chart, err := a.client.GetChart(rangeCtx, symbol, "1d", "1d")
	if err != nil {
		a.logger.Debug("day range unavailable", "symbol", symbol, "error", err)
		return nil, nil
	}
	return normalize.OptionalPrice(chart.DayHigh), normalize.OptionalPrice(chart.DayLow)
}
