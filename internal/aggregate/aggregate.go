package aggregate

import (
	"context"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"

	"ratefeed/internal/provider"
)

// TimestampLayout is used for batch timestamps in bulk and all-rates payloads.
const TimestampLayout = time.RFC3339

// ResolveFunc resolves a single pair. The resolver's Resolve method satisfies it.
type ResolveFunc func(ctx context.Context, pair provider.Pair) provider.Quote

// Collect resolves pairs concurrently and returns the quotes in input order.
// A failed resolution still occupies its slot, as a status=error quote.
func Collect(ctx context.Context, resolve ResolveFunc, pairs []provider.Pair) []provider.Quote {
	out := make([]provider.Quote, len(pairs))
	p := pool.New().WithMaxGoroutines(max(1, len(pairs)))
	for i, pair := range pairs {
		p.Go(func() {
			out[i] = resolve(ctx, pair)
		})
	}
	p.Wait()
	return out
}

// Keyed collapses quotes by pair key (AED_TO_INR). For a repeated key a success beats an
// error; between equals, later input wins.
func Keyed(quotes []provider.Quote) map[string]provider.Quote {
	keyed := make(map[string]provider.Quote, len(quotes))
	for _, q := range quotes {
		k := q.Pair.Key()
		if cur, ok := keyed[k]; ok && cur.OK() && !q.OK() {
			continue
		}
		keyed[k] = q
	}
	return keyed
}

// Bulk is the bulk_currency_update payload: one entry per tracked pair plus the batch timestamp,
// all at the top level of the JSON object.
type Bulk struct {
	Rates     map[string]provider.Quote
	Timestamp time.Time
}

func NewBulk(quotes []provider.Quote, at time.Time) Bulk {
	return Bulk{Rates: Keyed(quotes), Timestamp: at}
}

func (b Bulk) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(b.Rates)+1)
	for k, q := range b.Rates {
		flat[k] = q
	}
	flat["timestamp"] = b.Timestamp.Format(TimestampLayout)
	return json.Marshal(flat)
}

// AllRates is the body of GET /api/rates/all-aed.
type AllRates struct {
	BaseCurrency     string                    `json:"base_currency"`
	TargetCurrencies []string                  `json:"target_currencies"`
	Rates            map[string]provider.Quote `json:"rates"`
	Timestamp        string                    `json:"timestamp"`
	Status           provider.Status           `json:"status"`
}

// NewAllRates assembles the all-rates body. Status is always success: per-pair failures are
// carried inside Rates.
func NewAllRates(base string, quotes []provider.Quote, at time.Time) AllRates {
	targets := make([]string, 0, len(quotes))
	for _, q := range quotes {
		targets = append(targets, q.Pair.Target)
	}
	return AllRates{
		BaseCurrency:     base,
		TargetCurrencies: targets,
		Rates:            Keyed(quotes),
		Timestamp:        at.Format(TimestampLayout),
		Status:           provider.StatusSuccess,
	}
}

// Summary renders a one-line digest such as "AED-INR: 22.6548, USD-INR: Error", sorted by pair.
func Summary(quotes []provider.Quote) string {
	parts := make([]string, 0, len(quotes))
	for _, q := range quotes {
		label := q.Pair.Base + "-" + q.Pair.Target
		if q.Pair.IsEquity() {
			label = q.Pair.Base
		}
		value := "Error"
		if q.OK() && q.Rate != nil {
			value = q.Rate.String()
		}
		parts = append(parts, label+": "+value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
