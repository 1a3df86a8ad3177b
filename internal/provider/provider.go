package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rates go on the wire as JSON numbers ("current_rate":83.12), not strings.
func init() { decimal.MarshalJSONWithoutQuotes = true }

// Status reports whether a resolution attempt produced a rate.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// DateLayout is the calendar-date format used for Quote.Today.
const DateLayout = "2006-01-02"

// Capability tells the resolver which chains an adapter belongs to.
type Capability uint8

const (
	CapCurrency Capability = 1 << iota
	CapEquity
)

// Has reports whether c includes all bits of other.
func (c Capability) Has(other Capability) bool { return c&other == other }

// Pair is an ordered (base, target) currency pair, or a (ticker, label) equity identifier.
type Pair struct {
	Base   string `json:"base"`
	Target string `json:"target"`
	// Label is the display name for equity lookups; empty for currency pairs.
	Label string `json:"-"`
}

// NewPair upper-cases and trims both codes.
func NewPair(base, target string) Pair {
	return Pair{
		Base:   strings.ToUpper(strings.TrimSpace(base)),
		Target: strings.ToUpper(strings.TrimSpace(target)),
	}
}

// NewEquity builds the pair used by the equity chain. Target is left empty.
func NewEquity(ticker, label string) Pair {
	p := Pair{Base: strings.ToUpper(strings.TrimSpace(ticker)), Label: strings.TrimSpace(label)}
	if p.Label == "" {
		p.Label = p.Base
	}
	return p
}

// Valid reports whether the pair carries the codes its kind requires.
func (p Pair) Valid() bool {
	if p.Base == "" {
		return false
	}
	return p.IsEquity() || p.Target != ""
}

// IsEquity reports whether p identifies a ticker rather than a currency pair.
func (p Pair) IsEquity() bool { return p.Target == "" }

// Key renders the pair as used in bulk payloads and broadcast tags, e.g. AED_TO_INR.
func (p Pair) Key() string {
	if p.IsEquity() {
		return p.Base
	}
	return p.Base + "_TO_" + p.Target
}

// String renders the human form, e.g. "AED to INR", or the equity label.
func (p Pair) String() string {
	if p.IsEquity() {
		return p.Label
	}
	return fmt.Sprintf("%s to %s", p.Base, p.Target)
}

// Quote is the normalized shape returned by every adapter and by the resolver.
// Rates are decimals so the 4 fractional digits survive serialization untouched;
// they serialize as JSON numbers.
type Quote struct {
	Currency  string           `json:"currency"`
	Pair      Pair             `json:"pair"`
	Rate      *decimal.Decimal `json:"current_rate,omitempty"`
	TodayHigh *decimal.Decimal `json:"today_high,omitempty"`
	TodayLow  *decimal.Decimal `json:"today_low,omitempty"`
	Today     string           `json:"today"`
	Source    string           `json:"source,omitempty"`
	Status    Status           `json:"status"`
	Error     string           `json:"error,omitempty"`
}

// Succeeded builds a success quote. It is the only way to obtain one.
func Succeeded(p Pair, rate decimal.Decimal, source string, asOf time.Time) Quote {
	r := rate
	return Quote{
		Currency: p.String(),
		Pair:     p,
		Rate:     &r,
		Today:    asOf.Format(DateLayout),
		Source:   source,
		Status:   StatusSuccess,
	}
}

// Failed builds an error quote carrying reason.
func Failed(p Pair, reason string, asOf time.Time) Quote {
	return Quote{
		Currency: p.String(),
		Pair:     p,
		Today:    asOf.Format(DateLayout),
		Status:   StatusError,
		Error:    reason,
	}
}

// OK reports whether q is a success quote.
func (q Quote) OK() bool { return q.Status == StatusSuccess }

// Result is what an adapter hands back to the resolver: a quote, or the reason there is none.
type Result struct {
	Quote Quote
	Err   error
}

// Ok wraps a successful quote.
func Ok(q Quote) Result { return Result{Quote: q} }

// Fail wraps an adapter failure.
func Fail(err error) Result { return Result{Err: err} }

// Adapter wraps one external data source behind a uniform fetch contract.
type Adapter interface {
	Name() string
	Capability() Capability
	FetchQuote(ctx context.Context, pair Pair) Result
}
