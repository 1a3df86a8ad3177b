// Package normalize maps raw provider payloads onto canonical rates.
//
// Every function is pure. A missing target code is reported as provider.ErrFieldMissing;
// anything present but unusable (bad JSON, null, strings, zero, negative, NaN) is
// provider.ErrMalformedResponse. All rates leave this package rounded to 4 fractional
// digits, half away from zero.
package normalize

import (
	"fmt"
	"math"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"ratefeed/internal/provider"
)

// Places is the number of fractional digits every rate is rounded to.
const Places = 4

// Round4 rounds d to Places digits, half away from zero.
func Round4(d decimal.Decimal) decimal.Decimal { return d.Round(Places) }

// RatesTable extracts target from a {"rates":{"INR":22.65,...}} body, the shape served by
// exchangerate-api.com, fixer.io and frankfurter.app.
func RatesTable(body []byte, target string) (decimal.Decimal, error) {
	var payload struct {
		Rates map[string]json.RawMessage `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode rates: %v: %w", err, provider.ErrMalformedResponse)
	}
	if payload.Rates == nil {
		return decimal.Zero, fmt.Errorf("no rates object: %w", provider.ErrFieldMissing)
	}
	raw, ok := payload.Rates[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("rates.%s: %w", target, provider.ErrFieldMissing)
	}
	return number(raw, "rates."+target)
}

// CurrencyAPI extracts target from a {"data":{"INR":{"value":22.65}}} body (currencyapi.com v3).
func CurrencyAPI(body []byte, target string) (decimal.Decimal, error) {
	var payload struct {
		Data map[string]struct {
			Code  string          `json:"code"`
			Value json.RawMessage `json:"value"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode data: %v: %w", err, provider.ErrMalformedResponse)
	}
	entry, ok := payload.Data[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("data.%s: %w", target, provider.ErrFieldMissing)
	}
	if len(entry.Value) == 0 {
		return decimal.Zero, fmt.Errorf("data.%s.value: %w", target, provider.ErrFieldMissing)
	}
	return number(entry.Value, "data."+target+".value")
}

// Price validates and rounds a float already decoded by a provider client.
func Price(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("price %v: %w", v, provider.ErrMalformedResponse)
	}
	return positive(decimal.NewFromFloat(v), "price")
}

// OptionalPrice is Price for secondary fields: anything unusable yields nil.
func OptionalPrice(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d, err := Price(*v)
	if err != nil {
		return nil
	}
	return &d
}

func number(raw json.RawMessage, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s=%s is not numeric: %w", field, string(raw), provider.ErrMalformedResponse)
	}
	return positive(d, field)
}

// positive rounds d and rejects anything that is not positive afterwards,
// so a rate too small to show in 4 digits never passes as 0.
func positive(d decimal.Decimal, field string) (decimal.Decimal, error) {
	r := Round4(d)
	if !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s=%s is not positive at %d places: %w", field, d.String(), Places, provider.ErrMalformedResponse)
	}
	return r, nil
}
