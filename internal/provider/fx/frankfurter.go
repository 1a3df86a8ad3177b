package fx

import (
	"fmt"
	"net/url"

	"ratefeed/internal/httpx"
	"ratefeed/internal/normalize"
	"ratefeed/internal/provider"
)

const (
	FrankfurterName     = "frankfurter.app"
	FrankfurterEndpoint = "https://api.frankfurter.app"
)

// NewFrankfurter builds the last-resort adapter backed by ECB reference rates:
// GET /latest?from=&to=.
func NewFrankfurter(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = FrankfurterName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = FrankfurterEndpoint
	}
	return newSource(cfg, hc, func(c Config, p provider.Pair) string {
		q := url.Values{}
		q.Set("from", p.Base)
		q.Set("to", p.Target)
		return fmt.Sprintf("%s/latest?%s", c.Endpoint, q.Encode())
	}, normalize.RatesTable)
}
