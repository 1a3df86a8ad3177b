package fx

import (
	"fmt"
	"net/url"

	"ratefeed/internal/httpx"
	"ratefeed/internal/normalize"
	"ratefeed/internal/provider"
)

const (
	FixerName     = "fixer.io"
	FixerEndpoint = "https://api.fixer.io"
)

// NewFixer builds the fixer.io adapter: GET /latest?base=&symbols=.
func NewFixer(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = FixerName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = FixerEndpoint
	}
	return newSource(cfg, hc, func(c Config, p provider.Pair) string {
		q := url.Values{}
		q.Set("base", p.Base)
		q.Set("symbols", p.Target)
		if c.APIKey != "" {
			q.Set("access_key", c.APIKey)
		}
		return fmt.Sprintf("%s/latest?%s", c.Endpoint, q.Encode())
	}, normalize.RatesTable)
}
