package fx

import (
	"fmt"
	"net/url"

	"ratefeed/internal/httpx"
	"ratefeed/internal/normalize"
	"ratefeed/internal/provider"
)

const (
	ExchangeRateAPIName     = "exchangerate-api.com"
	ExchangeRateAPIEndpoint = "https://api.exchangerate-api.com"
)

// NewExchangeRateAPI builds the keyless v4 adapter: GET /v4/latest/{BASE}.
func NewExchangeRateAPI(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = ExchangeRateAPIName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = ExchangeRateAPIEndpoint
	}
	return newSource(cfg, hc, func(c Config, p provider.Pair) string {
		return fmt.Sprintf("%s/v4/latest/%s", c.Endpoint, url.PathEscape(p.Base))
	}, normalize.RatesTable)
}
