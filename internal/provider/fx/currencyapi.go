package fx

import (
	"fmt"
	"net/url"

	"ratefeed/internal/httpx"
	"ratefeed/internal/normalize"
	"ratefeed/internal/provider"
)

const (
	CurrencyAPIName     = "currencyapi.com"
	CurrencyAPIEndpoint = "https://api.currencyapi.com"
)

// NewCurrencyAPI builds the currencyapi.com v3 adapter. The service rejects keyless calls,
// so callers should only build it when an API key is configured.
func NewCurrencyAPI(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = CurrencyAPIName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = CurrencyAPIEndpoint
	}
	return newSource(cfg, hc, func(c Config, p provider.Pair) string {
		q := url.Values{}
		q.Set("apikey", c.APIKey)
		q.Set("base_currency", p.Base)
		q.Set("currencies", p.Target)
		return fmt.Sprintf("%s/v3/latest?%s", c.Endpoint, q.Encode())
	}, normalize.CurrencyAPI)
}
