package yahoo

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"

	"ratefeed/internal/provider"
)

// Chart is the subset of the /v8/finance/chart response we consume.
type Chart struct {
	Meta       Meta
	DayHigh    *float64
	DayLow     *float64
	Timestamps []int64
}

// Meta carries the live price fields.
type Meta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	PreviousClose      float64 `json:"previousClose"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta       Meta    `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High []*float64 `json:"high"`
					Low  []*float64 `json:"low"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetChart fetches the chart for ticker. rng and interval are passed through when set
// (e.g. "1d", "1d" for today's candle); empty values ask for the live meta only.
func (c *Client) GetChart(ctx context.Context, ticker, rng, interval string, opts ...Option) (*Chart, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	if query == nil {
		query = url.Values{}
	}
	if rng != "" {
		query.Set("range", rng)
	}
	if interval != "" {
		query.Set("interval", interval)
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s", override.baseURL, url.PathEscape(ticker))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		if provider.IsTimeout(err) {
			return nil, fmt.Errorf("performing request: %v: %w", err, provider.ErrProviderTimeout)
		}
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("unknown ticker %q: %w", ticker, provider.ErrFieldMissing)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited: %w", provider.ErrMalformedResponse)
	default:
		return nil, fmt.Errorf("unexpected status code: %d: %w", res.StatusCode, provider.ErrMalformedResponse)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading chart response: %w", err)
	}
	var decoded chartResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding chart response: %v: %w", err, provider.ErrMalformedResponse)
	}
	if e := decoded.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart error %s: %s: %w", e.Code, e.Description, provider.ErrMalformedResponse)
	}
	if len(decoded.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result: %w", provider.ErrFieldMissing)
	}

	r := decoded.Chart.Result[0]
	chart := &Chart{Meta: r.Meta, Timestamps: r.Timestamp}
	if len(r.Indicators.Quote) > 0 {
		q := r.Indicators.Quote[0]
		chart.DayHigh = last(q.High)
		chart.DayLow = last(q.Low)
	}
	return chart, nil
}

// last returns the most recent non-null sample.
func last(vs []*float64) *float64 {
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i] != nil {
			return vs[i]
		}
	}
	return nil
}
