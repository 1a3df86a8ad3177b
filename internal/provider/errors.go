package provider

import (
	"context"
	"errors"
	"net"
)

// ExhaustedCurrency is the error text callers see when the currency chain has nothing to offer.
const ExhaustedCurrency = "All currency APIs failed"

var (
	// ErrProviderTimeout is returned when a provider does not answer within its timeout.
	ErrProviderTimeout = errors.New("provider timeout")
	// ErrMalformedResponse covers bad status codes, undecodable bodies and non-numeric rates.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrFieldMissing is returned when the response lacks the requested code.
	ErrFieldMissing = errors.New("rate field missing")
	// ErrAllProvidersExhausted classifies a chain where every provider failed.
	// Quotes carry ExhaustedCurrency as their text instead.
	ErrAllProvidersExhausted = errors.New("all providers failed")
)

// Kind names the taxonomy bucket of err, for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, ErrFieldMissing):
		return "field_missing"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrAllProvidersExhausted):
		return "exhausted"
	default:
		return "transport"
	}
}

// IsTimeout reports whether err came from a deadline, either the context's or the transport's.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrProviderTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
