package telemetry

import (
	"time"

	"github.com/armon/go-metrics"
)

const (
	providerMetricsPrefix  = "provider"
	resolverMetricsPrefix  = "resolver"
	channelMetricsPrefix   = "channel"
	schedulerMetricsPrefix = "scheduler"
)

func IncrProviderAttempt(name string) {
	metrics.IncrCounterWithLabels([]string{providerMetricsPrefix, "attempts"}, 1,
		[]metrics.Label{{Name: "provider", Value: name}})
}

func IncrProviderFailure(name, kind string) {
	metrics.IncrCounterWithLabels([]string{providerMetricsPrefix, "failures"}, 1,
		[]metrics.Label{{Name: "provider", Value: name}, {Name: "kind", Value: kind}})
}

func IncrProviderSuccess(name string) {
	metrics.IncrCounterWithLabels([]string{providerMetricsPrefix, "successes"}, 1,
		[]metrics.Label{{Name: "provider", Value: name}})
}

// IncrExhausted counts resolutions where every provider in the chain failed.
func IncrExhausted(chain string) {
	metrics.IncrCounterWithLabels([]string{resolverMetricsPrefix, "exhausted"}, 1,
		[]metrics.Label{{Name: "chain", Value: chain}})
}

func MeasureResolve(start time.Time) {
	metrics.MeasureSince([]string{resolverMetricsPrefix, "duration"}, start)
}

func SetConnectedClients(n int) {
	metrics.SetGauge([]string{channelMetricsPrefix, "clients"}, float32(n))
}

func IncrPublished(event string) {
	metrics.IncrCounterWithLabels([]string{channelMetricsPrefix, "published"}, 1,
		[]metrics.Label{{Name: "event", Value: event}})
}

func IncrCycle(ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	metrics.IncrCounterWithLabels([]string{schedulerMetricsPrefix, "cycles"}, 1,
		[]metrics.Label{{Name: "status", Value: status}})
}
