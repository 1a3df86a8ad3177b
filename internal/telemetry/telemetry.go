package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/armon/go-metrics"
	prometheusMetrics "github.com/armon/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry owns the registry behind the global go-metrics instance.
type Telemetry struct {
	registry *prometheus.Registry
	inmem    *metrics.InmemSink
}

// Setup installs a global go-metrics instance fanning out to an in-memory sink and
// a Prometheus sink backed by a private registry.
func Setup(service string) (*Telemetry, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	inm := metrics.NewInmemSink(10*time.Second, time.Minute)

	promSink, err := prometheusMetrics.NewPrometheusSinkFrom(prometheusMetrics.PrometheusOpts{
		Name:       service + "_prometheus_sink",
		Expiration: 0,
		Registerer: registry,
	})
	if err != nil {
		return nil, fmt.Errorf("prometheus sink: %w", err)
	}

	metricsConf := metrics.DefaultConfig(service)
	metricsConf.EnableHostname = false
	metricsConf.EnableRuntimeMetrics = false

	if _, err := metrics.NewGlobal(metricsConf, metrics.FanoutSink{inm, promSink}); err != nil {
		return nil, fmt.Errorf("metrics global: %w", err)
	}
	return &Telemetry{registry: registry, inmem: inm}, nil
}

// Handler serves the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		t.registry, promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}),
	)
}

// Inmem exposes the in-memory sink, mostly for tests and debugging dumps.
func (t *Telemetry) Inmem() *metrics.InmemSink { return t.inmem }
