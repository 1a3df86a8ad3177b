// Package app wires configuration, providers and the outward surfaces into one process-wide object.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/sourcegraph/conc"

	"ratefeed/internal/channel"
	"ratefeed/internal/config"
	"ratefeed/internal/httpapi"
	"ratefeed/internal/httpx"
	"ratefeed/internal/provider"
	"ratefeed/internal/provider/cache"
	"ratefeed/internal/provider/fx"
	"ratefeed/internal/provider/yahoo"
	"ratefeed/internal/provider/yahooadapter"
	"ratefeed/internal/resolver"
	"ratefeed/internal/scheduler"
	"ratefeed/internal/telemetry"
)

const (
	shutdownTimeout          = 30 * time.Second
	serverShutdownTimeout    = 5 * time.Second
	channelShutdownTimeout   = 5 * time.Second
	lifecycleShutdownTimeout = 10 * time.Second
)

// App holds everything the server shares between requests and the broadcast loop.
type App struct {
	Config    config.Config
	Logger    hclog.Logger
	Telemetry *telemetry.Telemetry
	Resolver  *resolver.Resolver
	Hub       *channel.Hub
	Scheduler *scheduler.Scheduler
	API       *httpapi.API
	Server    *http.Server
}

// New builds the App. Telemetry may be nil, in which case /metrics is not served.
func New(cfg config.Config, tel *telemetry.Telemetry, logger hclog.Logger) (*App, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	adapters := BuildAdapters(cfg, logger)
	if len(adapters) == 0 {
		return nil, errors.New("no providers enabled")
	}

	res := resolver.New(adapters, logger)
	hub := channel.NewHub(channel.Options{}, logger)
	sched := scheduler.New(scheduler.Config{
		Pairs:    cfg.Pairs(),
		Interval: cfg.BroadcastInterval(),
	}, res.Resolve, hub, logger)

	opts := httpapi.Options{Websocket: hub}
	if tel != nil {
		opts.Metrics = tel.Handler()
	}
	api := httpapi.New(res, hub, opts, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tel,
		Resolver:  res,
		Hub:       hub,
		Scheduler: sched,
		API:       api,
		Server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// BuildAdapters returns the enabled providers in chain order: exchangerate-api.com, fixer.io,
// currencyapi.com, frankfurter.app, then Yahoo Finance for equities.
func BuildAdapters(cfg config.Config, logger hclog.Logger) []provider.Adapter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	timeout := cfg.RequestTimeout()
	hc := httpx.New(timeout)

	var adapters []provider.Adapter
	add := func(a provider.Adapter) {
		adapters = append(adapters, cache.Wrap(a, cfg.CacheTTL(), cfg.Server.CacheMaxItems))
	}

	if p := cfg.ExchangeRateAPI; p.Enabled {
		add(fx.NewExchangeRateAPI(fx.Config{Endpoint: p.Endpoint, APIKey: p.APIKey, Timeout: timeout}, hc))
	}
	if p := cfg.Fixer; p.Enabled {
		add(fx.NewFixer(fx.Config{Endpoint: p.Endpoint, APIKey: p.APIKey, Timeout: timeout}, hc))
	}
	if p := cfg.CurrencyAPI; p.Enabled {
		if p.APIKey == "" {
			logger.Warn("currencyapi.com enabled but CURRENCYAPI_API_KEY not set; skipping")
		} else {
			add(fx.NewCurrencyAPI(fx.Config{Endpoint: p.Endpoint, APIKey: p.APIKey, Timeout: timeout}, hc))
		}
	}
	if p := cfg.Frankfurter; p.Enabled {
		add(fx.NewFrankfurter(fx.Config{Endpoint: p.Endpoint, APIKey: p.APIKey, Timeout: timeout}, hc))
	}
	if p := cfg.Yahoo; p.Enabled {
		opts := []yahoo.Option{yahoo.WithHTTPClient(hc.HTTP)}
		if p.Endpoint != "" {
			opts = append(opts, yahoo.WithBaseURL(p.Endpoint))
		}
		add(yahooadapter.New(yahooadapter.Config{Timeout: timeout}, yahoo.NewClient(opts...), logger))
	}

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	logger.Info("providers configured", "chain", names, "cache_ttl", cfg.CacheTTL())
	return adapters
}

// Run serves HTTP and runs the broadcast loop until ctx is cancelled, then shuts down in order.
func (a *App) Run(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lifecycle conc.WaitGroup
	serveErr := make(chan error, 1)

	lifecycle.Go(func() {
		a.Logger.Info("server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	})
	lifecycle.Go(func() { a.Scheduler.Run(loopCtx) })

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received, initiating graceful shutdown")
	case runErr = <-serveErr:
		a.Logger.Error("server failed", "error", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	start := time.Now()
	a.shutdown(shutdownCtx, cancel, &lifecycle)
	a.Logger.Info("shutdown completed", "took", time.Since(start))
	return runErr
}

func (a *App) shutdown(ctx context.Context, cancelLoop context.CancelFunc, lifecycle *conc.WaitGroup) {
	step := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		a.Logger.Info("shutdown: " + name)
		if err := fn(stepCtx); err != nil {
			a.Logger.Warn("shutdown step failed", "step", name, "error", err)
		}
	}

	step("stopping http server", serverShutdownTimeout, func(stepCtx context.Context) error {
		return a.Server.Shutdown(stepCtx)
	})

	cancelLoop()

	step("disconnecting websocket clients", channelShutdownTimeout, func(stepCtx context.Context) error {
		return waitFor(stepCtx, a.Hub.Close)
	})

	step("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
		return waitFor(stepCtx, lifecycle.Wait)
	})
}

// waitFor runs fn and gives up on it when ctx ends first.
func waitFor(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out: %w", ctx.Err())
	}
}
