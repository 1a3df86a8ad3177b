// Package httpapi exposes conversions, bulk rates and diagnostics over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"

	"ratefeed/internal/aggregate"
	"ratefeed/internal/channel"
	"ratefeed/internal/provider"
)

// AllRatesBase and AllRatesTargets define GET /api/rates/all-aed.
const AllRatesBase = "AED"

var AllRatesTargets = []string{"INR", "MYR", "USD"}

// resolveBudget bounds a request that walks the whole chain.
const resolveBudget = 45 * time.Second

var currencyCode = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Resolver is the part of the resolver the HTTP surface needs.
type Resolver interface {
	Resolve(ctx context.Context, pair provider.Pair) provider.Quote
	ResolveEquity(ctx context.Context, ticker, label string) provider.Quote
	Probe(ctx context.Context) map[string]string
}

type Options struct {
	// Websocket handles /ws; nil leaves the route unregistered.
	Websocket http.Handler
	// Metrics handles /metrics; nil leaves the route unregistered.
	Metrics        http.Handler
	AllowedOrigins []string
}

type API struct {
	resolver  Resolver
	publisher channel.Publisher
	logger    hclog.Logger
	handler   http.Handler
	now       func() time.Time
}

// endpoint is one route; Methods empty means GET.
type endpoint struct {
	Path    string
	Methods []string
	Handler http.HandlerFunc
}

func New(resolver Resolver, publisher channel.Publisher, opts Options, logger hclog.Logger) *API {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	api := &API{
		resolver:  resolver,
		publisher: publisher,
		logger:    logger.Named("api"),
		now:       time.Now,
	}

	router := mux.NewRouter().StrictSlash(true)
	for _, ep := range api.endpoints() {
		methods := ep.Methods
		if len(methods) == 0 {
			methods = []string{http.MethodGet}
		}
		router.HandleFunc(ep.Path, api.endpointWrapper(ep.Path, ep.Handler)).Methods(methods...)
		api.logger.Debug("Registered api endpoint", "endpoint", ep.Path, "methods", methods)
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	if opts.Websocket != nil {
		router.Handle("/ws", opts.Websocket)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-Id"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{api.logger}),
		handlers.PrintRecoveryStack(false),
	)
	api.handler = recovery(cors(handlers.CompressHandler(router)))
	return api
}

// Handler returns the fully wrapped router.
func (a *API) Handler() http.Handler { return a.handler }

func (a *API) endpoints() []endpoint {
	getPost := []string{http.MethodGet, http.MethodPost}
	return []endpoint{
		{Path: "/healthz", Handler: a.healthz},
		{Path: "/api/convert/aed-to-inr", Methods: getPost, Handler: a.convertFixed("AED", "INR")},
		{Path: "/api/convert/aed-to-myr", Methods: getPost, Handler: a.convertFixed("AED", "MYR")},
		{Path: "/api/convert/aed-to-usd", Methods: getPost, Handler: a.convertFixed("AED", "USD")},
		{Path: "/api/convert/usd-to-inr", Handler: a.convertFixed("USD", "INR")},
		{Path: "/api/convert/{base}/{target}", Handler: a.convertAny},
		{Path: "/api/equity/{ticker}", Handler: a.equity},
		{Path: "/api/rates/all-aed", Handler: a.allRates},
		{Path: "/test-connection", Handler: a.testConnection},
	}
}

func (a *API) endpointWrapper(path string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		a.logger.Debug("endpoint called", "path", path, "url", r.URL, "request_id", id)
		handler(w, r)
		a.logger.Debug("endpoint call finished", "path", path, "request_id", id, "took", time.Since(start))
	}
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) convertFixed(base, target string) http.HandlerFunc {
	pair := provider.NewPair(base, target)
	return func(w http.ResponseWriter, r *http.Request) {
		a.convert(w, r, pair)
	}
}

func (a *API) convertAny(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	base, target := vars["base"], vars["target"]
	if !currencyCode.MatchString(base) || !currencyCode.MatchString(target) {
		WriteErrorResponse(w, r, http.StatusBadRequest,
			fmt.Errorf("currency codes must be three letters, got %q and %q", base, target), a.logger)
		return
	}
	a.convert(w, r, provider.NewPair(base, target))
}

// convert resolves pair, broadcasts the outcome and answers 200 or 500.
func (a *API) convert(w http.ResponseWriter, r *http.Request, pair provider.Pair) {
	ctx, cancel := context.WithTimeout(r.Context(), resolveBudget)
	defer cancel()

	q := a.resolver.Resolve(ctx, pair)
	// Subscribers get the update even if this caller has already hung up.
	a.publisher.Publish(context.WithoutCancel(r.Context()), channel.EventCurrencyUpdate, q)
	WriteResponse(w, r, quoteStatus(q), q, a.logger)
}

func (a *API) equity(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(mux.Vars(r)["ticker"])
	if ticker == "" || len(ticker) > 16 {
		WriteErrorResponse(w, r, http.StatusBadRequest, fmt.Errorf("invalid ticker %q", ticker), a.logger)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), resolveBudget)
	defer cancel()

	q := a.resolver.ResolveEquity(ctx, ticker, r.URL.Query().Get("label"))
	WriteResponse(w, r, quoteStatus(q), q, a.logger)
}

// allRates always answers 200; per-pair failures travel inside the body.
func (a *API) allRates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), resolveBudget)
	defer cancel()

	pairs := make([]provider.Pair, 0, len(AllRatesTargets))
	for _, t := range AllRatesTargets {
		pairs = append(pairs, provider.NewPair(AllRatesBase, t))
	}
	quotes := aggregate.Collect(ctx, a.resolver.Resolve, pairs)
	WriteResponse(w, r, http.StatusOK, aggregate.NewAllRates(AllRatesBase, quotes, a.now()), a.logger)
}

func (a *API) testConnection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), resolveBudget)
	defer cancel()
	WriteResponse(w, r, http.StatusOK, a.resolver.Probe(ctx), a.logger)
}

func quoteStatus(q provider.Quote) int {
	if q.OK() {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

type recoveryLogger struct{ logger hclog.Logger }

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("panic serving request", "panic", fmt.Sprint(v...))
}
