// Package scheduler periodically resolves the tracked pairs and broadcasts the results.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"ratefeed/internal/aggregate"
	"ratefeed/internal/channel"
	"ratefeed/internal/provider"
	"ratefeed/internal/telemetry"
)

// DefaultInterval is the pause between the end of one cycle and the start of the next.
const DefaultInterval = 30 * time.Second

// DefaultPairs are tracked when no pairs are configured.
var DefaultPairs = []provider.Pair{
	provider.NewPair("AED", "INR"),
	provider.NewPair("AED", "MYR"),
	provider.NewPair("AED", "USD"),
	provider.NewPair("USD", "INR"),
}

type State int32

const (
	Idle State = iota
	Resolving
	Publishing
	Sleeping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Publishing:
		return "publishing"
	case Sleeping:
		return "sleeping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Update is the payload of a per-pair currency_update.
type Update struct {
	Type string         `json:"type"`
	Data provider.Quote `json:"data"`
}

// Failure is broadcast as currency_update when a cycle blows up.
type Failure struct {
	Error  string          `json:"error"`
	Status provider.Status `json:"status"`
}

type Config struct {
	Pairs    []provider.Pair
	Interval time.Duration
}

type Scheduler struct {
	resolve   aggregate.ResolveFunc
	publisher channel.Publisher
	pairs     []provider.Pair
	interval  time.Duration
	logger    hclog.Logger
	now       func() time.Time

	state  atomic.Int32
	cycles atomic.Uint64
}

func New(cfg Config, resolve aggregate.ResolveFunc, publisher channel.Publisher, logger hclog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = DefaultPairs
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Scheduler{
		resolve:   resolve,
		publisher: publisher,
		pairs:     cfg.Pairs,
		interval:  cfg.Interval,
		logger:    logger.Named("scheduler"),
		now:       time.Now,
	}
}

// State reports what the loop is doing right now.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Cycles returns how many cycles have completed, failed ones included.
func (s *Scheduler) Cycles() uint64 { return s.cycles.Load() }

// Pairs returns the tracked pairs.
func (s *Scheduler) Pairs() []provider.Pair { return s.pairs }

// Run loops until ctx is cancelled. The first cycle starts immediately; cycles never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("broadcast loop started", "interval", s.interval, "pairs", len(s.pairs))
	defer func() {
		s.state.Store(int32(Stopped))
		s.logger.Info("broadcast loop stopped", "cycles", s.Cycles())
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.RunOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		s.state.Store(int32(Sleeping))
		timer.Reset(s.interval)
	}
}

// RunOnce performs a single resolve-and-publish cycle. A panic is turned into an error broadcast.
func (s *Scheduler) RunOnce(ctx context.Context) {
	defer s.cycles.Add(1)
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("broadcast cycle failed", "panic", v)
			telemetry.IncrCycle(false)
			s.publisher.Publish(ctx, channel.EventCurrencyUpdate, Failure{
				Error:  fmt.Sprintf("Update failed: %v", v),
				Status: provider.StatusError,
			})
		}
	}()

	s.state.Store(int32(Resolving))
	quotes := aggregate.Collect(ctx, s.resolve, s.pairs)

	s.state.Store(int32(Publishing))
	for _, q := range quotes {
		s.publisher.Publish(ctx, channel.EventCurrencyUpdate, Update{Type: q.Pair.Key(), Data: q})
	}
	s.publisher.Publish(ctx, channel.EventBulkCurrencyUpdate, aggregate.NewBulk(quotes, s.now().UTC()))

	telemetry.IncrCycle(true)
	s.logger.Info("rates broadcast", "rates", aggregate.Summary(quotes))
}
