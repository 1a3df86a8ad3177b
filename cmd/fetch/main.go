package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"ratefeed/internal/app"
	"ratefeed/internal/config"
	"ratefeed/internal/logging"
	"ratefeed/internal/provider"
	"ratefeed/internal/resolver"
)

const (
	configFlag  = "config"
	timeoutFlag = "timeout"
	pairsFlag   = "pairs"
	labelFlag   = "label"
	verboseFlag = "verbose"
)

type params struct {
	configPath string
	timeout    time.Duration
	pairs      string
	label      string
	verbose    bool
}

var fetchParams = &params{}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "fetch",
		Short:         "one-shot rate lookups against the configured providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&fetchParams.configPath, configFlag, os.Getenv("CONFIG_FILE"), "path to a config file (optional)")
	root.PersistentFlags().DurationVar(&fetchParams.timeout, timeoutFlag, 60*time.Second, "overall deadline")
	root.PersistentFlags().BoolVarP(&fetchParams.verbose, verboseFlag, "v", false, "log provider attempts to stderr")

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "resolve currency pairs through the fallback chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pairs, err := config.ParsePairs(fetchParams.pairs)
			if err != nil {
				return fmt.Errorf("--%s: %w", pairsFlag, err)
			}
			return withResolver(cmd.Context(), func(ctx context.Context, r *resolver.Resolver) (any, error) {
				out := make(map[string]provider.Quote, len(pairs))
				for _, p := range pairs {
					out[p.Key()] = r.Resolve(ctx, p)
				}
				return out, nil
			}, out)
		},
	}
	resolveCmd.Flags().StringVar(&fetchParams.pairs, pairsFlag, "AED:INR,AED:MYR,AED:USD,USD:INR", "comma-separated BASE:TARGET pairs")

	equityCmd := &cobra.Command{
		Use:   "equity TICKER",
		Short: "look up an equity price through the equity chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResolver(cmd.Context(), func(ctx context.Context, r *resolver.Resolver) (any, error) {
				q := r.ResolveEquity(ctx, args[0], fetchParams.label)
				if !q.OK() {
					return q, fmt.Errorf("%s: %s", q.Currency, q.Error)
				}
				return q, nil
			}, out)
		},
	}
	equityCmd.Flags().StringVar(&fetchParams.label, labelFlag, "", "display label for the ticker")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "check every configured provider once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withResolver(cmd.Context(), func(ctx context.Context, r *resolver.Resolver) (any, error) {
				return r.Probe(ctx), nil
			}, out)
		},
	}

	root.AddCommand(resolveCmd, equityCmd, probeCmd)
	return root
}

// withResolver builds the provider chain from config, runs fn and prints its result as JSON.
func withResolver(ctx context.Context, fn func(context.Context, *resolver.Resolver) (any, error), out io.Writer) error {
	cfg, err := config.Load(fetchParams.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(logging.Config{Name: "fetch", Debug: fetchParams.verbose})
	if !fetchParams.verbose {
		logger.SetLevel(hclog.Error)
	}

	adapters := app.BuildAdapters(cfg, logger)
	if len(adapters) == 0 {
		return fmt.Errorf("no providers configured")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, fetchParams.timeout)
	defer cancel()

	result, runErr := fn(ctx, resolver.New(adapters, logger))
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, string(b))
	return runErr
}
