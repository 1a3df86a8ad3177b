package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ratefeed/internal/provider"
)

type Server struct {
	Port                 string `mapstructure:"PORT" validate:"required,numeric"`
	Debug                bool   `mapstructure:"DEBUG"`
	LogJSON              bool   `mapstructure:"LOG_JSON"`
	RequestTimeoutSec    int    `mapstructure:"REQUEST_TIMEOUT_SEC" validate:"gte=1,lte=120"`
	BroadcastIntervalSec int    `mapstructure:"BROADCAST_INTERVAL_SEC" validate:"gte=1"`
	TrackedPairs         string `mapstructure:"TRACKED_PAIRS" validate:"required"`
	CacheTTLSec          int    `mapstructure:"CACHE_TTL_SEC" validate:"gte=0"`
	CacheMaxItems        int    `mapstructure:"CACHE_MAX_ITEMS" validate:"gte=0"`
}

// Provider is the per-source block; every source shares the same knobs.
type Provider struct {
	Enabled  bool   `validate:"-"`
	Endpoint string `validate:"omitempty,url"`
	APIKey   string `validate:"-"`
}

type Config struct {
	Server          Server
	ExchangeRateAPI Provider
	Fixer           Provider
	CurrencyAPI     Provider
	Frankfurter     Provider
	Yahoo           Provider
}

// providerPrefixes maps env prefixes onto provider blocks.
func (c *Config) providers() map[string]*Provider {
	return map[string]*Provider{
		"EXCHANGERATE_API": &c.ExchangeRateAPI,
		"FIXER":            &c.Fixer,
		"CURRENCYAPI":      &c.CurrencyAPI,
		"FRANKFURTER":      &c.Frankfurter,
		"YAHOO":            &c.Yahoo,
	}
}

func Default() Config {
	return Config{
		Server: Server{
			Port:                 "5000",
			RequestTimeoutSec:    10,
			BroadcastIntervalSec: 30,
			TrackedPairs:         "AED:INR,AED:MYR,AED:USD,USD:INR",
			CacheMaxItems:        1000,
		},
		ExchangeRateAPI: Provider{Enabled: true},
		Fixer:           Provider{Enabled: true},
		CurrencyAPI:     Provider{Enabled: true},
		Frankfurter:     Provider{Enabled: true},
		Yahoo:           Provider{Enabled: true},
	}
}

// Load builds the configuration from, in increasing priority: defaults, the config file at path
// (or CONFIG_FILE, or ./config.json when present), a .env file, and the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, cfg)

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		}
	}
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg.Server); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	for prefix, p := range cfg.providers() {
		p.Enabled = v.GetBool(prefix + "_ENABLED")
		p.Endpoint = strings.TrimRight(v.GetString(prefix+"_ENDPOINT"), "/")
		p.APIKey = v.GetString(prefix + "_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("PORT", cfg.Server.Port)
	v.SetDefault("DEBUG", cfg.Server.Debug)
	v.SetDefault("LOG_JSON", cfg.Server.LogJSON)
	v.SetDefault("REQUEST_TIMEOUT_SEC", cfg.Server.RequestTimeoutSec)
	v.SetDefault("BROADCAST_INTERVAL_SEC", cfg.Server.BroadcastIntervalSec)
	v.SetDefault("TRACKED_PAIRS", cfg.Server.TrackedPairs)
	v.SetDefault("CACHE_TTL_SEC", cfg.Server.CacheTTLSec)
	v.SetDefault("CACHE_MAX_ITEMS", cfg.Server.CacheMaxItems)
	for prefix, p := range cfg.providers() {
		v.SetDefault(prefix+"_ENABLED", p.Enabled)
		v.SetDefault(prefix+"_ENDPOINT", p.Endpoint)
		v.SetDefault(prefix+"_API_KEY", p.APIKey)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that TRACKED_PAIRS parses.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := ParsePairs(c.Server.TrackedPairs); err != nil {
		return fmt.Errorf("invalid config: TRACKED_PAIRS: %w", err)
	}
	return nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

func (c Config) BroadcastInterval() time.Duration {
	return time.Duration(c.Server.BroadcastIntervalSec) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Server.CacheTTLSec) * time.Second
}

// Pairs returns the tracked pairs; Validate has already vetted them.
func (c Config) Pairs() []provider.Pair {
	pairs, _ := ParsePairs(c.Server.TrackedPairs)
	return pairs
}

// ParsePairs reads "AED:INR,USD:INR" into pairs, in order.
func ParsePairs(s string) ([]provider.Pair, error) {
	var out []provider.Pair
	for _, item := range splitCSV(s) {
		base, target, ok := strings.Cut(item, ":")
		p := provider.NewPair(base, target)
		if !ok || p.Base == "" || p.Target == "" {
			return nil, fmt.Errorf("malformed pair %q, want BASE:TARGET", item)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New("no pairs")
	}
	return out, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
