package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

type Config struct {
	Name          string
	Debug         bool
	JSONLogFormat bool
	Output        io.Writer // default: stderr
}

// New builds the root logger; components derive their own with Named.
func New(cfg Config) hclog.Logger {
	level := hclog.Info
	if cfg.Debug {
		level = hclog.Debug
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            cfg.Name,
		Level:           level,
		Output:          out,
		JSONFormat:      cfg.JSONLogFormat,
		IncludeLocation: cfg.Debug,
		TimeFormat:      "2006-01-02 15:04:05",
	})
}
