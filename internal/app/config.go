package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"croissant/server/internal/observability"
	"croissant/server/logging"
)

// Config holds server configuration read from the environment and flags.
type Config struct {
	HTTPAddr        string        `env:"CROISSANT_HTTP_ADDR" envDefault:":8080"`
	AssetsDir       string        `env:"CROISSANT_ASSETS_DIR"`
	LogSinks        []string      `env:"CROISSANT_LOG_SINKS" envDefault:"console" envSeparator:","`
	LogJSONPath     string        `env:"CROISSANT_LOG_JSON_PATH"`
	LogLevel        string        `env:"CROISSANT_LOG_LEVEL" envDefault:"info"`
	TickInterval    time.Duration `env:"CROISSANT_TICK_INTERVAL" envDefault:"16ms"`
	PruneInterval   time.Duration `env:"CROISSANT_PRUNE_INTERVAL" envDefault:"1s"`
	Seed            int64         `env:"CROISSANT_SEED" envDefault:"0"`
	EnablePprof     bool          `env:"CROISSANT_ENABLE_PPROF" envDefault:"false"`
	OTelEndpoint    string        `env:"CROISSANT_OTEL_ENDPOINT"`
	ShutdownTimeout time.Duration `env:"CROISSANT_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if fs == nil {
		return Config{}, errors.New("flag set is required")
	}
	sinks := strings.Join(cfg.LogSinks, ",")
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP and websocket listen address")
	fs.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "Static page directory")
	fs.StringVar(&sinks, "log-sinks", sinks, "Comma separated log sinks (console,json)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Minimum log severity")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "RNG seed for sender labels and serves (0 uses the clock)")
	fs.BoolVar(&cfg.EnablePprof, "pprof", cfg.EnablePprof, "Mount net/http/pprof under /debug/pprof/")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	cfg.LogSinks = splitList(sinks)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration values the server cannot run with.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.PruneInterval <= 0 {
		return fmt.Errorf("prune interval must be positive, got %s", c.PruneInterval)
	}
	if _, err := logging.ParseSeverity(c.LogLevel); err != nil {
		return err
	}
	for _, sink := range c.LogSinks {
		switch sink {
		case sinkConsole, sinkJSON:
		default:
			return fmt.Errorf("unknown log sink %q", sink)
		}
	}
	return nil
}

// Observability returns the observability toggles carried by c.
func (c Config) Observability() observability.Config {
	return observability.Config{EnablePprof: c.EnablePprof, OTelEndpoint: c.OTelEndpoint}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
