package app

import (
	"flag"
	"io"
	"testing"
	"time"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.TickInterval != 16*time.Millisecond {
		t.Fatalf("expected 16ms tick, got %s", cfg.TickInterval)
	}
	if cfg.PruneInterval != time.Second {
		t.Fatalf("expected 1s prune interval, got %s", cfg.PruneInterval)
	}
	if len(cfg.LogSinks) != 1 || cfg.LogSinks[0] != sinkConsole {
		t.Fatalf("expected console sink, got %v", cfg.LogSinks)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("expected 5s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("CROISSANT_HTTP_ADDR", ":9000")
	t.Setenv("CROISSANT_TICK_INTERVAL", "20ms")
	t.Setenv("CROISSANT_LOG_SINKS", "console, json")
	t.Setenv("CROISSANT_OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := ParseConfig(newFlagSet(), []string{"-addr", ":9100", "-seed", "42", "-pprof"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Fatalf("expected flag to override env, got %q", cfg.HTTPAddr)
	}
	if cfg.TickInterval != 20*time.Millisecond {
		t.Fatalf("expected env tick interval, got %s", cfg.TickInterval)
	}
	if cfg.Seed != 42 {
		t.Fatalf("expected seed 42, got %d", cfg.Seed)
	}
	if len(cfg.LogSinks) != 2 || cfg.LogSinks[1] != sinkJSON {
		t.Fatalf("expected trimmed sinks, got %v", cfg.LogSinks)
	}
	obs := cfg.Observability()
	if !obs.EnablePprof || obs.OTelEndpoint != "http://collector:4318" {
		t.Fatalf("unexpected observability config %+v", obs)
	}
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string][]string{
		"sink":  {"-log-sinks", "console,syslog"},
		"level": {"-log-level", "loud"},
		"flag":  {"-unknown"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseConfig(newFlagSet(), args); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}

	t.Run("tick", func(t *testing.T) {
		t.Setenv("CROISSANT_TICK_INTERVAL", "0s")
		if _, err := ParseConfig(newFlagSet(), nil); err == nil {
			t.Fatalf("expected error for zero tick interval")
		}
	})
}
