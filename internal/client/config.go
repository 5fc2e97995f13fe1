package client

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds chat client settings.
type Config struct {
	Addr     string `env:"CROISSANT_CLIENT_ADDR" envDefault:"localhost:8080"`
	Initials string `env:"CROISSANT_CLIENT_INITIALS"`
}

// ParseConfig reads the environment, then flags from args.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Server host:port")
	fs.StringVar(&cfg.Initials, "initials", cfg.Initials, "Initials used when joining a pong room")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	return cfg, nil
}
