// Package person parses person service flags and launches the service.
package person

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/personql/internal/platform/cmd"
	server "github.com/louisbranch/personql/internal/services/person/app"
)

// Config holds person command configuration.
type Config struct {
	HTTPAddr   string `env:"PERSONQL_HTTP_ADDR" envDefault:":8080"`
	HealthAddr string `env:"PERSONQL_HEALTH_ADDR" envDefault:":8081"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The person HTTP server address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "The gRPC health server address (empty disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the person HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePerson, func(ctx context.Context) error {
		return server.Run(ctx, cfg.HTTPAddr, cfg.HealthAddr)
	})
}
