// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/signalsfoundry/soilcn-simulator/internal/logging"
	"github.com/signalsfoundry/soilcn-simulator/internal/observability"
)

// Prefix is prepended to every simulator environment variable.
const Prefix = "SOILCN_"

// ErrInvalid reports a configuration value outside its allowed range.
var ErrInvalid = errors.New("invalid configuration")

// Config is the process-level configuration of the soilcn command.
type Config struct {
	MaxIterations    int           `env:"MAX_ITERATIONS" envDefault:"1000"`
	Tolerance        float64       `env:"TOLERANCE" envDefault:"1e-7"`
	Workers          int           `env:"WORKERS" envDefault:"1"`
	ProgressInterval time.Duration `env:"PROGRESS_INTERVAL" envDefault:"5s"`
	Pedotransfer     string        `env:"PEDOTRANSFER" envDefault:"halaba"` // halaba | hollis

	OutputDir   string `env:"OUTPUT_DIR" envDefault:"."`
	SQLitePath  string `env:"SQLITE_PATH"`
	MetricsAddr string `env:"METRICS_ADDR"`

	Tracing observability.TracingConfig

	// Logging keeps the unprefixed LOG_LEVEL / LOG_FORMAT names.
	Logging logging.Config `env:"-"`
}

// ParseEnv loads configuration from environment variables using prefix.
func ParseEnv(target any, prefix string) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the simulator configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg, Prefix); err != nil {
		return Config{}, err
	}
	if err := ParseEnv(&cfg.Logging, ""); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges that the environment parser cannot express.
func (c Config) Validate() error {
	switch {
	case c.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalid, c.MaxIterations)
	case c.Tolerance <= 0:
		return fmt.Errorf("%w: tolerance must be positive, got %g", ErrInvalid, c.Tolerance)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	case c.ProgressInterval < 0:
		return fmt.Errorf("%w: progress interval must not be negative", ErrInvalid)
	case c.Pedotransfer != "halaba" && c.Pedotransfer != "hollis":
		return fmt.Errorf("%w: unknown pedotransfer method %q", ErrInvalid, c.Pedotransfer)
	case c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1:
		return fmt.Errorf("%w: tracing sample ratio %g outside [0,1]", ErrInvalid, c.Tracing.SampleRatio)
	}
	return nil
}
