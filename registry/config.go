package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arloliu/go-instrument/laser"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/motion"
	"github.com/arloliu/go-instrument/power"
	"github.com/arloliu/go-instrument/telemetry"
	"gopkg.in/yaml.v3"
)

// EnvLogLevel overrides the log level of a loaded configuration.
const EnvLogLevel = "INSTRUMENT_LOG_LEVEL"

// Config describes the devices of an instrument.
type Config struct {
	LogLevel  string            `yaml:"log_level,omitempty"`
	Lasers    []LaserConfig     `yaml:"lasers,omitempty"`
	Axes      []AxisConfig      `yaml:"axes,omitempty"`
	Outlets   []OutletConfig    `yaml:"outlets,omitempty"`
	Telemetry *TelemetryConfig  `yaml:"telemetry,omitempty"`
	Sequences map[string][]Step `yaml:"sequences,omitempty"`
}

// LaserConfig describes one laser.
type LaserConfig struct {
	Name         string        `yaml:"name"`
	Link         LinkParams    `yaml:"link"`
	Settle       time.Duration `yaml:"settle,omitempty"`
	ModeAttempts int           `yaml:"mode_attempts,omitempty"`
}

// AxisConfig describes one motion axis. The timing fields apply to the
// controller and are taken from the first axis of each port.
type AxisConfig struct {
	ID                int           `yaml:"id"`
	Name              string        `yaml:"name"`
	Link              LinkParams    `yaml:"link"`
	CompletionTimeout time.Duration `yaml:"completion_timeout,omitempty"`
	PollInterval      time.Duration `yaml:"poll_interval,omitempty"`
}

// OutletConfig describes one power outlet. The timing fields apply to the
// unit and are taken from the first outlet of each port.
type OutletConfig struct {
	ID            int           `yaml:"id"`
	Name          string        `yaml:"name"`
	Link          LinkParams    `yaml:"link"`
	PromptTimeout time.Duration `yaml:"prompt_timeout,omitempty"`
	MaxResync     *int          `yaml:"max_resync,omitempty"`
}

// TelemetryConfig describes the telemetry board.
type TelemetryConfig struct {
	Link       LinkParams    `yaml:"link"`
	Attempts   int           `yaml:"attempts,omitempty"`
	RetryDelay time.Duration `yaml:"retry_delay,omitempty"`
}

// LoadConfig reads a YAML configuration file. See ParseConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration. Unknown keys are rejected, and
// the EnvLogLevel environment variable overrides log_level.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("registry: parse config: %w", err)
	}

	if level, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = level
	}

	if _, ok := logger.ParseLevel(cfg.LogLevel); !ok {
		return nil, fmt.Errorf("registry: unknown log level %q", cfg.LogLevel)
	}

	return cfg, nil
}

// FromConfig builds a registry holding every device and sequence of cfg.
// Devices are registered lasers first, then axes, outlets and telemetry; on
// error the partially built registry is closed.
func FromConfig(cfg *Config, opts ...Option) (*Registry, error) {
	var pre []Option
	if cfg.LogLevel != "" {
		level, ok := logger.ParseLevel(cfg.LogLevel)
		if !ok {
			return nil, fmt.Errorf("registry: unknown log level %q", cfg.LogLevel)
		}
		pre = append(pre, WithLogger(logger.NewSlog(level, false)))
	}

	r, err := New(append(pre, opts...)...)
	if err != nil {
		return nil, err
	}

	if err := r.load(cfg); err != nil {
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

func (r *Registry) load(cfg *Config) error {
	for _, lc := range cfg.Lasers {
		var opts []laser.Option
		if lc.Settle > 0 {
			opts = append(opts, laser.WithSettle(lc.Settle))
		}

		if lc.ModeAttempts > 0 {
			opts = append(opts, laser.WithModeAttempts(lc.ModeAttempts))
		}

		if _, err := r.AddLaser(lc.Name, lc.Link, opts...); err != nil {
			return fmt.Errorf("registry: laser %q: %w", lc.Name, err)
		}
	}

	for _, ac := range cfg.Axes {
		var opts []motion.Option
		if ac.CompletionTimeout > 0 {
			opts = append(opts, motion.WithCompletionTimeout(ac.CompletionTimeout))
		}

		if ac.PollInterval > 0 {
			opts = append(opts, motion.WithPollInterval(ac.PollInterval))
		}

		if _, err := r.AddAxis(ac.ID, ac.Name, ac.Link, opts...); err != nil {
			return fmt.Errorf("registry: axis %q: %w", ac.Name, err)
		}
	}

	for _, oc := range cfg.Outlets {
		var opts []power.Option
		if oc.PromptTimeout > 0 {
			opts = append(opts, power.WithPromptTimeout(oc.PromptTimeout))
		}

		if oc.MaxResync != nil {
			opts = append(opts, power.WithMaxResync(*oc.MaxResync))
		}

		if _, err := r.AddOutlet(oc.ID, oc.Name, oc.Link, opts...); err != nil {
			return fmt.Errorf("registry: outlet %q: %w", oc.Name, err)
		}
	}

	if tc := cfg.Telemetry; tc != nil {
		var opts []telemetry.Option
		if tc.Attempts > 0 {
			opts = append(opts, telemetry.WithAttempts(tc.Attempts))
		}

		if tc.RetryDelay > 0 {
			opts = append(opts, telemetry.WithRetryDelay(tc.RetryDelay))
		}

		if _, err := r.SetTelemetry(tc.Link, opts...); err != nil {
			return fmt.Errorf("registry: telemetry: %w", err)
		}
	}

	for name, steps := range cfg.Sequences {
		if _, err := r.DefineSequence(name, steps...); err != nil {
			return err
		}
	}

	return nil
}
