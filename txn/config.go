package txn

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instrument/logger"
)

// Default transaction parameters.
const (
	DefaultTerminator       = "\r"
	DefaultSettle           = 500 * time.Millisecond
	DefaultMaxRead          = 255
	DefaultInterByteTimeout = 50 * time.Millisecond

	MaxSettle           = 30 * time.Second
	MaxReadSize         = 4096
	MaxInterByteTimeout = 5 * time.Second
)

// Config holds the per-device transaction parameters.
type Config struct {
	tag              string
	terminator       string
	settle           Settle
	maxRead          int
	interByteTimeout time.Duration
	logger           logger.Logger
}

// NewConfig creates a transaction configuration.
//
// The defaults are a "\r" terminator, a fixed 500ms settle, a 255 byte read
// bound and a 50ms inter-byte timeout.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		tag:              "device",
		terminator:       DefaultTerminator,
		settle:           FixedSettle(DefaultSettle),
		maxRead:          DefaultMaxRead,
		interByteTimeout: DefaultInterByteTimeout,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Tag returns the device tag used in audit records.
func (cfg *Config) Tag() string { return cfg.tag }

// Terminator returns the line terminator appended to every command.
func (cfg *Config) Terminator() string { return cfg.terminator }

// Settle returns the settle strategy.
func (cfg *Config) Settle() Settle { return cfg.settle }

// MaxRead returns the maximum number of bytes read per response.
func (cfg *Config) MaxRead() int { return cfg.maxRead }

// InterByteTimeout returns the silence that ends a response once its first bytes arrived.
func (cfg *Config) InterByteTimeout() time.Duration { return cfg.interByteTimeout }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithDeviceTag sets the tag identifying the device in audit records.
func WithDeviceTag(tag string) Option {
	return optFunc(func(cfg *Config) error {
		if tag == "" {
			return errors.New("txn: device tag must not be empty")
		}
		cfg.tag = tag

		return nil
	})
}

// WithTerminator sets the line terminator appended to every command.
func WithTerminator(term string) Option {
	return optFunc(func(cfg *Config) error {
		if term == "" {
			return errors.New("txn: terminator must not be empty")
		}
		cfg.terminator = term

		return nil
	})
}

// WithSettle sets the strategy used to wait for the device's answer.
func WithSettle(s Settle) Option {
	return optFunc(func(cfg *Config) error {
		if s == nil {
			return errors.New("txn: settle strategy must not be nil")
		}
		if err := s.validate(); err != nil {
			return err
		}
		cfg.settle = s

		return nil
	})
}

// WithMaxRead sets the maximum number of bytes read per response, in [1, 4096].
func WithMaxRead(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxReadSize {
			return fmt.Errorf("txn: max read %d out of range [1, %d]", n, MaxReadSize)
		}
		cfg.maxRead = n

		return nil
	})
}

// WithInterByteTimeout sets the silence that ends a response, in (0, 5s].
func WithInterByteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxInterByteTimeout {
			return fmt.Errorf("txn: inter-byte timeout %v out of range (0, %v]", d, MaxInterByteTimeout)
		}
		cfg.interByteTimeout = d

		return nil
	})
}

// WithLogger sets the logger used for audit records.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("txn: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
