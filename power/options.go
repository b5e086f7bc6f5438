package power

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
)

// Default unit parameters.
const (
	DefaultBaudRate      = 9600
	DefaultReadTimeout   = 500 * time.Millisecond
	DefaultPromptTimeout = 10 * time.Second
	DefaultPollInterval  = 50 * time.Millisecond
	DefaultPromptSettle  = 200 * time.Millisecond
	DefaultMaxResync     = 3

	MaxPromptTimeout = 5 * time.Minute
	MaxPollInterval  = 5 * time.Second
	MaxPromptSettle  = 5 * time.Second
	MaxResync        = 20
)

type options struct {
	promptTimeout time.Duration
	pollInterval  time.Duration
	promptSettle  time.Duration
	maxResync     int
	logger        logger.Logger
}

func defaultOptions() *options {
	return &options{
		promptTimeout: DefaultPromptTimeout,
		pollInterval:  DefaultPollInterval,
		promptSettle:  DefaultPromptSettle,
		maxResync:     DefaultMaxResync,
		logger:        logger.GetLogger(),
	}
}

// Option is a functional option for configuring a PDU.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithPromptTimeout bounds each wait for the prompt or the confirmation
// question, in (0, 5m].
func WithPromptTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 || d > MaxPromptTimeout {
			return fmt.Errorf("power: prompt timeout %v out of range (0, %v]", d, MaxPromptTimeout)
		}
		o.promptTimeout = d

		return nil
	})
}

// WithPollInterval sets the delay between reads while waiting for a marker, in [0, 5s].
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < 0 || d > MaxPollInterval {
			return fmt.Errorf("power: poll interval %v out of range [0, %v]", d, MaxPollInterval)
		}
		o.pollInterval = d

		return nil
	})
}

// WithPromptSettle sets the pause after the prompt appeared, in [0, 5s].
func WithPromptSettle(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < 0 || d > MaxPromptSettle {
			return fmt.Errorf("power: prompt settle %v out of range [0, %v]", d, MaxPromptSettle)
		}
		o.promptSettle = d

		return nil
	})
}

// WithMaxResync sets how many times a command answered with an error marker
// is resent, in [0, 20].
func WithMaxResync(n int) Option {
	return optFunc(func(o *options) error {
		if n < 0 || n > MaxResync {
			return fmt.Errorf("power: max resync %d out of range [0, %d]", n, MaxResync)
		}
		o.maxResync = n

		return nil
	})
}

// WithLogger sets the logger for the unit and its outlets.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("power: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}

// LinkOptions returns the serial parameters of the unit, to be passed to
// link.NewConfig before any caller-supplied overrides.
func LinkOptions() []link.Option {
	return []link.Option{
		link.WithBaudRate(DefaultBaudRate),
		link.WithReadTimeout(DefaultReadTimeout),
	}
}
