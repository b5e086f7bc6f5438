package laser

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/txn"
)

// Default laser parameters.
const (
	DefaultBaudRate     = 57600
	DefaultParity       = link.ParityEven
	DefaultReadTimeout  = 2 * time.Second
	DefaultSettle       = 500 * time.Millisecond
	DefaultModeAttempts = 3

	MaxModeAttempts = 10
)

type options struct {
	settle       txn.Settle
	modeAttempts int
	logger       logger.Logger
}

func defaultOptions() *options {
	return &options{
		settle:       txn.FixedSettle(DefaultSettle),
		modeAttempts: DefaultModeAttempts,
		logger:       logger.GetLogger(),
	}
}

// Option is a functional option for configuring a Laser.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithSettle sets the fixed delay between writing a command and reading its answer.
func WithSettle(d time.Duration) Option {
	return WithSettleStrategy(txn.FixedSettle(d))
}

// WithSettleStrategy sets how the driver waits for the laser's answer.
func WithSettleStrategy(s txn.Settle) Option {
	return optFunc(func(o *options) error {
		if s == nil {
			return errors.New("laser: settle strategy must not be nil")
		}
		o.settle = s

		return nil
	})
}

// WithModeAttempts sets how many times SetMode applies the full parameter
// sequence before giving up, in [1, 10].
func WithModeAttempts(n int) Option {
	return optFunc(func(o *options) error {
		if n < 1 || n > MaxModeAttempts {
			return fmt.Errorf("laser: mode attempts %d out of range [1, %d]", n, MaxModeAttempts)
		}
		o.modeAttempts = n

		return nil
	})
}

// WithLogger sets the logger for the laser.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("laser: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}

// LinkOptions returns the serial parameters of the laser, to be passed to
// link.NewConfig before any caller-supplied overrides.
func LinkOptions() []link.Option {
	return []link.Option{
		link.WithBaudRate(DefaultBaudRate),
		link.WithParity(DefaultParity),
		link.WithReadTimeout(DefaultReadTimeout),
	}
}
