package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/txn"
)

// Default controller parameters.
const (
	DefaultBaudRate          = 9600
	DefaultReadTimeout       = time.Second
	DefaultSettle            = 500 * time.Millisecond
	DefaultCompletionTimeout = 120 * time.Second
	DefaultPollInterval      = 500 * time.Millisecond
	DefaultReadyReads        = 10

	MaxCompletionTimeout = time.Hour
	MaxPollInterval      = 10 * time.Second
	MaxReadyReads        = 100
)

type options struct {
	settle            txn.Settle
	completionTimeout time.Duration
	pollInterval      time.Duration
	readyReads        int
	logger            logger.Logger
}

func defaultOptions() *options {
	return &options{
		settle:            txn.FixedSettle(DefaultSettle),
		completionTimeout: DefaultCompletionTimeout,
		pollInterval:      DefaultPollInterval,
		readyReads:        DefaultReadyReads,
		logger:            logger.GetLogger(),
	}
}

// Option is a functional option for configuring a Controller.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithSettle sets the fixed delay between writing a command and reading its answer.
func WithSettle(d time.Duration) Option {
	return WithSettleStrategy(txn.FixedSettle(d))
}

// WithSettleStrategy sets how the driver waits for the controller's answer.
func WithSettleStrategy(s txn.Settle) Option {
	return optFunc(func(o *options) error {
		if s == nil {
			return errors.New("motion: settle strategy must not be nil")
		}
		o.settle = s

		return nil
	})
}

// WithCompletionTimeout bounds the wait for the completion token after a
// move was started, in (0, 1h].
func WithCompletionTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 || d > MaxCompletionTimeout {
			return fmt.Errorf("motion: completion timeout %v out of range (0, %v]", d, MaxCompletionTimeout)
		}
		o.completionTimeout = d

		return nil
	})
}

// WithPollInterval sets the delay between completion polls, in [0, 10s].
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < 0 || d > MaxPollInterval {
			return fmt.Errorf("motion: poll interval %v out of range [0, %v]", d, MaxPollInterval)
		}
		o.pollInterval = d

		return nil
	})
}

// WithReadyReads sets how many extra reads IsConnected makes while waiting
// for the ready token, in [0, 100].
func WithReadyReads(n int) Option {
	return optFunc(func(o *options) error {
		if n < 0 || n > MaxReadyReads {
			return fmt.Errorf("motion: ready reads %d out of range [0, %d]", n, MaxReadyReads)
		}
		o.readyReads = n

		return nil
	})
}

// WithLogger sets the logger for the controller and its axes.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("motion: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}

// LinkOptions returns the serial parameters of the controller, to be passed
// to link.NewConfig before any caller-supplied overrides.
func LinkOptions() []link.Option {
	return []link.Option{
		link.WithBaudRate(DefaultBaudRate),
		link.WithReadTimeout(DefaultReadTimeout),
	}
}
