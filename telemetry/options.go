package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
)

// Default reader parameters. With these a silent board fails ReadEvent after
// DefaultAttempts reads of up to DefaultReadTimeout each plus the retry delays
// between them, about 2.3s; see Reader.MaxWait.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 50 * time.Millisecond
	DefaultAttempts    = 10
	DefaultRetryDelay  = 200 * time.Millisecond
	DefaultHeader      = "BAAB"
	DefaultFooter      = "FEEF"

	MaxAttempts   = 100
	MaxRetryDelay = 10 * time.Second
)

type options struct {
	attempts   int
	retryDelay time.Duration
	header     string
	footer     string
	logger     logger.Logger
}

func defaultOptions() *options {
	return &options{
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
		header:     DefaultHeader,
		footer:     DefaultFooter,
		logger:     logger.GetLogger(),
	}
}

// Option is a functional option for configuring a Reader.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithAttempts sets how many reads ReadEvent performs looking for a frame, in [1, 100].
func WithAttempts(n int) Option {
	return optFunc(func(o *options) error {
		if n < 1 || n > MaxAttempts {
			return fmt.Errorf("telemetry: attempts %d out of range [1, %d]", n, MaxAttempts)
		}
		o.attempts = n

		return nil
	})
}

// WithRetryDelay sets the wait between two reads, in [0, 10s].
func WithRetryDelay(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < 0 || d > MaxRetryDelay {
			return fmt.Errorf("telemetry: retry delay %v out of range [0, %v]", d, MaxRetryDelay)
		}
		o.retryDelay = d

		return nil
	})
}

// WithMarkers sets the frame header and footer.
func WithMarkers(header, footer string) Option {
	return optFunc(func(o *options) error {
		if header == "" || footer == "" {
			return errors.New("telemetry: frame markers must not be empty")
		}

		if header == footer {
			return errors.New("telemetry: frame header and footer must differ")
		}
		o.header = header
		o.footer = footer

		return nil
	})
}

// WithLogger sets the logger of the reader.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("telemetry: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}

// LinkOptions returns the serial parameters of the board, to be passed to
// link.NewConfig before any caller-supplied overrides.
func LinkOptions() []link.Option {
	return []link.Option{
		link.WithBaudRate(DefaultBaudRate),
		link.WithReadTimeout(DefaultReadTimeout),
	}
}
