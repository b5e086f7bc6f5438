package link

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-instrument/logger"
	"go.bug.st/serial"
)

// Default link parameters.
const (
	DefaultBaudRate    = 9600
	DefaultDataBits    = 8
	DefaultReadTimeout = 1 * time.Second
	DefaultFlushSettle = 100 * time.Millisecond
)

// Parameter range limits.
const (
	MinDataBits = 5
	MaxDataBits = 8

	MaxReadTimeout = 60 * time.Second
	MaxFlushSettle = 5 * time.Second
)

// Parity is the serial parity mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// String returns the single-letter representation of the parity.
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return "?"
	}
}

// ParseParity accepts N/NONE, O/ODD, E/EVEN, M/MARK and S/SPACE, case-insensitively.
// An empty string means ParityNone.
func ParseParity(s string) (Parity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "N", "NONE":
		return ParityNone, nil
	case "O", "ODD":
		return ParityOdd, nil
	case "E", "EVEN":
		return ParityEven, nil
	case "M", "MARK":
		return ParityMark, nil
	case "S", "SPACE":
		return ParitySpace, nil
	default:
		return ParityNone, fmt.Errorf("link: unsupported parity %q", s)
	}
}

// StopBits is the number of stop bits.
type StopBits int

const (
	OneStopBit StopBits = iota
	OnePointFiveStopBits
	TwoStopBits
)

// String returns string representation of the stop bits.
func (sb StopBits) String() string {
	switch sb {
	case OneStopBit:
		return "1"
	case OnePointFiveStopBits:
		return "1.5"
	case TwoStopBits:
		return "2"
	default:
		return "?"
	}
}

// ParseStopBits accepts "1", "1.5" and "2". An empty string means OneStopBit.
func ParseStopBits(s string) (StopBits, error) {
	switch strings.TrimSpace(s) {
	case "", "1":
		return OneStopBit, nil
	case "1.5":
		return OnePointFiveStopBits, nil
	case "2":
		return TwoStopBits, nil
	default:
		return OneStopBit, fmt.Errorf("link: unsupported stop bits %q", s)
	}
}

// Config holds the parameters of one serial link.
type Config struct {
	path        string
	baudRate    int
	dataBits    int
	parity      Parity
	stopBits    StopBits
	readTimeout time.Duration

	// flushSettle is the wait after discarding buffers.
	flushSettle time.Duration

	opener Opener
	logger logger.Logger
}

// NewConfig creates a link configuration for the port at path.
//
// opts are functional options applied in order; see With* functions.
func NewConfig(path string, opts ...Option) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("link: port path must not be empty")
	}

	cfg := &Config{
		path:        path,
		baudRate:    DefaultBaudRate,
		dataBits:    DefaultDataBits,
		parity:      ParityNone,
		stopBits:    OneStopBit,
		readTimeout: DefaultReadTimeout,
		flushSettle: DefaultFlushSettle,
		opener:      SerialOpener,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// Path returns the port path.
func (cfg *Config) Path() string { return cfg.path }

// BaudRate returns the baud rate.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// DataBits returns the number of data bits.
func (cfg *Config) DataBits() int { return cfg.dataBits }

// Parity returns the parity mode.
func (cfg *Config) Parity() Parity { return cfg.parity }

// StopBits returns the number of stop bits.
func (cfg *Config) StopBits() StopBits { return cfg.stopBits }

// ReadTimeout returns the per-Read timeout applied to the port.
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }

// FlushSettle returns the wait applied after discarding buffers.
func (cfg *Config) FlushSettle() time.Duration { return cfg.flushSettle }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// String returns a compact description such as "/dev/ttyS0 57600 8E1".
func (cfg *Config) String() string {
	return fmt.Sprintf("%s %d %d%s%s", cfg.path, cfg.baudRate, cfg.dataBits, cfg.parity, cfg.stopBits)
}

// SameLine reports whether two configurations describe the same physical line
// settings. Timeouts, openers and loggers are not compared.
func (cfg *Config) SameLine(other *Config) bool {
	if other == nil {
		return false
	}

	return cfg.path == other.path &&
		cfg.baudRate == other.baudRate &&
		cfg.dataBits == other.dataBits &&
		cfg.parity == other.parity &&
		cfg.stopBits == other.stopBits
}

// Mode converts the configuration into the serial.Mode used by go.bug.st/serial.
func (cfg *Config) Mode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: cfg.dataBits,
	}

	switch cfg.parity {
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	case ParityMark:
		mode.Parity = serial.MarkParity
	case ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}

	switch cfg.stopBits {
	case OnePointFiveStopBits:
		mode.StopBits = serial.OnePointFiveStopBits
	case TwoStopBits:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	return mode
}

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the baud rate. Must be positive.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("link: baud rate %d must be positive", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithDataBits sets the number of data bits, in [5, 8].
func WithDataBits(bits int) Option {
	return optFunc(func(cfg *Config) error {
		if bits < MinDataBits || bits > MaxDataBits {
			return fmt.Errorf("link: data bits %d out of range [%d, %d]", bits, MinDataBits, MaxDataBits)
		}
		cfg.dataBits = bits

		return nil
	})
}

// WithParity sets the parity mode.
func WithParity(p Parity) Option {
	return optFunc(func(cfg *Config) error {
		if p < ParityNone || p > ParitySpace {
			return fmt.Errorf("link: invalid parity %d", p)
		}
		cfg.parity = p

		return nil
	})
}

// WithStopBits sets the number of stop bits.
func WithStopBits(sb StopBits) Option {
	return optFunc(func(cfg *Config) error {
		if sb < OneStopBit || sb > TwoStopBits {
			return fmt.Errorf("link: invalid stop bits %d", sb)
		}
		cfg.stopBits = sb

		return nil
	})
}

// WithReadTimeout sets the per-Read timeout, in (0, 60s].
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxReadTimeout {
			return fmt.Errorf("link: read timeout %v out of range (0, %v]", d, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithFlushSettle sets the wait after discarding buffers, in [0, 5s].
func WithFlushSettle(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxFlushSettle {
			return fmt.Errorf("link: flush settle %v out of range [0, %v]", d, MaxFlushSettle)
		}
		cfg.flushSettle = d

		return nil
	})
}

// WithOpener replaces the function used to open the port.
func WithOpener(o Opener) Option {
	return optFunc(func(cfg *Config) error {
		if o == nil {
			return errors.New("link: opener must not be nil")
		}
		cfg.opener = o

		return nil
	})
}

// WithLogger sets the logger for the link.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
