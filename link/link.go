package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/logger"
)

// ErrLinkClosed is returned by Exclusive after Close.
var ErrLinkClosed = errors.New("link: closed")

// Link owns one physical serial connection.
//
// A Link is exclusively owned by the devices attached to one physical line;
// it is never shared between lines. All I/O goes through Exclusive.
type Link struct {
	cfg    *Config
	logger logger.Logger

	// token has capacity one; holding it grants the right to talk on the line.
	token chan struct{}

	mu         sync.Mutex // protects port, closed and wasDropped
	port       Port
	closed     bool
	wasDropped bool

	metrics Metrics
}

// New creates a Link for cfg. The port is not opened until first use.
func New(cfg *Config) *Link {
	return &Link{
		cfg:    cfg,
		logger: cfg.logger.With("port", cfg.path),
		token:  make(chan struct{}, 1),
	}
}

// Config returns the link configuration.
func (l *Link) Config() *Config { return l.cfg }

// Path returns the port path.
func (l *Link) Path() string { return l.cfg.path }

// GetMetrics returns the metrics associated with the link.
func (l *Link) GetMetrics() *Metrics { return &l.metrics }

// GetLogger returns the logger associated with the link.
func (l *Link) GetLogger() logger.Logger { return l.logger }

// IsOpen reports whether the port is currently open.
func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.port != nil
}

// Acquire returns the open port, opening it first if it is currently closed.
//
// A failed open returns an error wrapping device.ErrConnection and the cause.
// Callers other than Exclusive must already hold the link.
func (l *Link) Acquire() (Port, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("%w: %s: %w", device.ErrConnection, l.cfg.path, ErrLinkClosed)
	}

	if l.port != nil {
		return l.port, nil
	}

	p, err := l.cfg.opener(l.cfg.path, l.cfg.Mode())
	if err != nil {
		l.metrics.incOpenErrCount()
		l.logger.Error("failed to open port", "config", l.cfg.String(), "error", err)

		return nil, fmt.Errorf("%w: open %s: %w", device.ErrConnection, l.cfg.path, err)
	}

	if err := p.SetReadTimeout(l.cfg.readTimeout); err != nil {
		_ = p.Close()
		l.metrics.incOpenErrCount()

		return nil, fmt.Errorf("%w: set read timeout on %s: %w", device.ErrConnection, l.cfg.path, err)
	}

	l.port = p
	l.metrics.incOpenCount()

	if l.wasDropped {
		l.wasDropped = false
		l.metrics.incReopenCount()
		l.logger.Warn("port reopened", "config", l.cfg.String())
	} else {
		l.logger.Debug("port opened", "config", l.cfg.String())
	}

	return p, nil
}

// Flush discards pending input and output, then waits the flush settle interval.
func (l *Link) Flush(p Port) error {
	if err := p.ResetInputBuffer(); err != nil {
		return l.Fail(fmt.Errorf("reset input buffer: %w", err))
	}

	if err := p.ResetOutputBuffer(); err != nil {
		return l.Fail(fmt.Errorf("reset output buffer: %w", err))
	}

	l.metrics.incFlushCount()

	if l.cfg.flushSettle > 0 {
		time.Sleep(l.cfg.flushSettle)
	}

	return nil
}

// Exclusive runs fn with the open port while holding the link.
//
// At most one fn runs per link at any time. Waiting for the link returns
// ctx.Err() if ctx ends first; fn itself is never interrupted.
func (l *Link) Exclusive(ctx context.Context, fn func(p Port) error) error {
	select {
	case l.token <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	defer func() { <-l.token }()

	l.metrics.InflightGauge.Store(1)
	defer l.metrics.InflightGauge.Store(0)

	p, err := l.Acquire()
	if err != nil {
		return err
	}

	return fn(p)
}

// Fail converts an I/O error into a transport error. If the error shows the
// port is closed, the port is dropped so that the next Acquire reopens it.
func (l *Link) Fail(err error) error {
	if IsClosedError(err) {
		l.drop()
	}

	return fmt.Errorf("%w: %s: %w", device.ErrTransport, l.cfg.path, err)
}

func (l *Link) drop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return
	}

	_ = l.port.Close()
	l.port = nil
	l.wasDropped = true
	l.logger.Warn("port found closed, will reopen on next use")
}

// Close closes the port. The link cannot be used afterwards.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.port == nil {
		return nil
	}

	err := l.port.Close()
	l.port = nil

	if err != nil && !IsClosedError(err) {
		return fmt.Errorf("link: close %s: %w", l.cfg.path, err)
	}

	return nil
}
