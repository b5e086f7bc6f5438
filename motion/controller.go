package motion

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/txn"
)

// MaxAxes is the number of motors one controller drives.
const MaxAxes = 4

// Controller commands.
const (
	cmdEcho   = "E"
	cmdClear  = "C"
	cmdVerify = "V"
	cmdKill   = "K"
	cmdRun    = "R"

	tokenReady    = "R"
	tokenComplete = "^"
)

// Controller is the driver of one motion controller and its axes.
type Controller struct {
	link   *link.Link
	engine *txn.Engine
	logger logger.Logger
	opts   *options

	mu   sync.RWMutex
	axes map[string]*Axis
	ids  map[int]*Axis
}

// NewController creates the driver for the controller attached to l.
func NewController(l *link.Link, opts ...Option) (*Controller, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	eng, err := newEngine(l, "vxm:"+l.Path(), o)
	if err != nil {
		return nil, err
	}

	return &Controller{
		link:   l,
		engine: eng,
		logger: eng.GetLogger(),
		opts:   o,
		axes:   make(map[string]*Axis),
		ids:    make(map[int]*Axis),
	}, nil
}

func newEngine(l *link.Link, tag string, o *options) (*txn.Engine, error) {
	cfg, err := txn.NewConfig(
		txn.WithDeviceTag(tag),
		txn.WithTerminator("\r"),
		txn.WithSettle(o.settle),
		txn.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	return txn.New(l, cfg), nil
}

// Port returns the path of the controller's serial link.
func (c *Controller) Port() string { return c.link.Path() }

// AddAxis registers motor id (1 to 4) under name and returns its driver.
func (c *Controller) AddAxis(id int, name string) (*Axis, error) {
	if id < 1 || id > MaxAxes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAxisID, id)
	}

	if strings.TrimSpace(name) == "" {
		return nil, errors.New("motion: axis name must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.axes[name]; ok {
		return nil, fmt.Errorf("%w: name %q", ErrDuplicateAxis, name)
	}

	if _, ok := c.ids[id]; ok {
		return nil, fmt.Errorf("%w: id %d", ErrDuplicateAxis, id)
	}

	eng, err := newEngine(c.link, name, c.opts)
	if err != nil {
		return nil, err
	}

	a := &Axis{ctrl: c, id: id, name: name, engine: eng, logger: eng.GetLogger()}
	c.axes[name] = a
	c.ids[id] = a

	return a, nil
}

// Axis returns the axis registered under name.
func (c *Controller) Axis(name string) (*Axis, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.axes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAxis, name)
	}

	return a, nil
}

// Axes returns the registered axes ordered by id.
func (c *Controller) Axes() []*Axis {
	c.mu.RLock()
	defer c.mu.RUnlock()

	axes := make([]*Axis, 0, len(c.ids))
	for _, a := range c.ids {
		axes = append(axes, a)
	}

	slices.SortFunc(axes, func(a, b *Axis) int { return a.id - b.id })

	return axes
}

// IsConnected performs the handshake: enable echo, clear, verify. If the
// verify answer is not the ready token, it keeps reading up to the configured
// number of times before returning ErrNotConnected.
func (c *Controller) IsConnected(ctx context.Context) error {
	return c.engine.Session(ctx, func(s *txn.Session) error {
		if _, err := s.Execute(cmdEcho, txn.Optional()); err != nil {
			return err
		}

		if _, err := s.Execute(cmdClear, txn.Optional()); err != nil {
			return err
		}

		resp, err := s.Execute(cmdVerify, txn.Optional())
		if err != nil {
			return err
		}

		if strings.TrimSpace(resp.Raw) == tokenReady {
			c.logger.Info("controller connected", "config", c.link.Config().String())
			return nil
		}

		for i := range c.opts.readyReads {
			text, err := s.ReadAvailable()
			if err != nil {
				return err
			}

			if strings.TrimSpace(text) == tokenReady {
				c.logger.Info("controller connected", "config", c.link.Config().String(), "extra_reads", i+1)
				return nil
			}

			c.logger.Debug("controller not ready yet", "attempt", i+1, "response", text)
		}

		c.logger.Error("controller not responding", "config", c.link.Config().String())

		return fmt.Errorf("%w: no ready token after %d reads", ErrNotConnected, c.opts.readyReads)
	})
}

// Kill stops any motion immediately and verifies the controller is ready.
func (c *Controller) Kill(ctx context.Context) error {
	return c.engine.Session(ctx, func(s *txn.Session) error {
		if _, err := s.Execute(cmdKill, txn.Optional()); err != nil {
			return err
		}

		if err := verifyReady(s); err != nil {
			return err
		}

		c.logger.Warn("motion killed")

		return nil
	})
}

// Clear erases the controller's program memory and verifies it is ready.
func (c *Controller) Clear(ctx context.Context) error {
	return c.engine.Session(ctx, clearProgram)
}

// clearProgram erases the program memory and verifies the controller is ready.
func clearProgram(s *txn.Session) error {
	if _, err := s.Execute(cmdClear, txn.Optional()); err != nil {
		return err
	}

	return verifyReady(s)
}

func verifyReady(s *txn.Session) error {
	resp, err := s.Execute(cmdVerify, txn.Exact(tokenReady))
	if errors.Is(err, txn.ErrMismatch) {
		return fmt.Errorf("%w: got %q", ErrNotReady, resp.Line())
	}

	return err
}
