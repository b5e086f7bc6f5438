package power

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/txn"
	"github.com/puzpuzpuz/xsync/v3"
)

// MaxOutlets is the highest outlet number accepted by AddOutlet.
const MaxOutlets = 8

// Unit markers.
const (
	markerPrompt  = "RPC>"
	markerConfirm = "(Y/N)?"
	markerError   = "ERROR"

	answerYes = "y"
)

var statusLine = regexp.MustCompile(`^\s*(\d+)\)\.{3}(.*): (On|Off)`)

// OutletState is the state of one outlet as reported by a listing.
type OutletState struct {
	ID      int
	Name    string
	On      bool
	Updated time.Time
}

// PDU is the driver of one power distribution unit.
type PDU struct {
	link   *link.Link
	engine *txn.Engine
	logger logger.Logger
	opts   *options
	phase  device.AtomicPhase

	// last-known outlet states, keyed by outlet id
	states *xsync.MapOf[int, OutletState]

	mu      sync.RWMutex
	outlets map[string]*Outlet
	ids     map[int]*Outlet
}

// NewPDU creates the driver for the unit attached to l.
func NewPDU(l *link.Link, opts ...Option) (*PDU, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	cfg, err := txn.NewConfig(
		txn.WithDeviceTag("rpc:"+l.Path()),
		txn.WithTerminator("\r\n"),
		txn.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	eng := txn.New(l, cfg)

	return &PDU{
		link:    l,
		engine:  eng,
		logger:  eng.GetLogger(),
		opts:    o,
		states:  xsync.NewMapOf[int, OutletState](),
		outlets: make(map[string]*Outlet),
		ids:     make(map[int]*Outlet),
	}, nil
}

// Port returns the path of the unit's serial link.
func (p *PDU) Port() string { return p.link.Path() }

// Phase returns the current step of the switching sequence.
func (p *PDU) Phase() device.Phase { return p.phase.Get() }

// AddOutlet registers outlet id under name and returns its driver.
func (p *PDU) AddOutlet(id int, name string) (*Outlet, error) {
	if id < 1 || id > MaxOutlets {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOutletID, id)
	}

	if strings.TrimSpace(name) == "" {
		return nil, errors.New("power: outlet name must not be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.outlets[name]; ok {
		return nil, fmt.Errorf("%w: name %q", ErrDuplicateOutlet, name)
	}

	if _, ok := p.ids[id]; ok {
		return nil, fmt.Errorf("%w: id %d", ErrDuplicateOutlet, id)
	}

	o := &Outlet{pdu: p, id: id, name: name}
	p.outlets[name] = o
	p.ids[id] = o

	return o, nil
}

// Outlet returns the outlet registered under name.
func (p *PDU) Outlet(name string) (*Outlet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	o, ok := p.outlets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutlet, name)
	}

	return o, nil
}

// Outlets returns the registered outlets ordered by id.
func (p *PDU) Outlets() []*Outlet {
	p.mu.RLock()
	defer p.mu.RUnlock()

	outlets := slices.Collect(maps.Values(p.ids))
	slices.SortFunc(outlets, func(a, b *Outlet) int { return a.id - b.id })

	return outlets
}

// WaitPrompt wakes the unit up and waits for its prompt. It returns the text
// printed before the prompt, which normally is the outlet listing.
func (p *PDU) WaitPrompt(ctx context.Context) (string, error) {
	var text string

	err := p.engine.Session(ctx, func(s *txn.Session) error {
		var err error
		text, err = p.waitPrompt(s)

		return err
	})

	return text, err
}

// StatusAll reads the outlet listing and returns the state of every listed
// outlet, keyed by outlet id.
func (p *PDU) StatusAll(ctx context.Context) (map[int]OutletState, error) {
	var states map[int]OutletState

	err := p.engine.Session(ctx, func(s *txn.Session) error {
		var err error
		states, err = p.statusAll(s)

		return err
	})

	return states, err
}

// Status reads the listing and reports whether outlet id is on.
func (p *PDU) Status(ctx context.Context, id int) (bool, error) {
	states, err := p.StatusAll(ctx)
	if err != nil {
		return false, err
	}

	st, ok := states[id]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrOutletNotListed, id)
	}

	return st.On, nil
}

// Set switches outlet id on or off and returns nil only once a fresh listing
// reports the requested state.
func (p *PDU) Set(ctx context.Context, id int, on bool) error {
	return p.engine.Session(ctx, func(s *txn.Session) error {
		defer p.phase.Reset()
		return p.set(s, id, on)
	})
}

// LastKnown returns the state of outlet id seen in the latest listing.
func (p *PDU) LastKnown(id int) (OutletState, bool) {
	return p.states.Load(id)
}

func (p *PDU) set(s *txn.Session, id int, on bool) error {
	cmd := fmt.Sprintf("off %d", id)
	if on {
		cmd = fmt.Sprintf("on %d", id)
	}

	for attempt := 0; ; attempt++ {
		if _, err := p.waitPrompt(s); err != nil {
			return err
		}

		p.phase.Set(device.PhaseCommandSent)
		if err := s.Write(cmd); err != nil {
			return err
		}

		p.phase.Set(device.PhaseAwaitConfirm)
		text, idx, err := s.Await(p.opts.promptTimeout, p.opts.pollInterval, markerConfirm, markerError)
		if errors.Is(err, txn.ErrMarkerTimeout) {
			return fmt.Errorf("%w: %q", ErrConfirmTimeout, cmd)
		}

		if err != nil {
			return err
		}

		if idx == 0 {
			break
		}

		if attempt >= p.opts.maxResync {
			p.logger.Error("outlet command rejected", "cmd", cmd, "attempts", attempt+1, "response", text)
			return fmt.Errorf("%w: %q rejected %d times", ErrResyncExhausted, cmd, attempt+1)
		}

		p.link.GetMetrics().IncRetry()
		p.logger.Warn("outlet command rejected, resyncing", "cmd", cmd, "attempt", attempt+1, "response", text)
	}

	if err := s.Write(answerYes); err != nil {
		return err
	}

	if err := s.Write(""); err != nil {
		return err
	}

	p.phase.Set(device.PhaseConfirmed)

	states, err := p.statusAll(s)
	if err != nil {
		return err
	}

	st, ok := states[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrOutletNotListed, id)
	}

	if st.On != on {
		p.logger.Error("outlet state not verified", "outlet", id, "want_on", on, "got_on", st.On)
		return fmt.Errorf("%w: outlet %d on=%t after %q", ErrNotVerified, id, st.On, cmd)
	}

	p.logger.Info("outlet switched", "outlet", id, "name", st.Name, "on", on)

	return nil
}

func (p *PDU) waitPrompt(s *txn.Session) (string, error) {
	p.phase.Set(device.PhaseAwaitPrompt)

	if err := s.Flush(); err != nil {
		return "", err
	}

	if err := s.Write(""); err != nil {
		return "", err
	}

	text, _, err := s.Await(p.opts.promptTimeout, p.opts.pollInterval, markerPrompt)
	if errors.Is(err, txn.ErrMarkerTimeout) {
		return text, fmt.Errorf("%w after %v", ErrPromptTimeout, p.opts.promptTimeout)
	}

	if err != nil {
		return text, err
	}

	if p.opts.promptSettle > 0 {
		time.Sleep(p.opts.promptSettle)
	}

	return text, nil
}

func (p *PDU) statusAll(s *txn.Session) (map[int]OutletState, error) {
	text, err := p.waitPrompt(s)
	if err != nil {
		return nil, err
	}

	states := ParseStatus(text)
	now := time.Now()
	for id, st := range states {
		st.Updated = now
		states[id] = st
		p.states.Store(id, st)
	}

	return states, nil
}

// ParseStatus extracts the outlet lines of a listing, such as
// "3)...Laser head : On". Lines that are not outlet lines are ignored.
func ParseStatus(text string) map[int]OutletState {
	states := make(map[int]OutletState)

	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' })
	for _, line := range lines {
		m := statusLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		states[id] = OutletState{
			ID:   id,
			Name: strings.TrimSpace(m[2]),
			On:   m[3] == "On",
		}
	}

	return states
}
