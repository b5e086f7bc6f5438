package laser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/txn"
)

// Commands without parameters.
const (
	cmdStatus   = "$STATUS ?"
	cmdTemps    = "$TEMPS ?"
	cmdShots    = "$SHOT ?"
	cmdUserShot = "$USHOT ?"
	cmdVersion  = "$HVERS ?"
	cmdStandby  = "$STAND"
	cmdStop     = "$STOP ?"
	cmdFire     = "$FIRE"
)

// Laser is the driver of one laser.
type Laser struct {
	name         string
	engine       *txn.Engine
	logger       logger.Logger
	modeAttempts int

	mu    sync.Mutex
	state State
}

var _ device.Device = (*Laser)(nil)

// New creates the driver for the laser called name attached to l.
func New(name string, l *link.Link, opts ...Option) (*Laser, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	cfg, err := txn.NewConfig(
		txn.WithDeviceTag(name),
		txn.WithTerminator("\r"),
		txn.WithSettle(o.settle),
		txn.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	eng := txn.New(l, cfg)

	return &Laser{
		name:         name,
		engine:       eng,
		logger:       eng.GetLogger(),
		modeAttempts: o.modeAttempts,
	}, nil
}

// Name returns the logical name of the laser.
func (ls *Laser) Name() string { return ls.name }

// Kind returns device.KindLaser.
func (ls *Laser) Kind() device.Kind { return device.KindLaser }

// Port returns the path of the laser's serial link.
func (ls *Laser) Port() string { return ls.engine.Link().Path() }

// State returns a snapshot of the last known laser state.
func (ls *Laser) State() State {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	return ls.state
}

func (ls *Laser) update(fn func(st *State)) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	fn(&ls.state)
	ls.state.Updated = time.Now()
}

// SetParameter sets parameter name (such as "$DPW") to value. It succeeds only
// if the laser echoes exactly "name value".
func (ls *Laser) SetParameter(ctx context.Context, name string, value int) error {
	return ls.engine.Session(ctx, func(s *txn.Session) error {
		return ls.setParameter(s, param{name, value})
	})
}

// CheckParameter queries parameter name and returns its current value as
// reported by the laser.
func (ls *Laser) CheckParameter(ctx context.Context, name string) (string, error) {
	var value string

	err := ls.engine.Session(ctx, func(s *txn.Session) error {
		var err error
		value, err = ls.checkParameter(s, name)

		return err
	})

	return value, err
}

// SetMode puts the laser in standby and applies m in the fixed parameter
// order, repeating the whole sequence until the status reads StatusReady or
// the attempts are exhausted.
//
// A parameter that is not echoed correctly ends the current attempt before
// the status is read, so the attempt fails even if the laser would report
// StatusReady. I/O and connection failures end SetMode immediately.
func (ls *Laser) SetMode(ctx context.Context, m Mode) error {
	return ls.engine.Session(ctx, func(s *txn.Session) error {
		ls.logger.Info("setting laser mode", "mode", m)

		if _, err := s.Execute(cmdStandby, txn.Optional()); err != nil {
			return err
		}

		var lastErr error
		for attempt := 1; attempt <= ls.modeAttempts; attempt++ {
			if attempt > 1 {
				ls.engine.Link().GetMetrics().IncRetry()
			}

			err := ls.applyMode(s, m)
			if err == nil {
				ls.logger.Info("laser mode applied", "attempt", attempt)
				return nil
			}

			if !retryable(err) {
				return err
			}

			lastErr = err
			ls.logger.Warn("laser mode attempt failed", "attempt", attempt, "error", err)
		}

		return fmt.Errorf("%w after %d attempts: %w", ErrModeNotApplied, ls.modeAttempts, lastErr)
	})
}

func (ls *Laser) applyMode(s *txn.Session, m Mode) error {
	for _, p := range m.params() {
		if err := ls.setParameter(s, p); err != nil {
			return err
		}
	}

	status, err := ls.readStatus(s, false)
	if err != nil {
		return err
	}

	if status != StatusReady {
		return fmt.Errorf("status %#02x after applying mode", status)
	}

	return nil
}

// CheckMode reads back all mode parameters.
func (ls *Laser) CheckMode(ctx context.Context) (Mode, error) {
	var m Mode

	err := ls.engine.Session(ctx, func(s *txn.Session) error {
		for _, p := range m.params() {
			value, err := ls.checkParameter(s, p.name)
			if err != nil {
				return err
			}

			n, err := parseInt(p.name, value)
			if err != nil {
				return err
			}
			*m.modeField(p.name) = n
		}

		return nil
	})
	if err != nil {
		return Mode{}, err
	}

	ls.update(func(st *State) {
		st.PulseWidth = m.PulseWidth
		st.Diode = m.Diode == 1
		st.QSwitch = m.QSwitchOn == 1
	})

	return m, nil
}

// Status queries the operating state byte. StatusReady means armed and ready.
func (ls *Laser) Status(ctx context.Context) (uint8, error) {
	var status uint8

	err := ls.engine.Session(ctx, func(s *txn.Session) error {
		var err error
		status, err = ls.readStatus(s, false)

		return err
	})

	return status, err
}

// ReadStatusBytes queries the full status report and the shot counters and
// returns the updated state.
func (ls *Laser) ReadStatusBytes(ctx context.Context) (State, error) {
	err := ls.engine.Session(ctx, func(s *txn.Session) error {
		return ls.readStatusBytes(s)
	})
	if err != nil {
		return State{}, err
	}

	return ls.State(), nil
}

func (ls *Laser) readStatusBytes(s *txn.Session) error {
	if _, err := ls.readStatus(s, true); err != nil {
		return err
	}

	shots, err := ls.queryCounter(s, cmdShots)
	if err != nil {
		return err
	}

	userShots, err := ls.queryCounter(s, cmdUserShot)
	if err != nil {
		return err
	}

	ls.update(func(st *State) {
		st.ShotCount = shots
		st.UserShotCount = userShots
	})
	ls.logger.Info("laser counters", "shots", shots, "user_shots", userShots)

	return nil
}

// CheckTemps reads the head, dump and plate temperatures.
func (ls *Laser) CheckTemps(ctx context.Context) (Temperatures, error) {
	var temps Temperatures

	err := ls.engine.Session(ctx, func(s *txn.Session) error {
		var err error
		temps, err = ls.checkTemps(s)

		return err
	})

	return temps, err
}

// Temperature returns the head, dump and plate temperatures.
func (ls *Laser) Temperature(ctx context.Context) (head int, dump int, plate int, err error) {
	temps, err := ls.CheckTemps(ctx)
	if err != nil {
		return 0, 0, 0, err
	}

	return temps.Head, temps.Dump, temps.Plate, nil
}

// Fire fires the laser if and only if the status is StatusReady and all
// temperatures are at or below MaxSafeTemperature.
//
// Any unmet or unverifiable condition returns an error wrapping
// device.ErrSafetyViolation without writing the fire command. Fire never retries.
func (ls *Laser) Fire(ctx context.Context) error {
	return ls.engine.Session(ctx, func(s *txn.Session) error {
		status, err := ls.readStatus(s, false)
		if err != nil {
			return fmt.Errorf("%w: status: %w", ErrInterlockUnverified, err)
		}

		if status != StatusReady {
			ls.logger.Error("fire refused", "status", fmt.Sprintf("%#02x", status))
			return fmt.Errorf("%w: status %#02x", ErrNotReady, status)
		}

		temps, err := ls.checkTemps(s)
		if err != nil {
			ls.logger.Error("fire refused, temperatures unavailable", "error", err)
			return fmt.Errorf("%w: temperatures: %w", ErrInterlockUnverified, err)
		}

		if !temps.Safe() {
			ls.logger.Error("fire refused", "head", temps.Head, "dump", temps.Dump, "plate", temps.Plate)
			return fmt.Errorf("%w: head %d dump %d plate %d", ErrOverTemperature, temps.Head, temps.Dump, temps.Plate)
		}

		if _, err := s.Execute(cmdFire, txn.Optional()); err != nil {
			return err
		}

		ls.logger.Info("laser fired", "head", temps.Head, "dump", temps.Dump, "plate", temps.Plate)

		return nil
	})
}

// SetPulseWidth sets the diode pulse width, which sets the output energy.
func (ls *Laser) SetPulseWidth(ctx context.Context, width int) error {
	return ls.SetParameter(ctx, ParamPulseWidth, width)
}

// PulseWidth queries the diode pulse width.
func (ls *Laser) PulseWidth(ctx context.Context) (int, error) {
	value, err := ls.CheckParameter(ctx, ParamPulseWidth)
	if err != nil {
		return 0, err
	}

	return parseInt(ParamPulseWidth, value)
}

// QSwitchDelay queries the Q-switch delay.
func (ls *Laser) QSwitchDelay(ctx context.Context) (int, error) {
	value, err := ls.CheckParameter(ctx, ParamQSwitchDelay)
	if err != nil {
		return 0, err
	}

	return parseInt(ParamQSwitchDelay, value)
}

// Warmup puts the laser in standby, enables the diodes and the Q-switch and
// refreshes the status bytes and shot counters.
func (ls *Laser) Warmup(ctx context.Context) error {
	return ls.engine.Session(ctx, func(s *txn.Session) error {
		if _, err := s.Execute(cmdStandby, txn.Optional()); err != nil {
			return err
		}

		if err := ls.setParameter(s, param{ParamDiode, 1}); err != nil {
			return err
		}

		if err := ls.setParameter(s, param{ParamQSwitchOn, 1}); err != nil {
			return err
		}

		return ls.readStatusBytes(s)
	})
}

// Standby puts the laser in standby.
func (ls *Laser) Standby(ctx context.Context) error {
	_, err := ls.engine.Execute(ctx, cmdStandby, txn.Optional())
	if err == nil {
		ls.logger.Info("laser in standby")
	}

	return err
}

// Stop sends the laser to sleep.
func (ls *Laser) Stop(ctx context.Context) error {
	_, err := ls.engine.Execute(ctx, cmdStop, txn.Optional())
	if err == nil {
		ls.update(func(st *State) {
			st.Diode = false
			st.QSwitch = false
			st.StatusKnown = false
		})
		ls.logger.Info("laser stopped")
	}

	return err
}

// CommTest queries the hardware version and returns it.
func (ls *Laser) CommTest(ctx context.Context) (string, error) {
	resp, err := ls.engine.Execute(ctx, cmdVersion, txn.Prefix("$HVERS"))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(resp.Raw), "$HVERS")), nil
}

func (ls *Laser) setParameter(s *txn.Session, p param) error {
	value := strconv.Itoa(p.value)
	if _, err := s.Execute(p.command(), txn.Pair(p.name, value)); err != nil {
		return err
	}

	ls.update(func(st *State) {
		switch p.name {
		case ParamPulseWidth:
			st.PulseWidth = p.value
		case ParamDiode:
			st.Diode = p.value == 1
		case ParamQSwitchOn:
			st.QSwitch = p.value == 1
		}
	})

	return nil
}

func (ls *Laser) checkParameter(s *txn.Session, name string) (string, error) {
	resp, err := s.Execute(name+" ?", txn.Query(name))
	if err != nil {
		return "", err
	}

	return resp.Token(1), nil
}

// readStatus queries $STATUS. With all set, every status byte must parse.
func (ls *Laser) readStatus(s *txn.Session, all bool) (uint8, error) {
	resp, err := s.Execute(cmdStatus, txn.Fields("$STATUS", 6))
	if err != nil {
		return 0, err
	}

	status, err := parseHexByte(resp.Token(1))
	if err != nil {
		return 0, err
	}

	var bytes [4]uint8
	if all {
		for i := range bytes {
			if bytes[i], err = parseHexByte(resp.Token(i + 2)); err != nil {
				return 0, err
			}
		}
	}

	ls.update(func(st *State) {
		st.Status = status
		st.StatusKnown = true
		if all {
			st.StatusBytes = bytes
		}
	})

	return status, nil
}

func (ls *Laser) checkTemps(s *txn.Session) (Temperatures, error) {
	resp, err := s.Execute(cmdTemps, txn.Fields("$TEMPS", 4))
	if err != nil {
		return Temperatures{}, err
	}

	var vals [3]int
	for i := range vals {
		if vals[i], err = parseInt("$TEMPS", resp.Token(i+1)); err != nil {
			return Temperatures{}, err
		}
	}

	temps := Temperatures{Head: vals[0], Dump: vals[1], Plate: vals[2]}
	ls.update(func(st *State) {
		st.Temps = temps
		st.TempsKnown = true
	})
	ls.logger.Debug("laser temperatures", "head", temps.Head, "dump", temps.Dump, "plate", temps.Plate)

	return temps, nil
}

func (ls *Laser) queryCounter(s *txn.Session, cmd string) (int64, error) {
	name := strings.TrimSuffix(cmd, " ?")

	resp, err := s.Execute(cmd, txn.Query(name))
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(resp.Token(1), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrBadValue, name, resp.Token(1))
	}

	return n, nil
}

func parseInt(name string, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrBadValue, name, s)
	}

	return n, nil
}

func parseHexByte(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: status byte %q", ErrBadValue, s)
	}

	return uint8(n), nil
}

// retryable reports whether a SetMode attempt may be repeated after err.
func retryable(err error) bool {
	if errors.Is(err, device.ErrConnection) || errors.Is(err, device.ErrTransport) {
		return false
	}

	return true
}
