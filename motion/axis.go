package motion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/txn"
)

// queryLetters maps an axis id to the command that reports its position.
var queryLetters = [MaxAxes + 1]string{1: "X", 2: "Y", 3: "Z", 4: "T"}

// AxisState is the last known state of an axis. Fields are only updated
// after a successful operation.
type AxisState struct {
	ID   int
	Name string

	// Position is the absolute position in steps; valid when PositionKnown is set.
	Position      int
	PositionKnown bool

	Model        int
	Acceleration int
	Speed        int
	Backlash     int

	Phase   device.Phase
	Updated time.Time
}

// Axis is the driver of one motor of a Controller.
type Axis struct {
	ctrl   *Controller
	id     int
	name   string
	engine *txn.Engine
	logger logger.Logger
	phase  device.AtomicPhase

	mu    sync.Mutex
	state AxisState
}

var _ device.Device = (*Axis)(nil)

// Name returns the logical name of the axis.
func (a *Axis) Name() string { return a.name }

// Kind returns device.KindMotionAxis.
func (a *Axis) Kind() device.Kind { return device.KindMotionAxis }

// Port returns the path of the controller's serial link.
func (a *Axis) Port() string { return a.ctrl.Port() }

// ID returns the motor number on the controller.
func (a *Axis) ID() int { return a.id }

// Controller returns the controller the axis belongs to.
func (a *Axis) Controller() *Controller { return a.ctrl }

// Phase returns the current step of the axis state machine.
func (a *Axis) Phase() device.Phase { return a.phase.Get() }

// State returns a snapshot of the last known axis state.
func (a *Axis) State() AxisState {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.state
	st.ID = a.id
	st.Name = a.name
	st.Phase = a.phase.Get()

	return st
}

func (a *Axis) update(fn func(st *AxisState)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fn(&a.state)
	a.state.Updated = time.Now()
}

// MoveABS moves to the absolute position target.
//
// The current position is queried first; if it already equals target no
// motion command is written and MoveABS returns nil.
func (a *Axis) MoveABS(ctx context.Context, target int) error {
	return a.engine.Session(ctx, func(s *txn.Session) error {
		return a.moveABS(s, target)
	})
}

func (a *Axis) moveABS(s *txn.Session, target int) error {
	current, err := a.queryPosition(s)
	if err != nil {
		return err
	}

	if current == target {
		a.logger.Info("axis already in position", "position", target)
		return nil
	}

	if err := a.runMotion(s, fmt.Sprintf("IA%dM%d", a.id, target)); err != nil {
		return err
	}

	a.setPosition(target)

	return nil
}

// MoveABS0 moves to absolute position zero.
func (a *Axis) MoveABS0(ctx context.Context) error {
	return a.move(ctx, fmt.Sprintf("IA%dM0", a.id), func(st *AxisState) {
		st.Position = 0
		st.PositionKnown = true
	})
}

// MoveFWD moves steps in the positive direction.
func (a *Axis) MoveFWD(ctx context.Context, steps int) error {
	if steps < 0 {
		return fmt.Errorf("motion: step count %d must not be negative", steps)
	}

	return a.move(ctx, fmt.Sprintf("I%dM%d", a.id, steps), func(st *AxisState) {
		st.Position += steps
	})
}

// MoveBWD moves steps in the negative direction.
func (a *Axis) MoveBWD(ctx context.Context, steps int) error {
	if steps < 0 {
		return fmt.Errorf("motion: step count %d must not be negative", steps)
	}

	return a.move(ctx, fmt.Sprintf("I%dM-%d", a.id, steps), func(st *AxisState) {
		st.Position -= steps
	})
}

// MovePos0 moves in the positive direction until the limit switch.
func (a *Axis) MovePos0(ctx context.Context) error {
	return a.move(ctx, fmt.Sprintf("I%dM0", a.id), forgetPosition)
}

// MoveNeg0 moves in the negative direction until the limit switch.
func (a *Axis) MoveNeg0(ctx context.Context) error {
	return a.move(ctx, fmt.Sprintf("I%dM-0", a.id), forgetPosition)
}

// SetAbsZero moves to the absolute position pos and declares it the new
// absolute zero.
func (a *Axis) SetAbsZero(ctx context.Context, pos int) error {
	return a.engine.Session(ctx, func(s *txn.Session) error {
		if err := a.moveABS(s, pos); err != nil {
			return err
		}

		if _, err := s.Execute(fmt.Sprintf("IA%dM-0", a.id), txn.Optional()); err != nil {
			return err
		}

		if err := clearProgram(s); err != nil {
			return err
		}

		a.setPosition(0)
		a.logger.Info("absolute zero set", "at", pos)

		return nil
	})
}

// Pause makes the controller wait for the given number of seconds, and
// returns once the wait has completed.
func (a *Axis) Pause(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("motion: pause %ds must not be negative", seconds)
	}

	// the controller counts tenths of a second
	return a.move(ctx, fmt.Sprintf("P%d", seconds*10), nil)
}

func forgetPosition(st *AxisState) {
	st.PositionKnown = false
}

func (a *Axis) move(ctx context.Context, cmd string, after func(st *AxisState)) error {
	return a.engine.Session(ctx, func(s *txn.Session) error {
		if err := a.runMotion(s, cmd); err != nil {
			return err
		}

		if after != nil {
			a.update(after)
		}

		return nil
	})
}

// runMotion programs cmd, verifies the echo, runs it, waits for completion
// and clears the program memory.
func (a *Axis) runMotion(s *txn.Session, cmd string) error {
	a.phase.Set(device.PhaseCommandSent)
	defer a.phase.Reset()

	resp, err := s.Execute(cmd, txn.Exact(cmd))
	if err != nil {
		if !errors.Is(err, txn.ErrMismatch) {
			return err
		}

		a.logger.Error("echo mismatch, command not run", "cmd", cmd, "echo", resp.Line())
		if cerr := clearProgram(s); cerr != nil {
			a.logger.Warn("failed to clear after echo mismatch", "error", cerr)
		}

		return fmt.Errorf("%w: sent %q, echoed %q", ErrEchoMismatch, cmd, resp.Line())
	}

	a.phase.Set(device.PhaseBusy)

	if err := s.Flush(); err != nil {
		return err
	}

	if err := s.Write(cmdRun); err != nil {
		return err
	}

	timeout := a.ctrl.opts.completionTimeout
	if _, _, err := s.Await(timeout, a.ctrl.opts.pollInterval, tokenComplete); err != nil {
		if errors.Is(err, txn.ErrMarkerTimeout) {
			a.logger.Error("move not completed", "cmd", cmd, "timeout", timeout)
			return fmt.Errorf("%w: %q within %v", ErrMoveTimeout, cmd, timeout)
		}

		return err
	}

	a.logger.Info("move completed", "cmd", cmd)

	return clearProgram(s)
}

// Position queries the absolute position reported by the controller.
func (a *Axis) Position(ctx context.Context) (int, error) {
	var pos int

	err := a.engine.Session(ctx, func(s *txn.Session) error {
		var err error
		pos, err = a.queryPosition(s)

		return err
	})

	return pos, err
}

func (a *Axis) queryPosition(s *txn.Session) (int, error) {
	resp, err := s.Execute(queryLetters[a.id], txn.Any())
	if err != nil {
		return 0, err
	}

	pos, err := ParsePosition(resp.Raw)
	if err != nil {
		return 0, err
	}

	a.setPosition(pos)

	return pos, nil
}

func (a *Axis) setPosition(pos int) {
	a.update(func(st *AxisState) {
		st.Position = pos
		st.PositionKnown = true
	})
}

// ParsePosition parses a position report such as "+0001200", "X-0000050" or
// "^+0000100", keeping the sign.
func ParsePosition(raw string) (int, error) {
	s := strings.Trim(strings.TrimSpace(raw), "XYZT^")

	pos, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPosition, raw)
	}

	return pos, nil
}

// SetModel selects the motor model.
func (a *Axis) SetModel(ctx context.Context, model int) error {
	return a.set(ctx, "model", fmt.Sprintf("setM%dM%d", a.id, model), func(st *AxisState) {
		st.Model = model
	})
}

// SetAcc sets the acceleration.
func (a *Axis) SetAcc(ctx context.Context, value int) error {
	return a.set(ctx, "acceleration", fmt.Sprintf("A%dM%d", a.id, value), func(st *AxisState) {
		st.Acceleration = value
	})
}

// SetSpeed sets the speed in steps per second.
func (a *Axis) SetSpeed(ctx context.Context, value int) error {
	return a.set(ctx, "speed", fmt.Sprintf("S%dM%d", a.id, value), func(st *AxisState) {
		st.Speed = value
	})
}

// SetBacklash sets the backlash compensation in steps; zero disables it.
func (a *Axis) SetBacklash(ctx context.Context, steps int) error {
	return a.set(ctx, "backlash", fmt.Sprintf("B%d", steps), func(st *AxisState) {
		st.Backlash = steps
	})
}

// set writes a setting, verifies the controller is ready and always clears
// the program memory afterwards.
func (a *Axis) set(ctx context.Context, what string, cmd string, apply func(st *AxisState)) error {
	return a.engine.Session(ctx, func(s *txn.Session) error {
		err := a.writeSetting(s, cmd)
		cerr := clearProgram(s)

		if err != nil {
			a.logger.Error("setting not applied", "setting", what, "cmd", cmd, "error", err)
			return err
		}

		if cerr != nil {
			return cerr
		}

		a.update(apply)
		a.logger.Info("setting applied", "setting", what, "cmd", cmd)

		return nil
	})
}

func (a *Axis) writeSetting(s *txn.Session, cmd string) error {
	if _, err := s.Execute(cmd, txn.Optional()); err != nil {
		return err
	}

	return verifyReady(s)
}
