package registry

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/arloliu/go-instrument/internal/pool"
	"github.com/arloliu/go-instrument/laser"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/motion"
	"github.com/arloliu/go-instrument/power"
)

// Action is an operation a sequence step performs on a device.
type Action string

const (
	// ActionOn switches an outlet on.
	ActionOn Action = "on"
	// ActionOff switches an outlet off.
	ActionOff Action = "off"
	// ActionWarmup brings a laser to its warmup state.
	ActionWarmup Action = "warmup"
	// ActionStandby puts a laser in standby.
	ActionStandby Action = "standby"
	// ActionStop puts a laser to sleep.
	ActionStop Action = "stop"
	// ActionHome moves an axis to absolute zero.
	ActionHome Action = "home"
	// ActionKill stops the motion of an axis's controller.
	ActionKill Action = "kill"
	// ActionConnect checks an axis's controller handshake.
	ActionConnect Action = "connect"
)

// Step is one device operation of a sequence. Delay is waited before the
// operation starts.
type Step struct {
	Device string        `yaml:"device"`
	Action Action        `yaml:"action"`
	Delay  time.Duration `yaml:"delay,omitempty"`
}

// String returns a description such as "laser:warmup".
func (s Step) String() string { return s.Device + ":" + string(s.Action) }

// Sequence is an ordered list of steps spanning several devices.
type Sequence struct {
	name   string
	steps  []Step
	ops    []func(ctx context.Context) error
	logger logger.Logger
}

// NewSequence builds a sequence from steps. Every step is resolved against
// the registered devices now; an unknown device or an action the device
// cannot perform is an error.
func (r *Registry) NewSequence(name string, steps ...Step) (*Sequence, error) {
	seq := &Sequence{
		name:   name,
		steps:  slices.Clone(steps),
		ops:    make([]func(ctx context.Context) error, 0, len(steps)),
		logger: r.logger.With("sequence", name),
	}

	for i, step := range steps {
		if step.Delay < 0 {
			return nil, fmt.Errorf("registry: sequence %q step %d: negative delay %v", name, i+1, step.Delay)
		}

		op, err := r.bind(step)
		if err != nil {
			return nil, fmt.Errorf("registry: sequence %q step %d: %w", name, i+1, err)
		}
		seq.ops = append(seq.ops, op)
	}

	return seq, nil
}

// DefineSequence builds a sequence and stores it under name.
func (r *Registry) DefineSequence(name string, steps ...Step) (*Sequence, error) {
	seq, err := r.NewSequence(name, steps...)
	if err != nil {
		return nil, err
	}

	if _, loaded := r.sequences.LoadOrStore(name, seq); loaded {
		return nil, fmt.Errorf("%w: sequence %q", ErrDuplicateName, name)
	}

	return seq, nil
}

// Sequence returns the sequence defined under name.
func (r *Registry) Sequence(name string) (*Sequence, error) {
	seq, ok := r.sequences.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSequence, name)
	}

	return seq, nil
}

// PowerOnSequence switches outlets on in the given order, waiting delay
// between two outlets.
func (r *Registry) PowerOnSequence(delay time.Duration, outlets ...string) (*Sequence, error) {
	return r.NewSequence("power_on", outletSteps(ActionOn, delay, outlets)...)
}

// PowerOffSequence switches outlets off in the reverse of the given order,
// waiting delay between two outlets.
func (r *Registry) PowerOffSequence(delay time.Duration, outlets ...string) (*Sequence, error) {
	reversed := slices.Clone(outlets)
	slices.Reverse(reversed)

	return r.NewSequence("power_off", outletSteps(ActionOff, delay, reversed)...)
}

func outletSteps(action Action, delay time.Duration, outlets []string) []Step {
	steps := make([]Step, len(outlets))
	for i, name := range outlets {
		steps[i] = Step{Device: name, Action: action}
		if i > 0 {
			steps[i].Delay = delay
		}
	}

	return steps
}

func (r *Registry) bind(step Step) (func(ctx context.Context) error, error) {
	d, err := r.Device(step.Device)
	if err != nil {
		return nil, err
	}

	switch dev := d.(type) {
	case *power.Outlet:
		switch step.Action {
		case ActionOn:
			return dev.On, nil
		case ActionOff:
			return dev.Off, nil
		}
	case *laser.Laser:
		switch step.Action {
		case ActionWarmup:
			return dev.Warmup, nil
		case ActionStandby:
			return dev.Standby, nil
		case ActionStop:
			return dev.Stop, nil
		}
	case *motion.Axis:
		switch step.Action {
		case ActionHome:
			return dev.MoveABS0, nil
		case ActionKill:
			return dev.Controller().Kill, nil
		case ActionConnect:
			return dev.Controller().IsConnected, nil
		}
	}

	return nil, fmt.Errorf("%w: %s cannot %q", ErrUnsupportedAction, d.Kind(), step.Action)
}

// Name returns the name of the sequence.
func (s *Sequence) Name() string { return s.name }

// Steps returns the steps of the sequence.
func (s *Sequence) Steps() []Step { return slices.Clone(s.steps) }

// Run executes the steps strictly in order and stops at the first failing
// step. ctx is checked between steps and ends delays early; a step that has
// started is not interrupted.
func (s *Sequence) Run(ctx context.Context) error {
	start := time.Now()

	for i, step := range s.steps {
		if err := pool.Sleep(ctx, step.Delay); err != nil {
			s.logger.Warn("sequence cancelled", "step", i+1, "device", step.Device, "action", step.Action, "error", err)
			return fmt.Errorf("registry: sequence %q cancelled before step %d (%s): %w", s.name, i+1, step, err)
		}

		stepStart := time.Now()
		if err := s.ops[i](ctx); err != nil {
			s.logger.Error("sequence step failed", "step", i+1, "device", step.Device, "action", step.Action, "error", err)
			return fmt.Errorf("registry: sequence %q step %d (%s): %w", s.name, i+1, step, err)
		}

		s.logger.Info("sequence step done", "step", i+1, "device", step.Device, "action", step.Action, "elapsed", time.Since(stepStart))
	}

	s.logger.Info("sequence done", "steps", len(s.steps), "elapsed", time.Since(start))

	return nil
}
