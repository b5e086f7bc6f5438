package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/laser"
	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/motion"
	"github.com/arloliu/go-instrument/power"
	"github.com/arloliu/go-instrument/telemetry"
	"github.com/puzpuzpuz/xsync/v3"
)

// TelemetryName is the name the telemetry reader is registered under.
const TelemetryName = "telemetry"

// portEntry is one port path with its link and the shared decoder, if any.
type portEntry struct {
	link *link.Link
	kind device.Kind
	ctrl *motion.Controller
	pdu  *power.PDU
}

// Registry maps device names to drivers and port paths to links.
type Registry struct {
	logger logger.Logger
	opts   *options

	ports     *xsync.MapOf[string, *portEntry]
	devices   *xsync.MapOf[string, device.Device]
	sequences *xsync.MapOf[string, *Sequence]

	// mu serializes registrations.
	mu     sync.Mutex
	names  []string
	closed bool
}

// New creates an empty registry.
func New(opts ...Option) (*Registry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	return &Registry{
		logger:    o.logger.With("component", "registry"),
		opts:      o,
		ports:     xsync.NewMapOf[string, *portEntry](),
		devices:   xsync.NewMapOf[string, device.Device](),
		sequences: xsync.NewMapOf[string, *Sequence](),
	}, nil
}

// AddLaser registers a laser called name on the port described by params.
// A laser needs a port of its own.
func (r *Registry) AddLaser(name string, params LinkParams, opts ...laser.Option) (*laser.Laser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkName(name); err != nil {
		return nil, err
	}

	pe, err := r.portFor(device.KindLaser, params, laser.LinkOptions())
	if err != nil {
		return nil, err
	}

	ls, err := laser.New(name, pe.link, slices.Concat([]laser.Option{laser.WithLogger(r.opts.logger)}, r.opts.laserOpts, opts)...)
	if err != nil {
		return nil, err
	}

	r.ports.Store(params.Path, pe)
	r.register(ls)

	return ls, nil
}

// AddAxis registers motor id of the motion controller on the port described
// by params. opts only apply when this call creates the controller.
func (r *Registry) AddAxis(id int, name string, params LinkParams, opts ...motion.Option) (*motion.Axis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkName(name); err != nil {
		return nil, err
	}

	pe, err := r.portFor(device.KindMotionAxis, params, motion.LinkOptions())
	if err != nil {
		return nil, err
	}

	ctrl := pe.ctrl
	if ctrl == nil {
		ctrl, err = motion.NewController(pe.link, slices.Concat([]motion.Option{motion.WithLogger(r.opts.logger)}, r.opts.motionOpts, opts)...)
		if err != nil {
			return nil, err
		}
	}

	a, err := ctrl.AddAxis(id, name)
	if err != nil {
		return nil, err
	}

	if pe.ctrl == nil {
		pe.ctrl = ctrl
	}
	r.ports.Store(params.Path, pe)
	r.register(a)

	return a, nil
}

// AddOutlet registers outlet id of the power unit on the port described by
// params. opts only apply when this call creates the unit.
func (r *Registry) AddOutlet(id int, name string, params LinkParams, opts ...power.Option) (*power.Outlet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkName(name); err != nil {
		return nil, err
	}

	pe, err := r.portFor(device.KindPowerOutlet, params, power.LinkOptions())
	if err != nil {
		return nil, err
	}

	pdu := pe.pdu
	if pdu == nil {
		pdu, err = power.NewPDU(pe.link, slices.Concat([]power.Option{power.WithLogger(r.opts.logger)}, r.opts.powerOpts, opts)...)
		if err != nil {
			return nil, err
		}
	}

	o, err := pdu.AddOutlet(id, name)
	if err != nil {
		return nil, err
	}

	if pe.pdu == nil {
		pe.pdu = pdu
	}
	r.ports.Store(params.Path, pe)
	r.register(o)

	return o, nil
}

// SetTelemetry registers the telemetry reader under TelemetryName. There is
// at most one per registry.
func (r *Registry) SetTelemetry(params LinkParams, opts ...telemetry.Option) (*telemetry.Reader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkName(TelemetryName); err != nil {
		return nil, err
	}

	pe, err := r.portFor(device.KindTelemetry, params, telemetry.LinkOptions())
	if err != nil {
		return nil, err
	}

	tr, err := telemetry.New(TelemetryName, pe.link, slices.Concat([]telemetry.Option{telemetry.WithLogger(r.opts.logger)}, r.opts.telemetryOpts, opts)...)
	if err != nil {
		return nil, err
	}

	r.ports.Store(params.Path, pe)
	r.register(tr)

	return tr, nil
}

// Device returns the device registered under name.
func (r *Registry) Device(name string) (device.Device, error) {
	d, ok := r.devices.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}

	return d, nil
}

// Laser returns the laser registered under name.
func (r *Registry) Laser(name string) (*laser.Laser, error) {
	return lookup[*laser.Laser](r, name)
}

// Axis returns the motion axis registered under name.
func (r *Registry) Axis(name string) (*motion.Axis, error) {
	return lookup[*motion.Axis](r, name)
}

// Outlet returns the power outlet registered under name.
func (r *Registry) Outlet(name string) (*power.Outlet, error) {
	return lookup[*power.Outlet](r, name)
}

// Telemetry returns the telemetry reader.
func (r *Registry) Telemetry() (*telemetry.Reader, error) {
	return lookup[*telemetry.Reader](r, TelemetryName)
}

func lookup[T device.Device](r *Registry, name string) (T, error) {
	var zero T

	d, err := r.Device(name)
	if err != nil {
		return zero, err
	}

	t, ok := d.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is a %s", ErrWrongKind, name, d.Kind())
	}

	return t, nil
}

// Names returns the registered device names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.names)
}

// Link returns the link of the port at path.
func (r *Registry) Link(path string) (*link.Link, bool) {
	pe, ok := r.ports.Load(path)
	if !ok {
		return nil, false
	}

	return pe.link, true
}

// Controller returns the motion controller of the port at path.
func (r *Registry) Controller(path string) (*motion.Controller, bool) {
	pe, ok := r.ports.Load(path)
	if !ok || pe.ctrl == nil {
		return nil, false
	}

	return pe.ctrl, true
}

// PDU returns the power unit of the port at path.
func (r *Registry) PDU(path string) (*power.PDU, bool) {
	pe, ok := r.ports.Load(path)
	if !ok || pe.pdu == nil {
		return nil, false
	}

	return pe.pdu, true
}

// Close closes every link. The registry accepts no registrations afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	r.ports.Range(func(path string, pe *portEntry) bool {
		if err := pe.link.Close(); err != nil {
			errs = append(errs, fmt.Errorf("registry: close %s: %w", path, err))
		}

		return true
	})

	r.logger.Info("registry closed", "devices", len(r.names))

	return errors.Join(errs...)
}

func (r *Registry) checkName(name string) error {
	if r.closed {
		return ErrClosed
	}

	if strings.TrimSpace(name) == "" {
		return errors.New("registry: device name must not be empty")
	}

	if _, ok := r.devices.Load(name); ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	return nil
}

// portFor returns the entry of the port at params.Path, or a new unstored
// entry. Motion axes and outlets may share a port with devices of their own
// kind; lasers and the telemetry reader may not share at all.
func (r *Registry) portFor(kind device.Kind, params LinkParams, defaults []link.Option) (*portEntry, error) {
	paramOpts, err := params.Options()
	if err != nil {
		return nil, err
	}

	opts := slices.Concat([]link.Option{link.WithLogger(r.opts.logger)}, defaults, paramOpts, r.opts.linkOpts)
	cfg, err := link.NewConfig(params.Path, opts...)
	if err != nil {
		return nil, err
	}

	pe, ok := r.ports.Load(params.Path)
	if !ok {
		return &portEntry{link: link.New(cfg), kind: kind}, nil
	}

	if pe.kind != kind || kind == device.KindLaser || kind == device.KindTelemetry {
		return nil, fmt.Errorf("%w: %s is already used by a %s", ErrLinkConflict, params.Path, pe.kind)
	}

	if !pe.link.Config().SameLine(cfg) {
		return nil, fmt.Errorf("%w: %s registered as %q, got %q",
			ErrLinkConflict, params.Path, pe.link.Config().String(), cfg.String())
	}

	return pe, nil
}

func (r *Registry) register(d device.Device) {
	r.devices.Store(d.Name(), d)
	r.names = append(r.names, d.Name())
	r.logger.Info("device registered", "name", d.Name(), "kind", d.Kind().String(), "port", d.Port())
}
