package registry

import (
	"errors"

	"github.com/arloliu/go-instrument/laser"
	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/motion"
	"github.com/arloliu/go-instrument/power"
	"github.com/arloliu/go-instrument/telemetry"
)

type options struct {
	logger        logger.Logger
	linkOpts      []link.Option
	laserOpts     []laser.Option
	motionOpts    []motion.Option
	powerOpts     []power.Option
	telemetryOpts []telemetry.Option
}

func defaultOptions() *options {
	return &options{logger: logger.GetLogger()}
}

// Option is a functional option for configuring a Registry.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithLogger sets the logger of the registry, its links and its drivers.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("registry: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}

// WithLinkOptions adds options applied to every link after the device
// defaults and the registered link parameters.
func WithLinkOptions(opts ...link.Option) Option {
	return optFunc(func(o *options) error {
		o.linkOpts = append(o.linkOpts, opts...)
		return nil
	})
}

// WithLaserOptions adds options applied to every laser driver.
func WithLaserOptions(opts ...laser.Option) Option {
	return optFunc(func(o *options) error {
		o.laserOpts = append(o.laserOpts, opts...)
		return nil
	})
}

// WithMotionOptions adds options applied to every motion controller.
func WithMotionOptions(opts ...motion.Option) Option {
	return optFunc(func(o *options) error {
		o.motionOpts = append(o.motionOpts, opts...)
		return nil
	})
}

// WithPowerOptions adds options applied to every power unit.
func WithPowerOptions(opts ...power.Option) Option {
	return optFunc(func(o *options) error {
		o.powerOpts = append(o.powerOpts, opts...)
		return nil
	})
}

// WithTelemetryOptions adds options applied to the telemetry reader.
func WithTelemetryOptions(opts ...telemetry.Option) Option {
	return optFunc(func(o *options) error {
		o.telemetryOpts = append(o.telemetryOpts, opts...)
		return nil
	})
}
