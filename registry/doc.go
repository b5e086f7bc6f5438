// Package registry owns the serial links and device drivers of an instrument
// and looks devices up by name.
//
// Devices attached to the same port path share one link; motion axes on one
// path share one controller and outlets on one path share one power unit.
// Registrations are append-only: a registry grows while it is assembled and
// is torn down as a whole with Close.
//
// A registry is usually built from a YAML file:
//
//	cfg, err := registry.LoadConfig("instrument.yaml")
//	if err != nil {
//		return err
//	}
//
//	reg, err := registry.FromConfig(cfg)
//	if err != nil {
//		return err
//	}
//	defer reg.Close()
//
//	seq, err := reg.Sequence("power_on")
//	...
//	err = seq.Run(ctx)
package registry
