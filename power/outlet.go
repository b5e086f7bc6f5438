package power

import (
	"context"

	"github.com/arloliu/go-instrument/device"
)

// Outlet is one switched outlet of a PDU.
type Outlet struct {
	pdu  *PDU
	id   int
	name string
}

// Name returns the logical name of the outlet.
func (o *Outlet) Name() string { return o.name }

// Kind returns device.KindPowerOutlet.
func (o *Outlet) Kind() device.Kind { return device.KindPowerOutlet }

// Port returns the path of the unit's serial link.
func (o *Outlet) Port() string { return o.pdu.Port() }

// ID returns the outlet number on the unit.
func (o *Outlet) ID() int { return o.id }

// PDU returns the unit the outlet belongs to.
func (o *Outlet) PDU() *PDU { return o.pdu }

// On switches the outlet on and verifies it.
func (o *Outlet) On(ctx context.Context) error {
	return o.pdu.Set(ctx, o.id, true)
}

// Off switches the outlet off and verifies it.
func (o *Outlet) Off(ctx context.Context) error {
	return o.pdu.Set(ctx, o.id, false)
}

// Status reads the listing and reports whether the outlet is on.
func (o *Outlet) Status(ctx context.Context) (bool, error) {
	return o.pdu.Status(ctx, o.id)
}

// LastKnown returns the outlet state seen in the unit's latest listing.
func (o *Outlet) LastKnown() (OutletState, bool) {
	return o.pdu.LastKnown(o.id)
}
