package state

import (
	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/property"
)

// Connector is a physical output port.
type Connector struct {
	ID    uint32
	Props *property.Table

	// Enabled mirrors whether this connector currently drives a CRTC;
	// maintained by the owning Output, read by the disable preamble.
	Enabled bool

	InheritedMaxBPC uint64
}

// NewConnector allocates a Connector with its full property cache.
func NewConnector(id uint32) *Connector {
	return &Connector{ID: id, Props: property.NewTable(connectorSpecs())}
}

// Populate resolves this connector's property ids against the kernel. Safe
// to call again after a hotplug event.
func (c *Connector) Populate(raw []drmioctl.RawProperty, getMeta func(uint32) (drmioctl.PropertyMeta, error)) error {
	return c.Props.Populate(raw, getMeta)
}

// SupportsHDCPType1 reports whether the kernel exposes "HDCP Content Type"
// at all (pre-Type-1 kernels omit the property entirely).
func (c *Connector) SupportsHDCPType1() bool {
	return c.Props.ID(ConnPropHDCPContentType) != 0
}

// SupportsMaxBPC reports whether "max bpc" exists on this connector.
func (c *Connector) SupportsMaxBPC() bool {
	return c.Props.ID(ConnPropMaxBPC) != 0
}

// MaxBPCRange returns the property's [min,max] bound.
func (c *Connector) MaxBPCRange() (min, max uint64, ok bool) {
	return c.Props.GetRangeValues(ConnPropMaxBPC)
}
