package state

import (
	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/property"
)

// CRTC is a hardware scanout engine.
type CRTC struct {
	ID     uint32
	Output *Output // owning output while in use; nil when idle
	Props  *property.Table
	GammaSize uint32
}

// NewCRTC allocates a CRTC with its ACTIVE/MODE_ID property cache.
func NewCRTC(id uint32) *CRTC {
	return &CRTC{ID: id, Props: property.NewTable(crtcSpecs())}
}

// Populate resolves this CRTC's property ids against the kernel.
func (c *CRTC) Populate(raw []drmioctl.RawProperty, getMeta func(uint32) (drmioctl.PropertyMeta, error)) error {
	return c.Props.Populate(raw, getMeta)
}

// LiveActive reads the CRTC's current ACTIVE value directly from a fresh
// property query (not the cached state), which the disable-preamble
// construction needs because the kernel rejects off->off ACTIVE writes.
func (c *CRTC) LiveActive(raw []drmioctl.RawProperty) bool {
	return c.Props.GetValue(CrtcPropActive, raw, 0) != 0
}

// InUse reports whether this CRTC currently drives an Output.
func (c *CRTC) InUse() bool {
	return c.Output != nil
}
