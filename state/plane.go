package state

import (
	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/format"
	"github.com/talonwl/kmscommit/property"
)

// Kind is a plane's compositing role.
type Kind int

const (
	KindPrimary Kind = PlanePrimary
	KindOverlay Kind = PlaneOverlay
	KindCursor  Kind = PlaneCursor
)

//go:generate stringer -type=Kind

// Plane is a compositable surface layer.
type Plane struct {
	ID      uint32
	Kind    Kind
	Catalog *format.Catalog
	ZposMin uint64
	ZposMax uint64
	Props   *property.Table

	// Current is this plane's currently-committed state, or nil if
	// disabled. Exactly one of {owned by an OutputState, referenced here}
	// holds a given PlaneState, per the orphan-state invariant.
	Current *PlaneState
}

// NewPlane allocates a Plane with its property cache. Kind and the zpos
// range are resolved later by Populate (GetEnumValue for "type",
// GetRangeValues for "zpos"), since neither is knowable before the
// property table is filled.
func NewPlane(id uint32) *Plane {
	return &Plane{ID: id, Props: property.NewTable(planeSpecs())}
}

// Populate resolves this plane's property ids, infers Kind from the "type"
// enum, and records the zpos mutable range.
func (p *Plane) Populate(raw []drmioctl.RawProperty, getMeta func(uint32) (drmioctl.PropertyMeta, error)) error {
	if err := p.Props.Populate(raw, getMeta); err != nil {
		return err
	}

	p.Kind = Kind(p.Props.GetEnumValue(PlanePropType, raw, int(KindOverlay)))
	p.ZposMin, p.ZposMax, _ = p.Props.GetRangeValues(PlanePropZpos)

	return nil
}

// ZposMutable reports whether this plane has a writable zpos (min != max);
// fixed-zpos planes never get a ZPOS property write.
func (p *Plane) ZposMutable() bool {
	return p.ZposMin != p.ZposMax
}

// SupportsDamageClips reports whether FB_DAMAGE_CLIPS exists on this plane.
func (p *Plane) SupportsDamageClips() bool {
	return p.Props.ID(PlanePropFbDamageClips) != 0
}

// Orphan detaches this plane's Current pointer, returning the now-orphaned
// state (nil if there was none) for the caller to free.
func (p *Plane) Orphan() *PlaneState {
	old := p.Current
	p.Current = nil

	return old
}

// Promote installs ps as this plane's new current state, releasing the
// displaced prior state (and its framebuffer reference) if it was already
// orphaned from its owning Output State.
func (p *Plane) Promote(ps *PlaneState) {
	prev := p.Current
	p.Current = ps

	if ps != nil {
		ps.owner = nil // now owned by the plane, not an OutputState
	}

	if prev != nil && prev != ps && prev.owner == nil {
		prev.free()
	}
}
