// Package property reduces the DRM ABI's "strings plus dynamic enum codes"
// vocabulary to a compile-time-constant enumeration internal to the
// backend. It is the sole place that translates kernel-assigned property
// ids and enum codes; every other package refers to properties only by
// their Spec index.
package property

import (
	"log"

	"github.com/talonwl/kmscommit/drmioctl"
)

// Spec names one property this backend is interested in on some KMS
// object, plus the compile-time enum names the kernel may assign numeric
// codes to (nil for non-enum properties).
type Spec struct {
	Name      string
	EnumNames []string
}

// EnumSlot is one compile-time enum variant together with whatever kernel
// code it was resolved to.
type EnumSlot struct {
	Name  string
	Valid bool
	Value uint64
}

// Info is the populated state for one Spec.
type Info struct {
	Spec        Spec
	ID          uint32 // 0 = absent on this object
	Flags       uint32
	RangeValues []uint64 // len 2 ([min, max]) when Flags has PropRange/PropSignedRange
	Enums       []EnumSlot
}

// IsRange reports whether the populated property is a range property.
func (i *Info) IsRange() bool {
	return i.Flags&(drmioctl.PropRange|drmioctl.PropSignedRange) != 0
}

// IsEnum reports whether the populated property is an enum property.
func (i *Info) IsEnum() bool {
	return i.Flags&drmioctl.PropEnum != 0
}

// Table holds one Info per Spec registered for an object kind (CRTC,
// Connector, or Plane).
type Table struct {
	Infos []Info
}

// NewTable allocates an empty, unpopulated table for the given specs. The
// slice index into Infos is the compile-time enum callers use to refer to
// a property (e.g. a `const planePropZpos = 3` alongside `specs[3] =
// Spec{Name: "zpos"}`).
func NewTable(specs []Spec) *Table {
	t := &Table{Infos: make([]Info, len(specs))}
	for i, s := range specs {
		t.Infos[i].Spec = s
		if len(s.EnumNames) > 0 {
			t.Infos[i].Enums = make([]EnumSlot, len(s.EnumNames))
			for j, n := range s.EnumNames {
				t.Infos[i].Enums[j].Name = n
			}
		}
	}

	return t
}

// Populate resolves kernel-assigned ids and enum values for every Spec in
// the table against the object's raw property list. It is idempotent: safe
// to call again (e.g. on connector hotplug) since it resets each Info
// before refilling it.
//
// getMeta fetches kernel metadata (name, flags, enum table) for a property
// id; in production this is drmioctl.GetProperty bound to an fd.
func (t *Table) Populate(raw []drmioctl.RawProperty, getMeta func(propID uint32) (drmioctl.PropertyMeta, error)) error {
	byName := make(map[string]drmioctl.PropertyMeta, len(raw))

	for _, rp := range raw {
		meta, err := getMeta(rp.ID)
		if err != nil {
			log.Printf("property: GETPROPERTY(%d) failed: %v", rp.ID, err)

			continue
		}

		byName[meta.Name] = meta
	}

	for idx := range t.Infos {
		info := &t.Infos[idx]
		wantEnum := len(info.Spec.EnumNames) > 0

		info.ID = 0
		info.Flags = 0
		info.RangeValues = nil
		for j := range info.Enums {
			info.Enums[j].Valid = false
			info.Enums[j].Value = 0
		}

		meta, ok := byName[info.Spec.Name]
		if !ok {
			continue
		}

		gotEnum := meta.Flags&drmioctl.PropEnum != 0
		if wantEnum != gotEnum {
			log.Printf("property: %q: expected enum=%v, kernel reports enum=%v; leaving unresolved",
				info.Spec.Name, wantEnum, gotEnum)

			continue
		}

		info.ID = meta.ID
		info.Flags = meta.Flags

		if meta.Flags&(drmioctl.PropRange|drmioctl.PropSignedRange) != 0 {
			info.RangeValues = append([]uint64(nil), meta.RangeValues...)
		}

		if gotEnum {
			for _, kv := range meta.EnumValues {
				for j := range info.Enums {
					if info.Enums[j].Name == kv.Name {
						info.Enums[j].Valid = true
						info.Enums[j].Value = kv.Value
					}
				}
			}
		}
	}

	return nil
}

// GetValue returns the raw numeric value of a (non-enum) property read from
// raw, or def if the property is absent on this object.
func (t *Table) GetValue(idx int, raw []drmioctl.RawProperty, def uint64) uint64 {
	info := &t.Infos[idx]
	if info.ID == 0 {
		return def
	}

	for _, rp := range raw {
		if rp.ID == info.ID {
			return rp.Value
		}
	}

	return def
}

// GetEnumValue returns the compile-time enum index (into Spec.EnumNames)
// that the kernel's current value for this property corresponds to, or def
// if the property is absent or its value has no matching compile-time
// variant.
func (t *Table) GetEnumValue(idx int, raw []drmioctl.RawProperty, def int) int {
	info := &t.Infos[idx]
	if info.ID == 0 {
		return def
	}

	var kernelValue uint64

	found := false

	for _, rp := range raw {
		if rp.ID == info.ID {
			kernelValue = rp.Value
			found = true

			break
		}
	}

	if !found {
		return def
	}

	for j := range info.Enums {
		if info.Enums[j].Valid && info.Enums[j].Value == kernelValue {
			return j
		}
	}

	return def
}

// EnumKernelValue translates a compile-time enum index back to the
// kernel-assigned integer code for AddProperty, and reports whether that
// variant was resolved at Populate time.
func (t *Table) EnumKernelValue(idx, variant int) (uint64, bool) {
	info := &t.Infos[idx]
	if variant < 0 || variant >= len(info.Enums) {
		return 0, false
	}

	slot := info.Enums[variant]

	return slot.Value, slot.Valid
}

// GetRangeValues returns the [min, max] bounds for a range property, or
// ok=false if the property is absent or not a range.
func (t *Table) GetRangeValues(idx int) (min, max uint64, ok bool) {
	info := &t.Infos[idx]
	if !info.IsRange() || len(info.RangeValues) != 2 {
		return 0, 0, false
	}

	return info.RangeValues[0], info.RangeValues[1], true
}

// ID returns the kernel-assigned property id for idx, or 0 if absent.
func (t *Table) ID(idx int) uint32 {
	return t.Infos[idx].ID
}

// Free releases enum-value storage and zeroes the table so it can be
// safely repopulated, matching drm_property_info_free's contract.
func (t *Table) Free() {
	for i := range t.Infos {
		t.Infos[i].ID = 0
		t.Infos[i].Flags = 0
		t.Infos[i].RangeValues = nil
		t.Infos[i].Enums = nil
	}
}
