// Package format catalogs, per plane, the pixel formats and modifiers a
// plane accepts, sourced either from the kernel's IN_FORMATS blob or a
// legacy format list.
package format

import "github.com/talonwl/kmscommit/drmioctl"

// Modifier is a DRM_FORMAT_MOD_* value.
type Modifier = uint64

// Catalog is an immutable (format -> modifiers) map built in one shot; a
// half-populated catalog is never constructed, let alone exposed.
type Catalog struct {
	modifiers map[uint32][]Modifier
}

// Formats returns every format this catalog accepts.
func (c *Catalog) Formats() []uint32 {
	out := make([]uint32, 0, len(c.modifiers))
	for f := range c.modifiers {
		out = append(out, f)
	}

	return out
}

// Modifiers returns the modifiers accepted for format, or nil if the
// format isn't in the catalog at all.
func (c *Catalog) Modifiers(f uint32) []Modifier {
	return c.modifiers[f]
}

// Supports reports whether (format, modifier) is accepted by this plane.
func (c *Catalog) Supports(f uint32, m Modifier) bool {
	for _, mod := range c.modifiers[f] {
		if mod == m {
			return true
		}
	}

	return false
}

// FromInFormatsBlob decodes a plane's IN_FORMATS property blob into a
// catalog. A format present in the blob with zero listed modifiers still
// gets an implicit DRM_FORMAT_MOD_INVALID entry, so "format accepted,
// modifier support unknown" stays representable (older drivers expose
// IN_FORMATS without ever listing LINEAR explicitly).
func FromInFormatsBlob(blob []byte) (*Catalog, error) {
	formats, modsByFormat, err := drmioctl.DecodeInFormatsBlob(blob)
	if err != nil {
		return nil, err
	}

	out := make(map[uint32][]Modifier, len(formats))

	for _, f := range formats {
		mods := modsByFormat[f]
		if len(mods) == 0 {
			mods = []Modifier{drmioctl.FormatModInvalid}
		}

		out[f] = append([]Modifier(nil), mods...)
	}

	return &Catalog{modifiers: out}, nil
}

// FromLegacyList builds a catalog from a plane's legacy count_formats/
// formats array, attaching a single LINEAR modifier to every format (the
// only layout legacy drivers understand).
func FromLegacyList(formats []uint32) *Catalog {
	out := make(map[uint32][]Modifier, len(formats))
	for _, f := range formats {
		out[f] = []Modifier{drmioctl.FormatModLinear}
	}

	return &Catalog{modifiers: out}
}
