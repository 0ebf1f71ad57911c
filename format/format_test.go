package format_test

import (
	"encoding/binary"
	"testing"

	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/format"
)

// buildInFormatsBlob constructs a minimal struct drm_format_modifier_blob
// with one format ("XR24") that has an explicit LINEAR modifier and one
// format ("AR24") with no modifier entries at all.
func buildInFormatsBlob(t *testing.T) []byte {
	t.Helper()

	const (
		xr24 = 0x34325258
		ar24 = 0x34325241
	)

	formatsOffset := uint32(24)
	formats := []uint32{xr24, ar24}
	modifiersOffset := formatsOffset + uint32(len(formats)*4)

	buf := make([]byte, modifiersOffset+24)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(formats)))
	binary.LittleEndian.PutUint32(buf[12:16], formatsOffset)
	binary.LittleEndian.PutUint32(buf[16:20], 1) // modifiers_count
	binary.LittleEndian.PutUint32(buf[20:24], modifiersOffset)

	binary.LittleEndian.PutUint32(buf[formatsOffset:formatsOffset+4], xr24)
	binary.LittleEndian.PutUint32(buf[formatsOffset+4:formatsOffset+8], ar24)

	// One drm_format_modifier entry: formats bitmask selects index 0 (XR24).
	binary.LittleEndian.PutUint64(buf[modifiersOffset:modifiersOffset+8], 1)
	binary.LittleEndian.PutUint32(buf[modifiersOffset+8:modifiersOffset+12], 0)
	binary.LittleEndian.PutUint64(buf[modifiersOffset+16:modifiersOffset+24], drmioctl.FormatModLinear)

	return buf
}

func TestFromInFormatsBlob(t *testing.T) {
	t.Parallel()

	cat, err := format.FromInFormatsBlob(buildInFormatsBlob(t))
	if err != nil {
		t.Fatalf("FromInFormatsBlob: %v", err)
	}

	const xr24 = 0x34325258
	if !cat.Supports(xr24, drmioctl.FormatModLinear) {
		t.Errorf("expected XR24/LINEAR to be supported")
	}

	const ar24 = 0x34325241
	mods := cat.Modifiers(ar24)
	if len(mods) != 1 || mods[0] != drmioctl.FormatModInvalid {
		t.Errorf("AR24 with no listed modifiers = %v, want [FormatModInvalid]", mods)
	}
}

func TestFromLegacyList(t *testing.T) {
	t.Parallel()

	const xr24 = 0x34325258
	cat := format.FromLegacyList([]uint32{xr24})

	if !cat.Supports(xr24, drmioctl.FormatModLinear) {
		t.Errorf("legacy catalog should attach LINEAR to every format")
	}

	if cat.Supports(xr24, 0xdead) {
		t.Errorf("legacy catalog should not accept arbitrary modifiers")
	}
}
