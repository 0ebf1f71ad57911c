package property_test

import (
	"errors"
	"testing"

	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/property"
)

const (
	specType = iota
	specCrtcID
	specSrcX
)

func testSpecs() []property.Spec {
	return []property.Spec{
		specType:   {Name: "type", EnumNames: []string{"Primary", "Overlay", "Cursor"}},
		specCrtcID: {Name: "CRTC_ID"},
		specSrcX:   {Name: "SRC_X"},
	}
}

func fakeMeta(t *testing.T) map[uint32]drmioctl.PropertyMeta {
	t.Helper()

	return map[uint32]drmioctl.PropertyMeta{
		10: {ID: 10, Name: "type", Flags: drmioctl.PropEnum, EnumValues: []drmioctl.EnumValue{
			{Name: "Overlay", Value: 0},
			{Name: "Primary", Value: 1},
			{Name: "Cursor", Value: 2},
		}},
		11: {ID: 11, Name: "CRTC_ID"},
		12: {ID: 12, Name: "SRC_X", Flags: drmioctl.PropRange, RangeValues: []uint64{0, 0xffffffff}},
	}
}

func getMeta(metas map[uint32]drmioctl.PropertyMeta) func(uint32) (drmioctl.PropertyMeta, error) {
	return func(id uint32) (drmioctl.PropertyMeta, error) {
		m, ok := metas[id]
		if !ok {
			return drmioctl.PropertyMeta{}, errors.New("no such property")
		}

		return m, nil
	}
}

func TestPopulateResolvesKnownNames(t *testing.T) {
	t.Parallel()

	table := property.NewTable(testSpecs())
	raw := []drmioctl.RawProperty{{ID: 10, Value: 1}, {ID: 11, Value: 42}, {ID: 12, Value: 7}}

	if err := table.Populate(raw, getMeta(fakeMeta(t))); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	if id := table.ID(specType); id != 10 {
		t.Errorf("type prop id = %d, want 10", id)
	}

	if id := table.ID(specCrtcID); id != 11 {
		t.Errorf("CRTC_ID prop id = %d, want 11", id)
	}

	if got := table.GetEnumValue(specType, raw, -1); got != 0 /* Primary index */ {
		t.Errorf("GetEnumValue(type) = %d, want 0 (Primary)", got)
	}

	min, max, ok := table.GetRangeValues(specSrcX)
	if !ok || min != 0 || max != 0xffffffff {
		t.Errorf("GetRangeValues(SRC_X) = (%d,%d,%v), want (0,%d,true)", min, max, ok, uint64(0xffffffff))
	}
}

func TestPopulateUnmatchedNameLeavesZero(t *testing.T) {
	t.Parallel()

	table := property.NewTable(testSpecs())
	// Only CRTC_ID exists on this object; "type" and "SRC_X" are absent.
	raw := []drmioctl.RawProperty{{ID: 11, Value: 3}}
	metas := map[uint32]drmioctl.PropertyMeta{11: {ID: 11, Name: "CRTC_ID"}}

	if err := table.Populate(raw, getMeta(metas)); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	if id := table.ID(specType); id != 0 {
		t.Errorf("type prop id = %d, want 0 (absent)", id)
	}

	const def = 99
	if got := table.GetValue(specType, raw, def); got != def {
		t.Errorf("GetValue(type) = %d, want default %d", got, def)
	}
}

func TestPopulateTypeMismatchLeavesUnresolved(t *testing.T) {
	t.Parallel()

	table := property.NewTable(testSpecs())
	// Kernel exposes "type" as a plain (non-enum) property on this driver.
	raw := []drmioctl.RawProperty{{ID: 20, Value: 1}}
	metas := map[uint32]drmioctl.PropertyMeta{20: {ID: 20, Name: "type"}}

	if err := table.Populate(raw, getMeta(metas)); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	if id := table.ID(specType); id != 0 {
		t.Errorf("type prop id = %d, want 0 (mismatch leaves unresolved)", id)
	}
}

func TestPopulateIsIdempotent(t *testing.T) {
	t.Parallel()

	table := property.NewTable(testSpecs())
	raw := []drmioctl.RawProperty{{ID: 10, Value: 1}, {ID: 11, Value: 42}, {ID: 12, Value: 7}}
	metas := fakeMeta(t)

	if err := table.Populate(raw, getMeta(metas)); err != nil {
		t.Fatalf("Populate #1: %v", err)
	}

	// Re-run as on a hotplug: names are stable, enum codes may be
	// reassigned by the kernel, but the resolved set must match.
	metas[99] = drmioctl.PropertyMeta{ID: 99, Name: "type", Flags: drmioctl.PropEnum, EnumValues: []drmioctl.EnumValue{
		{Name: "Primary", Value: 5},
		{Name: "Overlay", Value: 6},
		{Name: "Cursor", Value: 7},
	}}
	raw2 := []drmioctl.RawProperty{{ID: 99, Value: 5}, {ID: 11, Value: 42}, {ID: 12, Value: 7}}

	if err := table.Populate(raw2, getMeta(metas)); err != nil {
		t.Fatalf("Populate #2: %v", err)
	}

	if id := table.ID(specType); id != 99 {
		t.Errorf("type prop id after repopulate = %d, want 99", id)
	}

	if got := table.GetEnumValue(specType, raw2, -1); got != 0 {
		t.Errorf("GetEnumValue(type) after repopulate = %d, want 0 (Primary)", got)
	}
}

func TestEnumRoundTrip(t *testing.T) {
	t.Parallel()

	table := property.NewTable(testSpecs())
	raw := []drmioctl.RawProperty{{ID: 10, Value: 1}}

	if err := table.Populate(raw, getMeta(fakeMeta(t))); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	variant := table.GetEnumValue(specType, raw, -1)
	if variant < 0 {
		t.Fatalf("GetEnumValue returned def, want resolved variant")
	}

	kv, ok := table.EnumKernelValue(specType, variant)
	if !ok || kv != raw[0].Value {
		t.Errorf("EnumKernelValue round-trip = (%d,%v), want (%d,true)", kv, ok, raw[0].Value)
	}
}
