package kms_test

import (
	"testing"

	"github.com/talonwl/kmscommit/event"
	"github.com/talonwl/kmscommit/kms"
	"github.com/talonwl/kmscommit/state"
)

func TestOpenAgainstRealDevice(t *testing.T) {
	noop := func(*state.Output, event.CompletionFlags, uint32, uint32) {}

	d, err := kms.Open("/dev/dri/card0", noop)
	if err != nil {
		t.Skipf("skipping, no usable DRM device available: %v", err)
	}
	defer d.Close()

	if !d.Caps.UniversalPlanes {
		t.Errorf("Open must fail rather than return a device without universal planes")
	}

	if !d.Caps.TimestampMonotonic {
		t.Errorf("Open must fail rather than return a device without monotonic timestamps")
	}

	for _, p := range d.Planes {
		if p.Catalog == nil {
			t.Errorf("plane %d discovered with a nil format catalog", p.ID)
		}
	}

	pending := d.NewPendingState()
	if pending.Device == nil {
		t.Errorf("NewPendingState must bind the device")
	}
}

func TestOpenRejectsMissingDevice(t *testing.T) {
	noop := func(*state.Output, event.CompletionFlags, uint32, uint32) {}

	if _, err := kms.Open("/nonexistent/drm/node", noop); err == nil {
		t.Errorf("Open on a nonexistent path must return an error")
	}
}
