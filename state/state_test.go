package state_test

import (
	"testing"

	"github.com/talonwl/kmscommit/state"
)

func newTestOutput() (*state.Device, *state.Output, *state.Plane) {
	dev := state.NewDevice(3)
	crtc := state.NewCRTC(10)
	conn := state.NewConnector(20)
	plane := state.NewPlane(30)
	dev.CRTCs = append(dev.CRTCs, crtc)
	dev.Connectors = append(dev.Connectors, conn)
	dev.Planes = append(dev.Planes, plane)
	out := state.NewOutput(crtc, []*state.Connector{conn})

	return dev, out, plane
}

func TestGetExistingPlaneStateFindsAttached(t *testing.T) {
	t.Parallel()

	dev, out, plane := newTestOutput()
	pending := state.NewPendingState(dev)
	os := pending.GetOutputState(out)
	ps := state.NewPlaneState(os, plane)

	got, ok := state.GetExistingPlaneState(os, plane)
	if !ok || got != ps {
		t.Fatalf("GetExistingPlaneState = (%v,%v), want (%v,true)", got, ok, ps)
	}
}

func TestPendingStateGetOutputStateIsIdempotentPerOutput(t *testing.T) {
	t.Parallel()

	dev, out, _ := newTestOutput()
	pending := state.NewPendingState(dev)

	a := pending.GetOutputState(out)
	b := pending.GetOutputState(out)

	if a != b {
		t.Errorf("GetOutputState returned distinct builders for the same Output")
	}

	if len(pending.Outputs) != 1 {
		t.Errorf("pending.Outputs has %d entries, want 1", len(pending.Outputs))
	}
}

func TestFreeingPendingStateSkipsPromotedPlaneStates(t *testing.T) {
	t.Parallel()

	dev, out, plane := newTestOutput()
	pending := state.NewPendingState(dev)
	os := pending.GetOutputState(out)
	ps := state.NewPlaneState(os, plane)
	ps.FB = &state.Framebuffer{ID: 1}
	ps.FB.Retain()

	// Promote ps: the plane's current pointer now owns it.
	plane.Promote(ps)

	pending.Free()

	if plane.Current != ps {
		t.Errorf("Free must not discard a plane state that was promoted to current")
	}

	if ps.FB == nil {
		t.Errorf("promoted plane state's framebuffer reference must survive Free")
	}
}

func TestOrphanedPlaneStateIsFreedOnNextPromotion(t *testing.T) {
	t.Parallel()

	dev, out, plane := newTestOutput()
	pending := state.NewPendingState(dev)
	os := pending.GetOutputState(out)
	first := state.NewPlaneState(os, plane)
	first.FB = &state.Framebuffer{ID: 1}
	first.FB.Retain()

	plane.Promote(first)
	if plane.Current != first {
		t.Fatalf("expected first state to become current")
	}

	pending2 := state.NewPendingState(dev)
	os2 := pending2.GetOutputState(out)
	second := state.NewPlaneState(os2, plane)
	second.FB = &state.Framebuffer{ID: 2}
	second.FB.Retain()

	plane.Promote(second)

	if plane.Current != second {
		t.Errorf("expected second state to become current")
	}

	if first.FB != nil {
		t.Errorf("displaced first state's framebuffer reference must be released on the next promotion")
	}
}

func TestHDCPChangedOnlyOnTransition(t *testing.T) {
	t.Parallel()

	dev := state.NewDevice(3)
	const connID = 42

	if dev.HDCPChanged(connID, state.ProtectionDesired) {
		t.Errorf("first call for a connector must be reported as unchanged")
	}

	if dev.HDCPChanged(connID, state.ProtectionDesired) {
		t.Errorf("repeating the same level must not be reported as changed")
	}

	if !dev.HDCPChanged(connID, state.ProtectionEnabled) {
		t.Errorf("changing level must be reported as changed")
	}
}
