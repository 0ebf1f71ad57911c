package legacy_test

import (
	"errors"
	"testing"

	"github.com/talonwl/kmscommit/legacy"
	"github.com/talonwl/kmscommit/state"
)

func newTestOutput() (*state.Device, *state.Output, *state.Plane) {
	dev := state.NewDevice(3)
	crtc := state.NewCRTC(10)
	conn := state.NewConnector(20)
	plane := state.NewPlane(30)
	plane.Kind = state.KindPrimary
	dev.CRTCs = append(dev.CRTCs, crtc)
	dev.Connectors = append(dev.Connectors, conn)
	dev.Planes = append(dev.Planes, plane)
	out := state.NewOutput(crtc, []*state.Connector{conn})

	return dev, out, plane
}

func TestTestRejectsOutputWithoutScanoutPlane(t *testing.T) {
	t.Parallel()

	dev, out, _ := newTestOutput()
	pending := state.NewPendingState(dev)
	pending.GetOutputState(out) // DPMS defaults to On, no plane state attached

	c := legacy.NewCommitter(dev)

	err := c.Test(pending)
	if !errors.Is(err, legacy.ErrNoScanoutPlane) {
		t.Fatalf("Test error = %v, want ErrNoScanoutPlane", err)
	}
}

func TestTestRejectsScaledScanout(t *testing.T) {
	t.Parallel()

	dev, out, plane := newTestOutput()
	pending := state.NewPendingState(dev)
	os := pending.GetOutputState(out)
	ps := state.NewPlaneState(os, plane)
	ps.FB = &state.Framebuffer{ID: 1}
	ps.SrcX = 1 << 16 // nonzero source offset: scaling/clipping the legacy path cannot do

	c := legacy.NewCommitter(dev)

	err := c.Test(pending)
	if !errors.Is(err, legacy.ErrScalingUnsupported) {
		t.Fatalf("Test error = %v, want ErrScalingUnsupported", err)
	}
}

func TestTestAcceptsUnscaledScanout(t *testing.T) {
	t.Parallel()

	dev, out, plane := newTestOutput()
	pending := state.NewPendingState(dev)
	os := pending.GetOutputState(out)
	ps := state.NewPlaneState(os, plane)
	ps.FB = &state.Framebuffer{ID: 1}

	c := legacy.NewCommitter(dev)

	if err := c.Test(pending); err != nil {
		t.Errorf("Test on an unscaled scanout returned %v, want nil", err)
	}

	if pending.Outputs == nil {
		t.Errorf("Test must not consume pending")
	}
}

func TestApplySyncRequiresEveryOutputOff(t *testing.T) {
	t.Parallel()

	dev, out, _ := newTestOutput()
	pending := state.NewPendingState(dev)
	os := pending.GetOutputState(out)
	os.DPMS = state.DPMSOn

	c := legacy.NewCommitter(dev)

	err := c.ApplySync(pending)
	if !errors.Is(err, legacy.ErrApplySyncRequiresOff) {
		t.Fatalf("ApplySync error = %v, want ErrApplySyncRequiresOff", err)
	}

	if pending.Outputs != nil {
		t.Errorf("pending must be consumed even on rejection")
	}
}
