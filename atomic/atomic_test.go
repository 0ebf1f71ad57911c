package atomic_test

import (
	"errors"
	"testing"

	"github.com/talonwl/kmscommit/atomic"
	"github.com/talonwl/kmscommit/state"
)

func newTestOutput() (*state.Device, *state.Output) {
	dev := state.NewDevice(3)
	crtc := state.NewCRTC(10)
	conn := state.NewConnector(20)
	dev.CRTCs = append(dev.CRTCs, crtc)
	dev.Connectors = append(dev.Connectors, conn)

	return dev, state.NewOutput(crtc, []*state.Connector{conn})
}

func TestApplyAsyncRejectsCommitInFlight(t *testing.T) {
	t.Parallel()

	dev, out := newTestOutput()
	out.Last = &state.OutputState{Output: out, DPMS: state.DPMSOff}

	pending := state.NewPendingState(dev)
	pending.GetOutputState(out)

	c := atomic.NewCommitter(dev)

	err := c.ApplyAsync(pending)
	if !errors.Is(err, atomic.ErrStateLastPending) {
		t.Fatalf("ApplyAsync error = %v, want ErrStateLastPending", err)
	}

	if pending.Outputs != nil {
		t.Errorf("pending must be consumed even on rejection")
	}
}

func TestApplySyncRequiresEveryOutputOff(t *testing.T) {
	t.Parallel()

	dev, out := newTestOutput()

	pending := state.NewPendingState(dev)
	os := pending.GetOutputState(out)
	os.DPMS = state.DPMSOn

	c := atomic.NewCommitter(dev)

	err := c.ApplySync(pending)
	if !errors.Is(err, atomic.ErrApplySyncRequiresOff) {
		t.Fatalf("ApplySync error = %v, want ErrApplySyncRequiresOff", err)
	}

	if pending.Outputs != nil {
		t.Errorf("pending must be consumed even on rejection")
	}
}

func TestApplySyncAcceptsAllOutputsOff(t *testing.T) {
	t.Parallel()

	dev, out := newTestOutput()

	pending := state.NewPendingState(dev)
	os := pending.GetOutputState(out)
	os.DPMS = state.DPMSOff

	c := atomic.NewCommitter(dev)

	// With no real DRM fd behind dev.Fd, the eventual ioctl commit will
	// fail; what this test asserts is that the DPMS-off precondition check
	// itself does not reject a fully-off batch before reaching that point.
	err := c.ApplySync(pending)
	if errors.Is(err, atomic.ErrApplySyncRequiresOff) {
		t.Errorf("ApplySync rejected an all-off batch on the precondition check")
	}
}
