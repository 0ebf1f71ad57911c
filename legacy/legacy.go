// Package legacy implements the non-atomic DRM commit path
// (SetCrtc/PageFlip/connector-property ioctls) used only when the
// device's capability probe reports no atomic modeset support. It exposes
// the same three external operations as the atomic package (Test,
// ApplyAsync, ApplySync), with a strictly ordered per-output ioctl
// sequence instead of one transactional commit.
package legacy

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/state"
)

// MaxClonedConnectors bounds the connector-id list passed to SetCrtc, a
// compile-time constant matching typical multi-head clone limits.
const MaxClonedConnectors = 4

var (
	// ErrScalingUnsupported: the scanout plane state requested scaling,
	// clipping, or an in-fence, none of which the legacy path can do.
	ErrScalingUnsupported = errors.New("legacy: scanout plane state requires scale/clip/fence, unsupported on this path")

	// ErrApplySyncRequiresOff mirrors atomic.ErrApplySyncRequiresOff.
	ErrApplySyncRequiresOff = errors.New("legacy: apply_sync requires every output state to be DPMS off")

	// ErrNoScanoutPlane: an enabled output state carried no primary plane
	// state to scan out.
	ErrNoScanoutPlane = errors.New("legacy: output state has no primary plane state")

	// ErrStateLastPending mirrors atomic.ErrStateLastPending: a commit was
	// attempted on an output that still has a promoted state awaiting its
	// completion event.
	ErrStateLastPending = errors.New("legacy: output has a commit already in flight")
)

// CompletionFunc mirrors atomic.CompletionFunc.
type CompletionFunc func(out *state.Output, flags uint32, sec, usec uint32)

// FlagHWCompletion mirrors atomic.FlagHWCompletion.
const FlagHWCompletion uint32 = 1 << 1

// Committer drives Device through the legacy commit path.
type Committer struct {
	Device *state.Device

	// OnComplete is invoked for every synchronously-disabled output, and
	// also used as the synthesized-completion path for ApplySync, exactly
	// like atomic.Committer.OnComplete.
	OnComplete CompletionFunc

	// OnRendererReinit is invoked when a partially applied legacy commit
	// fails mid-sequence, signalling that the output's framebuffer context
	// may be invalid and must be reinitialized by the renderer.
	OnRendererReinit func(out *state.Output)

	lastPitch map[*state.Output]uint32
}

// NewCommitter returns a Committer bound to dev.
func NewCommitter(dev *state.Device) *Committer {
	return &Committer{Device: dev, lastPitch: make(map[*state.Output]uint32)}
}

// Test has no kernel-side equivalent on the legacy path (there is no
// test-only ioctl like atomic TEST), so it only checks the
// scanout-compatibility precondition of every DPMS-on output and never
// touches the device. Does not consume pending.
func (c *Committer) Test(pending *state.PendingState) error {
	for _, os := range pending.Outputs {
		if os.DPMS != state.DPMSOn {
			continue
		}

		if err := assertScanoutCompatible(os); err != nil {
			return err
		}
	}

	return nil
}

// ApplyAsync applies pending output-by-output: outputs going DPMS-off are
// disabled synchronously (and their completion synthesized immediately);
// outputs staying/becoming DPMS-on get the legacy SetCrtc+PageFlip
// sequence, with completion delivered later by the event demultiplexer.
// Consumes pending. Clears state_invalid on success.
func (c *Committer) ApplyAsync(pending *state.PendingState) error {
	dev := pending.Device

	if err := assertNoCommitInFlight(pending); err != nil {
		pending.Free()

		return err
	}

	if dev.StateInvalid {
		c.disablePreamble()
	}

	var outputs []*state.OutputState

	for _, os := range pending.Outputs {
		if err := c.applyOne(os); err != nil {
			pending.Free()

			return err
		}

		outputs = append(outputs, os)
	}

	for _, os := range outputs {
		async := os.DPMS == state.DPMSOn
		if async {
			os.Output.PageFlipPending = true
		}

		state.PromoteOutputState(os, async)
	}

	pending.Outputs = nil

	dev.StateInvalid = false

	return nil
}

// ApplySync applies pending synchronously; every contained OutputState
// must have DPMS==Off (the legacy path's only synchronous operation is
// disabling an output). Consumes pending. Clears state_invalid on success.
func (c *Committer) ApplySync(pending *state.PendingState) error {
	dev := pending.Device

	for _, os := range pending.Outputs {
		if os.DPMS != state.DPMSOff {
			pending.Free()

			return ErrApplySyncRequiresOff
		}
	}

	if err := assertNoCommitInFlight(pending); err != nil {
		pending.Free()

		return err
	}

	if dev.StateInvalid {
		c.disablePreamble()
	}

	for _, os := range pending.Outputs {
		if err := c.applyOne(os); err != nil {
			pending.Free()

			return err
		}
	}

	for _, os := range pending.Outputs {
		state.PromoteOutputState(os, false)
	}

	pending.Outputs = nil
	dev.StateInvalid = false

	return nil
}

func assertNoCommitInFlight(pending *state.PendingState) error {
	for _, os := range pending.Outputs {
		if os.Output.Last != nil {
			return fmt.Errorf("%w", ErrStateLastPending)
		}
	}

	return nil
}

// disablePreamble issues SetCrtc(fb=0) against every idle CRTC, which also
// disables their connectors as a side effect.
func (c *Committer) disablePreamble() {
	for _, crtc := range c.Device.CRTCs {
		if crtc.InUse() {
			continue
		}

		_ = drmioctl.SetCrtc(c.Device.Fd, crtc.ID, 0, 0, 0, nil, nil)
	}
}

// applyOne runs the per-output SetCrtc/PageFlip/cursor/DPMS sequence.
// The caller promotes (state.PromoteOutputState) only once every output in
// the batch has been applied without error, so a mid-batch failure never
// leaves some outputs promoted and others not.
func (c *Committer) applyOne(os *state.OutputState) error {
	out := os.Output

	if os.DPMS != state.DPMSOn {
		return c.disableOutput(os)
	}

	scanout, err := primaryPlaneState(os)
	if err != nil {
		return err
	}

	if scanout.FB == nil {
		return fmt.Errorf("legacy: output requests DPMS on with no scanout framebuffer attached")
	}

	if err := assertScanoutCompatible(os); err != nil {
		return err
	}

	prevDPMS := state.DPMSOff
	if out.Current != nil {
		prevDPMS = out.Current.DPMS
	}

	firstCommit := out.Current == nil
	strideChanged := scanout.FB != nil && c.lastPitch[out] != scanout.FB.Pitch

	if firstCommit || strideChanged {
		if out.Mode == nil {
			return fmt.Errorf("legacy: output has no mode set but requests DPMS on")
		}

		connIDs := cloneConnectorIDs(out.Heads)

		if err := drmioctl.SetCrtc(c.Device.Fd, out.CRTC.ID, uint32(scanout.FB.ID), 0, 0, connIDs, &out.Mode.Info); err != nil {
			c.onPartialFailure(out)

			return fmt.Errorf("legacy: SetCrtc(crtc=%d): %w", out.CRTC.ID, err)
		}
	}

	if scanout.FB != nil {
		c.lastPitch[out] = scanout.FB.Pitch
	}

	// user_data carries the CRTC id: the kernel's legacy page-flip
	// completion event has no dedicated crtc_id field, so this is the only
	// way the event demultiplexer can identify which output completed.
	if err := drmioctl.PageFlip(c.Device.Fd, out.CRTC.ID, uint32(scanout.FB.ID), drmioctl.ModePageFlipEvent, uint64(out.CRTC.ID)); err != nil {
		c.onPartialFailure(out)

		return fmt.Errorf("legacy: PageFlip(crtc=%d): %w", out.CRTC.ID, err)
	}

	if cursor, ok := cursorPlaneState(os); ok {
		if err := c.applyCursor(out, cursor); err != nil {
			// Disable the cursor and mark it broken for the rest of this
			// session, but this does not abort an otherwise-successful
			// page flip.
			c.Device.CursorsAreBroken = true
			_ = drmioctl.SetCursor(c.Device.Fd, out.CRTC.ID, 0, 0, 0)
		}
	}

	if prevDPMS != os.DPMS {
		for _, head := range out.Heads {
			propID := head.Props.ID(state.ConnPropDPMS)
			if propID == 0 {
				continue
			}

			kv, ok := head.Props.EnumKernelValue(state.ConnPropDPMS, os.DPMS)
			if !ok {
				continue
			}

			_ = drmioctl.ConnectorSetProperty(c.Device.Fd, head.ID, propID, kv)
		}
	}

	return nil
}

// disableOutput implements the DPMS!=On branch: disable the cursor,
// SetCrtc(fb=0), and synthesize an immediate completion since there is no
// event to wait for.
func (c *Committer) disableOutput(os *state.OutputState) error {
	out := os.Output

	if c.Device.CursorsAreBroken {
		// A previously-broken cursor plane is left alone: further SetCursor
		// calls would only fail again.
	} else if err := drmioctl.SetCursor(c.Device.Fd, out.CRTC.ID, 0, 0, 0); err != nil {
		c.Device.CursorsAreBroken = true
	}

	if err := drmioctl.SetCrtc(c.Device.Fd, out.CRTC.ID, 0, 0, 0, nil, nil); err != nil {
		c.onPartialFailure(out)

		return fmt.Errorf("legacy: SetCrtc(disable, crtc=%d): %w", out.CRTC.ID, err)
	}

	delete(c.lastPitch, out)

	sec, usec := monotonicNow()
	if c.OnComplete != nil {
		c.OnComplete(out, FlagHWCompletion, sec, usec)
	}

	return nil
}

func (c *Committer) applyCursor(out *state.Output, cursor *state.PlaneState) error {
	if cursor.FB == nil {
		return drmioctl.SetCursor(c.Device.Fd, out.CRTC.ID, 0, 0, 0)
	}

	if err := drmioctl.SetCursor(c.Device.Fd, out.CRTC.ID, uint32(cursor.FB.ID), cursor.FB.Width, cursor.FB.Height); err != nil {
		return err
	}

	return drmioctl.MoveCursor(c.Device.Fd, out.CRTC.ID, cursor.CrtcX, cursor.CrtcY)
}

// onPartialFailure recovers from a legacy commit that failed mid-sequence:
// reallocate the output's current state as empty, mark state_invalid, and
// signal the renderer that its surface may be invalid.
func (c *Committer) onPartialFailure(out *state.Output) {
	if out.Current != nil {
		out.Current.Free()
	}

	out.Current = &state.OutputState{Output: out, DPMS: state.DPMSOff}
	out.PageFlipPending = false
	c.Device.StateInvalid = true

	if c.OnRendererReinit != nil {
		c.OnRendererReinit(out)
	}
}

func primaryPlaneState(os *state.OutputState) (*state.PlaneState, error) {
	for _, ps := range os.Planes {
		if ps.Plane.Kind == state.KindPrimary {
			return ps, nil
		}
	}

	return nil, ErrNoScanoutPlane
}

func cursorPlaneState(os *state.OutputState) (*state.PlaneState, bool) {
	for _, ps := range os.Planes {
		if ps.Plane.Kind == state.KindCursor {
			return ps, true
		}
	}

	return nil, false
}

// assertScanoutCompatible enforces the precondition that the scanout
// plane state must have zero source offset, zero destination offset, and
// no in-fence, because the legacy path cannot scale, clip, or fence.
func assertScanoutCompatible(os *state.OutputState) error {
	scanout, err := primaryPlaneState(os)
	if err != nil {
		return err
	}

	if scanout.SrcX != 0 || scanout.SrcY != 0 || scanout.CrtcX != 0 || scanout.CrtcY != 0 || scanout.InFenceFD >= 0 {
		return ErrScalingUnsupported
	}

	return nil
}

func cloneConnectorIDs(heads []*state.Connector) []uint32 {
	n := len(heads)
	if n > MaxClonedConnectors {
		n = MaxClonedConnectors
	}

	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		ids[i] = heads[i].ID
	}

	return ids
}

func monotonicNow() (sec, usec uint32) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, 0
	}

	return uint32(ts.Sec), uint32(ts.Nsec / 1000)
}
