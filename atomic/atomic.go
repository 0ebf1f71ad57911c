// Package atomic builds and submits DRM atomic commits: it is the
// transactional path of the dual-path committer, used whenever the
// device's capability probe reports atomic modeset support. It exposes
// the same three external operations (Test,
// ApplyAsync, ApplySync) as the legacy package, so callers never need to
// know which path is active.
package atomic

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/talonwl/kmscommit/content"
	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/state"
)

var (
	// ErrStateLastPending is InvalidState: a commit was attempted on an
	// output that still has a promoted state awaiting its completion
	// event, violating the single-commit-in-flight ordering guarantee.
	ErrStateLastPending = errors.New("atomic: output has a commit already in flight")

	// ErrApplySyncRequiresOff is InvalidState: ApplySync's precondition
	// (every contained output DPMS==Off) was violated.
	ErrApplySyncRequiresOff = errors.New("atomic: apply_sync requires every output state to be DPMS off")
)

// CompletionFunc mirrors event.CompletionFunc without importing the event
// package: a synthesized SYNC completion needs only the same four
// arguments, with the flags as a plain uint32.
type CompletionFunc func(out *state.Output, flags uint32, sec, usec uint32)

// Flags mirror event.CompletionFlags' bit meanings for synthesized
// completions (duplicated rather than imported to keep this package
// dependency-free of event).
const (
	FlagHWCompletion uint32 = 1 << 1
)

// Committer drives Device through the atomic commit path.
type Committer struct {
	Device *state.Device

	// OnComplete, if set, is invoked synchronously by ApplySync once the
	// disabling commit returns: for synchronously-disabled outputs, the
	// callback is synthesized with a freshly read monotonic clock and
	// flag HWCompletion only, since no event will ever arrive for them.
	OnComplete CompletionFunc
}

// NewCommitter returns a Committer bound to dev.
func NewCommitter(dev *state.Device) *Committer {
	return &Committer{Device: dev}
}

// Test builds an atomic request from pending and submits it with the
// TEST_ONLY flag. It does not consume pending, does not touch
// state_invalid, and leaves device state byte-identical on return (success
// or failure): the kernel vets the request without applying it.
func (c *Committer) Test(pending *state.PendingState) error {
	req, allowModeset, err := c.build(pending)
	if err != nil {
		return fmt.Errorf("atomic test: %w", err)
	}

	reassertMaster(c.Device.Fd)

	flags := uint32(drmioctl.ModeAtomicTestOnly)
	if allowModeset {
		flags |= drmioctl.ModeAtomicAllowModeset
	}

	if err := req.Commit(c.Device.Fd, flags, 0); err != nil {
		return fmt.Errorf("atomic test: %w", err)
	}

	return nil
}

// ApplyAsync builds an atomic request from pending, submits it with
// PAGE_FLIP_EVENT|NONBLOCK, and on success promotes pending state,
// arming each output for its completion event. Consumes pending. Clears
// state_invalid on success.
func (c *Committer) ApplyAsync(pending *state.PendingState) error {
	dev := pending.Device

	if err := assertNoCommitInFlight(pending); err != nil {
		pending.Free()

		return err
	}

	req, allowModeset, err := c.build(pending)
	if err != nil {
		pending.Free()

		return fmt.Errorf("atomic apply: %w", err)
	}

	reassertMaster(dev.Fd)

	flags := uint32(drmioctl.ModeAtomicNonblock | drmioctl.ModePageFlipEvent)
	if allowModeset {
		flags |= drmioctl.ModeAtomicAllowModeset
	}

	outputs := append([]*state.OutputState(nil), pending.Outputs...)

	if err := req.Commit(dev.Fd, flags, 0); err != nil {
		// A rejected commit escalates state_invalid so the next commit
		// emits the disable preamble, since repeated rejections often
		// mean the device's live state has drifted from what this core
		// believes.
		dev.StateInvalid = true
		pending.Free()

		return fmt.Errorf("atomic apply: commit rejected: %w", err)
	}

	pending.Promote(true)

	for _, os := range outputs {
		os.Output.AtomicCompletePending = true
	}

	dev.StateInvalid = false
	dev.CleanHDRBlob = false
	c.destroyTransientHDRBlob()

	return nil
}

// ApplySync builds an atomic request from pending, submits it with no
// flags, and promotes state immediately (no event is expected). Every
// OutputState in pending must have DPMS==Off; this entry point exists only
// to disable outputs synchronously. Consumes pending. Clears
// state_invalid on success.
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

	req, allowModeset, err := c.build(pending)
	if err != nil {
		pending.Free()

		return fmt.Errorf("atomic apply_sync: %w", err)
	}

	reassertMaster(dev.Fd)

	flags := uint32(0)
	if allowModeset {
		flags |= drmioctl.ModeAtomicAllowModeset
	}

	outputs := append([]*state.OutputState(nil), pending.Outputs...)

	if err := req.Commit(dev.Fd, flags, 0); err != nil {
		dev.StateInvalid = true
		pending.Free()

		return fmt.Errorf("atomic apply_sync: commit rejected: %w", err)
	}

	pending.Promote(false)

	dev.StateInvalid = false
	dev.CleanHDRBlob = false
	c.destroyTransientHDRBlob()

	sec, usec := monotonicNow()

	for _, os := range outputs {
		if c.OnComplete != nil {
			c.OnComplete(os.Output, FlagHWCompletion, sec, usec)
		}
	}

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

// build assembles an atomic request for pending, reporting whether
// ALLOW_MODESET must be requested.
func (c *Committer) build(pending *state.PendingState) (*drmioctl.AtomicRequest, bool, error) {
	dev := pending.Device
	req := drmioctl.NewAtomicRequest()
	allowModeset := false

	if dev.StateInvalid {
		if err := c.disablePreamble(req); err != nil {
			return nil, false, err
		}

		allowModeset = true
	}

	for _, os := range pending.Outputs {
		am, err := c.buildOutput(req, os)
		if err != nil {
			return nil, false, err
		}

		allowModeset = allowModeset || am
	}

	return req, allowModeset, nil
}

// disablePreamble is emitted once per commit whenever state_invalid is
// set, defaulting every idle object to disabled before per-output
// application overrides the ones actually in use.
func (c *Committer) disablePreamble(req *drmioctl.AtomicRequest) error {
	dev := c.Device

	for _, conn := range dev.Connectors {
		if conn.Enabled {
			continue
		}

		req.AddProperty(conn.ID, conn.Props.ID(state.ConnPropCrtcID), 0)
	}

	for _, crtc := range dev.CRTCs {
		if crtc.InUse() {
			continue
		}

		// The kernel rejects an ACTIVE off->off transition, so liveness is
		// read fresh rather than trusted from cached state.
		raw, err := drmioctl.ObjectGetProperties(dev.Fd, crtc.ID, drmioctl.ObjectCRTC)
		if err != nil {
			return fmt.Errorf("disable preamble: reading live CRTC %d properties: %w", crtc.ID, err)
		}

		if !crtc.LiveActive(raw) {
			continue
		}

		req.AddProperty(crtc.ID, crtc.Props.ID(state.CrtcPropActive), 0)
		req.AddProperty(crtc.ID, crtc.Props.ID(state.CrtcPropModeID), 0)
	}

	for _, plane := range dev.Planes {
		req.AddProperty(plane.ID, plane.Props.ID(state.PlanePropCrtcID), 0)
		req.AddProperty(plane.ID, plane.Props.ID(state.PlanePropFbID), 0)
	}

	return nil
}

// buildOutput assembles the CRTC, head, content-protection and plane
// property writes for one OutputState.
func (c *Committer) buildOutput(req *drmioctl.AtomicRequest, os *state.OutputState) (bool, error) {
	dev := c.Device
	out := os.Output
	allowModeset := false

	prevDPMS := state.DPMSOff
	if out.Current != nil {
		prevDPMS = out.Current.DPMS
	}

	if prevDPMS != os.DPMS {
		allowModeset = true
	}

	if os.DPMS == state.DPMSOn {
		if out.Mode == nil {
			return false, fmt.Errorf("atomic: output has no mode set but requests DPMS on")
		}

		blobID, err := out.Mode.BlobID()
		if err != nil {
			return false, fmt.Errorf("atomic: creating mode blob: %w", err)
		}

		req.AddProperty(out.CRTC.ID, out.CRTC.Props.ID(state.CrtcPropModeID), uint64(blobID))
		req.AddProperty(out.CRTC.ID, out.CRTC.Props.ID(state.CrtcPropActive), 1)

		for _, head := range out.Heads {
			req.AddProperty(head.ID, head.Props.ID(state.ConnPropCrtcID), uint64(out.CRTC.ID))
		}

		if dev.HDRBlobID != 0 && len(out.Heads) > 0 {
			if content.WriteHDRMetadata(dev, req, out.Heads[0]) {
				allowModeset = true
			}
		}
	} else {
		req.AddProperty(out.CRTC.ID, out.CRTC.Props.ID(state.CrtcPropModeID), 0)
		req.AddProperty(out.CRTC.ID, out.CRTC.Props.ID(state.CrtcPropActive), 0)

		for _, head := range out.Heads {
			req.AddProperty(head.ID, head.Props.ID(state.ConnPropCrtcID), 0)
		}

		// Heads dropped from this output's clone set in the same
		// reconfiguration are no longer in out.Heads, but they still point
		// their CRTC_ID at this CRTC until told otherwise.
		for _, head := range os.DisableHeads {
			req.AddProperty(head.ID, head.Props.ID(state.ConnPropCrtcID), 0)
		}
	}

	if len(out.Heads) > 0 {
		drivingHead := out.Heads[0]

		if content.WriteContentProtection(dev, req, drivingHead, os.Protection, os.HDCPType1) {
			allowModeset = true
		}

		content.WriteMaxBPC(req, drivingHead, os.MaxBPC)
	}

	for _, ps := range os.Planes {
		c.buildPlane(req, ps, out)
	}

	return allowModeset, nil
}

// buildPlane emits the full property set for one plane's state.
func (c *Committer) buildPlane(req *drmioctl.AtomicRequest, ps *state.PlaneState, out *state.Output) {
	p := ps.Plane

	if ps.FB == nil {
		req.AddProperty(p.ID, p.Props.ID(state.PlanePropFbID), 0)
		req.AddProperty(p.ID, p.Props.ID(state.PlanePropCrtcID), 0)

		return
	}

	req.AddProperty(p.ID, p.Props.ID(state.PlanePropFbID), uint64(ps.FB.ID))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropCrtcID), uint64(out.CRTC.ID))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropSrcX), uint64(ps.SrcX))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropSrcY), uint64(ps.SrcY))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropSrcW), uint64(ps.SrcW))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropSrcH), uint64(ps.SrcH))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropCrtcX), uint64(uint32(ps.CrtcX)))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropCrtcY), uint64(uint32(ps.CrtcY)))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropCrtcW), uint64(ps.CrtcW))
	req.AddProperty(p.ID, p.Props.ID(state.PlanePropCrtcH), uint64(ps.CrtcH))

	if p.SupportsDamageClips() && ps.DamageBlobID != 0 {
		req.AddProperty(p.ID, p.Props.ID(state.PlanePropFbDamageClips), uint64(ps.DamageBlobID))
	}

	fence := ps.InFenceFD
	if fence < 0 && p.Kind == state.KindPrimary && out.RenderFencePrimary >= 0 {
		fence = out.RenderFencePrimary
	}

	if fence >= 0 {
		req.AddProperty(p.ID, p.Props.ID(state.PlanePropInFenceFD), uint64(fence))
	}

	if p.ZposMutable() {
		req.AddProperty(p.ID, p.Props.ID(state.PlanePropZpos), ps.Zpos)
	}
}

// reassertMaster reasserts DRM master authority immediately before a
// commit, to survive an external session manager that stole it; failure
// here is not fatal, since the subsequent commit will surface the error.
func reassertMaster(fd uintptr) {
	magic, err := drmioctl.GetMagic(fd)
	if err != nil {
		return
	}

	if err := drmioctl.AuthMagic(fd, magic); err != nil {
		return
	}

	_ = drmioctl.SetMaster(fd)
}

func (c *Committer) destroyTransientHDRBlob() {
	dev := c.Device
	if dev.HDRBlobID == 0 {
		return
	}

	_ = drmioctl.DestroyPropertyBlob(dev.Fd, dev.HDRBlobID)
	dev.HDRBlobID = 0
}

func monotonicNow() (sec, usec uint32) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, 0
	}

	return uint32(ts.Sec), uint32(ts.Nsec / 1000)
}
