package state

// PlaneState is a per-commit description of one plane.
type PlaneState struct {
	Plane *Plane
	FB    *Framebuffer // nil => disable this plane

	SrcX, SrcY, SrcW, SrcH uint32 // 16.16 fixed point
	CrtcX, CrtcY           int32
	CrtcW, CrtcH           uint32

	InFenceFD    int // -1 if none
	Zpos         uint64
	DamageBlobID uint32

	Complete bool

	// owner is the OutputState this PlaneState currently belongs to, or
	// nil once it has been promoted to be its Plane's Current state (at
	// which point Plane.Current, not owner, is what keeps it alive).
	owner *OutputState
}

// NewPlaneState allocates an empty plane state owned by os.
func NewPlaneState(os *OutputState, p *Plane) *PlaneState {
	ps := &PlaneState{Plane: p, InFenceFD: -1, owner: os}
	os.Planes = append(os.Planes, ps)

	return ps
}

func (ps *PlaneState) free() {
	if ps == nil {
		return
	}

	if ps.FB != nil && ps.FB.Release() {
		// Buffer import/allocation is out of scope; the allocator is
		// notified that nothing references this FB anymore by dropping
		// the last Go-side reference. No ioctl is issued here: RMFB
		// belongs to the external buffer owner, not the commit core.
		ps.FB = nil
	}
}

// Output is one CRTC+connector(s) bundle.
type Output struct {
	CRTC  *CRTC
	Heads []*Connector

	Current *OutputState
	Last    *OutputState // awaiting event completion (ASYNC only)

	PageFlipPending       bool
	AtomicCompletePending bool

	MSC uint64

	Mode *Mode

	// RenderFencePrimary, when set, is a fence fd the atomic committer
	// should fall back to on the primary plane when no plane-specific
	// in-fence is present.
	RenderFencePrimary int
}

// CompleteLast frees the state an ASYNC commit left awaiting its
// completion event, once that event has arrived. A no-op if nothing is
// outstanding (e.g. the output has never taken an ASYNC commit).
func (o *Output) CompleteLast() {
	if o.Last == nil {
		return
	}

	o.Last.Free()
	o.Last = nil
}

// NewOutput bundles a CRTC with the connectors it drives.
func NewOutput(crtc *CRTC, heads []*Connector) *Output {
	o := &Output{CRTC: crtc, Heads: heads, RenderFencePrimary: -1}
	crtc.Output = o

	for _, h := range heads {
		h.Enabled = true
	}

	return o
}

// OutputState is a per-commit description for one Output.
type OutputState struct {
	Output     *Output
	Planes     []*PlaneState
	DPMS       int
	Protection int

	// HDCPType1 requests "HDCP Content Type"==1 alongside Protection; the
	// atomic committer only writes it when the kernel exposes the type
	// property at all (pre-Type-1 kernels omit it entirely).
	HDCPType1 bool

	// MaxBPC is the requested "max bpc" value; zero means "use the head's
	// inherited value" (content.WriteMaxBPC's zero-substitution rule).
	MaxBPC uint64

	// DisableHeads lists connectors being dropped from the output's clone
	// set by this commit: present in Output.Heads when SetHeads was
	// called, but absent from the head list this state leaves in place
	// once promoted. When this state turns the output off (DPMS off), the
	// atomic committer clears their CRTC_ID even though they are no longer
	// part of the output once this state takes effect; a DPMS-on commit
	// does not write CRTC_ID for them.
	DisableHeads []*Connector

	newHeads     []*Connector
	headsChanged bool

	pending *PendingState
}

// SetHeads stages a clone-set change for this commit: conn becomes the
// output's new head list once this state is promoted, and any connector
// currently in Output.Heads but absent from conn is recorded in
// DisableHeads so a DPMS-off commit clears its CRTC_ID even though it
// won't appear in Output.Heads anymore.
func (os *OutputState) SetHeads(conn []*Connector) {
	for _, cur := range os.Output.Heads {
		if !connectorInList(conn, cur) {
			os.DisableHeads = append(os.DisableHeads, cur)
		}
	}

	os.newHeads = conn
	os.headsChanged = true
}

func connectorInList(list []*Connector, c *Connector) bool {
	for _, other := range list {
		if other == c {
			return true
		}
	}

	return false
}

// NewOutputState allocates an empty, building-phase state for o, linked
// into ps.
func NewOutputState(ps *PendingState, o *Output) *OutputState {
	os := &OutputState{Output: o, DPMS: DPMSOn, pending: ps}
	ps.Outputs = append(ps.Outputs, os)

	return os
}

// GetExistingPlaneState returns the PlaneState for p already present in
// os, if any.
func GetExistingPlaneState(os *OutputState, p *Plane) (*PlaneState, bool) {
	for _, ps := range os.Planes {
		if ps.Plane == p {
			return ps, true
		}
	}

	return nil, false
}

// Free releases every contained PlaneState, except those that have already
// been promoted to become their Plane's current state (owner == nil).
func (os *OutputState) Free() {
	for _, ps := range os.Planes {
		if ps.owner != nil {
			ps.free()
		}
	}

	os.Planes = nil
}
