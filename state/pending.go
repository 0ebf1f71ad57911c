package state

// PendingState is a transaction: a device plus the set of OutputStates to
// commit together. It is owned until consumed exactly once by Test, Apply,
// or ApplySync (TEST_ONLY does not consume it; SYNC and ASYNC do).
type PendingState struct {
	Device  *Device
	Outputs []*OutputState
}

// NewPendingState allocates an empty pending transaction against dev.
func NewPendingState(dev *Device) *PendingState {
	return &PendingState{Device: dev}
}

// GetOutputState returns the existing builder for o within this pending
// state, creating one if this is the first mutation touching o.
func (ps *PendingState) GetOutputState(o *Output) *OutputState {
	for _, os := range ps.Outputs {
		if os.Output == o {
			return os
		}
	}

	return NewOutputState(ps, o)
}

// Free releases every contained OutputState.
func (ps *PendingState) Free() {
	for _, os := range ps.Outputs {
		os.Free()
	}

	ps.Outputs = nil
}

// Promote hands every contained OutputState off to its Output as the new
// current state with a uniform async/sync mode. Use this for the atomic
// committer, which always promotes an entire commit's outputs the same
// way. Consumes the pending state: ps.Outputs is empty after Promote
// returns.
func (ps *PendingState) Promote(async bool) {
	for _, os := range ps.Outputs {
		PromoteOutputState(os, async)
	}

	ps.Outputs = nil
}

// PromoteOutputState hands one OutputState off to its Output as the new
// current state. When async, the displaced prior current state becomes
// Output.Last, awaiting a completion event (freed later by
// Output.CompleteLast); otherwise it is freed immediately. Every
// PlaneState within os is promoted to be its Plane's current state, which
// frees any orphaned prior plane state along with its framebuffer
// reference. If SetHeads staged a clone-set change, Output.Heads is
// updated to match now that the commit underlying it has succeeded.
// Exported standalone (not just via PendingState.Promote) because the
// legacy committer promotes outputs within one batch with different
// async modes: a DPMS-off output completes synchronously even when it
// shares a pending state with a DPMS-on output awaiting a page-flip
// event.
func PromoteOutputState(os *OutputState, async bool) {
	out := os.Output
	prev := out.Current

	out.Current = os
	os.pending = nil

	if os.headsChanged {
		for _, dropped := range os.DisableHeads {
			dropped.Enabled = false
		}

		out.Heads = os.newHeads

		for _, head := range out.Heads {
			head.Enabled = true
		}
	}

	if async {
		out.Last = prev
	} else if prev != nil {
		prev.Free()
	}

	for _, planeState := range os.Planes {
		planeState.Plane.Promote(planeState)
	}
}
