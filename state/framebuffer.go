package state

import "github.com/talonwl/kmscommit/format"

// FramebufferID is a kernel FB_ID.
type FramebufferID uint32

// Framebuffer is a kernel-registered buffer handle. It is exclusively owned
// by the Plane State(s) that reference it and is released (via Device's
// destroy hook, not modeled here since buffer lifetime belongs to the
// out-of-scope allocator) once its reference count drops to zero.
type Framebuffer struct {
	ID       FramebufferID
	Format   uint32
	Modifier format.Modifier
	Width    uint32
	Height   uint32
	Pitch    uint32

	refs int
}

// Retain adds a reference, taken whenever a PlaneState attaches this FB.
func (fb *Framebuffer) Retain() {
	if fb == nil {
		return
	}

	fb.refs++
}

// Release drops a reference and reports whether this was the last one (the
// caller is then responsible for telling the external buffer owner the FB
// may be torn down).
func (fb *Framebuffer) Release() bool {
	if fb == nil {
		return false
	}

	fb.refs--

	return fb.refs <= 0
}
