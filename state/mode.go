package state

import "github.com/talonwl/kmscommit/drmioctl"

// Mode is a display timing. Its kernel-side blob is created lazily on
// first use and reused until the mode changes.
type Mode struct {
	Info drmioctl.ModeInfo

	blobID         uint32
	createBlob     func(data []byte) (uint32, error)
	destroyBlob    func(id uint32) error
}

// NewMode wraps a kernel mode description. createBlob/destroyBlob are
// bound to a Device's fd by the caller (kms.Device), keeping this package
// free of any direct ioctl dependency.
func NewMode(info drmioctl.ModeInfo, createBlob func([]byte) (uint32, error), destroyBlob func(uint32) error) *Mode {
	return &Mode{Info: info, createBlob: createBlob, destroyBlob: destroyBlob}
}

// BlobID returns the kernel blob id for this mode, creating it on first
// call and caching it thereafter.
func (m *Mode) BlobID() (uint32, error) {
	if m.blobID != 0 {
		return m.blobID, nil
	}

	data := encodeModeInfo(&m.Info)

	id, err := m.createBlob(data)
	if err != nil {
		return 0, err
	}

	m.blobID = id

	return id, nil
}

// Invalidate destroys the cached blob (e.g. the mode itself changed) so
// the next BlobID call recreates it.
func (m *Mode) Invalidate() error {
	if m.blobID == 0 {
		return nil
	}

	id := m.blobID
	m.blobID = 0

	if m.destroyBlob == nil {
		return nil
	}

	return m.destroyBlob(id)
}

func encodeModeInfo(info *drmioctl.ModeInfo) []byte {
	// struct drm_mode_modeinfo is a fixed, already wire-compatible layout;
	// the blob is simply its raw bytes.
	buf := make([]byte, 0, 72)
	put32 := func(v uint32) { buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24)) }
	put16 := func(v uint16) { buf = append(buf, byte(v), byte(v>>8)) }

	put32(info.Clock)
	put16(info.Hdisplay)
	put16(info.HSyncStart)
	put16(info.HSyncEnd)
	put16(info.Htotal)
	put16(info.Hskew)
	put16(info.Vdisplay)
	put16(info.VSyncStart)
	put16(info.VSyncEnd)
	put16(info.Vtotal)
	put16(info.Vscan)
	put32(info.VRefresh)
	put32(info.Flags)
	put32(info.Type)
	buf = append(buf, info.Name[:]...)

	return buf
}
