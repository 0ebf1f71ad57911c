// Package content implements the narrow property-write helpers an atomic
// commit uses for content protection, HDR metadata, and max-bpc clamping,
// plus the out-of-band gamma LUT helper.
package content

import (
	"fmt"

	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/state"
)

// WriteContentProtection writes "Content Protection" (and, when the
// kernel supports it and level is Type-1, "HDCP Content Type") on conn if
// the requested level differs from the device's last-written level for
// this connector. It reports whether ALLOW_MODESET must be requested.
func WriteContentProtection(dev *state.Device, req *drmioctl.AtomicRequest, conn *state.Connector, level int, wantType1 bool) bool {
	if !dev.HDCPChanged(conn.ID, level) {
		return false
	}

	id := conn.Props.ID(state.ConnPropContentProtection)
	if id == 0 {
		return false
	}

	if kv, ok := conn.Props.EnumKernelValue(state.ConnPropContentProtection, level); ok {
		req.AddProperty(conn.ID, id, kv)
	}

	if wantType1 && conn.SupportsHDCPType1() {
		typeID := conn.Props.ID(state.ConnPropHDCPContentType)
		if kv, ok := conn.Props.EnumKernelValue(state.ConnPropHDCPContentType, state.HDCPContentType1); ok {
			req.AddProperty(conn.ID, typeID, kv)
		}
	}

	return true
}

// WriteHDRMetadata writes HDR_OUTPUT_METADATA on the driving head when the
// device carries a transient HDR blob id.
func WriteHDRMetadata(dev *state.Device, req *drmioctl.AtomicRequest, drivingHead *state.Connector) bool {
	if dev.HDRBlobID == 0 {
		return false
	}

	id := drivingHead.Props.ID(state.ConnPropHDROutputMetadata)
	if id == 0 {
		return false
	}

	req.AddProperty(drivingHead.ID, id, uint64(dev.HDRBlobID))

	return true
}

// WriteMaxBPC clamps requested to the connector's "max bpc" range (or
// substitutes the head's inherited value when requested is zero) and
// writes it, if the property exists at all.
func WriteMaxBPC(req *drmioctl.AtomicRequest, conn *state.Connector, requested uint64) {
	id := conn.Props.ID(state.ConnPropMaxBPC)
	if id == 0 {
		return
	}

	min, max, ok := conn.MaxBPCRange()
	if !ok {
		return
	}

	value := requested
	if value == 0 {
		value = conn.InheritedMaxBPC
	}

	switch {
	case value < min:
		value = min
	case value > max:
		value = max
	}

	req.AddProperty(conn.ID, id, value)
}

// Gamma validates and applies a gamma LUT to a CRTC. Gamma programming is
// out-of-band with atomic/legacy commits; it issues its own ioctl
// immediately rather than participating in a transaction.
func Gamma(fd uintptr, crtc *state.CRTC, red, green, blue []uint16) error {
	size := len(red)
	if size == 0 {
		return fmt.Errorf("gamma: zero-length LUT rejected")
	}

	if size != len(green) || size != len(blue) {
		return fmt.Errorf("gamma: channel length mismatch (r=%d g=%d b=%d)", len(red), len(green), len(blue))
	}

	if uint32(size) != crtc.GammaSize {
		return fmt.Errorf("gamma: LUT size %d does not match CRTC %d's gamma_size %d", size, crtc.ID, crtc.GammaSize)
	}

	return drmioctl.CrtcSetGamma(fd, crtc.ID, red, green, blue)
}
