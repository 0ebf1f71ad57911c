// Package capability probes a DRM file descriptor for the kernel and
// client capabilities the rest of the core gates its behavior on.
package capability

import (
	"fmt"
	"log"
	"os"

	"github.com/talonwl/kmscommit/drmioctl"
)

// Set is the resolved capability surface for one opened DRM device.
type Set struct {
	AtomicModeset       bool
	UniversalPlanes      bool
	FBModifiers          bool
	AspectRatioSupported bool
	WritebackConnectors  bool
	TimestampMonotonic   bool

	CursorWidth, CursorHeight uint32

	// SpritesAreBroken is set whenever atomic modesetting could not be
	// enabled, or the environment forces a software path, since overlay
	// planes are only exercised through the atomic committer.
	SpritesAreBroken bool
}

// required caps abort Probe entirely when unavailable: without universal
// planes the property model this core relies on cannot resolve plane
// objects at all, and monotonic timestamps are assumed by the Event
// Demultiplexer's MSC accounting.
func requiredCaps() []uint64 {
	return []uint64{
		drmioctl.CapTimestampMonotonic,
		drmioctl.ClientCapUniversalPlanes,
	}
}

// Probe resolves every capability flag on fd, returning a fatal error only
// if a required capability is missing or errors, and a slice of soft
// errors for optional probes that failed without aborting the rest of
// the sweep; the caller decides whether to log them.
func Probe(fd uintptr) (Set, []error) {
	var caps Set
	var soft []error

	if v, err := drmioctl.GetCap(fd, drmioctl.CapTimestampMonotonic); err != nil || v == 0 {
		return caps, []error{fmt.Errorf("DRM_CAP_TIMESTAMP_MONOTONIC unavailable: %w", firstNonNil(err, errUnsupported))}
	} else {
		caps.TimestampMonotonic = true
	}

	if err := drmioctl.SetClientCap(fd, drmioctl.ClientCapUniversalPlanes, 1); err != nil {
		return caps, []error{fmt.Errorf("DRM_CLIENT_CAP_UNIVERSAL_PLANES required: %w", err)}
	}
	caps.UniversalPlanes = true

	caps.CursorWidth = 64
	caps.CursorHeight = 64
	if v, err := drmioctl.GetCap(fd, drmioctl.CapCursorWidth); err != nil {
		soft = append(soft, fmt.Errorf("DRM_CAP_CURSOR_WIDTH: %w", err))
	} else if v != 0 {
		caps.CursorWidth = uint32(v)
	}

	if v, err := drmioctl.GetCap(fd, drmioctl.CapCursorHeight); err != nil {
		soft = append(soft, fmt.Errorf("DRM_CAP_CURSOR_HEIGHT: %w", err))
	} else if v != 0 {
		caps.CursorHeight = uint32(v)
	}

	atomicDisabled := os.Getenv(EnvDisableAtomic) != ""
	forcedRenderer := os.Getenv(EnvForceRenderer) != ""

	if !atomicDisabled {
		vblankEvent, errVblank := drmioctl.GetCap(fd, drmioctl.CapCrtcInVblankEvent)
		errAtomic := drmioctl.SetClientCap(fd, drmioctl.ClientCapAtomic, 1)

		if errVblank == nil && vblankEvent != 0 && errAtomic == nil {
			caps.AtomicModeset = true
		} else {
			soft = append(soft, fmt.Errorf("atomic modeset unavailable (vblank-event: %v, set-client-cap: %v)", errVblank, errAtomic))
		}
	}

	if caps.AtomicModeset && os.Getenv(EnvDisableModifiers) == "" {
		if v, err := drmioctl.GetCap(fd, drmioctl.CapAddFB2Modifiers); err != nil {
			soft = append(soft, fmt.Errorf("DRM_CAP_ADDFB2_MODIFIERS: %w", err))
		} else {
			caps.FBModifiers = v != 0
		}
	}

	if err := drmioctl.SetClientCap(fd, drmioctl.ClientCapWritebackConnectors, 1); err != nil {
		soft = append(soft, fmt.Errorf("DRM_CLIENT_CAP_WRITEBACK_CONNECTORS: %w", err))
	} else {
		caps.WritebackConnectors = true
	}

	if err := drmioctl.SetClientCap(fd, drmioctl.ClientCapAspectRatio, 1); err != nil {
		soft = append(soft, fmt.Errorf("DRM_CLIENT_CAP_ASPECT_RATIO: %w", err))
	} else {
		caps.AspectRatioSupported = true
	}

	caps.SpritesAreBroken = !caps.AtomicModeset || forcedRenderer

	return caps, soft
}

// ProbeLogged is Probe plus the "log soft failures, never abort" pattern.
func ProbeLogged(fd uintptr) (Set, error) {
	caps, soft := Probe(fd)
	for _, err := range soft {
		log.Printf("capability probe: %v", err)
	}

	if caps.UniversalPlanes && caps.TimestampMonotonic {
		return caps, nil
	}

	return caps, fmt.Errorf("required capability missing")
}

var errUnsupported = fmt.Errorf("unsupported")

func firstNonNil(err, fallback error) error {
	if err != nil {
		return err
	}

	return fallback
}

// Environment overrides for the compositor-wide escape hatches this core
// exposes.
const (
	EnvDisableAtomic    = "WESTON_DISABLE_ATOMIC"
	EnvDisableModifiers = "WESTON_DISABLE_GBM_MODIFIERS"
	EnvForceRenderer    = "WESTON_FORCE_RENDERER"
)
