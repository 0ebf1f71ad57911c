// Package kms is the root orchestration package: it owns one opened DRM
// device, discovers its CRTC/connector/plane objects, probes kernel
// capabilities, and selects the atomic or legacy commit path, exposing a
// single Test/Apply/ApplySync contract. kms.Open opens a DRM node, builds
// CRTCs/connectors/planes, and hands the caller one Device.
package kms

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/talonwl/kmscommit/atomic"
	"github.com/talonwl/kmscommit/capability"
	"github.com/talonwl/kmscommit/content"
	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/event"
	"github.com/talonwl/kmscommit/format"
	"github.com/talonwl/kmscommit/legacy"
	"github.com/talonwl/kmscommit/state"
)

// Committer is the contract both atomic.Committer and legacy.Committer
// satisfy. Device dispatches every external operation through this
// interface so callers never need to know which path is active.
type Committer interface {
	Test(*state.PendingState) error
	ApplyAsync(*state.PendingState) error
	ApplySync(*state.PendingState) error
}

// Device wraps one opened DRM file descriptor together with its resolved
// capabilities, its populated KMS objects, and the selected committer.
type Device struct {
	*state.Device

	committer Committer
	Demux     *event.Demuxer

	file *os.File
}

// Open opens the DRM device node at path, runs the one-time capability
// probe, discovers CRTCs, connectors, and planes, and selects the atomic
// or legacy commit path. onComplete is the compositor's completion
// callback, invoked for every commit's eventual (or synthesized)
// completion.
func Open(path string, onComplete event.CompletionFunc) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("kms: open %s: %w", path, err)
	}

	fd := f.Fd()

	caps, softErrs := capability.Probe(fd)
	for _, e := range softErrs {
		log.Printf("kms: capability probe: %v", e)
	}

	if !caps.UniversalPlanes || !caps.TimestampMonotonic {
		f.Close()

		return nil, fmt.Errorf("kms: required capability missing on %s", path)
	}

	dev := state.NewDevice(fd)
	dev.Caps = state.Caps{
		AtomicModeset:        caps.AtomicModeset,
		UniversalPlanes:      caps.UniversalPlanes,
		FBModifiers:          caps.FBModifiers,
		AspectRatioSupported: caps.AspectRatioSupported,
		WritebackConnectors:  caps.WritebackConnectors,
		TimestampMonotonic:   caps.TimestampMonotonic,
	}
	dev.CursorWidth = caps.CursorWidth
	dev.CursorHeight = caps.CursorHeight
	dev.SpritesAreBroken = caps.SpritesAreBroken

	d := &Device{Device: dev, file: f}

	if err := d.discover(); err != nil {
		f.Close()

		return nil, fmt.Errorf("kms: discovering %s: %w", path, err)
	}

	// Synthesized completions (outputs disabled without a kernel event)
	// reach the same callback as event-delivered ones.
	synthesized := func(out *state.Output, flags uint32, sec, usec uint32) {
		if onComplete != nil {
			onComplete(out, event.CompletionFlags(flags), sec, usec)
		}
	}

	if caps.AtomicModeset {
		c := atomic.NewCommitter(dev)
		c.OnComplete = synthesized
		d.committer = c
	} else {
		c := legacy.NewCommitter(dev)
		c.OnComplete = synthesized
		d.committer = c
	}

	d.Demux = event.NewDemuxer(dev, onComplete)

	return d, nil
}

// Close releases the underlying DRM file descriptor. Outstanding
// completions are dropped; the compositor must account for that
// externally.
func (d *Device) Close() error {
	return d.file.Close()
}

// discover enumerates CRTCs, connectors, and planes and populates each
// object's Property Registry and (for planes) format Catalog.
func (d *Device) discover() error {
	fd := d.Fd

	getMeta := func(propID uint32) (drmioctl.PropertyMeta, error) {
		return drmioctl.GetProperty(fd, propID)
	}

	res, err := drmioctl.GetResources(fd)
	if err != nil {
		return fmt.Errorf("GETRESOURCES: %w", err)
	}

	for _, id := range res.CrtcIDs {
		crtc := state.NewCRTC(id)

		gammaSize, err := drmioctl.GetCrtcGammaSize(fd, id)
		if err != nil {
			return fmt.Errorf("GETCRTC(%d): %w", id, err)
		}

		crtc.GammaSize = gammaSize

		raw, err := drmioctl.ObjectGetProperties(fd, id, drmioctl.ObjectCRTC)
		if err != nil {
			return fmt.Errorf("OBJ_GETPROPERTIES(crtc=%d): %w", id, err)
		}

		if err := crtc.Populate(raw, getMeta); err != nil {
			return fmt.Errorf("populating crtc %d: %w", id, err)
		}

		d.CRTCs = append(d.CRTCs, crtc)
	}

	for _, id := range res.ConnectorIDs {
		conn := state.NewConnector(id)

		raw, err := drmioctl.ObjectGetProperties(fd, id, drmioctl.ObjectConnector)
		if err != nil {
			return fmt.Errorf("OBJ_GETPROPERTIES(connector=%d): %w", id, err)
		}

		if err := conn.Populate(raw, getMeta); err != nil {
			return fmt.Errorf("populating connector %d: %w", id, err)
		}

		if _, max, ok := conn.MaxBPCRange(); ok {
			conn.InheritedMaxBPC = max
		}

		d.Connectors = append(d.Connectors, conn)
	}

	planeIDs, err := drmioctl.GetPlaneResources(fd)
	if err != nil {
		return fmt.Errorf("GETPLANERESOURCES: %w", err)
	}

	for _, id := range planeIDs {
		plane := state.NewPlane(id)

		info, err := drmioctl.GetPlane(fd, id)
		if err != nil {
			return fmt.Errorf("GETPLANE(%d): %w", id, err)
		}

		raw, err := drmioctl.ObjectGetProperties(fd, id, drmioctl.ObjectPlane)
		if err != nil {
			return fmt.Errorf("OBJ_GETPROPERTIES(plane=%d): %w", id, err)
		}

		if err := plane.Populate(raw, getMeta); err != nil {
			return fmt.Errorf("populating plane %d: %w", id, err)
		}

		catalog, err := d.buildCatalog(plane, raw, info.Formats)
		if err != nil {
			return fmt.Errorf("building format catalog for plane %d: %w", id, err)
		}

		plane.Catalog = catalog

		d.Planes = append(d.Planes, plane)
	}

	return nil
}

// buildCatalog prefers the IN_FORMATS blob when modifier support is
// probed and the property is present; otherwise it falls back to the
// legacy format list GETPLANE already returned.
func (d *Device) buildCatalog(plane *state.Plane, raw []drmioctl.RawProperty, legacyFormats []uint32) (*format.Catalog, error) {
	if d.Caps.FBModifiers {
		if blobID := plane.Props.GetValue(state.PlanePropInFormats, raw, 0); blobID != 0 {
			blob, err := drmioctl.GetPropertyBlob(d.Fd, uint32(blobID))
			if err != nil {
				return nil, err
			}

			return format.FromInFormatsBlob(blob)
		}
	}

	return format.FromLegacyList(legacyFormats), nil
}

// Test submits pending for kernel validation without applying or
// consuming it.
func (d *Device) Test(pending *state.PendingState) error {
	return d.committer.Test(pending)
}

// Apply consumes pending, committing it asynchronously; completion
// arrives later through Dispatch.
func (d *Device) Apply(pending *state.PendingState) error {
	return d.committer.ApplyAsync(pending)
}

// ApplySync consumes pending, committing it synchronously. Every
// OutputState in pending must request DPMS off.
func (d *Device) ApplySync(pending *state.PendingState) error {
	return d.committer.ApplySync(pending)
}

// Dispatch reads and routes whatever DRM events are currently pending on
// the device fd, invoking the completion callback registered at Open. The
// caller's own event loop is responsible for calling this once the fd is
// reported readable.
func (d *Device) Dispatch(ctx context.Context) error {
	return d.Demux.Dispatch(ctx)
}

// Gamma applies a gamma LUT to crtc, out-of-band with any commit.
func (d *Device) Gamma(crtc *state.CRTC, red, green, blue []uint16) error {
	return content.Gamma(d.Fd, crtc, red, green, blue)
}

// NewPendingState allocates a new transaction against this device.
func (d *Device) NewPendingState() *state.PendingState {
	return state.NewPendingState(d.Device)
}
