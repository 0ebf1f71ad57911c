// Package event demultiplexes DRM file events (page-flip and atomic
// completion notifications) read off a device's poll-ready file
// descriptor and dispatches them to per-output completion callbacks.
package event

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/talonwl/kmscommit/drmioctl"
	"github.com/talonwl/kmscommit/state"
)

// CompletionFlags describes why a completion callback fired, mirroring the
// flag set the legacy page_flip_handler historically reported.
type CompletionFlags uint32

const (
	FlagVSync        CompletionFlags = 1 << 0
	FlagHWCompletion  CompletionFlags = 1 << 1
	FlagHWClock       CompletionFlags = 1 << 2
)

// CompletionFunc is invoked once per completed flip, carrying the event
// timestamp and the flags describing how completion was detected.
type CompletionFunc func(out *state.Output, flags CompletionFlags, sec, usec uint32)

// Demuxer reads and routes DRM events for one device: it tells legacy
// page-flip records from atomic (crtc_id-bearing) ones per record, and
// holds the single completion callback the compositor registers.
type Demuxer struct {
	Device     *state.Device
	OnComplete CompletionFunc

	buf [4096]byte
}

// NewDemuxer builds a demultiplexer bound to dev. Whether atomic or legacy
// framing is expected is decided per-event from the record's declared
// length, so the same Demuxer serves either committer.
func NewDemuxer(dev *state.Device, onComplete CompletionFunc) *Demuxer {
	return &Demuxer{Device: dev, OnComplete: onComplete}
}

// Dispatch reads and processes whatever events are currently available on
// the device fd. It is meant to be invoked by the compositor's own event
// loop once the fd is reported readable; nothing here blocks waiting for
// more data to arrive.
func (d *Demuxer) Dispatch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := unix.Read(int(d.Device.Fd), d.buf[:])
	if err != nil {
		return fmt.Errorf("reading DRM event fd: %w", err)
	}

	off := 0
	for off+8 <= n {
		typ := binary.LittleEndian.Uint32(d.buf[off : off+4])
		length := binary.LittleEndian.Uint32(d.buf[off+4 : off+8])

		if length < 8 || off+int(length) > n {
			return fmt.Errorf("truncated DRM event record at offset %d", off)
		}

		rec := d.buf[off : off+int(length)]

		switch typ {
		case drmioctl.EventVblankType, drmioctl.EventFlipComplete:
			d.handleFlip(rec)
		default:
			// Unknown event type (vendor-private, etc): ignored.
		}

		off += int(length)
	}

	return nil
}

// HandleRecord parses and dispatches one raw drm_event_vblank record. It is
// exported so callers (and tests) can feed synthetic records without a
// real DRM fd. It does not check the record type; Dispatch routes every
// vblank and flip-complete record of a read batch through the same parsing.
func (d *Demuxer) HandleRecord(rec []byte) {
	d.handleFlip(rec)
}

// minVblankRecordLen is a drm_event_vblank record without the trailing
// crtc_id field: base(8) + user_data(8) + tv_sec(4) + tv_usec(4) +
// sequence(4). The legacy (non-atomic) page-flip handler never gets a
// crtc_id field from the kernel, so its records stay this short; the
// atomic handler's records carry 4 more bytes of crtc_id.
const minVblankRecordLen = 28

// handleFlip parses one drm_event_vblank record and routes it to either
// the legacy or atomic handler depending on the record's shape: a
// crtc_id-bearing record (>=32 bytes) identifies its CRTC directly, while
// a short record carries the CRTC id as opaque user_data instead, which
// the legacy committer threads through PageFlip's user_data argument.
func (d *Demuxer) handleFlip(rec []byte) {
	if len(rec) < minVblankRecordLen {
		return
	}

	userData := binary.LittleEndian.Uint64(rec[8:16])
	tvSec := binary.LittleEndian.Uint32(rec[16:20])
	tvUsec := binary.LittleEndian.Uint32(rec[20:24])
	sequence := binary.LittleEndian.Uint32(rec[24:28])

	var crtc *state.CRTC

	if len(rec) >= 32 {
		crtcID := binary.LittleEndian.Uint32(rec[28:32])
		crtc = d.Device.FindCRTC(crtcID)
	} else {
		crtc = d.Device.FindCRTC(uint32(userData))
	}

	if crtc == nil || crtc.Output == nil {
		// Happens during the initial disable sweep, before any Output
		// claims the CRTC: ignored silently.
		return
	}

	out := crtc.Output

	switch {
	case out.AtomicCompletePending:
		out.AtomicCompletePending = false
	case out.PageFlipPending:
		out.PageFlipPending = false
	default:
		return
	}

	out.MSC = AdvanceMSC(out.MSC, sequence)
	out.CompleteLast()

	if d.OnComplete != nil {
		d.OnComplete(out, FlagVSync|FlagHWCompletion|FlagHWClock, tvSec, tvUsec)
	}
}

// AdvanceMSC folds a 32-bit kernel frame sequence into an output's 64-bit
// monotonic sequence counter, incrementing the high half on wraparound.
func AdvanceMSC(msc uint64, frame uint32) uint64 {
	if frame < uint32(msc&0xffffffff) {
		msc += 1 << 32
	}

	return (msc &^ 0xffffffff) | uint64(frame)
}
