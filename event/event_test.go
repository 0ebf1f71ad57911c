package event_test

import (
	"encoding/binary"
	"testing"

	"github.com/talonwl/kmscommit/event"
	"github.com/talonwl/kmscommit/state"
)

func TestAdvanceMSCWrapsOn32BitBoundary(t *testing.T) {
	t.Parallel()

	got := event.AdvanceMSC(0xFFFFFFFF, 0)
	if got != 0x100000000 {
		t.Errorf("AdvanceMSC(0xFFFFFFFF, 0) = %#x, want 0x100000000", got)
	}
}

func TestAdvanceMSCMonotonicWithoutWrap(t *testing.T) {
	t.Parallel()

	got := event.AdvanceMSC(10, 11)
	if got != 11 {
		t.Errorf("AdvanceMSC(10, 11) = %d, want 11", got)
	}
}

func vblankRecord(typ, userData uint64, sec, usec, seq, crtcID uint32) []byte {
	rec := make([]byte, 32)
	binary.LittleEndian.PutUint32(rec[0:4], uint32(typ))
	binary.LittleEndian.PutUint32(rec[4:8], 32)
	binary.LittleEndian.PutUint64(rec[8:16], userData)
	binary.LittleEndian.PutUint32(rec[16:20], sec)
	binary.LittleEndian.PutUint32(rec[20:24], usec)
	binary.LittleEndian.PutUint32(rec[24:28], seq)
	binary.LittleEndian.PutUint32(rec[28:32], crtcID)

	return rec
}

func TestHandleRecordAtomicCompletionFiresCallback(t *testing.T) {
	t.Parallel()

	dev := state.NewDevice(3)
	crtc := state.NewCRTC(10)
	conn := state.NewConnector(20)
	dev.CRTCs = append(dev.CRTCs, crtc)
	out := state.NewOutput(crtc, []*state.Connector{conn})
	out.AtomicCompletePending = true

	var got *state.Output
	var flags event.CompletionFlags
	d := event.NewDemuxer(dev, func(o *state.Output, f event.CompletionFlags, sec, usec uint32) {
		got = o
		flags = f
	})

	d.HandleRecord(vblankRecord(1, 0, 1, 2, 5, 10))

	if got != out {
		t.Fatalf("completion callback did not fire for the expected output")
	}

	if out.AtomicCompletePending {
		t.Errorf("AtomicCompletePending must be cleared on completion")
	}

	if flags&event.FlagVSync == 0 {
		t.Errorf("expected FlagVSync set")
	}

	if out.MSC != 5 {
		t.Errorf("MSC = %d, want 5", out.MSC)
	}
}

func TestHandleRecordIgnoredWithoutOwningOutput(t *testing.T) {
	t.Parallel()

	dev := state.NewDevice(3)
	crtc := state.NewCRTC(10)
	dev.CRTCs = append(dev.CRTCs, crtc)

	called := false
	d := event.NewDemuxer(dev, func(*state.Output, event.CompletionFlags, uint32, uint32) {
		called = true
	})

	// No Output owns this CRTC yet (disable-sweep phase): must be ignored.
	d.HandleRecord(vblankRecord(1, 0, 0, 0, 0, 10))

	if called {
		t.Errorf("completion callback must not fire when the CRTC has no owning output")
	}
}
