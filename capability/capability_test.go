package capability_test

import (
	"os"
	"testing"

	"github.com/talonwl/kmscommit/capability"
)

func TestProbeAgainstRealDevice(t *testing.T) {
	card, err := os.OpenFile("/dev/dri/card0", os.O_RDWR, 0o644)
	if err != nil {
		t.Skipf("skipping, no DRM device available: %v", err)
	}
	defer card.Close()

	caps, soft := capability.Probe(card.Fd())
	for _, err := range soft {
		t.Logf("soft capability failure: %v", err)
	}

	if !caps.TimestampMonotonic {
		t.Errorf("TimestampMonotonic should be set on any real DRM device")
	}

	if caps.CursorWidth == 0 || caps.CursorHeight == 0 {
		t.Errorf("cursor dimensions must default to a nonzero size")
	}
}

func TestSpritesAreBrokenWhenAtomicDisabled(t *testing.T) {
	os.Setenv(capability.EnvDisableAtomic, "1")
	defer os.Unsetenv(capability.EnvDisableAtomic)

	card, err := os.OpenFile("/dev/dri/card0", os.O_RDWR, 0o644)
	if err != nil {
		t.Skipf("skipping, no DRM device available: %v", err)
	}
	defer card.Close()

	caps, _ := capability.Probe(card.Fd())
	if caps.AtomicModeset {
		t.Errorf("AtomicModeset must stay false when %s is set", capability.EnvDisableAtomic)
	}

	if !caps.SpritesAreBroken {
		t.Errorf("SpritesAreBroken must be set once atomic modeset is disabled")
	}
}
