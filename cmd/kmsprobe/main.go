// Command kmsprobe is a small developer tool for inspecting a DRM node:
// its capability sweep, and the CRTCs/connectors/planes this core
// discovers along with their resolved properties. It is a read-only
// diagnostic, never linked into the core library itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/talonwl/kmscommit/capability"
	"github.com/talonwl/kmscommit/event"
	"github.com/talonwl/kmscommit/kms"
	"github.com/talonwl/kmscommit/property"
	"github.com/talonwl/kmscommit/state"
)

var errInvalidSubcommand = fmt.Errorf("expected 'caps' or 'dump' subcommand")

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) < 2 {
		return errInvalidSubcommand
	}

	switch args[1] {
	case "caps":
		return runCaps(args[2:])
	case "dump":
		return runDump(args[2:])
	default:
		return errInvalidSubcommand
	}
}

func runCaps(args []string) error {
	fs := flag.NewFlagSet("caps subcommand", flag.ExitOnError)
	dev := fs.String("D", "/dev/dri/card0", "path of DRM device node")

	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := os.Open(*dev)
	if err != nil {
		return err
	}
	defer f.Close()

	caps, softErrs := capability.Probe(f.Fd())
	for _, e := range softErrs {
		fmt.Printf("warning: %v\n", e)
	}

	fmt.Printf("%-24s: %t\n", "atomic_modeset", caps.AtomicModeset)
	fmt.Printf("%-24s: %t\n", "universal_planes", caps.UniversalPlanes)
	fmt.Printf("%-24s: %t\n", "fb_modifiers", caps.FBModifiers)
	fmt.Printf("%-24s: %t\n", "aspect_ratio", caps.AspectRatioSupported)
	fmt.Printf("%-24s: %t\n", "writeback_connectors", caps.WritebackConnectors)
	fmt.Printf("%-24s: %t\n", "timestamp_monotonic", caps.TimestampMonotonic)
	fmt.Printf("%-24s: %dx%d\n", "cursor_size", caps.CursorWidth, caps.CursorHeight)
	fmt.Printf("%-24s: %t\n", "sprites_are_broken", caps.SpritesAreBroken)

	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump subcommand", flag.ExitOnError)
	dev := fs.String("D", "/dev/dri/card0", "path of DRM device node")

	if err := fs.Parse(args); err != nil {
		return err
	}

	noop := event.CompletionFunc(func(out *state.Output, flags event.CompletionFlags, sec, usec uint32) {})

	d, err := kms.Open(*dev, noop)
	if err != nil {
		return err
	}
	defer d.Close()

	fmt.Printf("crtcs:\n")
	for _, c := range d.CRTCs {
		owner := "idle"
		if c.InUse() {
			owner = "in use"
		}

		fmt.Printf("  crtc %d: %s, gamma_size=%d\n", c.ID, owner, c.GammaSize)
	}

	fmt.Printf("connectors:\n")
	for _, conn := range d.Connectors {
		fmt.Printf("  connector %d: enabled=%t\n", conn.ID, conn.Enabled)

		if max, ok := dumpRange(conn.Props, state.ConnPropMaxBPC); ok {
			fmt.Printf("    max_bpc: inherited=%d range=%s\n", conn.InheritedMaxBPC, max)
		}
	}

	fmt.Printf("planes:\n")
	for _, p := range d.Planes {
		fmt.Printf("  plane %d: kind=%v zpos=[%d,%d]\n", p.ID, p.Kind, p.ZposMin, p.ZposMax)

		if p.Catalog == nil {
			continue
		}

		for _, f := range p.Catalog.Formats() {
			mods := p.Catalog.Modifiers(f)
			fmt.Printf("    format %#x: %d modifier(s)\n", f, len(mods))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Dispatch(ctx); err != nil {
		fmt.Printf("dispatch: %v\n", err)
	}

	return nil
}

func dumpRange(props *property.Table, idx int) (string, bool) {
	min, max, ok := props.GetRangeValues(idx)
	if !ok {
		return "", false
	}

	return fmt.Sprintf("[%d,%d]", min, max), true
}
