package main

import (
	"context"
	"os"
	"testing"

	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/mediactl"
)

func TestNonEmpty(t *testing.T) {
	if got := nonEmpty(""); got != nil {
		t.Fatalf("nonEmpty(\"\") = %v, want nil", got)
	}
	if got := nonEmpty("firefox.instance_1"); got == nil || *got != "firefox.instance_1" {
		t.Fatalf("nonEmpty(%q) = %v, want pointer to same string", "firefox.instance_1", got)
	}
}

// A seek with offset=-3.4 builds the external utility argument "3-"
// (rounded absolute value, sign as suffix).
func TestSeekArgNegativeOffset(t *testing.T) {
	if got := mediactl.SeekArg(-3.4); got != "3-" {
		t.Fatalf("SeekArg(-3.4) = %q, want \"3-\"", got)
	}
}

// With no socket listening, dispatch must fall back to direct invocation
// against the player named in the on-disk snapshot.
func TestDispatchFallsBackToSnapshotPlayer(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", tmp)

	snapshotDir := tmp + "/mpris-bridge"
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		t.Fatal(err)
	}
	snapshot := []byte(`{"name":"spotify.instance1","title":"","artist":""}`)
	if err := os.WriteFile(snapshotDir+"/state.json", snapshot, 0o644); err != nil {
		t.Fatal(err)
	}

	var got domain.PlayerID
	err := dispatch(context.Background(), request{Cmd: "play-pause"}, func(c *mediactl.Controller, target domain.PlayerID) error {
		got = target
		return nil
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "spotify.instance1" {
		t.Fatalf("fallback target = %q, want spotify.instance1", got)
	}
}

// With no socket, no --player, and no snapshot, dispatch has no target
// and must fail rather than invoke anything.
func TestDispatchNoTargetFails(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	invoked := false
	err := dispatch(context.Background(), request{Cmd: "play-pause"}, func(c *mediactl.Controller, target domain.PlayerID) error {
		invoked = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error when no target can be resolved")
	}
	if invoked {
		t.Fatal("fallback must not run without a target player")
	}
}
