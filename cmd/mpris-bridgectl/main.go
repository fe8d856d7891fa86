// Command mpris-bridgectl is the companion CLI for mpris-bridged: it
// sends transport commands over the daemon's Unix socket, falling back
// to invoking the external media-control utility directly when the
// socket is unreachable, and can tail the daemon's published state as a
// formatted status-bar label.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/mprisbridge/mpris-bridge/internal/config"
	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/mediactl"
	"github.com/mprisbridge/mpris-bridge/internal/paths"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "play-pause":
		err = runSimple(ctx, args, "play-pause")
	case "next":
		err = runSimple(ctx, args, "next")
	case "previous":
		err = runSimple(ctx, args, "previous")
	case "seek":
		err = runSeek(ctx, args)
	case "set-position":
		err = runSetPosition(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "mpris-bridgectl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mpris-bridgectl <play-pause|next|previous|seek|set-position|watch> [flags]")
}

func playerFlags(fs *flag.FlagSet) *string {
	return fs.String("player", "", "target a specific player id instead of the elected one")
}

func runSimple(ctx context.Context, args []string, verb string) error {
	fs := flag.NewFlagSet(verb, flag.ExitOnError)
	player := playerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := request{Cmd: verb, Player: nonEmpty(*player)}
	return dispatch(ctx, req, func(c *mediactl.Controller, target domain.PlayerID) error {
		switch verb {
		case "play-pause":
			return c.PlayPause(ctx, target)
		case "next":
			return c.Next(ctx, target)
		default:
			return c.Previous(ctx, target)
		}
	})
}

func runSeek(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seek", flag.ExitOnError)
	player := playerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("seek requires an offset argument")
	}
	offset, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %w", fs.Arg(0), err)
	}

	req := request{Cmd: "seek", Offset: &offset, Player: nonEmpty(*player)}
	return dispatch(ctx, req, func(c *mediactl.Controller, target domain.PlayerID) error {
		return c.SetPosition(ctx, target, mediactl.SeekArg(offset))
	})
}

func runSetPosition(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-position", flag.ExitOnError)
	player := playerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("set-position requires a seconds argument")
	}
	position, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		return fmt.Errorf("invalid position %q: %w", fs.Arg(0), err)
	}

	req := request{Cmd: "set-position", Position: &position, Player: nonEmpty(*player)}
	return dispatch(ctx, req, func(c *mediactl.Controller, target domain.PlayerID) error {
		return c.SetPosition(ctx, target, mediactl.SetPositionArg(position))
	})
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type request struct {
	Cmd      string   `json:"cmd"`
	Player   *string  `json:"player,omitempty"`
	Offset   *float64 `json:"offset,omitempty"`
	Position *float64 `json:"position,omitempty"`
}

// dispatch implements the socket-first / direct-fallback contract: it
// tries the IPC socket first, and on any socket failure invokes fallback
// directly against the resolved target player (explicit --player, else
// the name in the on-disk snapshot, else none).
func dispatch(ctx context.Context, req request, fallback func(*mediactl.Controller, domain.PlayerID) error) error {
	ok, transportErr := sendOverSocket(req)
	if transportErr == nil {
		if !ok {
			return fmt.Errorf("daemon rejected command")
		}
		return nil
	}

	target := domain.PlayerID("")
	if req.Player != nil {
		target = domain.PlayerID(*req.Player)
	} else if name := snapshotPlayerName(); name != "" {
		target = domain.PlayerID(name)
	}
	if target == "" {
		return fmt.Errorf("no player selected and socket unreachable")
	}
	return fallback(mediactl.New(), target)
}

// sendOverSocket sends req as a single newline-delimited JSON line and
// reads one response line. A non-nil error means the socket itself could
// not be used (dial, write, or malformed response) and triggers the
// direct-fallback path; a false ok with a nil error is a normal rejected
// command and is not a socket failure.
func sendOverSocket(req request) (ok bool, err error) {
	conn, err := net.Dial("unix", paths.SocketPath())
	if err != nil {
		return false, err
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return false, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return false, err
	}

	var resp struct {
		Ok bool `json:"ok"`
	}
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&resp); err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// snapshotPlayerName reads the daemon's on-disk snapshot and returns its
// "name" field, or "" on any read/parse failure.
func snapshotPlayerName() string {
	cfg := config.Default()
	data, err := os.ReadFile(paths.Expand(cfg.Output.SnapshotPath))
	if err != nil {
		return ""
	}
	var state domain.UiState
	if err := json.Unmarshal(data, &state); err != nil {
		return ""
	}
	return state.Name
}
