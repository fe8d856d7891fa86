// Package ipc implements the Unix-socket command server:
// newline-delimited JSON commands in, one "{ok:true/false}" response line
// per command, connection held open for further commands.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"

	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/mediactl"
	"github.com/mprisbridge/mpris-bridge/internal/paths"
	"go.uber.org/zap"
)

// SelectedPlayerProvider resolves the currently elected player for
// commands that omit an explicit "player" field.
type SelectedPlayerProvider interface {
	Selected() domain.PlayerID
}

// Server accepts IPC connections and dispatches their commands.
type Server struct {
	logger     *zap.Logger
	socketPath string
	selected   SelectedPlayerProvider
	media      domain.MediaController
}

// New returns an IPC Server bound to socketPath.
func New(logger *zap.Logger, socketPath string, selected SelectedPlayerProvider, media domain.MediaController) *Server {
	return &Server{logger: logger, socketPath: socketPath, selected: selected, media: media}
}

// Run binds the socket and serves connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := paths.EnsureParent(s.socketPath); err != nil {
		return err
	}
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		s.logger.Warn("failed to set socket permissions", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("ipc accept error", zap.Error(err))
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ok := s.dispatch(ctx, line)
		resp := "{\"ok\":false}\n"
		if ok {
			resp = "{\"ok\":true}\n"
		}
		if _, err := conn.Write([]byte(resp)); err != nil {
			return
		}
	}
}

type request struct {
	Cmd      string   `json:"cmd"`
	Player   *string  `json:"player"`
	Offset   *float64 `json:"offset"`
	Position *float64 `json:"position"`
}

// dispatch parses and runs a single command line, returning whether it
// was well-formed and resolved to a target player. The external control
// utility is invoked fire-and-forget, matching the command protocol's
// "process and respond" contract — a downstream playerctl failure is not
// surfaced to the IPC client.
func (s *Server) dispatch(ctx context.Context, line string) bool {
	var req request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return false
	}

	player := s.pickPlayer(req.Player)
	if player == "" {
		return false
	}

	switch req.Cmd {
	case "play-pause":
		_ = s.media.PlayPause(ctx, player)
		return true
	case "next":
		_ = s.media.Next(ctx, player)
		return true
	case "previous":
		_ = s.media.Previous(ctx, player)
		return true
	case "seek":
		if req.Offset == nil {
			return false
		}
		_ = s.media.SetPosition(ctx, player, mediactl.SeekArg(*req.Offset))
		return true
	case "set-position":
		if req.Position == nil || *req.Position < 0 {
			return false
		}
		_ = s.media.SetPosition(ctx, player, mediactl.SetPositionArg(*req.Position))
		return true
	default:
		return false
	}
}

func (s *Server) pickPlayer(explicit *string) domain.PlayerID {
	if explicit != nil && *explicit != "" {
		return domain.PlayerID(*explicit)
	}
	return s.selected.Selected()
}
