// Package seed implements the one-shot player enumeration and status
// refresh used at startup and on bus-owner changes, shelling out to
// playerctl rather than reading D-Bus properties in-process.
package seed

import (
	"context"
	"strings"

	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/extcmd"
	"go.uber.org/zap"
)

const playerctlBinary = "playerctl"

// Seeder enumerates players and reads their statuses via playerctl.
type Seeder struct {
	logger *zap.Logger
}

// New returns a Seeder.
func New(logger *zap.Logger) *Seeder {
	return &Seeder{logger: logger}
}

// List returns the full set of currently running players and their
// last-observed status. A playerctl failure (no players running, binary
// missing) yields an empty map rather than an error, since "no players"
// is the expected steady state, not a fault.
func (s *Seeder) List(ctx context.Context) map[domain.PlayerID]string {
	out, err := extcmd.Run(ctx, playerctlBinary, "-l")
	if err != nil {
		s.logger.Debug("playerctl -l reported no players", zap.Error(err))
		return map[domain.PlayerID]string{}
	}

	result := make(map[domain.PlayerID]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id := domain.PlayerID(line)
		result[id] = s.Status(ctx, id)
	}
	return result
}

// Status reads a single player's current playback status.
func (s *Seeder) Status(ctx context.Context, id domain.PlayerID) string {
	out, err := extcmd.Run(ctx, playerctlBinary, "-p", string(id), "status")
	if err != nil {
		s.logger.Debug("failed to read player status", zap.String("player", string(id)), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(out)
}
