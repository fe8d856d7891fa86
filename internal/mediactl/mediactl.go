// Package mediactl invokes the external media-control utility (playerctl)
// for transport commands and metadata reads.
package mediactl

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/extcmd"
)

const (
	playerctlBinary = "playerctl"
	metadataFormat  = "{{status}}|{{playerName}}|{{title}}|{{artist}}|{{mpris:length}}|{{mpris:artUrl}}|{{position}}|{{xesam:url}}"
)

// Controller drives playerctl.
type Controller struct{}

// New returns a Controller.
func New() *Controller { return &Controller{} }

var _ domain.MediaController = (*Controller)(nil)

func (c *Controller) PlayPause(ctx context.Context, player domain.PlayerID) error {
	_, err := extcmd.Run(ctx, playerctlBinary, "-p", string(player), "play-pause")
	return err
}

func (c *Controller) Next(ctx context.Context, player domain.PlayerID) error {
	_, err := extcmd.Run(ctx, playerctlBinary, "-p", string(player), "next")
	return err
}

func (c *Controller) Previous(ctx context.Context, player domain.PlayerID) error {
	_, err := extcmd.Run(ctx, playerctlBinary, "-p", string(player), "previous")
	return err
}

// SetPosition invokes playerctl position with a pre-built argument (the
// IPC server builds the "<N>+"/"<N>-"/"<N>" form).
func (c *Controller) SetPosition(ctx context.Context, player domain.PlayerID, arg string) error {
	_, err := extcmd.Run(ctx, playerctlBinary, "-p", string(player), "position", arg)
	return err
}

// SeekArg builds the relative-seek argument for an offset in seconds:
// the rounded absolute value with a trailing "+" or "-" sign.
func SeekArg(offsetSeconds float64) string {
	rounded := int64(math.Round(math.Abs(offsetSeconds)))
	if offsetSeconds < 0 {
		return fmt.Sprintf("%d-", rounded)
	}
	return fmt.Sprintf("%d+", rounded)
}

// SetPositionArg builds the absolute-position argument: the rounded
// non-negative value with no sign suffix.
func SetPositionArg(positionSeconds float64) string {
	return strconv.FormatInt(int64(math.Round(positionSeconds)), 10)
}

// QuickMetadata performs a one-shot metadata read for player, used for
// the quick snapshot on selection change before the streaming feed
// produces its first line.
func (c *Controller) QuickMetadata(ctx context.Context, player domain.PlayerID) (domain.FollowerLine, error) {
	out, err := extcmd.Run(ctx, playerctlBinary, "-p", string(player), "metadata", "--format", metadataFormat)
	if err != nil {
		return domain.FollowerLine{}, err
	}
	line, ok := ParseLine(strings.TrimSpace(out))
	if !ok {
		return domain.FollowerLine{}, fmt.Errorf("malformed metadata line")
	}
	return line, nil
}

// StreamMetadata starts the long-lived `playerctl ... -F` follower feed.
func (c *Controller) StreamMetadata(ctx context.Context, player domain.PlayerID) (<-chan string, <-chan error, func(), error) {
	return extcmd.Stream(ctx, playerctlBinary, "-p", string(player), "metadata", "--format", metadataFormat, "-F")
}

// ParseLine splits a pipe-delimited follower line into exactly 8 fields.
// Any other field count is a parse failure, discarded silently by the
// caller.
func ParseLine(line string) (domain.FollowerLine, bool) {
	parts := strings.SplitN(line, "|", 8)
	if len(parts) != 8 {
		return domain.FollowerLine{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return domain.FollowerLine{
		Status:     parts[0],
		PlayerName: parts[1],
		Title:      parts[2],
		Artist:     parts[3],
		LengthUs:   parts[4],
		ArtURL:     parts[5],
		PositionUs: parts[6],
		TrackURL:   parts[7],
	}, true
}
