// Package capability computes the CanGoNext/CanGoPrevious flags for a
// player and track: a bare `busctl get-property` reader, since the
// daemon does not read MPRIS properties in-process.
package capability

import (
	"context"
	"strings"

	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/extcmd"
)

const busctlBinary = "busctl"

// Reader queries capabilities via busctl and applies the YouTube
// override.
type Reader struct{}

// New returns a capability Reader.
func New() *Reader { return &Reader{} }

var _ domain.PropertyReader = (*Reader)(nil)

// Compute returns (CanGoNext, CanGoPrevious) for player id, track url.
func (r *Reader) Compute(ctx context.Context, id domain.PlayerID, url string) domain.Capabilities {
	next, _ := r.BoolProperty(ctx, id, "org.mpris.MediaPlayer2.Player", "CanGoNext")
	prev, _ := r.BoolProperty(ctx, id, "org.mpris.MediaPlayer2.Player", "CanGoPrevious")
	return overrideForYouTube(id, url, next, prev)
}

// BoolProperty queries a single boolean property on player's standard
// MPRIS object path via busctl, satisfying domain.PropertyReader.
func (r *Reader) BoolProperty(ctx context.Context, id domain.PlayerID, iface, prop string) (bool, error) {
	busName := "org.mpris.MediaPlayer2." + string(id)
	out, err := extcmd.Run(ctx, busctlBinary,
		"--user", "get-property", busName,
		"/org/mpris/MediaPlayer2", iface, prop)
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "b true"), nil
}

// overrideForYouTube forces (next=true, prev=false) for Firefox tabs on a
// single-video YouTube page, since those players misreport their
// capabilities there.
func overrideForYouTube(id domain.PlayerID, url string, next, prev bool) domain.Capabilities {
	isFirefox := strings.HasPrefix(string(id), "firefox")
	isYouTube := strings.Contains(url, "youtube.com/watch") || strings.Contains(url, "music.youtube.com")
	if isFirefox && isYouTube && !strings.Contains(url, "list=") {
		return domain.Capabilities{CanNext: true, CanPrev: false}
	}
	return domain.Capabilities{CanNext: next, CanPrev: prev}
}
