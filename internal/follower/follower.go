// Package follower supervises the streaming metadata feed for the
// currently selected player. It owns the none/P/Q state machine driven
// by selection changes, the quick snapshot published immediately on a
// switch, and the liveness watchdog that respawns a feed which silently
// died.
package follower

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/format"
	"github.com/mprisbridge/mpris-bridge/internal/mediactl"
	"go.uber.org/zap"
)

const watchdogInterval = 2 * time.Second

// CapabilityReader computes the next/previous capability flags for a
// player and track.
type CapabilityReader interface {
	Compute(ctx context.Context, id domain.PlayerID, trackURL string) domain.Capabilities
}

// StatusSink receives the playback status carried by each processed
// metadata line, keeping the registry's last-known status current between
// debounced bus refreshes.
type StatusSink interface {
	SetStatus(id domain.PlayerID, status string)
}

// Config carries the presentation tunables the follower needs to build a
// UiState.
type Config struct {
	TruncateTitle  int
	TruncateArtist int
}

// Follower runs the streaming metadata feed for the active selection.
type Follower struct {
	logger *zap.Logger
	media  domain.MediaController
	caps   CapabilityReader
	art    domain.ArtResolver
	pub    domain.Publisher
	status StatusSink
	cfg    Config

	opMu sync.Mutex

	mu         sync.Mutex
	active     domain.PlayerID
	alive      bool
	stopFn     func()
	capsKey    string
	cachedCaps domain.Capabilities
}

// New returns a Follower.
func New(logger *zap.Logger, media domain.MediaController, caps CapabilityReader, art domain.ArtResolver, pub domain.Publisher, status StatusSink, cfg Config) *Follower {
	return &Follower{logger: logger, media: media, caps: caps, art: art, pub: pub, status: status, cfg: cfg}
}

// Run drives the liveness watchdog until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.stopActive()
			return ctx.Err()
		case <-ticker.C:
			f.watchdogTick(ctx)
		}
	}
}

func (f *Follower) watchdogTick(ctx context.Context) {
	f.mu.Lock()
	active := f.active
	alive := f.alive
	f.mu.Unlock()

	if active == "" || alive {
		return
	}
	f.logger.Warn("follower feed died, respawning", zap.String("player", string(active)))
	f.opMu.Lock()
	defer f.opMu.Unlock()
	f.stopActive()
	f.startActive(ctx, active)
}

// SetDesired drives the none/P/Q transition table: none→none and P→P are
// no-ops, none→P spawns, P→none kills, and P→Q kills the old feed before
// spawning the new one.
func (f *Follower) SetDesired(ctx context.Context, desired domain.PlayerID) {
	f.opMu.Lock()
	defer f.opMu.Unlock()

	f.mu.Lock()
	prev := f.active
	f.mu.Unlock()

	if prev == desired {
		return
	}
	if prev != "" {
		f.stopActive()
	}
	if desired == "" {
		f.publishEmpty(ctx)
		return
	}

	f.emitQuickSnapshot(ctx, desired)
	f.startActive(ctx, desired)
}

func (f *Follower) startActive(ctx context.Context, id domain.PlayerID) {
	lines, done, stop, err := f.media.StreamMetadata(ctx, id)
	if err != nil {
		// No retry here: the selection stays active with the liveness
		// flag down, so the next watchdog tick respawns.
		f.logger.Warn("failed to start follower stream", zap.String("player", string(id)), zap.Error(err))
		f.mu.Lock()
		f.active = id
		f.alive = false
		f.stopFn = nil
		f.mu.Unlock()
		return
	}

	f.mu.Lock()
	f.active = id
	f.alive = true
	f.stopFn = stop
	f.capsKey = ""
	f.mu.Unlock()

	go f.consume(ctx, id, lines, done)
}

func (f *Follower) stopActive() {
	f.mu.Lock()
	stop := f.stopFn
	f.active = ""
	f.alive = false
	f.stopFn = nil
	f.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (f *Follower) consume(ctx context.Context, id domain.PlayerID, lines <-chan string, done <-chan error) {
	for line := range lines {
		parsed, ok := mediactl.ParseLine(line)
		if !ok {
			f.logger.Debug("discarding malformed follower line", zap.String("player", string(id)))
			continue
		}

		f.mu.Lock()
		stale := f.active != id
		if !stale {
			f.alive = true
		}
		f.mu.Unlock()
		if stale {
			continue
		}

		f.publishLine(ctx, id, parsed)
	}
	<-done

	f.mu.Lock()
	if f.active == id {
		f.alive = false
	}
	f.mu.Unlock()
}

// emitQuickSnapshot publishes a bare name-only state immediately, then a
// one-shot metadata read, so a UI has something to show before the
// streaming feed produces its first line.
func (f *Follower) emitQuickSnapshot(ctx context.Context, id domain.PlayerID) {
	if err := f.pub.Publish(ctx, f.emptyState(ctx, string(id))); err != nil {
		f.logger.Debug("failed to publish bare selection snapshot", zap.Error(err))
	}

	line, err := f.media.QuickMetadata(ctx, id)
	if err != nil {
		f.logger.Debug("quick metadata read failed", zap.String("player", string(id)), zap.Error(err))
		return
	}
	f.publishLine(ctx, id, line)
}

func (f *Follower) publishEmpty(ctx context.Context) {
	if err := f.pub.Publish(ctx, f.emptyState(ctx, "")); err != nil {
		f.logger.Debug("failed to publish empty state", zap.Error(err))
	}
}

// emptyState is a metadata-free record that still honors the formatted
// time mirrors and carries the default cover.
func (f *Follower) emptyState(ctx context.Context, name string) domain.UiState {
	thumbnail, err := f.art.Resolve(ctx, "")
	if err != nil {
		f.logger.Debug("art resolution failed", zap.Error(err))
	}
	return domain.UiState{
		Name:        name,
		PositionStr: format.Time(0),
		LengthStr:   format.Time(0),
		Thumbnail:   thumbnail,
	}
}

func (f *Follower) publishLine(ctx context.Context, id domain.PlayerID, line domain.FollowerLine) {
	f.status.SetStatus(id, line.Status)
	state := f.buildState(ctx, id, line)
	if err := f.pub.Publish(ctx, state); err != nil {
		f.logger.Warn("failed to publish follower state", zap.Error(err))
	}
}

func (f *Follower) buildState(ctx context.Context, id domain.PlayerID, line domain.FollowerLine) domain.UiState {
	positionSec := microsToSeconds(line.PositionUs)
	lengthSec := microsToSeconds(line.LengthUs)

	caps := f.capabilitiesFor(ctx, id, line)
	thumbnail, err := f.art.Resolve(ctx, line.ArtURL)
	if err != nil {
		f.logger.Debug("art resolution failed", zap.Error(err))
	}

	return domain.UiState{
		Name:        string(id),
		Title:       format.Truncate(line.Title, f.cfg.TruncateTitle),
		Artist:      format.Truncate(line.Artist, f.cfg.TruncateArtist),
		Status:      line.Status,
		Position:    positionSec,
		Length:      lengthSec,
		PositionStr: format.Time(positionSec),
		LengthStr:   format.Time(lengthSec),
		Thumbnail:   thumbnail,
		CanNext:     boolToInt(caps.CanNext),
		CanPrev:     boolToInt(caps.CanPrev),
	}
}

// capabilitiesFor recomputes capabilities only when status, title, artist,
// or track url changed since the last computation.
func (f *Follower) capabilitiesFor(ctx context.Context, id domain.PlayerID, line domain.FollowerLine) domain.Capabilities {
	key := line.Status + "|" + line.Title + "|" + line.Artist + "|" + line.TrackURL

	f.mu.Lock()
	if key == f.capsKey {
		cached := f.cachedCaps
		f.mu.Unlock()
		return cached
	}
	f.mu.Unlock()

	caps := f.caps.Compute(ctx, id, line.TrackURL)

	f.mu.Lock()
	f.capsKey = key
	f.cachedCaps = caps
	f.mu.Unlock()

	return caps
}

func microsToSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	us, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return us / 1_000_000
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
