// Package focus consumes the compositor's event stream and extracts a
// focused-window family hint: Hyprland's `hyprctl -i events` line stream
// plus a one-shot `hyprctl activewindow -j` query on each activewindow>>
// line.
package focus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mprisbridge/mpris-bridge/internal/extcmd"
	"go.uber.org/zap"
)

const hyprctlBinary = "hyprctl"

// Hooks are the callbacks the listener drives on a focus change.
type Hooks struct {
	SetFocusHint func(family string)
	Recompute    func()
}

// Listener reads the compositor event stream and maps window classes to
// player families.
type Listener struct {
	logger *zap.Logger
	hooks  Hooks
}

// New returns a focus Listener.
func New(logger *zap.Logger, hooks Hooks) *Listener {
	return &Listener{logger: logger, hooks: hooks}
}

// Run streams compositor events until ctx is cancelled, retrying on EOF
// or spawn failure after a 1-2s sleep, indefinitely.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lines, done, stop, err := extcmd.Stream(ctx, hyprctlBinary, "-i", "events")
		if err != nil {
			l.logger.Warn("hyprctl spawn failed", zap.Error(err))
			if !sleepOrDone(ctx, 2*time.Second) {
				return ctx.Err()
			}
			continue
		}

		l.consume(ctx, lines)
		stop()
		<-done

		if !sleepOrDone(ctx, time.Second) {
			return ctx.Err()
		}
	}
}

func (l *Listener) consume(ctx context.Context, lines <-chan string) {
	for line := range lines {
		if !strings.HasPrefix(line, "activewindow>>") {
			continue
		}
		l.onActiveWindowEvent(ctx)
	}
}

func (l *Listener) onActiveWindowEvent(ctx context.Context) {
	out, err := extcmd.Run(ctx, hyprctlBinary, "activewindow", "-j")
	if err != nil || strings.TrimSpace(out) == "" {
		return
	}

	var payload struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		l.logger.Debug("failed to parse activewindow payload", zap.Error(err))
		return
	}

	l.hooks.SetFocusHint(classToFamily(payload.Class))
	l.hooks.Recompute()
}

// classToFamily maps a window class to a player family hint, or "" when
// the class is not one of the recognized browsers/players.
func classToFamily(class string) string {
	lc := strings.ToLower(class)
	for _, family := range []string{"firefox", "spotify", "vlc", "mpv"} {
		if strings.HasPrefix(lc, family) {
			return family
		}
	}
	return ""
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
