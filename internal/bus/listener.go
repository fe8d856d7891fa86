package bus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	mprisNamespace = "org.mpris.MediaPlayer2"
	mprisPath      = "/org/mpris/MediaPlayer2"
	playerIface    = "org.mpris.MediaPlayer2.Player"

	seedDebounce    = 300 * time.Millisecond
	refreshDebounce = 250 * time.Millisecond

	backoffInitial = 200 * time.Millisecond
	backoffMax     = 6 * time.Second
)

// Hooks are the callbacks the listener drives. Seed re-enumerates players
// and statuses; Refresh re-reads every known player's status; Recompute
// re-runs the election engine. All three are expected to be cheap and
// non-blocking relative to the debounce windows.
type Hooks struct {
	Seed      func(ctx context.Context)
	Refresh   func(ctx context.Context)
	Recompute func()
}

// Listener owns the session-bus connection and reacts to the three match
// rules it installs, debouncing each signal class independently.
type Listener struct {
	logger  *zap.Logger
	hooks   Hooks
	connect func() (Client, error)

	mu          sync.Mutex
	lastSeed    time.Time
	lastRefresh time.Time
}

// New creates a listener bound to the given hooks.
func New(logger *zap.Logger, hooks Hooks) *Listener {
	return &Listener{logger: logger, hooks: hooks, connect: Connect}
}

// Run connects, seeds once, then processes signals until ctx is
// cancelled, reconnecting with exponential backoff on any fatal bus
// error.
func (l *Listener) Run(ctx context.Context) error {
	backoff := backoffInitial

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := l.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			backoff = backoffInitial
			continue
		}

		l.logger.Warn("bus loop error, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func (l *Listener) runOnce(ctx context.Context) error {
	client, err := l.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := l.installMatchRules(client); err != nil {
		return err
	}

	signals := make(chan *dbus.Signal, 16)
	client.Signal(signals)
	defer client.RemoveSignal(signals)

	l.hooks.Seed(ctx)
	l.hooks.Recompute()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			l.handle(ctx, sig)
		}
	}
}

func (l *Listener) installMatchRules(client Client) error {
	// Rule 1: NameOwnerChanged scoped to the MPRIS namespace.
	if err := client.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg0Namespace(mprisNamespace),
	); err != nil {
		return err
	}
	// Rule 2: PropertiesChanged on the Player interface.
	if err := client.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, playerIface),
	); err != nil {
		return err
	}
	// Rule 3: PropertiesChanged on the root interface.
	if err := client.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, mprisNamespace),
	); err != nil {
		return err
	}
	return nil
}

func (l *Listener) handle(ctx context.Context, sig *dbus.Signal) {
	switch sig.Name {
	case "org.freedesktop.DBus.NameOwnerChanged":
		name, _ := firstString(sig.Body, 0)
		if !strings.HasPrefix(name, mprisNamespace) {
			return
		}
		if l.admit(&l.lastSeed, seedDebounce) {
			l.hooks.Seed(ctx)
			l.hooks.Recompute()
		}
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		iface, _ := firstString(sig.Body, 0)
		if iface != playerIface && iface != mprisNamespace {
			return
		}
		if l.admit(&l.lastRefresh, refreshDebounce) {
			l.hooks.Refresh(ctx)
			l.hooks.Recompute()
		}
	}
}

// admit reports whether enough time has passed since *last, updating it
// if so. Dropped signals are not queued; the next admitted one
// reconverges state on its own.
func (l *Listener) admit(last *time.Time, threshold time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(*last) < threshold {
		return false
	}
	*last = now
	return true
}

func firstString(body []interface{}, idx int) (string, bool) {
	if idx >= len(body) {
		return "", false
	}
	s, ok := body[idx].(string)
	return s, ok
}
