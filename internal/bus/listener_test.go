package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// fakeClient stands in for a session-bus connection: it records installed
// match rules and forwards test-injected signals to the listener's
// channel.
type fakeClient struct {
	mu    sync.Mutex
	rules int
	ch    chan<- *dbus.Signal
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) AddMatchSignal(options ...dbus.MatchOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules++
	return nil
}

func (f *fakeClient) Signal(ch chan<- *dbus.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = ch
}

func (f *fakeClient) RemoveSignal(ch chan<- *dbus.Signal) {}

func (f *fakeClient) emit(sig *dbus.Signal) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- sig
}

type hookCounts struct {
	mu        sync.Mutex
	seed      int
	refresh   int
	recompute int
}

func (h *hookCounts) hooks() Hooks {
	return Hooks{
		Seed: func(ctx context.Context) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.seed++
		},
		Refresh: func(ctx context.Context) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.refresh++
		},
		Recompute: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.recompute++
		},
	}
}

func (h *hookCounts) snapshot() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seed, h.refresh, h.recompute
}

func startTestListener(t *testing.T) (*fakeClient, *hookCounts, context.CancelFunc) {
	t.Helper()
	client := &fakeClient{}
	counts := &hookCounts{}
	l := New(zap.NewNop(), counts.hooks())
	l.connect = func() (Client, error) { return client, nil }

	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	waitFor(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.ch != nil
	})
	return client, counts, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestRunInstallsRulesAndSeedsOnce(t *testing.T) {
	client, counts, cancel := startTestListener(t)
	defer cancel()

	waitFor(t, func() bool { s, _, _ := counts.snapshot(); return s == 1 })
	if client.rules != 3 {
		t.Errorf("expected 3 match rules, got %d", client.rules)
	}
	_, _, recompute := counts.snapshot()
	if recompute != 1 {
		t.Errorf("expected one recompute after the initial seed, got %d", recompute)
	}
}

func TestNameOwnerChangedInNamespaceTriggersSeed(t *testing.T) {
	client, counts, cancel := startTestListener(t)
	defer cancel()
	waitFor(t, func() bool { s, _, _ := counts.snapshot(); return s == 1 })

	client.emit(&dbus.Signal{
		Name: "org.freedesktop.DBus.NameOwnerChanged",
		Body: []interface{}{"org.mpris.MediaPlayer2.spotify", "", ":1.5"},
	})

	waitFor(t, func() bool { s, _, _ := counts.snapshot(); return s == 2 })
}

func TestNameOwnerChangedOutsideNamespaceIgnored(t *testing.T) {
	client, counts, cancel := startTestListener(t)
	defer cancel()
	waitFor(t, func() bool { s, _, _ := counts.snapshot(); return s == 1 })

	client.emit(&dbus.Signal{
		Name: "org.freedesktop.DBus.NameOwnerChanged",
		Body: []interface{}{"org.gnome.Shell", "", ":1.9"},
	})
	time.Sleep(20 * time.Millisecond)

	if s, _, _ := counts.snapshot(); s != 1 {
		t.Errorf("unrelated name must not trigger a seed, got %d", s)
	}
}

func TestPropertiesChangedTriggersRefresh(t *testing.T) {
	client, counts, cancel := startTestListener(t)
	defer cancel()
	waitFor(t, func() bool { s, _, _ := counts.snapshot(); return s == 1 })

	client.emit(&dbus.Signal{
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []interface{}{"org.mpris.MediaPlayer2.Player", map[string]dbus.Variant{}, []string{}},
	})

	waitFor(t, func() bool { _, r, _ := counts.snapshot(); return r == 1 })
}

func TestRefreshSignalsAreDebounced(t *testing.T) {
	client, counts, cancel := startTestListener(t)
	defer cancel()
	waitFor(t, func() bool { s, _, _ := counts.snapshot(); return s == 1 })

	sig := &dbus.Signal{
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []interface{}{"org.mpris.MediaPlayer2.Player", map[string]dbus.Variant{}, []string{}},
	}
	client.emit(sig)
	client.emit(sig)
	client.emit(sig)

	waitFor(t, func() bool { _, r, _ := counts.snapshot(); return r == 1 })
	time.Sleep(20 * time.Millisecond)
	if _, r, _ := counts.snapshot(); r != 1 {
		t.Errorf("burst of PropertiesChanged must collapse into one refresh, got %d", r)
	}
}
