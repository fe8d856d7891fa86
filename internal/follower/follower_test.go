package follower

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"go.uber.org/zap"
)

type fakeMedia struct {
	mu          sync.Mutex
	quickLine   domain.FollowerLine
	quickErr    error
	streamErr   error
	streamLines chan string
	streamDone  chan error
	started     []domain.PlayerID
	stopped     int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		streamLines: make(chan string, 8),
		streamDone:  make(chan error, 1),
	}
}

func (f *fakeMedia) PlayPause(ctx context.Context, player domain.PlayerID) error  { return nil }
func (f *fakeMedia) Next(ctx context.Context, player domain.PlayerID) error       { return nil }
func (f *fakeMedia) Previous(ctx context.Context, player domain.PlayerID) error   { return nil }
func (f *fakeMedia) SetPosition(ctx context.Context, player domain.PlayerID, arg string) error {
	return nil
}

func (f *fakeMedia) QuickMetadata(ctx context.Context, player domain.PlayerID) (domain.FollowerLine, error) {
	return f.quickLine, f.quickErr
}

func (f *fakeMedia) StreamMetadata(ctx context.Context, player domain.PlayerID) (<-chan string, <-chan error, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamErr != nil {
		return nil, nil, func() {}, f.streamErr
	}
	f.started = append(f.started, player)
	stop := func() {
		f.mu.Lock()
		f.stopped++
		f.mu.Unlock()
	}
	return f.streamLines, f.streamDone, stop, nil
}

type fakeCaps struct{}

func (fakeCaps) Compute(ctx context.Context, id domain.PlayerID, trackURL string) domain.Capabilities {
	return domain.Capabilities{CanNext: true, CanPrev: true}
}

type fakeArt struct{}

func (fakeArt) Resolve(ctx context.Context, url string) (string, error) { return "/tmp/cover.jpg", nil }

type fakePublisher struct {
	mu     sync.Mutex
	states []domain.UiState
}

func (p *fakePublisher) EnsureDirs() error { return nil }

func (p *fakePublisher) Publish(ctx context.Context, state domain.UiState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
	return nil
}

func (p *fakePublisher) last() domain.UiState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.states) == 0 {
		return domain.UiState{}
	}
	return p.states[len(p.states)-1]
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

type fakeStatusSink struct {
	mu     sync.Mutex
	status map[domain.PlayerID]string
}

func (s *fakeStatusSink) SetStatus(id domain.PlayerID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		s.status = make(map[domain.PlayerID]string)
	}
	s.status[id] = status
}

func (s *fakeStatusSink) get(id domain.PlayerID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

func newTestFollower() (*Follower, *fakeMedia, *fakePublisher, *fakeStatusSink) {
	media := newFakeMedia()
	pub := &fakePublisher{}
	sink := &fakeStatusSink{}
	f := New(zap.NewNop(), media, fakeCaps{}, fakeArt{}, pub, sink, Config{TruncateTitle: 120, TruncateArtist: 120})
	return f, media, pub, sink
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

func TestNoneToPlayerSpawnsAndPublishesQuickSnapshot(t *testing.T) {
	f, media, pub, _ := newTestFollower()
	media.quickLine = domain.FollowerLine{Status: "Playing", Title: "Song", Artist: "Artist", LengthUs: "2000000", PositionUs: "1000000"}

	f.SetDesired(context.Background(), "spotify.instance1")

	waitFor(t, func() bool { return pub.count() >= 2 })
	last := pub.last()
	if last.Title != "Song" || last.Status != "Playing" {
		t.Errorf("unexpected quick snapshot state: %+v", last)
	}
	if len(media.started) != 1 || media.started[0] != "spotify.instance1" {
		t.Errorf("expected stream started for spotify.instance1, got %+v", media.started)
	}
}

func TestPlayerToNoneKillsAndPublishesEmpty(t *testing.T) {
	f, media, pub, _ := newTestFollower()
	f.SetDesired(context.Background(), "spotify.instance1")
	waitFor(t, func() bool { return pub.count() >= 1 })

	f.SetDesired(context.Background(), "")

	if media.stopped != 1 {
		t.Errorf("expected stream stopped once, got %d", media.stopped)
	}
	last := pub.last()
	if last.Name != "" {
		t.Errorf("expected empty state published, got %+v", last)
	}
}

func TestPlayerToPlayerIsNoOp(t *testing.T) {
	f, media, _, _ := newTestFollower()
	f.SetDesired(context.Background(), "spotify.instance1")
	waitFor(t, func() bool { return len(media.started) == 1 })

	f.SetDesired(context.Background(), "spotify.instance1")

	if len(media.started) != 1 || media.stopped != 0 {
		t.Errorf("expected no-op on repeated selection, got started=%v stopped=%d", media.started, media.stopped)
	}
}

func TestPlayerToDifferentPlayerKillsThenSpawns(t *testing.T) {
	f, media, _, _ := newTestFollower()
	f.SetDesired(context.Background(), "spotify.instance1")
	waitFor(t, func() bool { return len(media.started) == 1 })

	f.SetDesired(context.Background(), "firefox.instance2")

	if media.stopped != 1 {
		t.Errorf("expected old stream stopped, got %d", media.stopped)
	}
	if len(media.started) != 2 || media.started[1] != "firefox.instance2" {
		t.Errorf("expected new stream started for firefox.instance2, got %+v", media.started)
	}
}

func TestStreamingLinePublishesParsedState(t *testing.T) {
	f, media, pub, _ := newTestFollower()
	f.SetDesired(context.Background(), "spotify.instance1")
	waitFor(t, func() bool { return pub.count() >= 1 })
	before := pub.count()

	media.streamLines <- "Playing|Spotify|New Song|New Artist|3000000|file:///tmp/a.jpg|1500000|https://example.com/track"

	waitFor(t, func() bool { return pub.count() > before })
	last := pub.last()
	if last.Title != "New Song" || last.Artist != "New Artist" {
		t.Errorf("unexpected published state: %+v", last)
	}
	if last.PositionStr != "0:01" || last.LengthStr != "0:03" {
		t.Errorf("unexpected formatted times: %+v", last)
	}
}

func TestMalformedLineIsDiscarded(t *testing.T) {
	f, media, pub, _ := newTestFollower()
	f.SetDesired(context.Background(), "spotify.instance1")
	waitFor(t, func() bool { return pub.count() >= 1 })
	before := pub.count()

	media.streamLines <- "not-enough-fields"
	time.Sleep(20 * time.Millisecond)

	if pub.count() != before {
		t.Errorf("malformed line should not publish, count went from %d to %d", before, pub.count())
	}
}

func TestWatchdogRespawnsDeadFeed(t *testing.T) {
	f, media, _, _ := newTestFollower()
	f.SetDesired(context.Background(), "spotify.instance1")
	waitFor(t, func() bool { return len(media.started) == 1 })

	close(media.streamLines)
	media.streamDone <- nil
	waitFor(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return !f.alive
	})

	f.watchdogTick(context.Background())

	if len(media.started) != 2 {
		t.Errorf("expected watchdog to respawn the feed, started=%v", media.started)
	}
}

func TestStreamingLineUpdatesStatusSink(t *testing.T) {
	f, media, pub, sink := newTestFollower()
	f.SetDesired(context.Background(), "spotify.instance1")
	waitFor(t, func() bool { return pub.count() >= 1 })

	media.streamLines <- "Paused|Spotify|Song|Artist|3000000||1500000|"

	waitFor(t, func() bool { return sink.get("spotify.instance1") == "Paused" })
}

func TestWatchdogRetriesAfterSpawnFailure(t *testing.T) {
	f, media, _, _ := newTestFollower()
	media.streamErr = context.DeadlineExceeded

	f.SetDesired(context.Background(), "spotify.instance1")

	media.mu.Lock()
	media.streamErr = nil
	media.mu.Unlock()

	f.watchdogTick(context.Background())

	if len(media.started) != 1 || media.started[0] != "spotify.instance1" {
		t.Errorf("expected watchdog to retry the failed spawn, started=%v", media.started)
	}
}

func TestBareSelectionSnapshotKeepsFormattedZeros(t *testing.T) {
	f, media, pub, _ := newTestFollower()
	media.quickErr = context.DeadlineExceeded

	f.SetDesired(context.Background(), "spotify.instance1")

	waitFor(t, func() bool { return pub.count() >= 1 })
	first := pub.last()
	if first.Name != "spotify.instance1" {
		t.Errorf("bare snapshot name = %q, want spotify.instance1", first.Name)
	}
	if first.PositionStr != "0:00" || first.LengthStr != "0:00" {
		t.Errorf("bare snapshot must carry formatted zero times, got %+v", first)
	}
}
