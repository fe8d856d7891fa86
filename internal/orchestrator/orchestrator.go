// Package orchestrator wires the daemon's components together: it owns
// the registry, drives the election engine on every mutation, and
// forwards the outcome to the follower supervisor. Recompute hands the
// outcome to the follower's own mutex-guarded SetDesired, which already
// gives last-value-wins semantics without a dedicated notification
// channel.
package orchestrator

import (
	"context"

	"github.com/mprisbridge/mpris-bridge/internal/bus"
	"github.com/mprisbridge/mpris-bridge/internal/config"
	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/election"
	"github.com/mprisbridge/mpris-bridge/internal/focus"
	"github.com/mprisbridge/mpris-bridge/internal/follower"
	"github.com/mprisbridge/mpris-bridge/internal/state"
	"go.uber.org/zap"
)

// Seeder enumerates currently running players and reads their statuses.
type Seeder interface {
	List(ctx context.Context) map[domain.PlayerID]string
	Status(ctx context.Context, id domain.PlayerID) string
}

// Orchestrator recomputes the election outcome after every registry
// mutation and pushes it down to the follower supervisor. Its Seed,
// Refresh, and SetFocusHint methods are the hooks the bus and focus
// listeners drive directly; RecomputeNow, and the follower feeds it
// starts, use the context captured by StartContext, set once before any
// listener begins emitting events.
type Orchestrator struct {
	logger   *zap.Logger
	registry *state.Registry
	cfg      config.Selection
	seeder   Seeder
	follower *follower.Follower

	ctx context.Context
}

// New returns an Orchestrator.
func New(logger *zap.Logger, registry *state.Registry, cfg config.Selection, seeder Seeder, follower *follower.Follower) *Orchestrator {
	return &Orchestrator{logger: logger, registry: registry, cfg: cfg, seeder: seeder, follower: follower, ctx: context.Background()}
}

// StartContext records the long-lived context the daemon runs under.
// Call it once, before any of Seed/Refresh/RecomputeNow can fire from a
// listener goroutine.
func (o *Orchestrator) StartContext(ctx context.Context) {
	o.ctx = ctx
}

// Selected satisfies ipc.SelectedPlayerProvider.
func (o *Orchestrator) Selected() domain.PlayerID {
	return o.registry.Selected()
}

// Seed re-enumerates players and their statuses, as done at startup and
// on any MPRIS-namespace NameOwnerChanged signal.
func (o *Orchestrator) Seed(ctx context.Context) {
	players := o.seeder.List(ctx)
	o.registry.Seed(players)
}

// Refresh re-reads the status of every known player, as done on a
// debounced PropertiesChanged signal.
func (o *Orchestrator) Refresh(ctx context.Context) {
	snapshot := o.registry.Snapshot()
	for id := range snapshot.Players {
		o.registry.SetStatus(id, o.seeder.Status(ctx, id))
	}
}

// SetFocusHint records the compositor's current focus family hint.
func (o *Orchestrator) SetFocusHint(family string) {
	o.registry.SetFocusHint(family)
}

// Recompute re-runs the election engine over the current registry
// contents, records the outcome, and hands it to the follower supervisor,
// which acts only when it differs from the current selection.
func (o *Orchestrator) Recompute(ctx context.Context) {
	snapshot := o.registry.Snapshot()
	selected := election.Select(snapshot.Players, snapshot.FocusHint, snapshot.LastSelected, o.cfg)
	o.registry.SetSelected(selected)
	o.follower.SetDesired(ctx, selected)
}

// RecomputeNow runs Recompute against the captured long-lived context;
// it is the Recompute hook bus.Hooks and focus.Hooks expect.
func (o *Orchestrator) RecomputeNow() {
	o.Recompute(o.ctx)
}

// FocusHooks returns the callback pair the focus listener drives.
func (o *Orchestrator) FocusHooks() focus.Hooks {
	return focus.Hooks{
		SetFocusHint: o.SetFocusHint,
		Recompute:    o.RecomputeNow,
	}
}

// BusHooks returns the callback triple the signal listener drives.
func (o *Orchestrator) BusHooks() bus.Hooks {
	return bus.Hooks{
		Seed:      o.Seed,
		Refresh:   o.Refresh,
		Recompute: o.RecomputeNow,
	}
}
