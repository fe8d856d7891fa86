// Command mpris-bridged is the session daemon: it elects one MPRIS player,
// follows its metadata, and publishes a snapshot, event log, and cover
// file for status-bar widgets and the mpris-bridgectl companion tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mprisbridge/mpris-bridge/internal/art"
	"github.com/mprisbridge/mpris-bridge/internal/bus"
	"github.com/mprisbridge/mpris-bridge/internal/capability"
	"github.com/mprisbridge/mpris-bridge/internal/config"
	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/fetcher"
	"github.com/mprisbridge/mpris-bridge/internal/focus"
	"github.com/mprisbridge/mpris-bridge/internal/follower"
	"github.com/mprisbridge/mpris-bridge/internal/format"
	"github.com/mprisbridge/mpris-bridge/internal/ipc"
	"github.com/mprisbridge/mpris-bridge/internal/mediactl"
	"github.com/mprisbridge/mpris-bridge/internal/orchestrator"
	"github.com/mprisbridge/mpris-bridge/internal/paths"
	"github.com/mprisbridge/mpris-bridge/internal/publisher"
	"github.com/mprisbridge/mpris-bridge/internal/seed"
	"github.com/mprisbridge/mpris-bridge/internal/state"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// ResolvedPaths carries every token-expanded filesystem location the
// daemon's components need, computed once from config.Config.
type ResolvedPaths struct {
	Snapshot     string
	Events       string
	Socket       string
	CacheDir     string
	DefaultImage string
	CurrentCover string
}

// AppOptions defines the application's dependency graph. Exporting it
// lets tests validate the graph without running a real daemon.
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		loadConfig,
		resolvePaths,
		selectionConfig,
		artConfig,
		artTimeout,
		followerConfig,
		state.New,
		newFocusListener,
		fx.Annotate(
			seed.New,
			fx.As(new(orchestrator.Seeder)),
		),
		fx.Annotate(
			newPublisher,
			fx.As(new(domain.Publisher)),
		),
		fx.Annotate(
			fetcher.NewHTTPFetcher,
			fx.As(new(art.Fetcher)),
		),
		fx.Annotate(
			art.New,
			fx.As(new(domain.ArtResolver)),
		),
		fx.Annotate(
			mediactl.New,
			fx.As(new(domain.MediaController)),
		),
		fx.Annotate(
			capability.New,
			fx.As(new(follower.CapabilityReader)),
		),
		statusSink,
		follower.New,
		orchestrator.New,
		selectedPlayerProvider,
		newBusListener,
		newIPCServer,
	),

	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		panic(err)
	}
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func loadConfig(logger *zap.Logger) (config.Config, error) {
	return config.Load(paths.ConfigFile(), logger)
}

// resolvePaths expands the path tokens in cfg's configurable locations,
// falling back to the canonical runtime-dir default for the one location
// that isn't configurable (the socket path).
func resolvePaths(cfg config.Config) ResolvedPaths {
	return ResolvedPaths{
		Snapshot:     paths.Expand(cfg.Output.SnapshotPath),
		Events:       paths.Expand(cfg.Output.EventsPath),
		Socket:       paths.SocketPath(),
		CacheDir:     paths.Expand(cfg.Art.CacheDir),
		DefaultImage: paths.Expand(cfg.Art.DefaultImage),
		CurrentCover: paths.Expand(cfg.Art.CurrentPath),
	}
}

func selectionConfig(cfg config.Config) config.Selection { return cfg.Selection }

func artConfig(cfg config.Config, rp ResolvedPaths) art.Config {
	return art.Config{
		Enabled:      cfg.Art.Enabled,
		DownloadHTTP: cfg.Art.DownloadHTTP,
		CacheDir:     rp.CacheDir,
		DefaultImage: rp.DefaultImage,
		CurrentPath:  rp.CurrentCover,
		UseSymlink:   cfg.Art.UseSymlink,
	}
}

func artTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.Art.TimeoutMs) * time.Millisecond
}

func newPublisher(logger *zap.Logger, rp ResolvedPaths, cfg config.Config) *publisher.Publisher {
	return publisher.New(logger, rp.Snapshot, rp.Events, cfg.Output.PrettySnapshot)
}

func followerConfig(cfg config.Config) follower.Config {
	return follower.Config{
		TruncateTitle:  cfg.Presentation.TruncateTitle,
		TruncateArtist: cfg.Presentation.TruncateArtist,
	}
}

func selectedPlayerProvider(orch *orchestrator.Orchestrator) ipc.SelectedPlayerProvider {
	return orch
}

func statusSink(registry *state.Registry) follower.StatusSink {
	return registry
}

func newBusListener(logger *zap.Logger, orch *orchestrator.Orchestrator) *bus.Listener {
	return bus.New(logger, orch.BusHooks())
}

func newFocusListener(logger *zap.Logger, orch *orchestrator.Orchestrator) *focus.Listener {
	return focus.New(logger, orch.FocusHooks())
}

func newIPCServer(logger *zap.Logger, rp ResolvedPaths, selected ipc.SelectedPlayerProvider, media domain.MediaController) *ipc.Server {
	return ipc.New(logger, rp.Socket, selected, media)
}

// registerHooks wires the daemon's lifecycle: on start it publishes the
// initial empty snapshot and launches every long-lived loop; on stop a
// single cancellation unwinds all of them, and OnStop returns once the IPC
// server has closed its socket.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	pub domain.Publisher,
	artResolver domain.ArtResolver,
	orch *orchestrator.Orchestrator,
	focusListener *focus.Listener,
	busListener *bus.Listener,
	foll *follower.Follower,
	ipcServer *ipc.Server,
) {
	// The context fx hands OnStart only lives until startup completes, so
	// the long-lived loops run under their own context, cancelled in
	// OnStop.
	runCtx, cancel := context.WithCancel(context.Background())
	ipcDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("mpris-bridge starting")
			orch.StartContext(runCtx)

			if err := pub.EnsureDirs(); err != nil {
				return err
			}
			if err := publishInitialSnapshot(ctx, pub, artResolver); err != nil {
				logger.Warn("failed to publish initial snapshot", zap.Error(err))
			}

			go runLoop(runCtx, logger, "follower", foll.Run)
			go runLoop(runCtx, logger, "bus listener", busListener.Run)
			go runLoop(runCtx, logger, "focus listener", focusListener.Run)
			go func() {
				defer close(ipcDone)
				if err := ipcServer.Run(runCtx); err != nil && runCtx.Err() == nil {
					logger.Error("ipc server stopped with error", zap.Error(err))
				}
			}()
			go watchHangup(runCtx, logger)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("mpris-bridge stopping")
			cancel()
			select {
			case <-ipcDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func publishInitialSnapshot(ctx context.Context, pub domain.Publisher, artResolver domain.ArtResolver) error {
	// An art failure still yields the current-cover path, so the snapshot
	// is published either way.
	thumbnail, _ := artResolver.Resolve(ctx, "")
	return pub.Publish(ctx, domain.UiState{
		PositionStr: format.Time(0),
		LengthStr:   format.Time(0),
		Thumbnail:   thumbnail,
	})
}

// runLoop runs a supervised long-lived component loop, logging its exit
// unless it was caused by context cancellation.
func runLoop(ctx context.Context, logger *zap.Logger, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && ctx.Err() == nil {
		logger.Error(name+" stopped with error", zap.Error(err))
	}
}

// watchHangup logs SIGHUP and otherwise ignores it. Reserved for a future
// config reload; today a reload still requires a restart.
func watchHangup(ctx context.Context, logger *zap.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			logger.Info("received SIGHUP, ignoring (config reload not yet supported)")
		}
	}
}
