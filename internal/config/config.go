package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// Selection holds the election engine's tunables.
type Selection struct {
	Priority     []string `toml:"priority"`
	RememberLast bool     `toml:"remember_last"`
	Fallback     string   `toml:"fallback"`
	Include      []string `toml:"include"`
	Exclude      []string `toml:"exclude"`
}

// Art holds the art manager's tunables.
type Art struct {
	Enabled      bool   `toml:"enabled"`
	DownloadHTTP bool   `toml:"download_http"`
	TimeoutMs    int    `toml:"timeout_ms"`
	CacheDir     string `toml:"cache_dir"`
	DefaultImage string `toml:"default_image"`
	CurrentPath  string `toml:"current_path"`
	UseSymlink   bool   `toml:"use_symlink"`
}

// Output holds the publisher's tunables.
type Output struct {
	SnapshotPath   string `toml:"snapshot_path"`
	EventsPath     string `toml:"events_path"`
	PrettySnapshot bool   `toml:"pretty_snapshot"`
}

// Presentation holds display-formatting tunables.
type Presentation struct {
	TruncateTitle  int `toml:"truncate_title"`
	TruncateArtist int `toml:"truncate_artist"`
}

// Config is the decoded contents of config.toml, keyed by section.
type Config struct {
	Selection    Selection    `toml:"selection"`
	Art          Art          `toml:"art"`
	Output       Output       `toml:"output"`
	Presentation Presentation `toml:"presentation"`
}

// Default returns the configuration used when a key is absent from
// config.toml.
func Default() Config {
	return Config{
		Selection: Selection{
			Priority:     []string{"firefox", "spotify", "vlc", "mpv"},
			RememberLast: true,
			Fallback:     "any",
		},
		Art: Art{
			Enabled:      true,
			DownloadHTTP: true,
			TimeoutMs:    5000,
			CacheDir:     "$XDG_CACHE_HOME/mpris-bridge/art",
			DefaultImage: "$XDG_CONFIG_HOME/mpris-bridge/default.jpg",
			CurrentPath:  "$XDG_CACHE_HOME/mpris-bridge/current_cover.jpg",
			UseSymlink:   false,
		},
		Output: Output{
			SnapshotPath:   "$XDG_RUNTIME_DIR/mpris-bridge/state.json",
			EventsPath:     "$XDG_RUNTIME_DIR/mpris-bridge/events.jsonl",
			PrettySnapshot: false,
		},
		Presentation: Presentation{
			TruncateTitle:  120,
			TruncateArtist: 120,
		},
	}
}

// Load reads and decodes config.toml at path, merging decoded values over
// Default(). A missing file is not an error: Load writes the default
// configuration out and returns the defaults. Any other read or parse
// failure is returned as-is; a config load failure is the one fatal
// startup error, so the caller is expected to abort rather than retry.
func Load(path string, logger *zap.Logger) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Info("config file absent, writing defaults", zap.String("path", path))
		if werr := writeDefault(path, cfg); werr != nil {
			logger.Warn("failed to write default config", zap.Error(werr))
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func writeDefault(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
