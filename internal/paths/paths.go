// Package paths resolves the runtime directories and canonical file
// locations the daemon reads and writes, expanding the four recognized
// path tokens.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand substitutes $HOME, $XDG_CONFIG_HOME, $XDG_CACHE_HOME, and
// $XDG_RUNTIME_DIR in s, falling back to XDG defaults (and, for
// XDG_RUNTIME_DIR, to /run/user/<uid>) when the corresponding environment
// variable is unset.
func Expand(s string) string {
	r := strings.NewReplacer(
		"$HOME", home(),
		"$XDG_CONFIG_HOME", configHome(),
		"$XDG_CACHE_HOME", cacheHome(),
		"$XDG_RUNTIME_DIR", runtimeDir(),
	)
	return r.Replace(s)
}

func home() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

func configHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home(), ".config")
}

func cacheHome() string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home(), ".cache")
}

func runtimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return v
	}
	return fmt.Sprintf("/run/user/%d", os.Getuid())
}

// ConfigFile returns the canonical location of config.toml.
func ConfigFile() string {
	return filepath.Join(configHome(), "mpris-bridge", "config.toml")
}

// SocketPath returns the canonical IPC socket location; it is not
// configurable.
func SocketPath() string {
	return filepath.Join(runtimeDir(), "mpris-bridge", "mpris-bridge.sock")
}

// ArtCachePath returns the canonical location of a cached art file given
// its sha1-hex digest and the configured cache directory (already
// token-expanded).
func ArtCachePath(cacheDir, digest string) string {
	return filepath.Join(cacheDir, digest+".jpg")
}

// EnsureParent creates, idempotently, the parent directory of path.
func EnsureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
