// Package art implements the cover-art cache and current-cover
// materialisation.
package art

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image/jpeg"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/paths"
	"go.uber.org/zap"
)

// Fetcher downloads raw image bytes from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Manager resolves art URLs to a local current-cover file.
type Manager struct {
	logger *zap.Logger
	fetch  Fetcher

	enabled      bool
	downloadHTTP bool
	cacheDir     string
	defaultImage string
	currentPath  string
	useSymlink   bool
}

// Config carries the already-token-expanded paths and tunables a Manager
// needs.
type Config struct {
	Enabled      bool
	DownloadHTTP bool
	CacheDir     string
	DefaultImage string
	CurrentPath  string
	UseSymlink   bool
}

// New returns an art Manager.
func New(logger *zap.Logger, fetch Fetcher, cfg Config) *Manager {
	return &Manager{
		logger:       logger,
		fetch:        fetch,
		enabled:      cfg.Enabled,
		downloadHTTP: cfg.DownloadHTTP,
		cacheDir:     cfg.CacheDir,
		defaultImage: cfg.DefaultImage,
		currentPath:  cfg.CurrentPath,
		useSymlink:   cfg.UseSymlink,
	}
}

var _ domain.ArtResolver = (*Manager)(nil)

// Resolve turns url into the absolute path of the current-cover file,
// falling back to the configured default image on any failure.
func (m *Manager) Resolve(ctx context.Context, url string) (string, error) {
	if !m.enabled {
		return m.currentPath, m.materialise(m.defaultImage)
	}

	switch {
	case strings.HasPrefix(url, "file://"):
		local := strings.TrimPrefix(url, "file://")
		if fileExists(local) {
			return m.currentPath, m.materialise(local)
		}
	case (strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")) && m.downloadHTTP:
		target, err := m.ensureCached(ctx, url)
		if err == nil && fileExists(target) {
			return m.currentPath, m.materialise(target)
		}
	}

	return m.currentPath, m.materialise(m.defaultImage)
}

func (m *Manager) ensureCached(ctx context.Context, url string) (string, error) {
	digest := sha1Hex(url)
	target := paths.ArtCachePath(m.cacheDir, digest)
	if fileExists(target) {
		return target, nil
	}

	data, err := m.fetch.Fetch(ctx, url)
	if err != nil || len(data) == 0 {
		return target, fmt.Errorf("art fetch failed: %w", err)
	}

	if err := paths.EnsureParent(target); err != nil {
		return target, err
	}
	if err := writeNormalizedJPEG(target, data); err != nil {
		// Normalization failed (exotic/corrupt format); cache the raw
		// bytes under the .jpg name anyway, since the cache is content
		// addressed by URL hash, not by actual format.
		m.logger.Debug("art normalization failed, caching raw bytes", zap.Error(err))
		if werr := os.WriteFile(target, data, 0o644); werr != nil {
			return target, werr
		}
	}
	return target, nil
}

// materialise copies or symlinks src onto the current-cover path.
func (m *Manager) materialise(src string) error {
	if err := paths.EnsureParent(m.currentPath); err != nil {
		return err
	}
	if m.useSymlink {
		_ = os.Remove(m.currentPath)
		return os.Symlink(src, m.currentPath)
	}
	return copyFile(src, m.currentPath)
}

func writeNormalizedJPEG(dst string, data []byte) error {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
