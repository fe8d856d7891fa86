package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mprisbridge/mpris-bridge/internal/config"
	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/format"
	"github.com/mprisbridge/mpris-bridge/internal/paths"
)

// watchOptions holds the flags watch accepts.
type watchOptions struct {
	format      string
	truncate    int
	pangoEscape bool
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	formatFlag := fs.String("format", "", "custom label template using {artist} and {title}")
	truncate := fs.Int("truncate", 0, "truncate the rendered label to at most N characters")
	pangoEscape := fs.Bool("pango-escape", false, "escape & < > ' \" for Pango markup")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts := watchOptions{format: *formatFlag, truncate: *truncate, pangoEscape: *pangoEscape}

	cfg := config.Default()
	snapshotPath := paths.Expand(cfg.Output.SnapshotPath)
	eventsPath := paths.Expand(cfg.Output.EventsPath)

	if state, err := readSnapshot(snapshotPath); err == nil {
		emit(state, opts)
	}

	return tailEvents(ctx, eventsPath, opts)
}

func readSnapshot(path string) (domain.UiState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.UiState{}, err
	}
	var state domain.UiState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.UiState{}, err
	}
	return state, nil
}

func emit(state domain.UiState, opts watchOptions) {
	fmt.Println(render(state, opts))
}

// render builds the watch output line: the label (default or --format
// template), then truncation, then Pango escaping, in that order.
func render(state domain.UiState, opts watchOptions) string {
	label := format.Label(state.Artist, state.Title)
	if opts.format != "" {
		r := strings.NewReplacer("{artist}", state.Artist, "{title}", state.Title)
		label = r.Replace(opts.format)
	}
	if opts.truncate > 0 {
		label = format.Truncate(label, opts.truncate)
	}
	if opts.pangoEscape {
		label = format.PangoEscape(label)
	}
	return label
}

// tailEvents follows eventsPath from its current end, emitting a
// formatted line for every newly appended event-log record until ctx is
// cancelled. It watches the parent directory with fsnotify rather than
// polling, so it reacts to both the first Create (daemon not yet started)
// and subsequent Write events.
func tailEvents(ctx context.Context, eventsPath string, opts watchOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(eventsPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	offset := currentSize(eventsPath)
	target := filepath.Base(eventsPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			offset = drainNewLines(eventsPath, offset, opts)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			fmt.Fprintln(os.Stderr, "mpris-bridgectl: watch error:", werr)
		}
	}
}

func currentSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// drainNewLines reads every complete line appended to path since offset,
// emits a formatted line per parsed event, and returns the new offset.
func drainNewLines(path string, offset int64, opts watchOptions) int64 {
	f, err := os.Open(path)
	if err != nil {
		return offset
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	reader := bufio.NewReader(f)
	var consumed int64
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && bytes.HasSuffix(line, []byte("\n")) {
			consumed += int64(len(line))
			var state domain.UiState
			if jerr := json.Unmarshal(bytes.TrimSpace(line), &state); jerr == nil {
				emit(state, opts)
			}
		}
		if err != nil {
			break
		}
	}
	return offset + consumed
}
