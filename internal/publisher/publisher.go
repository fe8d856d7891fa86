// Package publisher serialises UiState records to the snapshot file and
// the event log. The snapshot is replaced atomically; the event log is
// appended to. Both operations succeed or report failure independently.
package publisher

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/renameio/v2"
	"github.com/mprisbridge/mpris-bridge/internal/domain"
	"github.com/mprisbridge/mpris-bridge/internal/paths"
	"go.uber.org/zap"
)

// Publisher writes UiState records to a snapshot file (atomic replace)
// and an append-only event log.
type Publisher struct {
	logger       *zap.Logger
	snapshotPath string
	eventsPath   string
	pretty       bool
}

// New returns a Publisher writing to the given snapshot and event-log
// paths (already token-expanded).
func New(logger *zap.Logger, snapshotPath, eventsPath string, pretty bool) *Publisher {
	return &Publisher{logger: logger, snapshotPath: snapshotPath, eventsPath: eventsPath, pretty: pretty}
}

// EnsureDirs creates, idempotently, the parent directories of the
// snapshot and event-log files.
func (p *Publisher) EnsureDirs() error {
	if err := paths.EnsureParent(p.snapshotPath); err != nil {
		return err
	}
	return paths.EnsureParent(p.eventsPath)
}

// Publish serialises state and writes it to both the snapshot (atomic
// replace, via write-temp-then-rename in the same directory) and the
// event log (append, one line). A reader that reads the snapshot then
// tails the event log from its end may observe the event line after the
// snapshot rename — no strict cross-channel ordering is promised for a
// single update.
func (p *Publisher) Publish(ctx context.Context, state domain.UiState) error {
	data, err := p.marshal(state)
	if err != nil {
		return err
	}

	snapErr := p.writeSnapshot(data)
	if snapErr != nil {
		p.logger.Error("failed to write snapshot", zap.Error(snapErr))
	}

	logErr := p.appendEvent(data)
	if logErr != nil {
		p.logger.Error("failed to append event", zap.Error(logErr))
	}

	if snapErr != nil {
		return snapErr
	}
	return logErr
}

func (p *Publisher) marshal(state domain.UiState) ([]byte, error) {
	if p.pretty {
		return json.MarshalIndent(state, "", "  ")
	}
	return json.Marshal(state)
}

func (p *Publisher) writeSnapshot(data []byte) error {
	pf, err := renameio.NewPendingFile(p.snapshotPath)
	if err != nil {
		return err
	}
	defer pf.Cleanup()

	if _, err := pf.Write(data); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}

func (p *Publisher) appendEvent(data []byte) error {
	f, err := os.OpenFile(p.eventsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	_, err = f.Write([]byte("\n"))
	return err
}
