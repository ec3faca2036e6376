// Package archive writes gzip-compressed JSON snapshots of finalized
// sessions to disk for offline replay and audit.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// Writer archives sealed session states under a base directory.
type Writer struct {
	dir    string
	logger zerolog.Logger
}

// NewWriter creates the archive directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: creating %s: %w", dir, err)
	}
	return &Writer{dir: dir, logger: log.WithComponent("archive")}, nil
}

// Write stores one snapshot and returns the archive file path. File names
// carry the session key plus a unique suffix so repeated finalizations never
// overwrite an earlier archive.
func (w *Writer) Write(state *model.SessionState, reason string) (string, error) {
	name := fmt.Sprintf("session-%d-%d-%s-%s.json.gz",
		state.EventID, state.SessionID, reason, uuid.NewString())
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("archive: creating %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		_ = gz.Close()
		return "", fmt.Errorf("archive: encoding session %d:%d: %w", state.EventID, state.SessionID, err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("archive: flushing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("archive: syncing %s: %w", path, err)
	}

	w.logger.Info().
		Int(log.FieldEventID, state.EventID).
		Int(log.FieldSessionID, state.SessionID).
		Str("path", path).
		Msg("session archived")
	return path, nil
}

// Read loads one archived snapshot.
func Read(path string) (*model.SessionState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("archive: reading %s: %w", path, err)
	}
	defer gz.Close()

	var state model.SessionState
	if err := json.NewDecoder(gz).Decode(&state); err != nil {
		return nil, fmt.Errorf("archive: decoding %s: %w", path, err)
	}
	return &state, nil
}
