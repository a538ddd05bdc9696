package snapshot

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/observability"
)

// Artifact file names inside a snapshot directory.
const (
	indexFileName = "channel_index.json"
	guideFileName = "guide.xml"
)

// stagingInfix marks in-progress snapshot directories. The startup sweep
// removes abandoned ones; committed directories never carry it.
const stagingInfix = ".staging-"

// Store owns snapshot artifacts on disk, laid out as
// <root>/<outputName>/<snapshotID>/{channel_index.json,guide.xml}.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates a Store rooted at the configured snapshot directory.
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:   root,
		logger: observability.WithComponent(logger, "snapshot-store"),
	}
}

// Write persists a snapshot's artifacts. Both files are written into a
// staging directory and committed with a single rename, so a reader never
// observes a half-written snapshot directory.
func (s *Store) Write(outputName string, snapshotID models.ULID, index []IndexEntry, guide []byte) (indexPath, guidePath string, err error) {
	parent := filepath.Join(s.root, outputName)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", "", fmt.Errorf("creating snapshot parent directory: %w", err)
	}

	final := filepath.Join(parent, snapshotID.String())
	staging := final + stagingInfix + randomSuffix()
	if err := os.Mkdir(staging, 0o755); err != nil {
		return "", "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(staging)
		}
	}()

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshaling channel index: %w", err)
	}
	if err = renameio.WriteFile(filepath.Join(staging, indexFileName), data, 0o644); err != nil {
		return "", "", fmt.Errorf("writing channel index: %w", err)
	}
	if err = renameio.WriteFile(filepath.Join(staging, guideFileName), guide, 0o644); err != nil {
		return "", "", fmt.Errorf("writing guide: %w", err)
	}

	if err = os.Rename(staging, final); err != nil {
		return "", "", fmt.Errorf("committing snapshot directory: %w", err)
	}

	return filepath.Join(final, indexFileName), filepath.Join(final, guideFileName), nil
}

// ReadIndex loads and parses a channel index file.
func (s *Store) ReadIndex(path string) ([]IndexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading channel index: %w", err)
	}
	var index []IndexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing channel index: %w", err)
	}
	return index, nil
}

// ReadGuide loads a guide file verbatim.
func (s *Store) ReadGuide(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading guide: %w", err)
	}
	return data, nil
}

// DeleteSnapshotDir removes the directory holding the given artifact path.
func (s *Store) DeleteSnapshotDir(indexPath string) error {
	dir := filepath.Dir(indexPath)
	// Only ever delete inside the store root.
	if rel, err := filepath.Rel(s.root, dir); err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to delete %s: outside snapshot root", dir)
	}
	return os.RemoveAll(dir)
}

// SweepStaging removes abandoned staging directories older than maxAge. A
// crash mid-build leaves one behind; committed snapshot directories are never
// touched. Errors are logged and swept past.
func (s *Store) SweepStaging(maxAge time.Duration) {
	outputs, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading snapshot root", slog.String("error", err.Error()))
		}
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, output := range outputs {
		if !output.IsDir() {
			continue
		}
		parent := filepath.Join(s.root, output.Name())
		entries, err := os.ReadDir(parent)
		if err != nil {
			s.logger.Warn("reading output directory",
				slog.String("dir", parent),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !strings.Contains(entry.Name(), stagingInfix) {
				continue
			}
			path := filepath.Join(parent, entry.Name())
			info, err := entry.Info()
			if err == nil && info.ModTime().After(cutoff) {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				s.logger.Warn("removing orphaned staging directory",
					slog.String("dir", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.logger.Info("removed orphaned staging directory", slog.String("dir", path))
		}
	}
}

// randomSuffix returns a short random hex token for staging directory names.
func randomSuffix() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}
