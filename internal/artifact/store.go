// Package artifact implements the content-addressed on-disk blob area
// for derived files (spec §3 Artifact Store, §6 artifact paths).
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Kind names a derived-blob category, each rooted at its own directory
// under the data dir (spec §6: thumbs/, faces/, motion_videos/).
type Kind string

const (
	KindThumbnail   Kind = "thumbs"
	KindFace        Kind = "faces"
	KindMotionVideo Kind = "motion_videos"
)

// Store writes and resolves artifact bytes under root, sharding by the
// first two characters of the file identifier so no directory holds an
// unbounded number of entries.
type Store struct {
	root string
}

// New returns a Store rooted at dataDir (spec §6 mount point layout).
func New(dataDir string) *Store {
	return &Store{root: dataDir}
}

// Path returns the deterministic artifact path for (fileID, kind,
// suffix) — e.g. Path(id, KindThumbnail, "600.webp") matches spec §6's
// example `thumbs/<two-char-shard>/<identifier>_600.webp`.
func (s *Store) Path(fileID string, kind Kind, suffix string) string {
	shard := shardOf(fileID)
	name := fmt.Sprintf("%s_%s", fileID, suffix)
	return filepath.Join(string(kind), shard, name)
}

func shardOf(fileID string) string {
	if len(fileID) < 2 {
		return "00"
	}
	return fileID[:2]
}

// Write stores data at the artifact path for (fileID, kind, suffix) and
// returns the path written, relative to root. Overwrites are
// byte-for-byte replacements, matching "re-running a stage overwrites
// byte-for-byte" (spec §8).
func (s *Store) Write(fileID string, kind Kind, suffix string, data []byte) (string, error) {
	rel := s.Path(fileID, kind, suffix)
	abs := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("mkdir artifact dir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", rel, err)
	}
	return rel, nil
}

// Abs resolves a relative artifact path (as stored in the catalog) to
// an absolute filesystem path.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, rel)
}

// Clear removes every stored artifact across all kinds, backing the
// destructive clear_index operation (spec §4.4). The directories are
// recreated lazily on the next Write.
func (s *Store) Clear() error {
	for _, kind := range []Kind{KindThumbnail, KindFace, KindMotionVideo} {
		dir := filepath.Join(s.root, string(kind))
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear %s artifacts: %w", kind, err)
		}
	}
	return nil
}

// Read loads the bytes at a relative artifact path.
func (s *Store) Read(rel string) ([]byte, error) {
	data, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", rel, err)
	}
	return data, nil
}
