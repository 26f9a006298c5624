package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"photoindex/internal/catalog"
)

// DiscoverySink adapts the Supervisor + Catalog Store into a
// discovery.Sink: resolve file identity, then fan the result out to
// every stage downstream of Discovery (spec §4.3, §4.1 identity probe).
type DiscoverySink struct {
	Store      catalog.Store
	Supervisor *Supervisor
}

// Discovered implements discovery.Sink.
func (d *DiscoverySink) Discovered(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	// Detected from content, not extension: the declared MIME kind on
	// the File row (spec §3).
	var mimeKind string
	if mt, err := mimetype.DetectFile(path); err == nil {
		mimeKind = mt.String()
	}

	fileID, _, err := d.Store.UpsertFile(ctx, path, info.Size(), info.ModTime(), mimeKind)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", path, err)
	}

	d.Supervisor.EnqueueDiscovered(ctx, fileID)
	return nil
}
