package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photoindex/internal/model"
)

func TestDiscoverySink_UpsertsAndFansOutToDownstreamOfDiscovery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	store := newFakeStore()
	sup := newTestSupervisor(store, func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		return model.LedgerDone, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.Start(ctx)

	sink := &DiscoverySink{Store: store, Supervisor: sup}
	require.NoError(t, sink.Discovered(ctx, path))

	// StageDiscovery fans out to StageExif per the flow graph; the fake
	// supervisor here is wired with Exif -> Geocoding.
	require.Eventually(t, func() bool {
		status, ok := store.statusOf(path, model.StageExif)
		return ok && status == model.LedgerDone
	}, time.Second, 5*time.Millisecond)
}

func TestDiscoverySink_MissingFileReturnsError(t *testing.T) {
	store := newFakeStore()
	sup := newTestSupervisor(store, func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		return model.LedgerDone, nil
	})
	sink := &DiscoverySink{Store: store, Supervisor: sup}

	err := sink.Discovered(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
}
