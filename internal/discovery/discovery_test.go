package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingSink) Discovered(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.paths...)
	sort.Strings(out)
	return out
}

func TestWalk_EmitsOnlySupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	write("a.jpg")
	write("b.PNG") // extension matching is case-insensitive
	write("notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	write(filepath.Join("sub", "c.heic"))

	sink := &recordingSink{}
	n, err := Walk(context.Background(), dir, sink)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	got := sink.snapshot()
	require.Len(t, got, 3)
	for _, p := range got {
		ext := filepath.Ext(p)
		require.NotEqual(t, ".txt", ext)
	}
}

func TestWalk_StopsOnCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+string(rune('a'+i))+".jpg"), []byte("x"), 0o644))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled before the walk starts

	sink := &recordingSink{}
	_, err := Walk(ctx, dir, sink)
	require.Error(t, err)
}

func TestWatcher_DebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}

	w, err := NewWatcher(dir, 50*time.Millisecond, sink, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "new.jpg")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("rev"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 10*time.Millisecond, "expected exactly one coalesced discovery event")
}

func TestWatcher_IgnoresUnsupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}

	w, err := NewWatcher(dir, 20*time.Millisecond, sink, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)

	require.Empty(t, sink.snapshot())
}
