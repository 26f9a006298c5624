package progress

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"photoindex/internal/pipeline"
)

type fakeSnapshotter struct {
	stats pipeline.PipelineStats
}

func (f *fakeSnapshotter) Snapshot() pipeline.PipelineStats { return f.stats }

func TestBroadcaster_SendsImmediateSnapshotOnConnect(t *testing.T) {
	snap := &fakeSnapshotter{stats: pipeline.PipelineStats{Discovered: 3, Completed: 1}}
	b := New(snap, 250*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	srv := httptest.NewServer(b)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var got pipeline.PipelineStats
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, snap.stats.Discovered, got.Discovered)
	require.Equal(t, snap.stats.Completed, got.Completed)
}

func TestBroadcaster_CoalescesUpdatesAtInterval(t *testing.T) {
	snap := &fakeSnapshotter{stats: pipeline.PipelineStats{Discovered: 1}}
	b := New(snap, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	srv := httptest.NewServer(b)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first pipeline.PipelineStats
	require.NoError(t, conn.ReadJSON(&first))

	snap.stats.Discovered = 7
	var second pipeline.PipelineStats
	require.NoError(t, conn.ReadJSON(&second))
	require.EqualValues(t, 7, second.Discovered)
}

func TestBroadcaster_StopClosesClientConnections(t *testing.T) {
	snap := &fakeSnapshotter{}
	b := New(snap, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	srv := httptest.NewServer(b)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first pipeline.PipelineStats
	require.NoError(t, conn.ReadJSON(&first))

	b.Stop()

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}
