// Package progress implements the Progress Broadcaster (spec §4.5):
// a coalesced WebSocket fan-out of pipeline snapshots to connected
// clients, plus a periodic heartbeat so idle connections can be
// detected as alive.
//
// Scheduling shape grounded on
// internal/sync/sync_manager.go's ticker-driven background loop
// (context + WaitGroup, select over ctx.Done()/ticker.C); transport is
// gorilla/websocket instead of sync_manager's in-process fan-out since
// this stage has external subscribers.
package progress

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"photoindex/internal/pipeline"
)

// Snapshotter is the subset of *pipeline.Supervisor the broadcaster
// polls, declared locally to avoid a direct coupling requirement.
type Snapshotter interface {
	Snapshot() pipeline.PipelineStats
}

// frame is one outbound message for a client: either a stats snapshot
// or a heartbeat. Routing both through the same per-client channel
// keeps each connection down to a single writer goroutine —
// gorilla/websocket permits at most one concurrent writer per Conn.
type frame struct {
	stats     pipeline.PipelineStats
	heartbeat bool
}

// Broadcaster coalesces Supervisor snapshots to at most one push per
// interval (spec §4.5: "no more than one update per configured
// interval, default 250ms") and fans them out to every connected
// WebSocket client.
type Broadcaster struct {
	snapshotter Snapshotter
	interval    time.Duration
	log         *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan frame

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Broadcaster. interval is the minimum spacing between
// pushed snapshots (spec §4.5 coalescing).
func New(snapshotter Snapshotter, interval time.Duration, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		snapshotter: snapshotter,
		interval:    interval,
		log:         log,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:     make(map[*websocket.Conn]chan frame),
	}
}

// Start launches the coalescing poll loop. Call once at process boot.
func (b *Broadcaster) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.loop()
}

// Stop halts the poll loop and closes every client connection.
func (b *Broadcaster) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, ch := range b.clients {
		close(ch)
		conn.Close()
	}
	b.clients = make(map[*websocket.Conn]chan frame)
}

func (b *Broadcaster) loop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.publish(b.snapshotter.Snapshot())
		case <-heartbeat.C:
			b.publishHeartbeat()
		}
	}
}

func (b *Broadcaster) publish(stats pipeline.PipelineStats) {
	b.send(frame{stats: stats})
}

func (b *Broadcaster) publishHeartbeat() {
	b.send(frame{heartbeat: true})
}

func (b *Broadcaster) send(fr frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.clients {
		select {
		case ch <- fr:
		default:
			// Slow client: drop this tick rather than block the broadcaster.
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams coalesced
// snapshots until the client disconnects or the broadcaster stops.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ch := make(chan frame, 2)
	b.mu.Lock()
	b.clients[conn] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	// Send an immediate snapshot on connect so new subscribers don't
	// wait out a full coalescing interval. This goroutine is the
	// connection's only writer: heartbeats arrive through ch as well.
	_ = conn.WriteJSON(b.snapshotter.Snapshot())

	for fr := range ch {
		var err error
		if fr.heartbeat {
			err = conn.WriteJSON(map[string]bool{"heartbeat": true})
		} else {
			err = conn.WriteJSON(fr.stats)
		}
		if err != nil {
			return
		}
	}
}
