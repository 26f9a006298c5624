// Package pipeline implements the Pipeline Supervisor and Stage Workers
// (spec §4.2, §4.4): a static DAG held as data, one bounded-channel
// queue and worker pool per stage, a per-run cancel token, and typed
// error handling per stage (spec §7).
//
// Grounded on spec §9's design notes (worker-pool + bounded channel per
// stage, explicit dependency passing, DAG as data) and the teacher's
// cmd/worker/main.go worker-pool + graceful-shutdown idiom.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"photoindex/config"
	"photoindex/internal/catalog"
	"photoindex/internal/model"
)

// StageVersion is the declared algorithm version per stage (spec §6
// "stage-version column on ledger rows drives automatic invalidation").
// Bump an entry here when a stage's algorithm changes to force a
// rerun for every file.
var StageVersion = map[model.Stage]int{
	model.StageExif:         1,
	model.StageGeocoding:    1,
	model.StageThumbnails:   1,
	model.StageMotionPhotos: 1,
	model.StagePhash:        1,
	model.StageFaces:        1,
	model.StageCaptioning:   1,
	model.StageTagging:      1,
}

// Op is one stage's declared operation. It returns the terminal ledger
// status to commit (done/skipped) or a *StageError classifying a
// failure (spec §7).
type Op func(ctx context.Context, fileID string) (model.LedgerStatus, error)

// StageDef binds a stage to its operation and tuning (spec §5).
type StageDef struct {
	Stage model.Stage
	Run   Op
	Cfg   config.StageConfig
}

// Stats is a stage's live counters, part of Supervisor.Snapshot (spec §4.4).
type Stats struct {
	Pending   int64
	InFlight  int64
	Completed int64
	Failed    int64
	Skipped   int64
}

// PipelineStats is the aggregate snapshot returned by Supervisor.Snapshot.
type PipelineStats struct {
	ScanActive      bool
	Discovered      int64
	Completed       int64
	UptimeSeconds   float64
	BottleneckStage model.Stage
	PerStage        map[model.Stage]Stats
}

// Supervisor owns every stage's queue and worker pool, the cancel
// token, and aggregate counters (spec §4.4). It is constructed once by
// the process entry point and passed explicitly to Discovery — no
// package-level singletons (spec §9 design note).
type Supervisor struct {
	store catalog.Store
	log   *zap.Logger

	defs   map[model.Stage]StageDef
	queues map[model.Stage]chan string

	cancelled  atomic.Bool
	discovered atomic.Int64
	scanID     atomic.Value // string, empty when no scan active
	startedAt  atomic.Value // time.Time

	mu       sync.Mutex
	stats    map[model.Stage]*Stats
	wg       sync.WaitGroup
	running  bool
}

// NewSupervisor builds a Supervisor with one queue+pool per stage in
// defs. Queues are created but workers are not started until Start.
func NewSupervisor(store catalog.Store, log *zap.Logger, defs []StageDef) *Supervisor {
	s := &Supervisor{
		store:  store,
		log:    log,
		defs:   make(map[model.Stage]StageDef, len(defs)),
		queues: make(map[model.Stage]chan string, len(defs)),
		stats:  make(map[model.Stage]*Stats, len(defs)),
	}
	s.scanID.Store("")

	for _, d := range defs {
		s.defs[d.Stage] = d
		s.queues[d.Stage] = make(chan string, d.Cfg.QueueCapacity)
		s.stats[d.Stage] = &Stats{}
	}
	return s
}

// Start launches every stage's worker pool. Call once at process boot,
// after DemoteInFlight has run (spec §5 crash/restart safety).
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	for stage, def := range s.defs {
		for i := 0; i < def.Cfg.Concurrency; i++ {
			s.wg.Add(1)
			go s.runWorker(ctx, stage, def)
		}
	}
}

// Enqueue submits fileID to stage's input queue, blocking if the queue
// is full (spec §4.4 backpressure).
func (s *Supervisor) Enqueue(ctx context.Context, stage model.Stage, fileID string) error {
	q, ok := s.queues[stage]
	if !ok {
		return fmt.Errorf("unknown stage %s", stage)
	}
	s.incr(stage, func(st *Stats) { st.Pending++ })
	select {
	case q <- fileID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) incr(stage model.Stage, fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stats[stage]; ok {
		fn(st)
	}
}

func (s *Supervisor) runWorker(ctx context.Context, stage model.Stage, def StageDef) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case fileID, ok := <-s.queues[stage]:
			if !ok {
				return
			}
			s.process(ctx, stage, def, fileID)
		}
	}
}

// process runs the uniform stage contract (spec §4.2): precondition
// check, cancellation check, body with capped retry, commit, fan-out.
func (s *Supervisor) process(ctx context.Context, stage model.Stage, def StageDef, fileID string) {
	s.incr(stage, func(st *Stats) { st.Pending--; st.InFlight++ })
	defer s.incr(stage, func(st *Stats) { st.InFlight-- })

	if s.cancelled.Load() {
		// Cooperative cancellation: leave the row untouched (pending or absent).
		return
	}

	version := StageVersion[stage]
	needed, err := s.store.StageNeeded(ctx, fileID, stage, version, def.Cfg.MaxAttempts)
	if err != nil {
		s.log.Error("stage_needed check failed", zap.String("stage", string(stage)), zap.Error(err))
		return
	}
	if !needed {
		// Already done fast path: fan out without doing work.
		s.fanOut(ctx, stage, fileID)
		return
	}

	status, runErr := s.runWithRetry(ctx, stage, def, fileID)

	var markErr error
	if runErr != nil {
		switch KindOf(runErr) {
		case KindCancelled:
			markErr = s.store.MarkStage(ctx, fileID, stage, model.LedgerPending, version, nil)
		case KindPermanentDecode, KindMissingPrecondition, KindExternalDisabled:
			// Deterministic/optional outcomes: skipped, not failed (spec §7).
			s.incr(stage, func(st *Stats) { st.Skipped++ })
			markErr = s.store.MarkStage(ctx, fileID, stage, model.LedgerSkipped, version, runErr)
		default:
			s.incr(stage, func(st *Stats) { st.Failed++ })
			markErr = s.store.MarkStage(ctx, fileID, stage, model.LedgerFailed, version, runErr)
		}
	} else {
		switch status {
		case model.LedgerSkipped:
			s.incr(stage, func(st *Stats) { st.Skipped++ })
		default:
			status = model.LedgerDone
			s.incr(stage, func(st *Stats) { st.Completed++ })
		}
		markErr = s.store.MarkStage(ctx, fileID, stage, status, version, nil)
	}
	if markErr != nil {
		s.log.Error("mark stage failed", zap.String("stage", string(stage)), zap.Error(markErr))
		return
	}

	if runErr == nil || KindOf(runErr) == KindPermanentDecode || KindOf(runErr) == KindMissingPrecondition || KindOf(runErr) == KindExternalDisabled {
		// Deterministic/optional outcomes fan out so dependents don't block.
		s.fanOut(ctx, stage, fileID)
	}
}

// runWithRetry retries transient failures with capped exponential
// backoff up to the stage's attempt limit (spec §4.2, §7 TransientIO).
func (s *Supervisor) runWithRetry(ctx context.Context, stage model.Stage, def StageDef, fileID string) (model.LedgerStatus, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = def.Cfg.InitialDelay
	b.MaxInterval = def.Cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= def.Cfg.MaxAttempts || def.Cfg.MaxAttempts == 0; attempt++ {
		if s.cancelled.Load() {
			return "", NewStageError(KindCancelled, nil)
		}
		status, err := def.Run(ctx, fileID)
		if err == nil {
			return status, nil
		}
		lastErr = err

		kind := KindOf(err)
		if kind != KindTransientIO {
			return "", err
		}
		if attempt == def.Cfg.MaxAttempts {
			break
		}

		wait := b.NextBackOff()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", NewStageError(KindCancelled, nil)
		}
	}
	return "", lastErr
}

// EnqueueDiscovered fans a newly-discovered (or re-probed) file out to
// every stage downstream of Discovery (spec §4.3). Discovery itself has
// no ledger row or worker pool: it is a pseudo-stage that only seeds
// the real per-file stages.
func (s *Supervisor) EnqueueDiscovered(ctx context.Context, fileID string) {
	s.discovered.Add(1)
	s.fanOut(ctx, model.StageDiscovery, fileID)
}

func (s *Supervisor) fanOut(ctx context.Context, stage model.Stage, fileID string) {
	for _, next := range Downstream(stage) {
		if err := s.Enqueue(ctx, next, fileID); err != nil {
			s.log.Warn("fan-out enqueue failed", zap.String("stage", string(next)), zap.Error(err))
		}
	}
}

// TriggerScan starts a ScanRun, refusing if one is already active
// (spec §4.4). The caller is responsible for running Discovery and
// calling EndScan once Discovery has finished emitting.
func (s *Supervisor) TriggerScan(ctx context.Context) (model.ScanRun, error) {
	if s.scanID.Load().(string) != "" {
		return model.ScanRun{}, ErrScanAlreadyActive
	}
	run, err := s.store.CreateScanRun(ctx)
	if err != nil {
		return model.ScanRun{}, fmt.Errorf("create scan run: %w", err)
	}
	s.scanID.Store(run.ID)
	s.startedAt.Store(time.Now())
	s.cancelled.Store(false)
	s.discovered.Store(0)
	return run, nil
}

// StopScan sets the cancel token; workers observe it at their next
// dequeue/safe-point and leave in-flight ledger rows pending (spec §5).
func (s *Supervisor) StopScan() error {
	if s.scanID.Load().(string) == "" {
		return ErrNoActiveScan
	}
	s.cancelled.Store(true)
	return nil
}

// EndScan records the ScanRun's end and clears the active-scan marker,
// so a subsequent TriggerScan is accepted. It does not wait for the
// stage queues to drain.
func (s *Supervisor) EndScan(ctx context.Context, discovered, completed, failed, skipped int64) error {
	id, _ := s.scanID.Load().(string)
	if id == "" {
		return nil
	}
	now := time.Now()
	run := model.ScanRun{
		ID: id, EndedAt: &now, Cancelled: s.cancelled.Load(),
		Discovered: discovered, Completed: completed, Failed: failed, Skipped: skipped,
	}
	s.scanID.Store("")
	return s.store.UpdateScanRun(ctx, run)
}

// ClearIndex is destructive: it truncates every derived catalog row so
// a subsequent scan is effectively from scratch, and resets the
// in-memory counters (spec §4.4). It does not reset the duplicate index
// or the face clusterer, which the Supervisor does not hold. The photo
// root is untouched. Refused while a
// scan is active; the caller is expected to also wipe the Artifact
// Store's blob directories.
func (s *Supervisor) ClearIndex(ctx context.Context) error {
	if s.scanID.Load().(string) != "" {
		return ErrScanAlreadyActive
	}
	if err := s.store.ClearDerived(ctx); err != nil {
		return fmt.Errorf("clear derived rows: %w", err)
	}
	s.discovered.Store(0)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stats {
		*st = Stats{}
	}
	return nil
}

// Snapshot returns per-queue counts and the bottleneck stage (spec §4.4).
func (s *Supervisor) Snapshot() PipelineStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := PipelineStats{
		PerStage: make(map[model.Stage]Stats, len(s.stats)),
	}
	out.ScanActive = s.scanID.Load().(string) != ""
	out.Discovered = s.discovered.Load()
	if start, ok := s.startedAt.Load().(time.Time); ok && !start.IsZero() {
		out.UptimeSeconds = time.Since(start).Seconds()
	}

	var worstRatio float64
	for stage, st := range s.stats {
		out.PerStage[stage] = *st
		out.Completed += st.Completed
		throughput := float64(st.Completed) + 1
		ratio := float64(st.Pending) / throughput
		if ratio > worstRatio {
			worstRatio = ratio
			out.BottleneckStage = stage
		}
	}
	return out
}
