// Command indexer is the process entry point (spec §4): it wires the
// Catalog Store, Artifact Store, Discovery Source, and every Stage
// Worker into one Pipeline Supervisor, then serves the thin
// operational HTTP+WebSocket surface spec §6 leaves as an external
// collaborator contract.
//
// Boot sequence and graceful-shutdown signal handling grounded on
// cmd/worker/main.go's pattern (load config, connect, start worker
// pool, block on SIGINT/SIGTERM, drain).
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap"

	"photoindex/config"
	"photoindex/internal/artifact"
	"photoindex/internal/caption"
	"photoindex/internal/catalog"
	"photoindex/internal/discovery"
	"photoindex/internal/duplicate"
	"photoindex/internal/event"
	"photoindex/internal/face"
	"photoindex/internal/geocode"
	"photoindex/internal/model"
	"photoindex/internal/pipeline"
	"photoindex/internal/progress"
)

func main() {
	config.LoadEnvironment()
	cfg := config.LoadAppConfig()

	logger := mustLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting indexer",
		zap.String("photos_root", cfg.Paths.PhotosRoot),
		zap.String("data_dir", cfg.Paths.DataDir),
	)

	if err := catalog.Migrate(cfg.Database, "db/migrations"); err != nil {
		logger.Fatal("catalog migration failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := catalog.New(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("connect to catalog", zap.Error(err))
	}
	defer store.Close()

	artifacts := artifact.New(cfg.Paths.DataDir)

	// Crash/restart safety: in-flight rows demote to pending before any
	// new work starts (spec §5), followed by a lightweight reconcile
	// that never hashes or re-walks the tree (spec §9 open question 1).
	if n, err := store.DemoteInFlight(ctx); err != nil {
		logger.Error("demote in-flight rows failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("demoted in-flight rows to pending", zap.Int64("count", n))
	}
	if n, err := store.ReconcileMissing(ctx, fileExists); err != nil {
		logger.Error("reconcile missing files failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("marked missing files stale", zap.Int64("count", n))
	}

	geoIndex := geocode.NewIndex(nil) // populated-places bundle: black-box input (spec §1), empty until supplied

	// Rebuild the in-memory duplicate union-find from persisted hashes,
	// so files hashed before a restart still union with new
	// near-duplicates even though their phash stage is already done.
	dupIndex := duplicate.NewIndex()
	persisted, err := store.PerceptualHashes(ctx)
	if err != nil {
		logger.Fatal("load perceptual hashes", zap.Error(err))
	}
	for _, h := range persisted {
		dupIndex.AddAndFindMatches(h.FileID, h.PHash, cfg.Pipeline.DuplicateHammingThreshold)
	}
	if len(persisted) > 0 {
		logger.Info("seeded duplicate index", zap.Int("hashes", len(persisted)))
	}

	captionClient := caption.New(cfg.Caption, logger)
	faceClusterer := face.NewClusterer(cfg.Pipeline.PersonClusterEpsilon, cfg.Pipeline.PersonReclusterEvery)
	faceDetector := face.NoopDetector{}

	defs := []pipeline.StageDef{
		{Stage: model.StageExif, Run: pipeline.NewExifOp(store), Cfg: cfg.Pipeline.Exif},
		{Stage: model.StageGeocoding, Run: pipeline.NewGeocodingOp(store, geoIndex), Cfg: cfg.Pipeline.Geocoding},
		{Stage: model.StageThumbnails, Run: pipeline.NewThumbnailsOp(store, artifacts), Cfg: cfg.Pipeline.Thumbnails},
		{Stage: model.StageMotionPhotos, Run: pipeline.NewMotionPhotosOp(store, artifacts), Cfg: cfg.Pipeline.MotionPhotos},
		{Stage: model.StagePhash, Run: pipeline.NewPhashOp(store, dupIndex, cfg.Pipeline.DuplicateHammingThreshold), Cfg: cfg.Pipeline.Phash},
		{Stage: model.StageFaces, Run: pipeline.NewFacesOp(store, artifacts, faceDetector, faceClusterer), Cfg: cfg.Pipeline.Faces},
		{Stage: model.StageCaptioning, Run: pipeline.NewCaptioningOp(store, captionClient), Cfg: cfg.Pipeline.Captioning},
		{Stage: model.StageTagging, Run: pipeline.NewTaggingOp(store, captionClient), Cfg: cfg.Pipeline.Tagging},
	}
	supervisor := pipeline.NewSupervisor(store, logger, defs)
	supervisor.Start(ctx)

	broadcaster := progress.New(supervisor, cfg.Pipeline.ProgressCoalesce, logger)
	broadcaster.Start(ctx)
	defer broadcaster.Stop()

	sink := &pipeline.DiscoverySink{Store: store, Supervisor: supervisor}

	var watcher *discovery.Watcher
	if cfg.Watch.Enabled {
		watcher, err = discovery.NewWatcher(cfg.Paths.PhotosRoot, cfg.Watch.Debounce, sink, logger)
		if err != nil {
			logger.Fatal("start filesystem watcher", zap.Error(err))
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Fatal("start filesystem watcher", zap.Error(err))
		}
		defer watcher.Stop()
	}

	riverClient, err := startEventRiver(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("start event-detection scheduler", zap.Error(err))
	}
	defer riverClient.Stop(context.Background())

	srv := newServer(ctx, cfg, store, supervisor, sink, broadcaster, artifacts, logger)
	go func() {
		logger.Info("serving HTTP+WebSocket surface", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	cancel()
	logger.Info("indexer stopped")
}

func mustLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level.SetLevel(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	return logger
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func startEventRiver(ctx context.Context, cfg config.AppConfig, store *catalog.PGStore, logger *zap.Logger) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, &event.Worker{
		Store:      store,
		Thresholds: event.Thresholds{Gap: cfg.Pipeline.EventGapThreshold, JumpKM: cfg.Pipeline.EventJumpKM},
		CityOf: func(fileID string) (string, bool) {
			city, ok, err := store.LocationCity(ctx, fileID)
			if err != nil {
				logger.Warn("location city lookup failed", zap.String("file_id", fileID), zap.Error(err))
				return "", false
			}
			return city, ok
		},
	})

	riverClient, err := river.NewClient(riverpgxv5.New(store.Pool()), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(1*time.Hour),
				func() (river.JobArgs, *river.InsertOpts) { return event.DetectArgs{}, nil },
				&river.PeriodicJobOpts{RunOnStart: false},
			),
		},
	})
	if err != nil {
		return nil, err
	}
	if err := riverClient.Start(ctx); err != nil {
		return nil, err
	}
	return riverClient, nil
}

func newServer(ctx context.Context, cfg config.AppConfig, store *catalog.PGStore, sup *pipeline.Supervisor, sink *pipeline.DiscoverySink, broadcaster *progress.Broadcaster, artifacts *artifact.Store, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/photos", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := catalog.PhotoFilter{
			Directory:    q.Get("dir"),
			PersonID:     q.Get("person"),
			EventID:      q.Get("event"),
			Country:      q.Get("country"),
			City:         q.Get("city"),
			Search:       q.Get("q"),
			FavoriteOnly: q.Get("favorite") == "true",
		}
		filter.Year, _ = strconv.Atoi(q.Get("year"))
		filter.Month, _ = strconv.Atoi(q.Get("month"))
		filter.MinSize, _ = strconv.ParseInt(q.Get("min_size"), 10, 64)
		filter.DuplicateGroupID, _ = strconv.ParseInt(q.Get("duplicate_group"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		photos, err := store.ListPhotos(r.Context(), filter, limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, photos)
	})
	mux.HandleFunc("GET /api/photos/{id}", func(w http.ResponseWriter, r *http.Request) {
		f, err := store.File(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, f)
	})
	mux.HandleFunc("POST /api/photos/{id}/favorite", func(w http.ResponseWriter, r *http.Request) {
		fav, err := store.ToggleFavorite(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]bool{"favorite": fav})
	})
	mux.HandleFunc("GET /api/timeline", func(w http.ResponseWriter, r *http.Request) {
		buckets, err := store.Timeline(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, buckets)
	})
	mux.HandleFunc("GET /api/duplicates", func(w http.ResponseWriter, r *http.Request) {
		groups, err := store.DuplicateGroups(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, groups)
	})
	mux.HandleFunc("GET /api/large-files", func(w http.ResponseWriter, r *http.Request) {
		minSize, _ := strconv.ParseInt(r.URL.Query().Get("min_size"), 10, 64)
		files, err := store.LargeFiles(r.Context(), minSize, 100)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, files)
	})
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		st, err := store.Stats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, st)
	})
	mux.HandleFunc("GET /api/failed", func(w http.ResponseWriter, r *http.Request) {
		rows, err := store.FailedLedgerRows(r.Context(), model.Stage(r.URL.Query().Get("stage")), 100)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rows)
	})

	mux.HandleFunc("GET /api/pipeline/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sup.Snapshot())
	})
	mux.HandleFunc("GET /api/pipeline/flow", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, pipeline.Flow)
	})
	mux.HandleFunc("GET /api/pipeline/ws", broadcaster.ServeHTTP)

	mux.HandleFunc("POST /api/scan/trigger", func(w http.ResponseWriter, r *http.Request) {
		run, err := sup.TriggerScan(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		go runDiscoveryWalk(ctx, cfg, sink, sup, logger)
		writeJSON(w, run)
	})
	mux.HandleFunc("POST /api/scan/stop", func(w http.ResponseWriter, r *http.Request) {
		if err := sup.StopScan(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/index/clear", func(w http.ResponseWriter, r *http.Request) {
		if err := sup.ClearIndex(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err := artifacts.Clear(); err != nil {
			logger.Error("clear artifacts failed", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return &http.Server{Addr: ":" + cfg.Port, Handler: mux}
}

// runDiscoveryWalk streams a full filesystem walk into the pipeline and
// ends the ScanRun once Discovery has finished emitting (spec §4.3,
// §4.4). Workers may still be draining their queues when this returns;
// EndScan records Discovery's count and the completed total at that
// moment, with failed and skipped recorded as zero.
func runDiscoveryWalk(ctx context.Context, cfg config.AppConfig, sink *pipeline.DiscoverySink, sup *pipeline.Supervisor, logger *zap.Logger) {
	discovered, err := discovery.Walk(ctx, cfg.Paths.PhotosRoot, sink)
	if err != nil {
		logger.Error("discovery walk failed", zap.Error(err))
	}
	snap := sup.Snapshot()
	if err := sup.EndScan(ctx, discovered, snap.Completed, 0, 0); err != nil {
		logger.Error("end scan failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
