// Package catalog implements the Catalog Store (spec §4.1): the
// single-writer, many-reader durable state backing the pipeline.
package catalog

import (
	"context"
	"time"

	"photoindex/internal/model"
)

// Store is the narrow transactional interface every stage worker and
// the Supervisor use to read/write catalog state. Implemented by
// *PGStore against Postgres via pgx.
type Store interface {
	// UpsertFile probes identity by (path, size, mtime) before hashing;
	// see spec §4.1. mimeKind is the detected MIME type of the file's
	// content. Returns the resolved file id and whether a new File row
	// was created.
	UpsertFile(ctx context.Context, path string, size int64, mtime time.Time, mimeKind string) (fileID string, created bool, err error)

	// MarkStage atomically writes a ledger row. stageErr is nil on success.
	MarkStage(ctx context.Context, fileID string, stage model.Stage, status model.LedgerStatus, stageVersion int, stageErr error) error

	// StageNeeded reports whether stage must run for fileID: the ledger
	// row is absent, pending, failed with attempts remaining, or its
	// stored stage_version is stale relative to currentVersion.
	StageNeeded(ctx context.Context, fileID string, stage model.Stage, currentVersion, maxAttempts int) (bool, error)

	// LedgerRow fetches the current ledger row, if any.
	LedgerRow(ctx context.Context, fileID string, stage model.Stage) (model.WorkLedgerRow, bool, error)

	// DemoteInFlight runs once at process start: any row left in-flight
	// from a prior crash becomes pending (spec §5 crash/restart safety).
	// It does not walk the filesystem.
	DemoteInFlight(ctx context.Context) (int64, error)

	// ReconcileMissing marks File rows whose on-disk path no longer
	// exists as stale, without hashing or reprocessing (spec §4.3
	// startup reconcile).
	ReconcileMissing(ctx context.Context, exists func(path string) bool) (int64, error)

	// UpdateFileCaptureAndGPS stamps the File row's own capture-time and
	// coordinate columns (kept denormalized from Exif for quick read-API
	// access without a join); lat/lon nil means no GPS present.
	UpdateFileCaptureAndGPS(ctx context.Context, fileID string, captureTime *time.Time, lat, lon *float64) error
	// UpdateFileDimensions stamps width/height once the Thumbnails stage
	// has decoded the image.
	UpdateFileDimensions(ctx context.Context, fileID string, width, height int) error

	WriteExif(ctx context.Context, e model.Exif) error
	WriteLocation(ctx context.Context, l model.Location) error
	// LocationCity reads back the resolved city for a file, used to name
	// events (spec §4.2 stage 10).
	LocationCity(ctx context.Context, fileID string) (city string, ok bool, err error)
	WriteThumbnailMeta(ctx context.Context, t model.Thumbnail) error
	WritePhash(ctx context.Context, p model.PerceptualHash) error
	WriteFaces(ctx context.Context, faces []model.Face) error
	WriteTags(ctx context.Context, fileID string, tags []string) error
	WriteCaption(ctx context.Context, fileID, caption string) error
	WriteMotionVideo(ctx context.Context, fileID, artifactPath string) error

	// File returns the full File row, for stages that need prior results
	// (e.g. Geocoding reads Exif-written GPS).
	File(ctx context.Context, fileID string) (model.File, error)
	Exif(ctx context.Context, fileID string) (model.Exif, bool, error)
	PerceptualHashes(ctx context.Context) ([]model.PerceptualHash, error)

	// UnionDuplicates merges fileID's group with every file in with.
	UnionDuplicates(ctx context.Context, fileID string, with []string) error

	// UnclusteredFaces returns every face lacking a person assignment and
	// PersonCentroids the current person centroids, for online clustering
	// (spec §4.2 stage 7).
	UnclusteredFaces(ctx context.Context) ([]model.Face, error)
	PersonCentroids(ctx context.Context) ([]model.Person, error)
	AssignFaceToPerson(ctx context.Context, faceID int64, personID string) error
	CreatePerson(ctx context.Context, centroid []float32, faceID int64) (string, error)
	ReclusterAllPersons(ctx context.Context, assignments map[int64]string, centroids map[string][]float32) error

	// FilesForEventDetection returns files with a capture timestamp,
	// ordered by it, for the batch Event-detection stage.
	FilesForEventDetection(ctx context.Context) ([]model.File, error)
	ReplaceEvents(ctx context.Context, events []model.Event) error

	// ScanRun lifecycle.
	CreateScanRun(ctx context.Context) (model.ScanRun, error)
	UpdateScanRun(ctx context.Context, run model.ScanRun) error

	// ClearDerived truncates every derived row — files, ledger, and all
	// children — so a subsequent scan starts from scratch (spec §4.4
	// clear_index). Scan-run history is kept.
	ClearDerived(ctx context.Context) error

	Close()
}
