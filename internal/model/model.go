// Package model defines the catalog's entity types (spec §3).
package model

import "time"

// Stage identifies one node in the processing DAG.
type Stage string

const (
	StageDiscovery    Stage = "discovery"
	StageExif         Stage = "exif"
	StageGeocoding    Stage = "geocoding"
	StageThumbnails   Stage = "thumbnails"
	StageMotionPhotos Stage = "motion_photos"
	StagePhash        Stage = "phash"
	StageFaces        Stage = "faces"
	StageCaptioning   Stage = "captioning"
	StageTagging      Stage = "tagging"
	StageEvents       Stage = "events"
)

// LedgerStatus is one WorkLedger row's status (spec §3 WorkLedger).
type LedgerStatus string

const (
	LedgerPending  LedgerStatus = "pending"
	LedgerInFlight LedgerStatus = "in-flight"
	LedgerDone     LedgerStatus = "done"
	LedgerFailed   LedgerStatus = "failed"
	LedgerSkipped  LedgerStatus = "skipped"
)

// WorkLedgerRow is one (file, stage) ledger entry.
type WorkLedgerRow struct {
	FileID      string
	Stage       Stage
	Status      LedgerStatus
	StageVer    int
	Attempt     int
	LastError   string
	CompletedAt *time.Time
}

// File is the primary entity: a content-addressed photo or video (spec §3 File).
type File struct {
	ID             string // content hash, the stable identifier
	Path           string // canonical absolute path
	MTime          time.Time
	Size           int64
	MimeKind       string
	Width          int
	Height         int
	CaptureTime    *time.Time
	Latitude       *float64
	Longitude      *float64
	Caption        string
	Favorite       bool
	HasMotionVideo bool
	CreatedAt      time.Time
	IndexedAt      time.Time
}

// Location is an optional 0..1 child of File (spec §3 Location).
type Location struct {
	FileID    string
	Latitude  float64
	Longitude float64
	Altitude  float64
	Country   string
	City      string
	Address   string
}

// Exif is an optional 0..1 child of File (spec §3 Exif).
type Exif struct {
	FileID       string
	CameraMake   string
	CameraModel  string
	Lens         string
	FocalLength  float64
	Aperture     float64
	ShutterSpeed string
	ISO          int
	Orientation  int
}

// ThumbnailSize enumerates the resize targets for the Thumbnails stage.
type ThumbnailSize int

const (
	Thumb200  ThumbnailSize = 200
	Thumb600  ThumbnailSize = 600
	Thumb1200 ThumbnailSize = 1200
)

// Thumbnail is a derived artifact keyed by (file identifier, size) (spec §3 Thumbnail).
type Thumbnail struct {
	FileID       string
	Size         ThumbnailSize
	ArtifactPath string
	Width        int
	Height       int
}

// PerceptualHash holds the three 64-bit fingerprints per file (spec §3 PerceptualHash).
type PerceptualHash struct {
	FileID string
	PHash  uint64
	AHash  uint64
	DHash  uint64
}

// DuplicateGroup is an equivalence class over Files (spec §3 DuplicateGroup).
type DuplicateGroup struct {
	ID      int64
	FileIDs []string
}

// Face is 0..N per File (spec §3 Face).
type Face struct {
	ID           int64
	FileID       string
	BoundingBox  [4]float64 // x, y, w, h, normalized 0..1
	Embedding    []float32  // 512-dim
	PersonID     *string
	ArtifactPath string
}

// Person is a cluster of Faces (spec §3 Person).
type Person struct {
	ID                string
	Name              string
	RepresentativeFID int64 // representative Face.ID
	Centroid          []float32
	FaceCount         int
}

// Tag is an AI-assigned label, many-to-many with File (spec §3 Tag).
type Tag struct {
	ID   int64
	Name string
}

// Event is a time+location cluster of Files (spec §3 Event).
type Event struct {
	ID               string
	Name             string
	Start            time.Time
	End              time.Time
	RepresentativeLoc *Location
	CoverFileID      string
	FileIDs          []string
}

// ScanRun is one invocation of the pipeline (spec §3 ScanRun).
type ScanRun struct {
	ID          string
	StartedAt   time.Time
	EndedAt     *time.Time
	Cancelled   bool
	Discovered  int64
	Completed   int64
	Failed      int64
	Skipped     int64
}
