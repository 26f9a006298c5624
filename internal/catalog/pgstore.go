package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"photoindex/config"
	"photoindex/internal/hash"
	"photoindex/internal/model"
)

// PGStore is the pgx-backed Catalog Store (spec §4.1). It is the
// single writer for every File/Exif/Location/Thumbnail/Face/Person/
// Tag/Event/WorkLedger/ScanRun row.
type PGStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New opens a pgx pool against cfg and returns a Store. Grounded on
// internal/db/db.go's DSN assembly and pool construction.
func New(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*PGStore, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSL)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	return &PGStore{pool: pool, log: log}, nil
}

func (s *PGStore) Close() { s.pool.Close() }

// Pool exposes the underlying pgx pool for the River job scheduler,
// which drives the batch Event-detection stage against the same
// database (spec §9 DOMAIN STACK: river needs its own driver handle).
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

// WithTx runs fn inside a transaction, committing on success and
// rolling back on any error, matching internal/db/db.go's WithTx helper.
func (s *PGStore) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// UpsertFile implements the probe-then-hash identity rule (spec §4.1).
func (s *PGStore) UpsertFile(ctx context.Context, path string, size int64, mtime time.Time, mimeKind string) (string, bool, error) {
	var existingID string
	var existingMTime time.Time
	var existingSize int64

	err := s.pool.QueryRow(ctx,
		`SELECT id, size, mtime FROM files WHERE path = $1`, path,
	).Scan(&existingID, &existingSize, &existingMTime)

	if err == nil && existingSize == size && existingMTime.Equal(mtime) {
		// Triple unchanged: the fast path that makes rescans cheap.
		return existingID, false, nil
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("probe file %s: %w", path, err)
	}

	res, err := hash.File(path)
	if err != nil {
		return "", false, fmt.Errorf("hash %s: %w", path, err)
	}

	var fileID string
	var created bool
	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT id FROM files WHERE id = $1`, res.Hash).Scan(&fileID)
		if err == nil {
			// Content already known under a different path: the file moved.
			_, err = tx.Exec(ctx,
				`UPDATE files SET path = $1, size = $2, mtime = $3, mime_kind = $4, indexed_at = now() WHERE id = $5`,
				path, size, mtime, mimeKind, res.Hash)
			return err
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO files (id, path, size, mtime, mime_kind, created_at, indexed_at) VALUES ($1, $2, $3, $4, $5, now(), now())
			 ON CONFLICT (id) DO UPDATE SET path = EXCLUDED.path, size = EXCLUDED.size, mtime = EXCLUDED.mtime, mime_kind = EXCLUDED.mime_kind, indexed_at = now()`,
			res.Hash, path, size, mtime, mimeKind)
		if err != nil {
			return err
		}
		fileID = res.Hash
		created = true
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a concurrent-insert race; the row now exists under res.Hash.
			return res.Hash, false, nil
		}
		return "", false, fmt.Errorf("upsert file %s: %w", path, err)
	}

	return fileID, created, nil
}

func (s *PGStore) MarkStage(ctx context.Context, fileID string, stage model.Stage, status model.LedgerStatus, stageVersion int, stageErr error) error {
	var lastErr string
	if stageErr != nil {
		lastErr = stageErr.Error()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO work_ledger (file_id, stage, status, stage_version, attempt, last_error, completed_at)
		VALUES ($1, $2, $3, $4, 1,
			NULLIF($5, ''),
			CASE WHEN $3 IN ('done','failed','skipped') THEN now() ELSE NULL END)
		ON CONFLICT (file_id, stage) DO UPDATE SET
			status = EXCLUDED.status,
			stage_version = EXCLUDED.stage_version,
			attempt = CASE WHEN EXCLUDED.status = 'failed' THEN work_ledger.attempt + 1 ELSE work_ledger.attempt END,
			last_error = EXCLUDED.last_error,
			completed_at = EXCLUDED.completed_at
	`, fileID, stage, status, stageVersion, lastErr)
	if err != nil {
		return fmt.Errorf("mark stage %s/%s: %w", fileID, stage, err)
	}
	return nil
}

func (s *PGStore) StageNeeded(ctx context.Context, fileID string, stage model.Stage, currentVersion, maxAttempts int) (bool, error) {
	var status model.LedgerStatus
	var version, attempt int

	err := s.pool.QueryRow(ctx,
		`SELECT status, stage_version, attempt FROM work_ledger WHERE file_id = $1 AND stage = $2`,
		fileID, stage,
	).Scan(&status, &version, &attempt)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stage needed %s/%s: %w", fileID, stage, err)
	}

	if version != currentVersion {
		// A stale stage version invalidates the row: clear it so the
		// stage reruns with a fresh attempt count.
		if _, err := s.pool.Exec(ctx,
			`DELETE FROM work_ledger WHERE file_id = $1 AND stage = $2`, fileID, stage); err != nil {
			return false, fmt.Errorf("clear stale ledger row %s/%s: %w", fileID, stage, err)
		}
		return true, nil
	}
	switch status {
	case model.LedgerPending:
		return true, nil
	case model.LedgerFailed:
		return attempt < maxAttempts, nil
	default:
		return false, nil
	}
}

func (s *PGStore) LedgerRow(ctx context.Context, fileID string, stage model.Stage) (model.WorkLedgerRow, bool, error) {
	var row model.WorkLedgerRow
	row.FileID, row.Stage = fileID, stage

	err := s.pool.QueryRow(ctx,
		`SELECT status, stage_version, attempt, COALESCE(last_error, ''), completed_at FROM work_ledger WHERE file_id = $1 AND stage = $2`,
		fileID, stage,
	).Scan(&row.Status, &row.StageVer, &row.Attempt, &row.LastError, &row.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WorkLedgerRow{}, false, nil
	}
	if err != nil {
		return model.WorkLedgerRow{}, false, fmt.Errorf("ledger row %s/%s: %w", fileID, stage, err)
	}
	return row, true, nil
}

// DemoteInFlight is the one-shot startup sweep (spec §5).
func (s *PGStore) DemoteInFlight(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE work_ledger SET status = 'pending' WHERE status = 'in-flight'`)
	if err != nil {
		return 0, fmt.Errorf("demote in-flight: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReconcileMissing is the lightweight startup reconcile (spec §4.3): it
// never hashes or reprocesses, only marks stale rows whose path vanished.
func (s *PGStore) ReconcileMissing(ctx context.Context, exists func(path string) bool) (int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, path FROM files WHERE NOT stale`)
	if err != nil {
		return 0, fmt.Errorf("list files for reconcile: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return 0, err
		}
		if !exists(path) {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx, `UPDATE files SET stale = true WHERE id = ANY($1)`, stale)
	if err != nil {
		return 0, fmt.Errorf("mark stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) UpdateFileCaptureAndGPS(ctx context.Context, fileID string, captureTime *time.Time, lat, lon *float64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE files SET capture_time = $2, latitude = $3, longitude = $4 WHERE id = $1`,
		fileID, captureTime, lat, lon)
	if err != nil {
		return fmt.Errorf("update file capture/gps %s: %w", fileID, err)
	}
	return nil
}

func (s *PGStore) UpdateFileDimensions(ctx context.Context, fileID string, width, height int) error {
	_, err := s.pool.Exec(ctx, `UPDATE files SET width = $2, height = $3 WHERE id = $1`, fileID, width, height)
	if err != nil {
		return fmt.Errorf("update file dimensions %s: %w", fileID, err)
	}
	return nil
}

func (s *PGStore) WriteExif(ctx context.Context, e model.Exif) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exif (file_id, camera_make, camera_model, lens, focal_length, aperture, shutter_speed, iso, orientation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (file_id) DO UPDATE SET
			camera_make = EXCLUDED.camera_make, camera_model = EXCLUDED.camera_model,
			lens = EXCLUDED.lens, focal_length = EXCLUDED.focal_length,
			aperture = EXCLUDED.aperture, shutter_speed = EXCLUDED.shutter_speed,
			iso = EXCLUDED.iso, orientation = EXCLUDED.orientation
	`, e.FileID, e.CameraMake, e.CameraModel, e.Lens, e.FocalLength, e.Aperture, e.ShutterSpeed, e.ISO, e.Orientation)
	if err != nil {
		return fmt.Errorf("write exif %s: %w", e.FileID, err)
	}
	return nil
}

func (s *PGStore) WriteLocation(ctx context.Context, l model.Location) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO locations (file_id, latitude, longitude, altitude, country, city, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (file_id) DO UPDATE SET
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, altitude = EXCLUDED.altitude,
			country = EXCLUDED.country, city = EXCLUDED.city, address = EXCLUDED.address
	`, l.FileID, l.Latitude, l.Longitude, l.Altitude, l.Country, l.City, l.Address)
	if err != nil {
		return fmt.Errorf("write location %s: %w", l.FileID, err)
	}
	return nil
}

func (s *PGStore) LocationCity(ctx context.Context, fileID string) (string, bool, error) {
	var city string
	err := s.pool.QueryRow(ctx, `SELECT city FROM locations WHERE file_id = $1`, fileID).Scan(&city)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("location city %s: %w", fileID, err)
	}
	return city, city != "", nil
}

func (s *PGStore) WriteThumbnailMeta(ctx context.Context, t model.Thumbnail) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO thumbnails (file_id, size, artifact_path, width, height)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_id, size) DO UPDATE SET
			artifact_path = EXCLUDED.artifact_path, width = EXCLUDED.width, height = EXCLUDED.height
	`, t.FileID, t.Size, t.ArtifactPath, t.Width, t.Height)
	if err != nil {
		return fmt.Errorf("write thumbnail meta %s/%d: %w", t.FileID, t.Size, err)
	}
	return nil
}

func (s *PGStore) WritePhash(ctx context.Context, p model.PerceptualHash) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO perceptual_hashes (file_id, phash, ahash, dhash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_id) DO UPDATE SET phash = EXCLUDED.phash, ahash = EXCLUDED.ahash, dhash = EXCLUDED.dhash
	`, p.FileID, int64(p.PHash), int64(p.AHash), int64(p.DHash))
	if err != nil {
		return fmt.Errorf("write phash %s: %w", p.FileID, err)
	}
	return nil
}

func (s *PGStore) WriteFaces(ctx context.Context, faces []model.Face) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, f := range faces {
			vec := pgvector.NewVector(f.Embedding)
			_, err := tx.Exec(ctx, `
				INSERT INTO faces (file_id, bbox_x, bbox_y, bbox_w, bbox_h, embedding, artifact_path)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, f.FileID, f.BoundingBox[0], f.BoundingBox[1], f.BoundingBox[2], f.BoundingBox[3], vec, f.ArtifactPath)
			if err != nil {
				return fmt.Errorf("write face %s: %w", f.FileID, err)
			}
		}
		return nil
	})
}

func (s *PGStore) WriteTags(ctx context.Context, fileID string, tags []string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, name := range tags {
			var tagID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO tags (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id
			`, name).Scan(&tagID)
			if err != nil {
				return fmt.Errorf("upsert tag %s: %w", name, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO file_tags (file_id, tag_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, fileID, tagID)
			if err != nil {
				return fmt.Errorf("link tag %s/%s: %w", fileID, name, err)
			}
		}
		return nil
	})
}

func (s *PGStore) WriteCaption(ctx context.Context, fileID, caption string) error {
	_, err := s.pool.Exec(ctx, `UPDATE files SET caption = $2 WHERE id = $1`, fileID, caption)
	if err != nil {
		return fmt.Errorf("write caption %s: %w", fileID, err)
	}
	return nil
}

func (s *PGStore) WriteMotionVideo(ctx context.Context, fileID, artifactPath string) error {
	_, err := s.pool.Exec(ctx, `UPDATE files SET has_motion_video = true, motion_video_path = $2 WHERE id = $1`, fileID, artifactPath)
	if err != nil {
		return fmt.Errorf("write motion video %s: %w", fileID, err)
	}
	return nil
}

func (s *PGStore) File(ctx context.Context, fileID string) (model.File, error) {
	var f model.File
	err := s.pool.QueryRow(ctx, `
		SELECT id, path, mtime, size, mime_kind, width, height, capture_time, latitude, longitude, caption, favorite, has_motion_video, created_at, indexed_at
		FROM files WHERE id = $1
	`, fileID).Scan(&f.ID, &f.Path, &f.MTime, &f.Size, &f.MimeKind, &f.Width, &f.Height, &f.CaptureTime,
		&f.Latitude, &f.Longitude, &f.Caption, &f.Favorite, &f.HasMotionVideo, &f.CreatedAt, &f.IndexedAt)
	if err != nil {
		return model.File{}, fmt.Errorf("file %s: %w", fileID, err)
	}
	return f, nil
}

func (s *PGStore) Exif(ctx context.Context, fileID string) (model.Exif, bool, error) {
	var e model.Exif
	e.FileID = fileID
	err := s.pool.QueryRow(ctx, `
		SELECT camera_make, camera_model, lens, focal_length, aperture, shutter_speed, iso, orientation
		FROM exif WHERE file_id = $1
	`, fileID).Scan(&e.CameraMake, &e.CameraModel, &e.Lens, &e.FocalLength, &e.Aperture, &e.ShutterSpeed, &e.ISO, &e.Orientation)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Exif{}, false, nil
	}
	if err != nil {
		return model.Exif{}, false, fmt.Errorf("exif %s: %w", fileID, err)
	}
	return e, true, nil
}

func (s *PGStore) PerceptualHashes(ctx context.Context) ([]model.PerceptualHash, error) {
	rows, err := s.pool.Query(ctx, `SELECT file_id, phash, ahash, dhash FROM perceptual_hashes`)
	if err != nil {
		return nil, fmt.Errorf("list perceptual hashes: %w", err)
	}
	defer rows.Close()

	var out []model.PerceptualHash
	for rows.Next() {
		var p model.PerceptualHash
		var ph, ah, dh int64
		if err := rows.Scan(&p.FileID, &ph, &ah, &dh); err != nil {
			return nil, err
		}
		p.PHash, p.AHash, p.DHash = uint64(ph), uint64(ah), uint64(dh)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) UnionDuplicates(ctx context.Context, fileID string, with []string) error {
	if len(with) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var groupID int64
		err := tx.QueryRow(ctx, `SELECT group_id FROM duplicate_members WHERE file_id = $1`, fileID).Scan(&groupID)
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.QueryRow(ctx, `INSERT INTO duplicate_groups DEFAULT VALUES RETURNING id`).Scan(&groupID)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO duplicate_members (file_id, group_id) VALUES ($1, $2)`, fileID, groupID); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		for _, other := range with {
			var otherGroup int64
			err := tx.QueryRow(ctx, `SELECT group_id FROM duplicate_members WHERE file_id = $1`, other).Scan(&otherGroup)
			if errors.Is(err, pgx.ErrNoRows) {
				if _, err := tx.Exec(ctx, `INSERT INTO duplicate_members (file_id, group_id) VALUES ($1, $2)`, other, groupID); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if otherGroup == groupID {
				continue
			}
			if _, err := tx.Exec(ctx, `UPDATE duplicate_members SET group_id = $1 WHERE group_id = $2`, groupID, otherGroup); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PGStore) UnclusteredFaces(ctx context.Context) ([]model.Face, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_id, bbox_x, bbox_y, bbox_w, bbox_h, embedding, artifact_path
		FROM faces WHERE person_id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("unclustered faces: %w", err)
	}
	defer rows.Close()

	var out []model.Face
	for rows.Next() {
		var f model.Face
		var vec pgvector.Vector
		if err := rows.Scan(&f.ID, &f.FileID, &f.BoundingBox[0], &f.BoundingBox[1], &f.BoundingBox[2], &f.BoundingBox[3], &vec, &f.ArtifactPath); err != nil {
			return nil, err
		}
		f.Embedding = vec.Slice()
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PGStore) PersonCentroids(ctx context.Context) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, centroid, face_count FROM persons`)
	if err != nil {
		return nil, fmt.Errorf("person centroids: %w", err)
	}
	defer rows.Close()

	var out []model.Person
	for rows.Next() {
		var p model.Person
		var vec pgvector.Vector
		if err := rows.Scan(&p.ID, &p.Name, &vec, &p.FaceCount); err != nil {
			return nil, err
		}
		p.Centroid = vec.Slice()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) AssignFaceToPerson(ctx context.Context, faceID int64, personID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE faces SET person_id = $2 WHERE id = $1`, faceID, personID)
	if err != nil {
		return fmt.Errorf("assign face %d to %s: %w", faceID, personID, err)
	}
	return nil
}

func (s *PGStore) CreatePerson(ctx context.Context, centroid []float32, faceID int64) (string, error) {
	var personID string
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO persons (id, centroid, face_count, representative_face_id)
			VALUES (gen_random_uuid(), $1, 1, $2) RETURNING id
		`, pgvector.NewVector(centroid), faceID).Scan(&personID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE faces SET person_id = $2 WHERE id = $1`, faceID, personID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create person: %w", err)
	}
	return personID, nil
}

func (s *PGStore) ReclusterAllPersons(ctx context.Context, assignments map[int64]string, centroids map[string][]float32) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for faceID, personID := range assignments {
			if _, err := tx.Exec(ctx, `UPDATE faces SET person_id = $2 WHERE id = $1`, faceID, personID); err != nil {
				return err
			}
		}
		for personID, centroid := range centroids {
			if _, err := tx.Exec(ctx, `UPDATE persons SET centroid = $2 WHERE id = $1`, personID, pgvector.NewVector(centroid)); err != nil {
				return err
			}
		}
		// Reassignment strands the persons the moved faces used to
		// belong to; drop any left with no faces and refresh the counts
		// of the survivors.
		if _, err := tx.Exec(ctx, `
			DELETE FROM persons p WHERE NOT EXISTS (SELECT 1 FROM faces fa WHERE fa.person_id = p.id)
		`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE persons p SET face_count = (SELECT count(*) FROM faces fa WHERE fa.person_id = p.id)
		`); err != nil {
			return err
		}
		return nil
	})
}

func (s *PGStore) FilesForEventDetection(ctx context.Context) ([]model.File, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.path, f.capture_time, f.latitude, f.longitude
		FROM files f WHERE f.capture_time IS NOT NULL ORDER BY f.capture_time ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("files for event detection: %w", err)
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.ID, &f.Path, &f.CaptureTime, &f.Latitude, &f.Longitude); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PGStore) ReplaceEvents(ctx context.Context, events []model.Event) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM event_members`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM events`); err != nil {
			return err
		}
		for _, e := range events {
			_, err := tx.Exec(ctx, `
				INSERT INTO events (id, name, start_time, end_time, cover_file_id)
				VALUES ($1, $2, $3, $4, $5)
			`, e.ID, e.Name, e.Start, e.End, e.CoverFileID)
			if err != nil {
				return err
			}
			for _, fid := range e.FileIDs {
				if _, err := tx.Exec(ctx, `INSERT INTO event_members (event_id, file_id) VALUES ($1, $2)`, e.ID, fid); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ClearDerived backs clear_index (spec §4.4): files cascade to every
// per-file child table, then the derivable aggregate tables go too.
// The photo root is never touched here.
func (s *PGStore) ClearDerived(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		TRUNCATE files, duplicate_groups, persons, events, tags CASCADE
	`)
	if err != nil {
		return fmt.Errorf("clear derived rows: %w", err)
	}
	return nil
}

func (s *PGStore) CreateScanRun(ctx context.Context) (model.ScanRun, error) {
	run := model.ScanRun{StartedAt: time.Now()}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scan_runs (id, started_at) VALUES (gen_random_uuid(), $1) RETURNING id
	`, run.StartedAt).Scan(&run.ID)
	if err != nil {
		return model.ScanRun{}, fmt.Errorf("create scan run: %w", err)
	}
	return run, nil
}

func (s *PGStore) UpdateScanRun(ctx context.Context, run model.ScanRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scan_runs SET ended_at = $2, cancelled = $3, discovered = $4, completed = $5, failed = $6, skipped = $7
		WHERE id = $1
	`, run.ID, run.EndedAt, run.Cancelled, run.Discovered, run.Completed, run.Failed, run.Skipped)
	if err != nil {
		return fmt.Errorf("update scan run %s: %w", run.ID, err)
	}
	return nil
}
