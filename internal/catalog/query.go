package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"photoindex/internal/model"
)

// PhotoFilter narrows the paginated photo list (spec §4.1 query
// surface). Zero values mean "no constraint"; Search adds a full-text
// match over paths, place names, tag labels, captions, and person
// names on top of the structured filters.
type PhotoFilter struct {
	Directory        string // prefix match on the canonical path
	Year             int
	Month            int // 1-12, only meaningful with Year
	PersonID         string
	EventID          string
	Country          string
	City             string
	FavoriteOnly     bool
	MinSize          int64
	DuplicateGroupID int64
	Search           string
}

// YearMonthCount is one timeline bucket.
type YearMonthCount struct {
	Year  int
	Month int
	Count int64
}

// CatalogStats is the aggregate summary behind the stats endpoint.
type CatalogStats struct {
	Files          int64
	TotalBytes     int64
	Favorites      int64
	Persons        int64
	Events         int64
	DuplicateGroups int64
}

// buildPhotoQuery assembles the filtered SELECT. Kept as a pure
// function so the predicate assembly is testable without a database.
func buildPhotoQuery(f PhotoFilter, limit, offset int) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "NOT f.stale")
	if f.Directory != "" {
		where = append(where, "f.path LIKE "+arg(strings.TrimRight(f.Directory, "/")+"/%"))
	}
	if f.Year != 0 {
		where = append(where, "EXTRACT(YEAR FROM f.capture_time) = "+arg(f.Year))
		if f.Month != 0 {
			where = append(where, "EXTRACT(MONTH FROM f.capture_time) = "+arg(f.Month))
		}
	}
	if f.PersonID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM faces fa WHERE fa.file_id = f.id AND fa.person_id = "+arg(f.PersonID)+")")
	}
	if f.EventID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM event_members em WHERE em.file_id = f.id AND em.event_id = "+arg(f.EventID)+")")
	}
	if f.Country != "" {
		where = append(where, "EXISTS (SELECT 1 FROM locations l WHERE l.file_id = f.id AND l.country = "+arg(f.Country)+")")
	}
	if f.City != "" {
		where = append(where, "EXISTS (SELECT 1 FROM locations l WHERE l.file_id = f.id AND l.city = "+arg(f.City)+")")
	}
	if f.FavoriteOnly {
		where = append(where, "f.favorite")
	}
	if f.MinSize > 0 {
		where = append(where, "f.size >= "+arg(f.MinSize))
	}
	if f.DuplicateGroupID != 0 {
		where = append(where, "EXISTS (SELECT 1 FROM duplicate_members dm WHERE dm.file_id = f.id AND dm.group_id = "+arg(f.DuplicateGroupID)+")")
	}
	if f.Search != "" {
		pat := arg("%" + f.Search + "%")
		where = append(where, `(
			f.path ILIKE `+pat+`
			OR f.caption ILIKE `+pat+`
			OR EXISTS (SELECT 1 FROM locations l WHERE l.file_id = f.id AND (l.country ILIKE `+pat+` OR l.city ILIKE `+pat+` OR l.address ILIKE `+pat+`))
			OR EXISTS (SELECT 1 FROM file_tags ft JOIN tags t ON t.id = ft.tag_id WHERE ft.file_id = f.id AND t.name ILIKE `+pat+`)
			OR EXISTS (SELECT 1 FROM faces fa JOIN persons p ON p.id = fa.person_id WHERE fa.file_id = f.id AND p.name ILIKE `+pat+`)
		)`)
	}

	sql := `
		SELECT f.id, f.path, f.mtime, f.size, f.mime_kind, f.width, f.height, f.capture_time, f.latitude, f.longitude, f.caption, f.favorite, f.has_motion_video, f.created_at, f.indexed_at
		FROM files f
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY f.capture_time DESC NULLS LAST, f.path ASC
		LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	return sql, args
}

// ListPhotos returns one page of the filtered photo list, newest
// capture first (spec §4.1 query surface).
func (s *PGStore) ListPhotos(ctx context.Context, f PhotoFilter, limit, offset int) ([]model.File, error) {
	if limit <= 0 {
		limit = 100
	}
	sql, args := buildPhotoQuery(f, limit, offset)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		var fl model.File
		if err := rows.Scan(&fl.ID, &fl.Path, &fl.MTime, &fl.Size, &fl.MimeKind, &fl.Width, &fl.Height, &fl.CaptureTime,
			&fl.Latitude, &fl.Longitude, &fl.Caption, &fl.Favorite, &fl.HasMotionVideo, &fl.CreatedAt, &fl.IndexedAt); err != nil {
			return nil, err
		}
		out = append(out, fl)
	}
	return out, rows.Err()
}

// ToggleFavorite flips a file's favorite flag and returns the new
// value. Toggling twice restores the original state (spec §8).
func (s *PGStore) ToggleFavorite(ctx context.Context, fileID string) (bool, error) {
	var fav bool
	err := s.pool.QueryRow(ctx, `
		UPDATE files SET favorite = NOT favorite WHERE id = $1 RETURNING favorite
	`, fileID).Scan(&fav)
	if err != nil {
		return false, fmt.Errorf("toggle favorite %s: %w", fileID, err)
	}
	return fav, nil
}

// Timeline returns per-(year, month) photo counts for files with a
// capture timestamp, newest first.
func (s *PGStore) Timeline(ctx context.Context) ([]YearMonthCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT EXTRACT(YEAR FROM capture_time)::int, EXTRACT(MONTH FROM capture_time)::int, count(*)
		FROM files WHERE capture_time IS NOT NULL AND NOT stale
		GROUP BY 1, 2 ORDER BY 1 DESC, 2 DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	var out []YearMonthCount
	for rows.Next() {
		var b YearMonthCount
		if err := rows.Scan(&b.Year, &b.Month, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DuplicateGroups returns every group holding more than one member,
// largest first.
func (s *PGStore) DuplicateGroups(ctx context.Context) ([]model.DuplicateGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT group_id, array_agg(file_id ORDER BY file_id)
		FROM duplicate_members
		GROUP BY group_id HAVING count(*) > 1
		ORDER BY count(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list duplicate groups: %w", err)
	}
	defer rows.Close()

	var out []model.DuplicateGroup
	for rows.Next() {
		var g model.DuplicateGroup
		if err := rows.Scan(&g.ID, &g.FileIDs); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// LargeFiles returns up to limit files at or above minSize, in the
// photo list's order (newest capture first); it does not sort by size.
func (s *PGStore) LargeFiles(ctx context.Context, minSize int64, limit int) ([]model.File, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.ListPhotos(ctx, PhotoFilter{MinSize: minSize}, limit, 0)
}

// Stats returns the aggregate catalog summary behind the stats endpoint.
func (s *PGStore) Stats(ctx context.Context) (CatalogStats, error) {
	var st CatalogStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM files WHERE NOT stale),
			(SELECT coalesce(sum(size), 0) FROM files WHERE NOT stale),
			(SELECT count(*) FROM files WHERE favorite AND NOT stale),
			(SELECT count(*) FROM persons),
			(SELECT count(*) FROM events),
			(SELECT count(*) FROM (SELECT group_id FROM duplicate_members GROUP BY group_id HAVING count(*) > 1) g)
	`).Scan(&st.Files, &st.TotalBytes, &st.Favorites, &st.Persons, &st.Events, &st.DuplicateGroups)
	if err != nil {
		return CatalogStats{}, fmt.Errorf("catalog stats: %w", err)
	}
	return st, nil
}

// FailedLedgerRows lists failed or skipped items for a stage so a
// failure is addressable by file id and error (spec §7).
func (s *PGStore) FailedLedgerRows(ctx context.Context, stage model.Stage, limit int) ([]model.WorkLedgerRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT wl.file_id, wl.stage, wl.status, wl.stage_version, wl.attempt, coalesce(wl.last_error, ''), wl.completed_at
		FROM work_ledger wl
		WHERE wl.stage = $1 AND wl.status IN ('failed', 'skipped')
		ORDER BY wl.completed_at DESC NULLS LAST
		LIMIT $2
	`, string(stage), limit)
	if err != nil {
		return nil, fmt.Errorf("failed ledger rows: %w", err)
	}
	defer rows.Close()

	var out []model.WorkLedgerRow
	for rows.Next() {
		var r model.WorkLedgerRow
		var completed *time.Time
		if err := rows.Scan(&r.FileID, &r.Stage, &r.Status, &r.StageVer, &r.Attempt, &r.LastError, &completed); err != nil {
			return nil, err
		}
		r.CompletedAt = completed
		out = append(out, r)
	}
	return out, rows.Err()
}
