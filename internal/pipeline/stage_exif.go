package pipeline

import (
	"context"
	"fmt"
	"os"

	"photoindex/internal/catalog"
	"photoindex/internal/exif"
	"photoindex/internal/model"
)

// NewExifOp builds the EXIF stage's operation (spec §4.2 stage 2):
// decode metadata header only, extract camera fields, capture
// timestamp, GPS; no full pixel decode.
func NewExifOp(store catalog.Store) Op {
	return func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		f, err := store.File(ctx, fileID)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load file: %w", err))
		}

		file, err := os.Open(f.Path)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("open %s: %w", f.Path, err))
		}
		defer file.Close()

		md, err := exif.Extract(file)
		if err != nil {
			// No EXIF segment at all is not corrupt data, just absent
			// metadata: commit an empty Exif row and move on.
			if err := store.WriteExif(ctx, model.Exif{FileID: fileID, Orientation: 1}); err != nil {
				return "", NewStageError(KindTransientIO, err)
			}
			return model.LedgerDone, nil
		}

		e := model.Exif{
			FileID: fileID, CameraMake: md.CameraMake, CameraModel: md.CameraModel,
			Lens: md.Lens, FocalLength: md.FocalLength, Aperture: md.Aperture,
			ShutterSpeed: md.ShutterSpeed, ISO: md.ISO, Orientation: md.Orientation,
		}
		if err := store.WriteExif(ctx, e); err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("write exif: %w", err))
		}
		if err := store.UpdateFileCaptureAndGPS(ctx, fileID, md.CaptureTime, md.Latitude, md.Longitude); err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("stamp file capture/gps: %w", err))
		}

		return model.LedgerDone, nil
	}
}
