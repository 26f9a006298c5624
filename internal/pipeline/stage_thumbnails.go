package pipeline

import (
	"context"
	"fmt"
	"os"

	"photoindex/internal/artifact"
	"photoindex/internal/catalog"
	"photoindex/internal/imaging"
	"photoindex/internal/model"
)

// NewThumbnailsOp builds the Thumbnails stage's operation (spec §4.2
// stage 4): full decode + resize to {200,600,1200}, lossy encode,
// write to the Artifact Store, record metadata. Skips non-decodable files.
func NewThumbnailsOp(store catalog.Store, artifacts *artifact.Store) Op {
	return func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		f, err := store.File(ctx, fileID)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load file: %w", err))
		}

		raw, err := os.ReadFile(f.Path)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("read %s: %w", f.Path, err))
		}

		thumbs, err := imaging.GenerateThumbnails(raw)
		if err != nil {
			if imaging.IsPermanentDecodeError(err) {
				return model.LedgerSkipped, nil
			}
			return "", NewStageError(KindTransientIO, err)
		}

		for _, t := range thumbs {
			suffix := fmt.Sprintf("%d.webp", t.Size)
			path, err := artifacts.Write(fileID, artifact.KindThumbnail, suffix, t.Bytes)
			if err != nil {
				return "", NewStageError(KindTransientIO, fmt.Errorf("write thumbnail artifact: %w", err))
			}
			meta := model.Thumbnail{FileID: fileID, Size: t.Size, ArtifactPath: path, Width: t.Width, Height: t.Height}
			if err := store.WriteThumbnailMeta(ctx, meta); err != nil {
				return "", NewStageError(KindTransientIO, fmt.Errorf("write thumbnail meta: %w", err))
			}
		}

		if largest, ok := thumbs[model.Thumb1200]; ok {
			if err := store.UpdateFileDimensions(ctx, fileID, largest.Width, largest.Height); err != nil {
				return "", NewStageError(KindTransientIO, err)
			}
		}

		return model.LedgerDone, nil
	}
}
