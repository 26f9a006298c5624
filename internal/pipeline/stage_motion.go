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

// NewMotionPhotosOp builds the Motion-photo extraction stage's
// operation (spec §4.2 stage 5): detect an embedded MP4 trailer or a
// same-basename sidecar video, and persist it to the Artifact Store.
// MissingPrecondition (no motion companion) is a silent skip.
func NewMotionPhotosOp(store catalog.Store, artifacts *artifact.Store) Op {
	return func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		f, err := store.File(ctx, fileID)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load file: %w", err))
		}

		raw, err := os.ReadFile(f.Path)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("read %s: %w", f.Path, err))
		}

		var videoBytes []byte
		if mp, ok := imaging.DetectEmbedded(raw); ok {
			videoBytes = mp.VideoBytes
		} else if mp, ok := imaging.DetectSidecar(f.Path); ok {
			videoBytes, err = os.ReadFile(mp.SidecarPath)
			if err != nil {
				return "", NewStageError(KindTransientIO, fmt.Errorf("read sidecar %s: %w", mp.SidecarPath, err))
			}
		}

		if videoBytes == nil {
			return model.LedgerSkipped, nil
		}

		path, err := artifacts.Write(fileID, artifact.KindMotionVideo, "video.mp4", videoBytes)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("write motion video artifact: %w", err))
		}
		if err := store.WriteMotionVideo(ctx, fileID, path); err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("write motion video meta: %w", err))
		}
		return model.LedgerDone, nil
	}
}
