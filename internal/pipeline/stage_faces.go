package pipeline

import (
	"context"
	"fmt"
	"os"

	"photoindex/internal/artifact"
	"photoindex/internal/catalog"
	"photoindex/internal/face"
	"photoindex/internal/model"
)

// NewFacesOp builds the Face detection stage's operation (spec §4.2
// stage 7): run the black-box detector on the original file bytes (no
// decode or resize happens here), persist
// detections, then feed the new rows through online person clustering.
// No decodable faces is not an error, just an empty result.
func NewFacesOp(store catalog.Store, artifacts *artifact.Store, detector face.Detector, clusterer *face.Clusterer) Op {
	return func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		f, err := store.File(ctx, fileID)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load file: %w", err))
		}

		raw, err := os.ReadFile(f.Path)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("read %s: %w", f.Path, err))
		}

		detections, err := detector.Detect(ctx, raw)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("detect faces: %w", err))
		}
		if len(detections) == 0 {
			return model.LedgerDone, nil
		}

		faces := make([]model.Face, len(detections))
		for i, d := range detections {
			faces[i] = model.Face{FileID: fileID, BoundingBox: d.BoundingBox, Embedding: d.Embedding}
			if len(d.Crop) > 0 {
				suffix := fmt.Sprintf("face%d.jpg", i)
				path, err := artifacts.Write(fileID, artifact.KindFace, suffix, d.Crop)
				if err != nil {
					return "", NewStageError(KindTransientIO, fmt.Errorf("write face crop artifact: %w", err))
				}
				faces[i].ArtifactPath = path
			}
		}
		if err := store.WriteFaces(ctx, faces); err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("write faces: %w", err))
		}

		unclustered, err := store.UnclusteredFaces(ctx)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load unclustered faces: %w", err))
		}
		var mine []model.Face
		for _, uf := range unclustered {
			if uf.FileID == fileID {
				mine = append(mine, uf)
			}
		}
		if len(mine) > 0 {
			if err := clusterer.AssignIncremental(ctx, store, mine); err != nil {
				return "", NewStageError(KindTransientIO, fmt.Errorf("cluster faces: %w", err))
			}
		}

		return model.LedgerDone, nil
	}
}
