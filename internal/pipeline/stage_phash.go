package pipeline

import (
	"context"
	"fmt"
	"os"

	"photoindex/internal/catalog"
	"photoindex/internal/duplicate"
	"photoindex/internal/imaging"
	"photoindex/internal/model"
)

// NewPhashOp builds the Perceptual Hashing stage's operation (spec §4.2
// stage 6): compute aHash/dHash/pHash off a reduced copy, query the
// live union-find for near-duplicates within threshold, and persist any
// merge. Non-decodable input is a silent skip (same decode path as
// Thumbnails; a file failing one fails both).
func NewPhashOp(store catalog.Store, index *duplicate.Index, threshold int) Op {
	return func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		f, err := store.File(ctx, fileID)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load file: %w", err))
		}

		raw, err := os.ReadFile(f.Path)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("read %s: %w", f.Path, err))
		}

		hashes, err := imaging.ComputeHashes(raw)
		if err != nil {
			if imaging.IsPermanentDecodeError(err) {
				return model.LedgerSkipped, nil
			}
			return "", NewStageError(KindTransientIO, err)
		}
		hashes.FileID = fileID

		if err := store.WritePhash(ctx, hashes); err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("write phash: %w", err))
		}

		matches := index.AddAndFindMatches(fileID, hashes.PHash, threshold)
		if len(matches) > 0 {
			if err := store.UnionDuplicates(ctx, fileID, matches); err != nil {
				return "", NewStageError(KindTransientIO, fmt.Errorf("union duplicates: %w", err))
			}
		}

		return model.LedgerDone, nil
	}
}
