package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"photoindex/internal/caption"
	"photoindex/internal/catalog"
	"photoindex/internal/model"
)

// NewTaggingOp builds the Tagging stage's operation (spec §4.2 stage
// 9): send the original file bytes (not downscaled) to the external
// vision endpoint and
// store the returned labels. Shares the same ExternalDisabled handling
// as Captioning, and the same shared rate limiter via caption.Client.
func NewTaggingOp(store catalog.Store, client *caption.Client) Op {
	return func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		f, err := store.File(ctx, fileID)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load file: %w", err))
		}

		raw, err := os.ReadFile(f.Path)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("read %s: %w", f.Path, err))
		}

		tags, err := client.Tags(ctx, raw)
		if err != nil {
			if errors.Is(err, caption.ErrDisabled) {
				return model.LedgerSkipped, nil
			}
			return "", NewStageError(KindTransientIO, err)
		}

		if err := store.WriteTags(ctx, fileID, tags); err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("write tags: %w", err))
		}
		return model.LedgerDone, nil
	}
}
