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

// NewCaptioningOp builds the Captioning stage's operation (spec §4.2
// stage 8): send the original file bytes (not downscaled) to the
// external vision endpoint and
// store the returned caption text. An unconfigured or cooling-down
// endpoint is ExternalDisabled, not a failure (spec §7).
func NewCaptioningOp(store catalog.Store, client *caption.Client) Op {
	return func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		f, err := store.File(ctx, fileID)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load file: %w", err))
		}

		raw, err := os.ReadFile(f.Path)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("read %s: %w", f.Path, err))
		}

		text, err := client.Caption(ctx, raw)
		if err != nil {
			if errors.Is(err, caption.ErrDisabled) {
				return model.LedgerSkipped, nil
			}
			return "", NewStageError(KindTransientIO, err)
		}

		if err := store.WriteCaption(ctx, fileID, text); err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("write caption: %w", err))
		}
		return model.LedgerDone, nil
	}
}
