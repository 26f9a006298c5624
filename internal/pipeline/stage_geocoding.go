package pipeline

import (
	"context"
	"fmt"

	"photoindex/internal/catalog"
	"photoindex/internal/geocode"
	"photoindex/internal/model"
)

// NewGeocodingOp builds the Geocoding stage's operation (spec §4.2
// stage 3): requires GPS, resolves against an offline spatial index.
func NewGeocodingOp(store catalog.Store, index *geocode.Index) Op {
	return func(ctx context.Context, fileID string) (model.LedgerStatus, error) {
		f, err := store.File(ctx, fileID)
		if err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("load file: %w", err))
		}

		if f.Latitude == nil || f.Longitude == nil {
			// MissingPrecondition: no GPS present (spec §7).
			return model.LedgerSkipped, nil
		}

		result, ok := index.Resolve(*f.Latitude, *f.Longitude)
		if !ok {
			return model.LedgerSkipped, nil
		}

		loc := model.Location{
			FileID: fileID, Latitude: *f.Latitude, Longitude: *f.Longitude,
			Country: result.Country, City: result.City, Address: result.Address,
		}
		if err := store.WriteLocation(ctx, loc); err != nil {
			return "", NewStageError(KindTransientIO, fmt.Errorf("write location: %w", err))
		}
		return model.LedgerDone, nil
	}
}
