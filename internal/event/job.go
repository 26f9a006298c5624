package event

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"photoindex/internal/model"
)

// Store is the subset of catalog.Store the Event-detection job needs.
type Store interface {
	FilesForEventDetection(ctx context.Context) ([]model.File, error)
	ReplaceEvents(ctx context.Context, events []model.Event) error
}

// DetectArgs triggers one run of the batch Event-detection stage. It
// carries no payload: the job always recomputes over the full current
// set of geotagged/timestamped files (spec: "Persons and Events ...
// may be rebuilt wholesale").
type DetectArgs struct{}

func (DetectArgs) Kind() string { return "event_detect" }

// Worker runs DetectArgs jobs, grounded on the teacher's River worker
// wrapper pattern (internal/queue/discover_worker.go) adapted to a
// global-barrier batch stage instead of a per-file one.
type Worker struct {
	river.WorkerDefaults[DetectArgs]
	Store      Store
	Thresholds Thresholds
	CityOf     CityOf
}

func (w *Worker) Work(ctx context.Context, job *river.Job[DetectArgs]) error {
	files, err := w.Store.FilesForEventDetection(ctx)
	if err != nil {
		return fmt.Errorf("load files for event detection: %w", err)
	}

	events := Detect(files, w.Thresholds, w.CityOf)

	if err := w.Store.ReplaceEvents(ctx, events); err != nil {
		return fmt.Errorf("persist events: %w", err)
	}
	return nil
}
