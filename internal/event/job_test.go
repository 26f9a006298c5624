package event

import (
	"context"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/stretchr/testify/require"

	"photoindex/internal/model"
)

type fakeEventStore struct {
	files       []model.File
	replaced    []model.Event
	loadErr     error
	replaceErr  error
}

func (s *fakeEventStore) FilesForEventDetection(ctx context.Context) ([]model.File, error) {
	return s.files, s.loadErr
}

func (s *fakeEventStore) ReplaceEvents(ctx context.Context, events []model.Event) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = events
	return nil
}

func TestWorker_Work_DetectsAndPersistsEvents(t *testing.T) {
	base := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeEventStore{
		files: []model.File{
			{ID: "a", CaptureTime: &base},
			{ID: "b", CaptureTime: ptrT(base.Add(10 * time.Minute))},
		},
	}

	w := &Worker{Store: store, Thresholds: Thresholds{Gap: time.Hour, JumpKM: 50}}
	err := w.Work(context.Background(), &river.Job[DetectArgs]{Args: DetectArgs{}})
	require.NoError(t, err)

	require.Len(t, store.replaced, 1)
	require.ElementsMatch(t, []string{"a", "b"}, store.replaced[0].FileIDs)
}

func TestWorker_Work_PropagatesLoadError(t *testing.T) {
	store := &fakeEventStore{loadErr: assertErr{"boom"}}
	w := &Worker{Store: store}
	err := w.Work(context.Background(), &river.Job[DetectArgs]{Args: DetectArgs{}})
	require.Error(t, err)
}

func TestWorker_Work_PropagatesReplaceError(t *testing.T) {
	base := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeEventStore{
		files:      []model.File{{ID: "a", CaptureTime: &base}},
		replaceErr: assertErr{"boom"},
	}
	w := &Worker{Store: store, Thresholds: Thresholds{Gap: time.Hour, JumpKM: 50}}
	err := w.Work(context.Background(), &river.Job[DetectArgs]{Args: DetectArgs{}})
	require.Error(t, err)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
