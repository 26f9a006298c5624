package face

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"photoindex/internal/model"
)

type fakeStore struct {
	persons     map[string][]float32
	assignments map[int64]string
	unclustered []model.Face
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		persons:     make(map[string][]float32),
		assignments: make(map[int64]string),
	}
}

func (s *fakeStore) PersonCentroids(ctx context.Context) ([]model.Person, error) {
	out := make([]model.Person, 0, len(s.persons))
	for id, c := range s.persons {
		out = append(out, model.Person{ID: id, Centroid: c})
	}
	return out, nil
}

func (s *fakeStore) CreatePerson(ctx context.Context, centroid []float32, faceID int64) (string, error) {
	s.nextID++
	id := string(rune('A' + s.nextID - 1))
	s.persons[id] = centroid
	s.assignments[faceID] = id
	return id, nil
}

func (s *fakeStore) AssignFaceToPerson(ctx context.Context, faceID int64, personID string) error {
	s.assignments[faceID] = personID
	return nil
}

func (s *fakeStore) UnclusteredFaces(ctx context.Context) ([]model.Face, error) {
	return s.unclustered, nil
}

func (s *fakeStore) ReclusterAllPersons(ctx context.Context, assignments map[int64]string, centroids map[string][]float32) error {
	for k, v := range assignments {
		s.assignments[k] = v
	}
	s.persons = centroids
	return nil
}

func TestAssignIncremental_FirstFaceCreatesPerson(t *testing.T) {
	store := newFakeStore()
	c := NewClusterer(0.1, 200)

	err := c.AssignIncremental(context.Background(), store, []model.Face{
		{ID: 1, Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	require.Len(t, store.persons, 1)
	require.Contains(t, store.assignments, int64(1))
}

func TestAssignIncremental_CloseEmbeddingJoinsSamePerson(t *testing.T) {
	store := newFakeStore()
	c := NewClusterer(0.01, 200)

	require.NoError(t, c.AssignIncremental(context.Background(), store, []model.Face{
		{ID: 1, Embedding: []float32{1, 0, 0}},
	}))
	require.NoError(t, c.AssignIncremental(context.Background(), store, []model.Face{
		{ID: 2, Embedding: []float32{1, 0.001, 0}},
	}))

	require.Len(t, store.persons, 1)
	require.Equal(t, store.assignments[1], store.assignments[2])
}

func TestAssignIncremental_FarEmbeddingStartsNewPerson(t *testing.T) {
	store := newFakeStore()
	c := NewClusterer(0.01, 200)

	require.NoError(t, c.AssignIncremental(context.Background(), store, []model.Face{
		{ID: 1, Embedding: []float32{1, 0, 0}},
	}))
	require.NoError(t, c.AssignIncremental(context.Background(), store, []model.Face{
		{ID: 2, Embedding: []float32{0, 1, 0}},
	}))

	require.Len(t, store.persons, 2)
	require.NotEqual(t, store.assignments[1], store.assignments[2])
}

func TestAssignIncremental_TriggersReclusterAtThreshold(t *testing.T) {
	store := newFakeStore()
	store.unclustered = []model.Face{
		{ID: 1, Embedding: []float32{1, 0, 0}},
		{ID: 2, Embedding: []float32{0, 1, 0}},
	}
	c := NewClusterer(0.01, 1) // recluster after every single face

	err := c.AssignIncremental(context.Background(), store, []model.Face{
		{ID: 3, Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	// the recluster pass replaces persons wholesale from unclustered faces
	require.Len(t, store.persons, 2)
}
