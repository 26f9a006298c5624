package face

import (
	"context"
	"fmt"
	"math"
	"sync"

	"photoindex/internal/model"
)

// Clusterer assigns faces to persons by online nearest-centroid
// matching, with a re-cluster pass over faces that have no person every
// reclusterEvery new faces (spec §4.2 stage 7, §9 open question 3).
type Clusterer struct {
	mu             sync.Mutex
	epsilon        float64
	reclusterEvery int
	sinceRecluster int
}

// NewClusterer returns a Clusterer. epsilon is the cosine-distance
// threshold for joining an existing person (spec §4.2 stage 7: "if
// within ε, join; else start a new person").
func NewClusterer(epsilon float64, reclusterEvery int) *Clusterer {
	return &Clusterer{epsilon: epsilon, reclusterEvery: reclusterEvery}
}

// Store is the subset of catalog.Store the clusterer needs, declared
// locally to avoid an import cycle with internal/catalog.
type Store interface {
	PersonCentroids(ctx context.Context) ([]model.Person, error)
	CreatePerson(ctx context.Context, centroid []float32, faceID int64) (string, error)
	AssignFaceToPerson(ctx context.Context, faceID int64, personID string) error
	UnclusteredFaces(ctx context.Context) ([]model.Face, error)
	ReclusterAllPersons(ctx context.Context, assignments map[int64]string, centroids map[string][]float32) error
}

// AssignIncremental finds the nearest existing person centroid by
// cosine distance for each face; if within epsilon it joins that
// person, otherwise it starts a new one. Once reclusterEvery faces have
// been assigned since the last re-cluster it also runs fullRecluster.
func (c *Clusterer) AssignIncremental(ctx context.Context, store Store, faces []model.Face) error {
	centroids, err := store.PersonCentroids(ctx)
	if err != nil {
		return fmt.Errorf("load centroids: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range faces {
		best := ""
		bestDist := math.Inf(1)
		for _, p := range centroids {
			d := cosineDistance(f.Embedding, p.Centroid)
			if d < bestDist {
				bestDist = d
				best = p.ID
			}
		}

		if best != "" && bestDist <= c.epsilon {
			if err := store.AssignFaceToPerson(ctx, f.ID, best); err != nil {
				return fmt.Errorf("assign face %d: %w", f.ID, err)
			}
		} else {
			newID, err := store.CreatePerson(ctx, f.Embedding, f.ID)
			if err != nil {
				return fmt.Errorf("create person for face %d: %w", f.ID, err)
			}
			centroids = append(centroids, model.Person{ID: newID, Centroid: f.Embedding})
		}

		c.sinceRecluster++
	}

	if c.sinceRecluster >= c.reclusterEvery {
		c.sinceRecluster = 0
		return c.fullRecluster(ctx, store)
	}
	return nil
}

// fullRecluster greedily groups the faces that have no person (each
// face joins the first cluster whose running centroid is within
// epsilon) and creates one person per group. Faces already assigned to
// a person are not revisited, and existing centroids are not
// recomputed. Caller holds c.mu.
func (c *Clusterer) fullRecluster(ctx context.Context, store Store) error {
	faces, err := store.UnclusteredFaces(ctx)
	if err != nil {
		return fmt.Errorf("load unclustered faces for recluster: %w", err)
	}
	if len(faces) == 0 {
		return nil
	}

	assignments := make(map[int64]string, len(faces))

	var clusters [][]int64 // face ids per cluster
	var clusterEmb [][]float32

	for _, f := range faces {
		placed := false
		for ci, emb := range clusterEmb {
			if cosineDistance(f.Embedding, emb) <= c.epsilon {
				clusters[ci] = append(clusters[ci], f.ID)
				clusterEmb[ci] = average(clusterEmb[ci], f.Embedding, len(clusters[ci]))
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []int64{f.ID})
			clusterEmb = append(clusterEmb, f.Embedding)
		}
	}

	centroidsOut := make(map[string][]float32, len(clusters))
	for ci, members := range clusters {
		personID, err := store.CreatePerson(ctx, clusterEmb[ci], members[0])
		if err != nil {
			return fmt.Errorf("recluster: create person: %w", err)
		}
		for _, fid := range members {
			assignments[fid] = personID
		}
		centroidsOut[personID] = clusterEmb[ci]
	}

	return store.ReclusterAllPersons(ctx, assignments, centroidsOut)
}

func average(a, b []float32, n int) []float32 {
	if n <= 1 {
		return b
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + (b[i]-a[i])/float32(n)
	}
	return out
}

// cosineDistance returns 1 - cosine_similarity(a, b), so 0 means
// identical direction.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.Inf(1)
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - sim
}
