// Package geocode resolves GPS coordinates against an in-memory,
// offline spatial index of populated places (spec §4.2 stage 3). The
// populated-places bundle itself is a declared black-box input per §1;
// this package only defines the lookup contract and a simple
// grid-bucketed nearest-neighbor index over it.
package geocode

import "math"

// Place is one entry from the populated-places bundle.
type Place struct {
	Latitude  float64
	Longitude float64
	Country   string
	City      string
}

// Result is a resolved location (spec §3 Location fields).
type Result struct {
	Country string
	City    string
	Address string
}

// Index is an offline nearest-place lookup. It buckets places into
// roughly 1-degree grid cells so a point query only scans nearby
// cells instead of the whole bundle.
type Index struct {
	cellSize float64
	cells    map[cellKey][]Place
}

type cellKey struct{ lat, lon int }

// NewIndex builds an Index over places, grounded on spec's declared
// "in-memory spatial index of populated places" contract.
func NewIndex(places []Place) *Index {
	idx := &Index{cellSize: 1.0, cells: make(map[cellKey][]Place)}
	for _, p := range places {
		k := idx.keyFor(p.Latitude, p.Longitude)
		idx.cells[k] = append(idx.cells[k], p)
	}
	return idx
}

func (idx *Index) keyFor(lat, lon float64) cellKey {
	return cellKey{
		lat: int(math.Floor(lat / idx.cellSize)),
		lon: int(math.Floor(lon / idx.cellSize)),
	}
}

// Resolve finds the nearest populated place to (lat, lon) and returns
// its country/city, searching the point's grid cell and its eight
// neighbors. Returns false if the bundle has no candidates nearby.
func (idx *Index) Resolve(lat, lon float64) (Result, bool) {
	center := idx.keyFor(lat, lon)

	var best Place
	bestDist := math.Inf(1)
	found := false

	for dLat := -1; dLat <= 1; dLat++ {
		for dLon := -1; dLon <= 1; dLon++ {
			k := cellKey{lat: center.lat + dLat, lon: center.lon + dLon}
			for _, p := range idx.cells[k] {
				d := haversineKM(lat, lon, p.Latitude, p.Longitude)
				if d < bestDist {
					bestDist = d
					best = p
					found = true
				}
			}
		}
	}

	if !found {
		return Result{}, false
	}
	return Result{Country: best.Country, City: best.City}, true
}

const earthRadiusKM = 6371.0

// haversineKM returns the great-circle distance between two points in
// kilometers; shared with the Event-detection stage's D_jump check.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// HaversineKM exposes the distance function for the Event-detection
// stage's D_jump threshold check (spec §4.2 stage 10).
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineKM(lat1, lon1, lat2, lon2)
}
