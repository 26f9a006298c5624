// Package event implements the batch Event-detection stage (spec §4.2
// stage 10): a pass over every file with a capture timestamp, greedily
// clustering by capture time gap and geographic jump. The pass runs
// whenever its River job fires (hourly, see cmd/indexer); it does not
// wait for in-flight per-file stages to settle and is not started when
// the pipeline goes idle.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"photoindex/internal/geocode"
	"photoindex/internal/model"
)

// Thresholds are the T_gap/D_jump parameters (spec §4.2 stage 10).
type Thresholds struct {
	Gap  time.Duration
	JumpKM float64
}

// CityOf resolves a file's city name for event naming, typically
// backed by the Catalog Store's locations table.
type CityOf func(fileID string) (city string, ok bool)

// Detect greedily groups files into events. It does not sort: files
// must already be ordered by capture timestamp, as
// catalog.Store.FilesForEventDetection returns them.
func Detect(files []model.File, th Thresholds, cityOf CityOf) []model.Event {
	var events []model.Event
	var current *model.Event
	var cityCounts map[string]int
	var lastTime time.Time
	var lastLat, lastLon float64
	haveLastLoc := false

	flush := func() {
		if current == nil {
			return
		}
		current.End = lastTime
		current.Name = nameFor(*current, dominantCity(cityCounts))
		events = append(events, *current)
		current = nil
	}

	for _, f := range files {
		if f.CaptureTime == nil {
			continue
		}

		newEvent := current == nil
		if current != nil {
			gapExceeded := f.CaptureTime.Sub(lastTime) > th.Gap
			jumpExceeded := false
			if haveLastLoc && f.Latitude != nil && f.Longitude != nil {
				d := geocode.HaversineKM(lastLat, lastLon, *f.Latitude, *f.Longitude)
				jumpExceeded = d > th.JumpKM
			}
			if gapExceeded || jumpExceeded {
				flush()
				newEvent = true
			}
		}

		if newEvent {
			current = &model.Event{
				ID:    uuid.NewString(),
				Start: *f.CaptureTime,
			}
			cityCounts = make(map[string]int)
		}
		current.FileIDs = append(current.FileIDs, f.ID)
		if current.CoverFileID == "" {
			current.CoverFileID = f.ID
		}
		if cityOf != nil {
			if city, ok := cityOf(f.ID); ok && city != "" {
				cityCounts[city]++
			}
		}
		lastTime = *f.CaptureTime
		if f.Latitude != nil && f.Longitude != nil {
			lastLat, lastLon = *f.Latitude, *f.Longitude
			haveLastLoc = true
		}
	}
	flush()

	return events
}

func dominantCity(counts map[string]int) string {
	best, bestCount := "", 0
	for city, n := range counts {
		if n > bestCount {
			best, bestCount = city, n
		}
	}
	return best
}

func nameFor(e model.Event, city string) string {
	days := e.Start.Format("2006-01-02")
	dateRange := days
	if e.End.Format("2006-01-02") != days {
		dateRange = fmt.Sprintf("%s – %s", days, e.End.Format("2006-01-02"))
	}
	if city == "" {
		return dateRange
	}
	return fmt.Sprintf("%s, %s", city, dateRange)
}
