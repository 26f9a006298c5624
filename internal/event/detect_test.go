package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photoindex/internal/model"
)

func t0(hoursOffset float64) time.Time {
	return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hoursOffset * float64(time.Hour)))
}

func ptrF(v float64) *float64 { return &v }
func ptrT(t time.Time) *time.Time { return &t }

func TestDetect_SingleEventWithinGapAndDistance(t *testing.T) {
	files := []model.File{
		{ID: "a", CaptureTime: ptrT(t0(10)), Latitude: ptrF(48.8566), Longitude: ptrF(2.3522)},
		{ID: "b", CaptureTime: ptrT(t0(10.1))},
	}

	events := Detect(files, Thresholds{Gap: 6 * time.Hour, JumpKM: 50}, nil)

	require.Len(t, events, 1)
	require.Equal(t, []string{"a", "b"}, events[0].FileIDs)
	require.Equal(t, "a", events[0].CoverFileID)
}

func TestDetect_TimeGapSplitsEvents(t *testing.T) {
	files := []model.File{
		{ID: "a", CaptureTime: ptrT(t0(0))},
		{ID: "b", CaptureTime: ptrT(t0(7))}, // 7h later, exceeds 6h gap
	}

	events := Detect(files, Thresholds{Gap: 6 * time.Hour, JumpKM: 50}, nil)

	require.Len(t, events, 2)
	require.Equal(t, []string{"a"}, events[0].FileIDs)
	require.Equal(t, []string{"b"}, events[1].FileIDs)
}

func TestDetect_GeographicJumpSplitsEvents(t *testing.T) {
	files := []model.File{
		{ID: "a", CaptureTime: ptrT(t0(0)), Latitude: ptrF(48.8566), Longitude: ptrF(2.3522)}, // Paris
		{ID: "b", CaptureTime: ptrT(t0(1)), Latitude: ptrF(51.5072), Longitude: ptrF(-0.1276)}, // London, ~344km
	}

	events := Detect(files, Thresholds{Gap: 6 * time.Hour, JumpKM: 50}, nil)

	require.Len(t, events, 2)
}

func TestDetect_SkipsFilesWithoutCaptureTime(t *testing.T) {
	files := []model.File{
		{ID: "a", CaptureTime: ptrT(t0(0))},
		{ID: "nope", CaptureTime: nil},
		{ID: "b", CaptureTime: ptrT(t0(1))},
	}

	events := Detect(files, Thresholds{Gap: 6 * time.Hour, JumpKM: 50}, nil)

	require.Len(t, events, 1)
	require.Equal(t, []string{"a", "b"}, events[0].FileIDs)
}

func TestDetect_NameUsesDominantCityAndDateRange(t *testing.T) {
	files := []model.File{
		{ID: "a", CaptureTime: ptrT(t0(0))},
		{ID: "b", CaptureTime: ptrT(t0(30))}, // next day, within gap
	}
	cityOf := func(fileID string) (string, bool) {
		return "Paris", true
	}

	events := Detect(files, Thresholds{Gap: 48 * time.Hour, JumpKM: 50}, cityOf)

	require.Len(t, events, 1)
	require.Contains(t, events[0].Name, "Paris")
	require.Contains(t, events[0].Name, "2024-07-01")
	require.Contains(t, events[0].Name, "2024-07-02")
}

func TestDetect_Empty(t *testing.T) {
	events := Detect(nil, Thresholds{Gap: time.Hour, JumpKM: 10}, nil)
	require.Empty(t, events)
}
