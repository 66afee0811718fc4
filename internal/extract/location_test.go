package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocationFile_CoordinatesAndColumns(t *testing.T) {
	data := []byte(`{"locations": [{
		"timestampMs": "1672653600000",
		"latitudeE7": 47600000,
		"longitudeE7": -122300000,
		"accuracy": 20,
		"verticalAccuracy": 3,
		"altitude": 120,
		"heading": 90,
		"velocity": 5,
		"activity": [{"activity": [{"type": "STILL"}, {"type": "ON_FOOT"}]}]
	}]}`)

	points, err := ParseLocationFile(context.Background(), data, 2)
	require.NoError(t, err)
	require.Len(t, points, 1)

	p := points[0]
	assert.InDelta(t, 4.76, p.Lat, 1e-9)
	assert.InDelta(t, -12.23, p.Lon, 1e-9)
	require.NotNil(t, p.Accuracy)
	assert.EqualValues(t, 20, *p.Accuracy)
	assert.Equal(t, "STILL", p.Activity)
	assert.Equal(t, time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC), p.TS)
	assert.Equal(t, "2023-01-02", p.Date())
}

func TestParseLocationFile_NumericTimestamp(t *testing.T) {
	data := []byte(`{"locations": [{
		"timestampMs": 1672653600000,
		"latitudeE7": 10000000,
		"longitudeE7": 20000000
	}]}`)

	points, err := ParseLocationFile(context.Background(), data, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC), points[0].TS)
}

func TestParseLocationFile_RoundsToFiveDecimals(t *testing.T) {
	data := []byte(`{"locations": [{
		"timestampMs": "1672653600000",
		"latitudeE7": 476001234,
		"longitudeE7": -1223004567
	}]}`)

	points, err := ParseLocationFile(context.Background(), data, 1)
	require.NoError(t, err)
	assert.InDelta(t, 47.60012, points[0].Lat, 1e-9)
	assert.InDelta(t, -122.30046, points[0].Lon, 1e-9)
}

func TestParseLocationFile_MissingActivity(t *testing.T) {
	data := []byte(`{"locations": [
		{"timestampMs": "1672653600000", "latitudeE7": 1, "longitudeE7": 1},
		{"timestampMs": "1672653601000", "latitudeE7": 1, "longitudeE7": 1, "activity": []}
	]}`)

	points, err := ParseLocationFile(context.Background(), data, 4)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Empty(t, points[0].Activity)
	assert.Empty(t, points[1].Activity)
}

func TestExtractLocations_SortsAcrossParts(t *testing.T) {
	view := buildArchive(t, map[string]string{
		"Takeout/Location History/a.json": `{"locations": [{"timestampMs": "1672653700000", "latitudeE7": 1, "longitudeE7": 1}]}`,
		"Takeout/Location History/b.json": `{"locations": [{"timestampMs": "1672653600000", "latitudeE7": 2, "longitudeE7": 2}]}`,
	})
	session, err := NewSession(t.TempDir(), 1)
	require.NoError(t, err)

	points, err := ExtractLocations(context.Background(), session, view, 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[0].TS.Before(points[1].TS))

	// each archive part leaves a scratch copy
	parts := session.ByType(FileGPSPart)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.FileExists(t, p.Path)
	}
}

func TestExtractLocations_NoLocationData(t *testing.T) {
	view := buildArchive(t, map[string]string{
		"Takeout/My Activity/Search/part1.json": `[]`,
	})
	session, err := NewSession(t.TempDir(), 1)
	require.NoError(t, err)

	points, err := ExtractLocations(context.Background(), session, view, 2)
	require.NoError(t, err)
	assert.Nil(t, points)
	assert.Empty(t, session.ByType(FileGPSPart))
}

func TestRenderLocationCSV(t *testing.T) {
	acc := int64(20)
	points := []LocationPoint{{
		TS:       time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC),
		Lat:      4.76,
		Lon:      -12.23,
		Accuracy: &acc,
		Activity: "STILL",
	}}

	out, err := RenderLocationCSV(points)
	require.NoError(t, err)
	assert.Contains(t, string(out), "ts,lat,lon,accuracy,activity,date")
	assert.Contains(t, string(out), "2023-01-02T10:00:00Z,4.76,-12.23,20,STILL,2023-01-02")
}
