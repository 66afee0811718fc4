package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/consentlab/takeout-agent/internal/drive"
)

// LocationPoint is one row of the processed location trace. Coordinates
// are degrees rounded to five decimals; Activity is the dominant motion
// label when the exporter recorded one.
type LocationPoint struct {
	TS       time.Time
	Lat      float64
	Lon      float64
	Accuracy *int64
	Activity string
}

// Date returns the calendar-day column value for the point.
func (p LocationPoint) Date() string {
	return p.TS.UTC().Format("2006-01-02")
}

// timestampMillis tolerates both encodings the exporter has used over the
// years: a decimal string and a bare number.
type timestampMillis int64

func (t *timestampMillis) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("decoding timestampMs %q failed: %w", s, err)
		}
		ms = int64(f)
	}
	*t = timestampMillis(ms)
	return nil
}

type rawLocation struct {
	TimestampMs timestampMillis  `json:"timestampMs"`
	LatitudeE7  int64            `json:"latitudeE7"`
	LongitudeE7 int64            `json:"longitudeE7"`
	Accuracy    *int64           `json:"accuracy"`
	Activity    []activitySignal `json:"activity"`
}

type activitySignal struct {
	Activity []activityGuess `json:"activity"`
}

type activityGuess struct {
	Type string `json:"type"`
}

type locationFile struct {
	Locations []rawLocation `json:"locations"`
}

func roundCoord(e7 int64) float64 {
	return math.Round(float64(e7)/1e7*1e5) / 1e5
}

// dominantActivity picks the first reported type of the first signal, the
// exporter's highest-confidence guess.
func dominantActivity(signals []activitySignal) string {
	if len(signals) == 0 || len(signals[0].Activity) == 0 {
		return ""
	}
	return signals[0].Activity[0].Type
}

// ParseLocationFile decodes one location-history JSON file. Vertical
// accuracy, altitude, heading and velocity are discarded; the activity
// labels are resolved on a bounded worker pool since large traces carry
// millions of rows.
func ParseLocationFile(ctx context.Context, data []byte, workers int) ([]LocationPoint, error) {
	var file locationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding location history failed: %w", err)
	}

	if workers < 1 {
		workers = 1
	}

	points := make([]LocationPoint, len(file.Locations))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, raw := range file.Locations {
		g.Go(func() error {
			points[i] = LocationPoint{
				TS:       time.UnixMilli(int64(raw.TimestampMs)).UTC(),
				Lat:      roundCoord(raw.LatitudeE7),
				Lon:      roundCoord(raw.LongitudeE7),
				Accuracy: raw.Accuracy,
				Activity: dominantActivity(raw.Activity),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return points, nil
}

// ExtractLocations reads every location-history file in the archive,
// records each raw part as a session scratch file, and returns the
// combined trace sorted by timestamp. A nil slice with a nil error means
// the archive holds no location data.
func ExtractLocations(ctx context.Context, session *Session, view *drive.ArchiveView, workers int) ([]LocationPoint, error) {
	var points []LocationPoint
	found := false

	for _, name := range view.Names() {
		if !strings.Contains(name, "Location History") {
			continue
		}
		found = true

		data, err := view.Read(name)
		if err != nil {
			return nil, err
		}

		partName := fmt.Sprintf("gps_part_%d.json", len(session.ByType(FileGPSPart)))
		if _, err := session.WriteFile(FileGPSPart, partName, data); err != nil {
			return nil, err
		}

		part, err := ParseLocationFile(ctx, data, workers)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", name, err)
		}
		points = append(points, part...)
	}

	if !found {
		return nil, nil
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TS.Before(points[j].TS)
	})
	return points, nil
}

// RenderLocationCSV writes the processed location artifact.
func RenderLocationCSV(points []LocationPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"ts", "lat", "lon", "accuracy", "activity", "date"}); err != nil {
		return nil, err
	}
	for _, p := range points {
		accuracy := ""
		if p.Accuracy != nil {
			accuracy = strconv.FormatInt(*p.Accuracy, 10)
		}
		rec := []string{
			p.TS.UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.Lat, 'f', -1, 64),
			strconv.FormatFloat(p.Lon, 'f', -1, 64),
			accuracy,
			p.Activity,
			p.Date(),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
