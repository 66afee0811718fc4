package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentlab/takeout-agent/internal/drive"
	"github.com/consentlab/takeout-agent/internal/redact"
)

func buildArchive(t *testing.T, entries map[string]string) *drive.ArchiveView {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	view, err := drive.OpenArchive(buf.Bytes())
	require.NoError(t, err)
	return view
}

func TestParseSearchFile_SplitsActionAndTitle(t *testing.T) {
	data := []byte(`[
		{"title": "Searched for cats", "time": "2023-01-02T10:04:05.123Z"},
		{"title": "Visited https://example.org", "time": "2023-01-02T10:05:00Z"}
	]`)

	entries, err := ParseSearchFile(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Searched", entries[0].Action)
	assert.Equal(t, "cats", entries[0].Title)
	assert.Equal(t, time.Date(2023, 1, 2, 10, 4, 5, 123000000, time.UTC), entries[0].Time)

	assert.Equal(t, "Visited", entries[1].Action)
	assert.Equal(t, "https://example.org", entries[1].Title)
}

func TestParseSearchFile_BadTimestamp(t *testing.T) {
	_, err := ParseSearchFile([]byte(`[{"title": "Searched for x", "time": "yesterday"}]`))
	assert.Error(t, err)
}

func TestExtractSearches_CombinesAndSortsChronologically(t *testing.T) {
	view := buildArchive(t, map[string]string{
		"Takeout/My Activity/Search/part1.json": `[{"title": "Searched for new", "time": "2023-01-02T12:00:00Z"}]`,
		"Takeout/My Activity/Search/part2.json": `[{"title": "Searched for old", "time": "2023-01-01T12:00:00Z"}]`,
	})

	entries, err := ExtractSearches(view)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "old", entries[0].Title)
	assert.Equal(t, "new", entries[1].Title)
}

func TestExtractSearches_NoSearchData(t *testing.T) {
	view := buildArchive(t, map[string]string{
		"Takeout/Location History/Records.json": `{"locations":[]}`,
	})

	entries, err := ExtractSearches(view)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

type countingInspector struct {
	mu       sync.Mutex
	calls    int
	findings map[string][]redact.Finding
}

func (c *countingInspector) Inspect(_ context.Context, text string) ([]redact.Finding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.findings[text], nil
}

func TestRedactSearches_DeduplicatesAndPropagates(t *testing.T) {
	entries := []SearchEntry{
		{Action: ActionSearched, Title: "john smith"},
		{Action: ActionSearched, Title: "cats"},
		{Action: ActionSearched, Title: "john smith"},
		{Action: "Visited", Title: "https://example.org"},
	}

	insp := &countingInspector{findings: map[string][]redact.Finding{
		"john smith": {{Quote: "john smith", InfoType: "PERSON_NAME", Likelihood: "LIKELY"}},
	}}

	err := RedactSearches(context.Background(), redact.NewRedactor(insp, 2, 0), entries)
	require.NoError(t, err)

	// two distinct searched titles, one inspection each
	assert.Equal(t, 2, insp.calls)

	assert.Equal(t, "PERSON_NAME", entries[0].Title)
	assert.Equal(t, "PERSON_NAME", entries[2].Title)
	assert.Equal(t, "PERSON_NAME", entries[0].InfoTypes)
	assert.Equal(t, entries[0].InfoTypes, entries[2].InfoTypes)

	assert.Equal(t, "cats", entries[1].Title)
	assert.Empty(t, entries[1].InfoTypes)

	// web visits never go to the inspector
	assert.Equal(t, "https://example.org", entries[3].Title)
}

func TestRenderSearchCSV(t *testing.T) {
	entries := []SearchEntry{{
		Time:        time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC),
		Action:      "Searched",
		Title:       "PERSON_NAME",
		InfoTypes:   "PERSON_NAME",
		Likelihoods: "LIKELY",
		Marks:       "partial",
	}}

	out, err := RenderSearchCSV(entries)
	require.NoError(t, err)

	assert.Contains(t, string(out), "time,action,title,info_type,likelihood,redact")
	assert.Contains(t, string(out), "2023-01-02T10:00:00Z,Searched,PERSON_NAME,PERSON_NAME,LIKELY,partial")
}
