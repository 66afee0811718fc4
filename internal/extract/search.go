// Package extract turns a takeout archive into the two study artifacts:
// the redacted search history and the processed location trace. It owns
// the per-consent scratch files and the pipeline that drives one consent
// from authorization through upload and notification.
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/consentlab/takeout-agent/internal/drive"
	"github.com/consentlab/takeout-agent/internal/redact"
)

// SearchEntry is one activity record from the search history, split into
// the action verb and the query text. The redaction columns are empty
// until the entry has been through the inspector.
type SearchEntry struct {
	Time        time.Time
	Action      string
	Title       string
	InfoTypes   string
	Likelihoods string
	Marks       string
}

// ActionSearched marks entries whose query text goes through redaction.
// Web visits and other actions carry URLs, not free text, and are kept
// as-is.
const ActionSearched = "Searched"

type rawSearchEntry struct {
	Title string `json:"title"`
	Time  string `json:"time"`
}

// Timestamps in activity exports appear with and without fractional
// seconds.
var searchTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05Z",
}

func parseSearchTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range searchTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ParseSearchFile decodes one activity JSON file into entries. The leading
// token of the exported title is the action verb; for "Searched" entries
// the connective token after the verb is dropped as well, leaving only the
// query text.
func ParseSearchFile(data []byte) ([]SearchEntry, error) {
	var raw []rawSearchEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding search history failed: %w", err)
	}

	entries := make([]SearchEntry, 0, len(raw))
	for _, r := range raw {
		ts, err := parseSearchTime(r.Time)
		if err != nil {
			return nil, fmt.Errorf("decoding search timestamp %q failed: %w", r.Time, err)
		}

		tokens := strings.Split(r.Title, " ")
		action := tokens[0]

		var title string
		if action == ActionSearched && len(tokens) > 2 {
			title = strings.Join(tokens[2:], " ")
		} else if len(tokens) > 1 {
			title = strings.Join(tokens[1:], " ")
		}

		entries = append(entries, SearchEntry{Time: ts, Action: action, Title: title})
	}
	return entries, nil
}

// ExtractSearches reads every search history file in the archive and
// returns the combined entries in chronological order. A nil slice with a
// nil error means the archive holds no search data at all.
func ExtractSearches(view *drive.ArchiveView) ([]SearchEntry, error) {
	var entries []SearchEntry
	found := false

	for _, name := range view.Names() {
		if !strings.Contains(name, "Search") {
			continue
		}
		found = true

		data, err := view.Read(name)
		if err != nil {
			return nil, err
		}

		part, err := ParseSearchFile(data)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", name, err)
		}
		entries = append(entries, part...)
	}

	if !found {
		return nil, nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

// RedactSearches runs every distinct searched query through the inspector
// once and writes the redacted text plus audit columns back onto all
// entries sharing that query. Entries with other actions are untouched.
func RedactSearches(ctx context.Context, redactor *redact.Redactor, entries []SearchEntry) error {
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Action == ActionSearched {
			titles = append(titles, e.Title)
		}
	}
	if len(titles) == 0 {
		return nil
	}

	redactions, err := redactor.RedactTitles(ctx, titles)
	if err != nil {
		return err
	}

	for i := range entries {
		if entries[i].Action != ActionSearched {
			continue
		}
		red, ok := redactions[entries[i].Title]
		if !ok || red.Clean() {
			continue
		}
		entries[i].Title = red.Title
		entries[i].InfoTypes = red.InfoTypes
		entries[i].Likelihoods = red.Likelihoods
		entries[i].Marks = red.Marks
	}
	return nil
}

// RenderSearchCSV writes entries as the redacted search artifact.
func RenderSearchCSV(entries []SearchEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"time", "action", "title", "info_type", "likelihood", "redact"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		rec := []string{
			e.Time.UTC().Format(searchTimeLayouts[1]),
			e.Action,
			e.Title,
			e.InfoTypes,
			e.Likelihoods,
			e.Marks,
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

// RenderRawSearchCSV writes the pre-redaction scratch file kept alongside
// the pipeline for troubleshooting. It never leaves the scratch directory.
func RenderRawSearchCSV(entries []SearchEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"time", "action", "title"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Write([]string{
			e.Time.UTC().Format(searchTimeLayouts[1]), e.Action, e.Title,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
