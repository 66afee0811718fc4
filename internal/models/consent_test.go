package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeSIDs(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		value    string
		want     string
	}{
		{"empty plus one", "", "syn123", "syn123"},
		{"merge keeps both sorted", "syn2", "syn1", "syn1, syn2"},
		{"duplicates collapse", "syn1, syn2", "syn2", "syn1, syn2"},
		{"sentinel accumulates", "syn1", SIDError, "err, syn1"},
		{"whitespace trimmed", " syn9 ", "syn9", "syn9"},
		{"case preserved", "search/Abc_7_search.csv", "", "search/Abc_7_search.csv"},
		{"case distinguishes identifiers", "SYN9", "syn9", "SYN9, syn9"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MergeSIDs(tc.existing, tc.value))
		})
	}
}

func TestConsent_AnySuccess(t *testing.T) {
	c := &Consent{}
	assert.False(t, c.AnySuccess())

	c.MergeSearchSID(SIDError)
	assert.False(t, c.AnySuccess())

	c.MergeLocationSID("syn456")
	assert.True(t, c.AnySuccess())
}

func TestConsent_TerminalFlags(t *testing.T) {
	c := &Consent{}
	assert.False(t, c.SearchTerminal())
	assert.False(t, c.LocationTerminal())

	c.MergeSearchSID(SIDNotFound)
	c.MergeLocationSID("syn1")
	assert.True(t, c.SearchTerminal())
	assert.True(t, c.LocationTerminal())
}

func TestCategoryOutcome_Sentinel(t *testing.T) {
	assert.Equal(t, "syn1", Success("syn1").Sentinel())
	assert.Equal(t, SIDNotFound, NotFound().Sentinel())
	assert.Equal(t, SIDError, CategoryError("boom").Sentinel())

	assert.False(t, NotFound().Failed())
	assert.True(t, CategoryError("boom").Failed())
	assert.True(t, Success("syn1").OK())
}

func TestNotes_DatePrintedOncePerDay(t *testing.T) {
	day := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)
	logs := []LogEntry{
		{TS: day, Msg: "starting task"},
		{TS: day.Add(time.Minute), Msg: "searches extracted"},
		{TS: day.Add(24 * time.Hour), Msg: "task complete"},
	}

	got := Notes(logs)
	assert.Equal(t, 1, strings.Count(got, "01JAN2023"))
	assert.Equal(t, 1, strings.Count(got, "02JAN2023"))
	assert.Contains(t, got, "searches extracted")
}

func TestNotes_SkipsNotReadyAndTruncatesFront(t *testing.T) {
	ts := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)

	var logs []LogEntry
	logs = append(logs, LogEntry{TS: ts, Msg: "drive not ready"})
	for i := 0; i < 100; i++ {
		logs = append(logs, LogEntry{TS: ts.Add(time.Duration(i) * time.Second), Msg: strings.Repeat("x", 30)})
	}

	got := Notes(logs)
	assert.NotContains(t, got, "not ready")
	assert.LessOrEqual(t, len(got), NotesLimit+3)
	assert.True(t, strings.HasPrefix(got, "..."))
}

func TestNotes_Empty(t *testing.T) {
	assert.Equal(t, "none", Notes(nil))
}
