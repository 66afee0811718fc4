package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DTFormat is the timestamp layout used in logs, notes, and emails.
// Rendered uppercase, e.g. "02JAN2006 UTC 15:04:05".
const DTFormat = "02Jan2006 MST 15:04:05"

// LogEntry is one append-only audit record. CID is nil for agent-level
// entries not tied to a specific consent.
type LogEntry struct {
	ID  int64
	CID *int64
	TS  time.Time
	Msg string
}

func (l LogEntry) String() string {
	return fmt.Sprintf("%s: %s", strings.ToUpper(l.TS.Format(DTFormat)), l.Msg)
}

// NotesLimit bounds the rendered notes column mirrored to the external
// status table.
const NotesLimit = 996

// Notes renders the log trail into the human-readable notes field. Entries
// are ordered oldest to newest, the date is printed once per day, drive
// not-ready chatter is skipped, and the result is truncated from the front
// so the most recent entries survive the character budget.
func Notes(logs []LogEntry) string {
	ordered := make([]LogEntry, len(logs))
	copy(ordered, logs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TS.Before(ordered[j].TS) })

	var b strings.Builder
	var day string

	for _, l := range ordered {
		if strings.Contains(l.Msg, "not ready") {
			continue
		}

		if b.Len() > 0 {
			b.WriteString(";")
		}

		d := strings.ToUpper(l.TS.Format("02Jan2006"))
		if d != day {
			day = d
			b.WriteString(d)
		}

		b.WriteString(" " + l.TS.Format("15:04:05") + " " + l.Msg)
	}

	msg := b.String()
	if msg == "" {
		return "none"
	}
	if len(msg) > NotesLimit {
		msg = "..." + msg[len(msg)-NotesLimit:]
	}
	return msg
}
