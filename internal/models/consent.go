// Package models defines the task-store entities: the participant Consent,
// its append-only LogEntry trail, and the per-category processing outcome.
package models

import (
	"sort"
	"strings"
	"time"
)

// ConsentStatus is the lifecycle state of a consent record.
type ConsentStatus string

const (
	StatusReady         ConsentStatus = "ready"
	StatusProcessing    ConsentStatus = "processing"
	StatusComplete      ConsentStatus = "complete"
	StatusFailed        ConsentStatus = "failed"
	StatusDriveNotReady ConsentStatus = "drive_not_ready"
)

// Sentinel values persisted in the per-category SID columns when no artifact
// identifier could be assigned.
const (
	SIDError    = "err"
	SIDNotFound = "not found"
)

// Consent is one participant's authorization record plus processing state.
// Data holds the encrypted credential blob and MUST be nil once both
// categories have reached a terminal outcome.
type Consent struct {
	InternalID  int64
	StudyID     string
	Email       string
	FirstName   string
	LastName    string
	ConsentDT   time.Time
	Data        []byte
	LocationSID string
	SearchSID   string
	Status      ConsentStatus
}

// HasCredentials reports whether the encrypted credential blob is present.
func (c *Consent) HasCredentials() bool {
	return len(c.Data) > 0
}

// MergeSearchSID merges v into the search SID column, preserving identifiers
// assigned by earlier runs rather than overwriting them.
func (c *Consent) MergeSearchSID(v string) {
	c.SearchSID = MergeSIDs(c.SearchSID, v)
}

// MergeLocationSID merges v into the location SID column.
func (c *Consent) MergeLocationSID(v string) {
	c.LocationSID = MergeSIDs(c.LocationSID, v)
}

// SearchTerminal reports whether the search category has reached a terminal
// per-category outcome (an identifier, "not found", or "err").
func (c *Consent) SearchTerminal() bool {
	return c.SearchSID != ""
}

// LocationTerminal reports whether the location category is terminal.
func (c *Consent) LocationTerminal() bool {
	return c.LocationSID != ""
}

// AnySuccess reports whether at least one category holds a real artifact
// identifier (not a sentinel).
func (c *Consent) AnySuccess() bool {
	return HasArtifact(c.SearchSID) || HasArtifact(c.LocationSID)
}

// HasArtifact reports whether a SID column holds at least one real
// artifact identifier rather than only sentinels.
func HasArtifact(sid string) bool {
	for _, part := range strings.Split(sid, ", ") {
		part = strings.TrimSpace(part)
		if part != "" && part != SIDError && part != SIDNotFound {
			return true
		}
	}
	return false
}

// MergeSIDs folds value into the comma-joined identifier list, trimming,
// deduplicating and keeping lexicographic order so repeated uploads yield
// a deterministic column value. Identifiers keep their case: they name
// stored objects under case-sensitive keys.
func MergeSIDs(existing, value string) string {
	seen := map[string]struct{}{}
	var out []string

	add := func(s string) {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	add(existing)
	add(value)

	sort.Strings(out)
	return strings.Join(out, ", ")
}
