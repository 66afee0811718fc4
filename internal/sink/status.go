package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/consentlab/takeout-agent/internal/models"
)

// StatusMirror publishes a readable copy of each consent row to object
// storage so operators can inspect pipeline state without database access.
// The mirror is advisory: the task store remains the source of truth.
type StatusMirror struct {
	store       ArtifactStore
	category    string
	maxRetries  uint64
	backoffBase time.Duration
}

func NewStatusMirror(store ArtifactStore, category string, maxRetries uint64) *StatusMirror {
	return &StatusMirror{
		store:       store,
		category:    category,
		maxRetries:  maxRetries,
		backoffBase: time.Second,
	}
}

type statusRow struct {
	InternalID  int64     `json:"internal_id"`
	StudyID     string    `json:"study_id"`
	ConsentDT   time.Time `json:"consent_dt"`
	Status      string    `json:"status"`
	SearchSID   string    `json:"search_sid"`
	LocationSID string    `json:"location_sid"`
	Notes       string    `json:"notes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Mirror writes the consent's current state, retrying transient storage
// failures with exponential backoff.
func (m *StatusMirror) Mirror(ctx context.Context, consent *models.Consent, notes string) error {
	row := statusRow{
		InternalID:  consent.InternalID,
		StudyID:     consent.StudyID,
		ConsentDT:   consent.ConsentDT,
		Status:      string(consent.Status),
		SearchSID:   consent.SearchSID,
		LocationSID: consent.LocationSID,
		Notes:       notes,
		UpdatedAt:   time.Now().UTC(),
	}

	content, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status row failed: %w", err)
	}

	name := fmt.Sprintf("consent_%d.json", consent.InternalID)

	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(m.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := m.store.Store(ctx, m.category, name, content); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
