package sink

import (
	"context"
	"strconv"

	"github.com/consentlab/takeout-agent/internal/logging"
	"github.com/consentlab/takeout-agent/internal/models"
)

// Artifact kinds accepted by Push. Anything else is skipped.
const (
	ArtifactSearch   = "search_redacted"
	ArtifactLocation = "gps_processed"
)

// Artifact is one finished file ready for upload.
type Artifact struct {
	Type    string
	Name    string
	Content []byte
}

// Pusher uploads finished artifacts and records the assigned identifiers
// on the consent.
type Pusher struct {
	store          ArtifactStore
	searchCategory string
	gpsCategory    string
	processName    string
	log            logging.Logger
}

func NewPusher(store ArtifactStore, searchCategory, gpsCategory, processName string, log logging.Logger) *Pusher {
	return &Pusher{
		store:          store,
		searchCategory: searchCategory,
		gpsCategory:    gpsCategory,
		processName:    processName,
		log:            log,
	}
}

// Push uploads every finished artifact and merges the assigned identifier
// into the consent's category column. An artifact whose name already
// exists at the destination is skipped unless force is set, so re-running
// a consent never duplicates uploads. A failed upload is logged and the
// loop continues: partial persistence is visible through the merged
// identifier columns.
func (p *Pusher) Push(ctx context.Context, consent *models.Consent, artifacts []Artifact, force bool) int {
	uploaded := 0

	for _, a := range artifacts {
		var category string
		var setSID func(string)

		switch a.Type {
		case ArtifactSearch:
			category = p.searchCategory
			setSID = consent.MergeSearchSID
		case ArtifactLocation:
			category = p.gpsCategory
			setSID = consent.MergeLocationSID
		default:
			continue
		}

		if !force {
			exists, err := p.store.Exists(ctx, category, a.Name)
			if err != nil {
				p.log.Error(ctx, "checking artifact existence failed",
					"type", a.Type, "name", a.Name, "error", err)
				continue
			}
			if exists {
				p.log.Info(ctx, "artifact already stored, skipping", "type", a.Type, "name", a.Name)
				continue
			}
		}

		artifactID, err := p.store.Store(ctx, category, a.Name, a.Content)
		if err != nil {
			p.log.Error(ctx, "uploading artifact failed", "type", a.Type, "name", a.Name, "error", err)
			continue
		}

		setSID(artifactID)

		err = p.store.TagProvenance(ctx, artifactID, map[string]string{
			"created_by":  p.processName,
			"study_id":    consent.StudyID,
			"internal_id": strconv.FormatInt(consent.InternalID, 10),
		})
		if err != nil {
			p.log.Warn(ctx, "tagging artifact failed", "artifact", artifactID, "error", err)
		}

		uploaded++
		p.log.Info(ctx, "uploaded artifact", "type", a.Type, "artifact", artifactID)
	}

	return uploaded
}
