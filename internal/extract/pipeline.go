package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/consentlab/takeout-agent/internal/common"
	"github.com/consentlab/takeout-agent/internal/config"
	"github.com/consentlab/takeout-agent/internal/drive"
	"github.com/consentlab/takeout-agent/internal/logging"
	"github.com/consentlab/takeout-agent/internal/models"
	"github.com/consentlab/takeout-agent/internal/redact"
	"github.com/consentlab/takeout-agent/internal/repositories/consents"
	"github.com/consentlab/takeout-agent/internal/repositories/logs"
	"github.com/consentlab/takeout-agent/internal/sink"
	"github.com/consentlab/takeout-agent/internal/vault"
)

// Pusher uploads finished artifacts and records identifiers on the consent.
type Pusher interface {
	Push(ctx context.Context, consent *models.Consent, artifacts []sink.Artifact, force bool) int
}

// Notifier delivers the terminal-state notification.
type Notifier interface {
	NotifyProcessed(ctx context.Context, consent *models.Consent, entries []models.LogEntry) error
}

// Mirror publishes the consent row to the operator-visible status table.
type Mirror interface {
	Mirror(ctx context.Context, consent *models.Consent, notes string) error
}

// Pipeline drives one consent from authorization through upload and
// notification.
type Pipeline struct {
	cfg      *config.Config
	vault    *vault.Vault
	drive    *drive.Client
	redactor *redact.Redactor
	pusher   Pusher
	notifier Notifier
	mirror   Mirror
	consents consents.Repository
	logs     logs.Repository
	log      logging.Logger
}

func NewPipeline(
	cfg *config.Config,
	v *vault.Vault,
	driveClient *drive.Client,
	redactor *redact.Redactor,
	pusher Pusher,
	notifier Notifier,
	mirror Mirror,
	consentsRepo consents.Repository,
	logsRepo logs.Repository,
	log logging.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		vault:    v,
		drive:    driveClient,
		redactor: redactor,
		pusher:   pusher,
		notifier: notifier,
		mirror:   mirror,
		consents: consentsRepo,
		logs:     logsRepo,
		log:      log,
	}
}

// logIt appends a line to the consent's log trail and refreshes the status
// mirror, so an operator always sees the latest activity.
func (p *Pipeline) logIt(ctx context.Context, consent *models.Consent, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.log.Info(ctx, msg, "internal_id", consent.InternalID, "study_id", consent.StudyID)

	_, err := p.logs.Append(ctx, &models.LogEntry{
		CID: &consent.InternalID,
		TS:  time.Now().UTC(),
		Msg: msg,
	})
	if err != nil {
		p.log.Warn(ctx, "appending log entry failed", "error", err)
	}

	p.refreshMirror(ctx, consent)
}

func (p *Pipeline) refreshMirror(ctx context.Context, consent *models.Consent) {
	if p.mirror == nil {
		return
	}
	entries, err := p.logs.ForConsent(ctx, consent.InternalID)
	if err != nil {
		p.log.Warn(ctx, "loading log trail failed", "error", err)
		return
	}
	if err := p.mirror.Mirror(ctx, consent, models.Notes(entries)); err != nil {
		p.log.Warn(ctx, "mirroring status failed", "error", err)
	}
}

// OpenRemote authorizes the consent's stored credentials and returns the
// remote archive source for it.
func (p *Pipeline) OpenRemote(consent *models.Consent) (drive.ArchiveSource, error) {
	if !consent.HasCredentials() {
		return nil, common.ErrNoCredentials
	}

	creds, err := p.vault.Decrypt(consent.Data)
	if err != nil {
		return nil, err
	}

	session, err := p.drive.Authorize(creds)
	if err != nil {
		return nil, err
	}
	return drive.NewRemoteSource(p.drive, session), nil
}

// ProcessRemote runs the pipeline against the consent's own archive
// provider account. Credential and authorization problems are permanent:
// they force FAILED rather than leaving the consent claimable forever.
func (p *Pipeline) ProcessRemote(ctx context.Context, consent *models.Consent, force bool) error {
	source, err := p.OpenRemote(consent)
	if err != nil {
		return p.finishFailed(ctx, consent, err)
	}
	return p.Process(ctx, consent, source, force)
}

// Process runs the full pipeline for one claimed consent. The consent must
// already be in PROCESSING state. Process owns all terminal transitions:
// whatever happens inside, the consent leaves in COMPLETE, FAILED, or
// DRIVE_NOT_READY. Only task-store failures propagate.
func (p *Pipeline) Process(ctx context.Context, consent *models.Consent, source drive.ArchiveSource, force bool) error {
	p.logIt(ctx, consent, "starting task")

	session, err := NewSession(p.cfg.TmpDir, consent.InternalID)
	if err != nil {
		return p.finishFailed(ctx, consent, err)
	}
	defer func() {
		if err := session.Cleanup(); err != nil {
			p.log.Warn(ctx, "scratch cleanup failed", "error", err)
		}
	}()

	view, err := source.Open(ctx)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDriveNotReady):
			return p.markDriveNotReady(ctx, consent,
				"takeout archive for %s not ready", consent.StudyID)
		case errors.Is(err, common.ErrDownloadFailed):
			// Downloads fail transiently. Treat the archive as not ready
			// so the consent keeps its credentials and is retried under
			// the same wait policy.
			return p.markDriveNotReady(ctx, consent,
				"download for %s failed with <%v>. archive treated as not ready", consent.StudyID, err)
		default:
			return p.finishFailed(ctx, consent, err)
		}
	}
	p.logIt(ctx, consent, "takeout archive opened")

	var artifacts []sink.Artifact

	searchArtifact, searchOutcome := p.processSearch(ctx, session, view, consent)
	if searchArtifact != nil {
		artifacts = append(artifacts, *searchArtifact)
	}
	if !searchOutcome.OK() {
		consent.MergeSearchSID(searchOutcome.Sentinel())
	}

	locationArtifact, locationOutcome := p.processLocation(ctx, session, view, consent)
	if locationArtifact != nil {
		artifacts = append(artifacts, *locationArtifact)
	}
	if !locationOutcome.OK() {
		consent.MergeLocationSID(locationOutcome.Sentinel())
	}

	cnt := p.pusher.Push(ctx, consent, artifacts, force)

	return p.finish(ctx, consent, cnt)
}

// processSearch extracts, redacts, and renders the search artifact. All
// failures are contained here and converted to a category outcome.
func (p *Pipeline) processSearch(ctx context.Context, session *Session, view *drive.ArchiveView, consent *models.Consent) (*sink.Artifact, models.CategoryOutcome) {
	entries, err := ExtractSearches(view)
	if err != nil {
		p.logIt(ctx, consent, "extracting searches failed with <%v>", err)
		return nil, models.CategoryError(err.Error())
	}
	if entries == nil {
		p.logIt(ctx, consent, "search data not found in archive")
		return nil, models.NotFound()
	}

	raw, err := RenderRawSearchCSV(entries)
	if err != nil {
		p.logIt(ctx, consent, "rendering raw searches failed with <%v>", err)
		return nil, models.CategoryError(err.Error())
	}
	if _, err := session.WriteFile(FileSearchRaw,
		fmt.Sprintf("search_raw_%d.csv", consent.InternalID), raw); err != nil {
		p.logIt(ctx, consent, "%v", err)
		return nil, models.CategoryError(err.Error())
	}
	p.logIt(ctx, consent, "searches extracted")

	if err := RedactSearches(ctx, p.redactor, entries); err != nil {
		p.logIt(ctx, consent, "redaction failed with <%v>", err)
		return nil, models.CategoryError(err.Error())
	}
	p.logIt(ctx, consent, "searches redacted")

	content, err := RenderSearchCSV(entries)
	if err != nil {
		p.logIt(ctx, consent, "rendering searches failed with <%v>", err)
		return nil, models.CategoryError(err.Error())
	}

	name := fmt.Sprintf("%s_%d_search.csv", consent.StudyID, consent.InternalID)
	if _, err := session.WriteFile(FileSearchRedacted, name, content); err != nil {
		p.logIt(ctx, consent, "%v", err)
		return nil, models.CategoryError(err.Error())
	}

	return &sink.Artifact{Type: sink.ArtifactSearch, Name: name, Content: content},
		models.Success("")
}

// processLocation extracts and renders the location artifact.
func (p *Pipeline) processLocation(ctx context.Context, session *Session, view *drive.ArchiveView, consent *models.Consent) (*sink.Artifact, models.CategoryOutcome) {
	points, err := ExtractLocations(ctx, session, view, p.cfg.CleaningThreads)
	if err != nil {
		p.logIt(ctx, consent, "parsing location data failed with <%v>", err)
		return nil, models.CategoryError(err.Error())
	}
	if points == nil {
		p.logIt(ctx, consent, "location data not found in archive")
		return nil, models.NotFound()
	}
	p.logIt(ctx, consent, "parsing location data completed successfully. %d part file(s)",
		len(session.ByType(FileGPSPart)))

	content, err := RenderLocationCSV(points)
	if err != nil {
		p.logIt(ctx, consent, "rendering location data failed with <%v>", err)
		return nil, models.CategoryError(err.Error())
	}

	name := fmt.Sprintf("%s_%d_gps.csv", consent.StudyID, consent.InternalID)
	if _, err := session.WriteFile(FileGPSProcessed, name, content); err != nil {
		p.logIt(ctx, consent, "%v", err)
		return nil, models.CategoryError(err.Error())
	}

	return &sink.Artifact{Type: sink.ArtifactLocation, Name: name, Content: content},
		models.Success("")
}

// markDriveNotReady records a retry attempt and leaves credentials in
// place so a later poll can try again. The logged message must say
// "not ready": claim eligibility derives the last attempt time from it.
func (p *Pipeline) markDriveNotReady(ctx context.Context, consent *models.Consent, format string, args ...any) error {
	consent.Status = models.StatusDriveNotReady
	if err := p.consents.SetStatus(ctx, consent.InternalID, models.StatusDriveNotReady); err != nil {
		return err
	}
	p.logIt(ctx, consent, format, args...)
	return nil
}

// finish applies the terminal state after upload: COMPLETE when at least
// one category yielded a real artifact, FAILED otherwise. Credentials are
// cleared either way.
func (p *Pipeline) finish(ctx context.Context, consent *models.Consent, uploaded int) error {
	status := models.StatusFailed
	if consent.AnySuccess() {
		status = models.StatusComplete
	}
	consent.Status = status
	consent.Data = nil

	if err := p.consents.Update(ctx, consent); err != nil {
		return err
	}
	if err := p.consents.ClearCredentials(ctx, consent.InternalID); err != nil {
		return err
	}
	p.logIt(ctx, consent, "credentials cleared")

	entries, err := p.logs.ForConsent(ctx, consent.InternalID)
	if err != nil {
		return err
	}
	if err := p.notifier.NotifyProcessed(ctx, consent, entries); err != nil {
		p.logIt(ctx, consent, "notification failed with <%v>", err)
		consent.Status = models.StatusFailed
		return p.consents.SetStatus(ctx, consent.InternalID, models.StatusFailed)
	}

	p.logIt(ctx, consent, "task complete. %d file(s) put to storage", uploaded)
	return nil
}

// finishFailed forces the consent into FAILED after a permanent
// pipeline-level error: authorization, decryption, or a corrupt archive.
func (p *Pipeline) finishFailed(ctx context.Context, consent *models.Consent, cause error) error {
	p.logIt(ctx, consent, "task failed with <%v>", cause)

	consent.MergeSearchSID(models.SIDError)
	consent.MergeLocationSID(models.SIDError)
	consent.Status = models.StatusFailed
	consent.Data = nil

	if err := p.consents.Update(ctx, consent); err != nil {
		return err
	}
	if err := p.consents.ClearCredentials(ctx, consent.InternalID); err != nil {
		return err
	}
	p.logIt(ctx, consent, "credentials cleared")
	return nil
}
