// Package agent runs the background polling loop: it claims pending
// consents from the task store, drives each through the extraction
// pipeline, and sends the daily digest.
package agent

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/consentlab/takeout-agent/internal/dbx"
	"github.com/consentlab/takeout-agent/internal/logging"
	"github.com/consentlab/takeout-agent/internal/mail"
	"github.com/consentlab/takeout-agent/internal/models"
	"github.com/consentlab/takeout-agent/internal/repositories/repomanager"
)

// TaskProcessor drives one claimed consent to a terminal state.
type TaskProcessor interface {
	ProcessRemote(ctx context.Context, consent *models.Consent, force bool) error
}

// DigestSender delivers the daily operator digest.
type DigestSender interface {
	SendDigest(ctx context.Context, d mail.Digest) error
}

// Options tune the polling loop.
type Options struct {
	PollInterval   time.Duration
	KeepAlive      bool
	DriveRetryWait time.Duration
	DriveMaxWait   time.Duration
}

// Agent owns the claim-process-sleep cycle. One cycle claims every
// eligible consent inside a single locking transaction, then processes
// the claims outside it, newest consent first.
type Agent struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	processor TaskProcessor
	digest    DigestSender
	opts      Options
	log       logging.Logger

	stop chan struct{}
	done chan struct{}

	digestDate time.Time
	now        func() time.Time
}

func New(db *sql.DB, repos repomanager.RepositoryManager, processor TaskProcessor, digest DigestSender, opts Options, log logging.Logger) *Agent {
	return &Agent{
		db:        db,
		repos:     repos,
		processor: processor,
		digest:    digest,
		opts:      opts,
		log:       log,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Run polls until Stop is called. An error escaping a cycle marks the
// in-flight consent FAILED; in keep-alive mode the loop restarts,
// otherwise Run returns the error.
func (a *Agent) Run(ctx context.Context) error {
	defer close(a.done)

	for {
		start := a.now()

		if err := a.runCycle(ctx); err != nil {
			if !a.opts.KeepAlive {
				a.log.Error(ctx, "agent shutting down", "error", err)
				return err
			}
			a.log.Error(ctx, "agent restarting", "error", err)
		}

		a.maybeSendDigest(ctx)

		// keep the polling cadence: sleep the interval minus however
		// long the cycle took
		remaining := a.opts.PollInterval - a.now().Sub(start)
		if remaining < 0 {
			remaining = 0
		}

		select {
		case <-a.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(remaining):
		}
	}
}

// Stop signals the loop to exit after the current cycle and blocks until
// it has.
func (a *Agent) Stop() {
	close(a.stop)
	<-a.done
}

// runCycle claims and processes one batch. currentID tracks the consent
// being worked on so an escaping error can mark exactly that consent
// FAILED before the loop restarts or exits.
func (a *Agent) runCycle(ctx context.Context) (err error) {
	var currentID int64 = -1

	defer func() {
		if err != nil && currentID >= 0 {
			a.markPermanentlyFailed(ctx, currentID, err)
		}
	}()

	claimed, err := a.claimPending(ctx)
	if err != nil {
		return fmt.Errorf("claiming pending consents failed: %w", err)
	}

	for _, consent := range claimed {
		currentID = consent.InternalID
		if err := a.processor.ProcessRemote(ctx, consent, false); err != nil {
			return fmt.Errorf("processing consent %d failed: %w", consent.InternalID, err)
		}
	}

	return nil
}

// claimPending selects every READY or retry-eligible DRIVE_NOT_READY
// consent and flips it to PROCESSING inside one locking transaction, so
// concurrent agents can never claim the same consent twice.
func (a *Agent) claimPending(ctx context.Context) ([]*models.Consent, error) {
	var claimed []*models.Consent

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		consentsRepo := a.repos.Consents(tx)
		logsRepo := a.repos.Logs(tx)

		pending, err := consentsRepo.SelectPendingForUpdate(ctx)
		if err != nil {
			return err
		}

		now := a.now().UTC()

		for _, c := range pending {
			if c.Status == models.StatusDriveNotReady {
				if now.Sub(c.ConsentDT) > a.opts.DriveMaxWait {
					if err := a.failAfterMaxWait(ctx, tx, c); err != nil {
						return err
					}
					continue
				}

				last, err := logsRepo.LatestDriveAttempt(ctx, c.InternalID)
				if err != nil {
					return err
				}
				if last != nil && now.Sub(*last) < a.opts.DriveRetryWait {
					// recently retried, let the archive bake longer
					continue
				}
			}

			c.Status = models.StatusProcessing
			if err := consentsRepo.SetStatus(ctx, c.InternalID, models.StatusProcessing); err != nil {
				return err
			}
			claimed = append(claimed, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// failAfterMaxWait gives up on a consent whose archive never became
// available within the configured window.
func (a *Agent) failAfterMaxWait(ctx context.Context, tx dbx.DBTX, c *models.Consent) error {
	consentsRepo := a.repos.Consents(tx)
	logsRepo := a.repos.Logs(tx)

	c.Status = models.StatusFailed
	c.Data = nil
	if err := consentsRepo.SetStatus(ctx, c.InternalID, models.StatusFailed); err != nil {
		return err
	}
	if err := consentsRepo.ClearCredentials(ctx, c.InternalID); err != nil {
		return err
	}

	msg := fmt.Sprintf("marked as failed. archive not ready after %d hours",
		int(a.opts.DriveMaxWait.Hours()))
	_, err := logsRepo.Append(ctx, &models.LogEntry{
		CID: &c.InternalID,
		TS:  a.now().UTC(),
		Msg: msg,
	})
	return err
}

// markPermanentlyFailed force-fails the consent an agent-fatal error
// interrupted, so it does not stay stuck in PROCESSING.
func (a *Agent) markPermanentlyFailed(ctx context.Context, internalID int64, cause error) {
	consentsRepo := a.repos.Consents(a.db)
	logsRepo := a.repos.Logs(a.db)

	if err := consentsRepo.SetStatus(ctx, internalID, models.StatusFailed); err != nil {
		a.log.Error(ctx, "marking interrupted consent failed", "internal_id", internalID, "error", err)
		return
	}
	if err := consentsRepo.ClearCredentials(ctx, internalID); err != nil {
		a.log.Error(ctx, "clearing interrupted consent credentials failed", "internal_id", internalID, "error", err)
	}

	_, err := logsRepo.Append(ctx, &models.LogEntry{
		CID: &internalID,
		TS:  a.now().UTC(),
		Msg: fmt.Sprintf("agent terminated unexpectedly with <%v>", cause),
	})
	if err != nil {
		a.log.Warn(ctx, "appending failure log entry failed", "error", err)
	}
}

// maybeSendDigest sends the operator digest once per calendar day.
func (a *Agent) maybeSendDigest(ctx context.Context) {
	if a.digest == nil {
		return
	}

	today := a.now().UTC().Truncate(24 * time.Hour)
	if !today.After(a.digestDate) {
		return
	}
	if a.digestDate.IsZero() {
		// first cycle after startup establishes the baseline
		a.digestDate = today
		return
	}

	consentsRepo := a.repos.Consents(a.db)
	consents, err := consentsRepo.SelectByConsentDate(ctx, today.Format("2006-01-02"))
	if err != nil {
		a.log.Error(ctx, "collecting digest consents failed", "error", err)
		return
	}

	rows := make([]models.Consent, 0, len(consents))
	for _, c := range consents {
		rows = append(rows, *c)
	}

	if err := a.digest.SendDigest(ctx, mail.BuildDigest(today, rows)); err != nil {
		a.log.Error(ctx, "sending daily digest failed", "error", err)
		return
	}
	a.digestDate = today
}
