// Package consents provides the PostgreSQL-backed repository for consent
// records, including the row-locked selection used to claim pending work.
package consents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/consentlab/takeout-agent/internal/common"
	"github.com/consentlab/takeout-agent/internal/dbx"
	"github.com/consentlab/takeout-agent/internal/models"
)

// PostgresRepository implements consent storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const consentColumns = `internal_id, study_id, email, first_name, last_name, consent_dt, data, location_sid, search_sid, status`

// Create inserts a new consent and returns it with the assigned internal id.
func (r *PostgresRepository) Create(ctx context.Context, c *models.Consent) (*models.Consent, error) {
	query := `
		INSERT INTO consents (study_id, email, first_name, last_name, consent_dt, data, location_sid, search_sid, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING internal_id
	`
	err := r.db.QueryRowContext(ctx, query,
		c.StudyID, nullString(c.Email), nullString(c.FirstName), nullString(c.LastName),
		c.ConsentDT, nullBytes(c.Data), nullString(c.LocationSID), nullString(c.SearchSID), string(c.Status),
	).Scan(&c.InternalID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Get returns a consent by internal id, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, internalID int64) (*models.Consent, error) {
	query := `SELECT ` + consentColumns + ` FROM consents WHERE internal_id = $1`
	c, err := scanConsent(r.db.QueryRowContext(ctx, query, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Update persists the mutable fields of a consent: credential blob, category
// SID columns, and status.
func (r *PostgresRepository) Update(ctx context.Context, c *models.Consent) error {
	query := `
		UPDATE consents
		SET data = $2, location_sid = $3, search_sid = $4, status = $5
		WHERE internal_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		c.InternalID, nullBytes(c.Data), nullString(c.LocationSID), nullString(c.SearchSID), string(c.Status))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return oneRowAffected(res)
}

// SetStatus flips the status column only.
func (r *PostgresRepository) SetStatus(ctx context.Context, internalID int64, status models.ConsentStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE consents SET status = $2 WHERE internal_id = $1`, internalID, string(status))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return oneRowAffected(res)
}

// ClearCredentials nulls the credential blob. Clearing an already-cleared
// consent is a no-op, not an error.
func (r *PostgresRepository) ClearCredentials(ctx context.Context, internalID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE consents SET data = NULL WHERE internal_id = $1`, internalID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SelectPendingForUpdate returns all consents eligible for claiming, newest
// consent first, locking the rows for the duration of the surrounding
// transaction. SKIP LOCKED keeps two agent instances from blocking on, or
// double-claiming, the same rows.
func (r *PostgresRepository) SelectPendingForUpdate(ctx context.Context) ([]*models.Consent, error) {
	query := `
		SELECT ` + consentColumns + `
		FROM consents
		WHERE status IN ($1, $2)
		ORDER BY consent_dt DESC
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.db.QueryContext(ctx, query,
		string(models.StatusReady), string(models.StatusDriveNotReady))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending consents: %w", err)
	}
	defer rows.Close()

	return collectConsents(rows)
}

// SelectByConsentDate returns consents whose consent date (UTC) equals day,
// formatted "2006-01-02". Used for the daily digest.
func (r *PostgresRepository) SelectByConsentDate(ctx context.Context, day string) ([]*models.Consent, error) {
	query := `
		SELECT ` + consentColumns + `
		FROM consents
		WHERE (consent_dt AT TIME ZONE 'UTC')::date = $1::date
	`
	rows, err := r.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to select consents by date: %w", err)
	}
	defer rows.Close()

	return collectConsents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsent(row rowScanner) (*models.Consent, error) {
	var (
		c                      models.Consent
		email, first, last     sql.NullString
		locationSID, searchSID sql.NullString
		status                 string
	)
	if err := row.Scan(
		&c.InternalID, &c.StudyID, &email, &first, &last,
		&c.ConsentDT, &c.Data, &locationSID, &searchSID, &status,
	); err != nil {
		return nil, err
	}
	c.Email = email.String
	c.FirstName = first.String
	c.LastName = last.String
	c.LocationSID = locationSID.String
	c.SearchSID = searchSID.String
	c.Status = models.ConsentStatus(status)
	return &c, nil
}

func collectConsents(rows *sql.Rows) ([]*models.Consent, error) {
	var result []*models.Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func oneRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
