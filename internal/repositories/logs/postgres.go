// Package logs provides the PostgreSQL-backed repository for the append-only
// audit trail.
package logs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/consentlab/takeout-agent/internal/dbx"
	"github.com/consentlab/takeout-agent/internal/models"
)

// PostgresRepository implements log storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one entry and returns it with the assigned id. Entries are
// never updated or deleted.
func (r *PostgresRepository) Append(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error) {
	query := `INSERT INTO log (cid, ts, msg) VALUES ($1, $2, $3) RETURNING id`

	var cid sql.NullInt64
	if entry.CID != nil {
		cid = sql.NullInt64{Int64: *entry.CID, Valid: true}
	}

	if err := r.db.QueryRowContext(ctx, query, cid, entry.TS, entry.Msg).Scan(&entry.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// ForConsent returns all entries for a consent, oldest first.
func (r *PostgresRepository) ForConsent(ctx context.Context, cid int64) ([]models.LogEntry, error) {
	query := `SELECT id, cid, ts, msg FROM log WHERE cid = $1 ORDER BY ts ASC`
	rows, err := r.db.QueryContext(ctx, query, cid)
	if err != nil {
		return nil, fmt.Errorf("failed to select log entries: %w", err)
	}
	defer rows.Close()

	var result []models.LogEntry
	for rows.Next() {
		var (
			item models.LogEntry
			c    sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &c, &item.TS, &item.Msg); err != nil {
			return nil, err
		}
		if c.Valid {
			item.CID = &c.Int64
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LatestDriveAttempt returns the timestamp of the newest not-ready entry for
// the consent, or nil when no attempt has been recorded yet.
func (r *PostgresRepository) LatestDriveAttempt(ctx context.Context, cid int64) (*time.Time, error) {
	query := `SELECT ts FROM log WHERE cid = $1 AND msg LIKE '%not ready%' ORDER BY ts DESC LIMIT 1`

	var ts time.Time
	err := r.db.QueryRowContext(ctx, query, cid).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &ts, nil
}
