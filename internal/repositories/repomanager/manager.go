package repomanager

import (
	"context"
	"database/sql"

	"github.com/consentlab/takeout-agent/internal/dbx"
	"github.com/consentlab/takeout-agent/internal/repositories/consents"
	"github.com/consentlab/takeout-agent/internal/repositories/logs"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// constructors serve both plain connections and claim transactions.
type RepositoryManager interface {
	Consents(db dbx.DBTX) consents.Repository
	Logs(db dbx.DBTX) logs.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
