package logs

import (
	"context"
	"time"

	"github.com/consentlab/takeout-agent/internal/models"
)

type Repository interface {
	Append(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error)
	ForConsent(ctx context.Context, cid int64) ([]models.LogEntry, error)
	LatestDriveAttempt(ctx context.Context, cid int64) (*time.Time, error)
}
