package consents

import (
	"context"

	"github.com/consentlab/takeout-agent/internal/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Consent) (*models.Consent, error)
	Get(ctx context.Context, internalID int64) (*models.Consent, error)
	Update(ctx context.Context, c *models.Consent) error
	SetStatus(ctx context.Context, internalID int64, status models.ConsentStatus) error
	ClearCredentials(ctx context.Context, internalID int64) error
	SelectPendingForUpdate(ctx context.Context) ([]*models.Consent, error)
	SelectByConsentDate(ctx context.Context, day string) ([]*models.Consent, error)
}
