package licenses

import (
	"context"

	"github.com/dmitrijs2005/rentdesk/internal/server/models"
)

// Repository is the License Ledger.
type Repository interface {
	Create(ctx context.Context, l *models.License) (*models.License, error)
	GetByID(ctx context.Context, id string) (*models.License, error)
	// GetByUserAndType returns the record for one license side. forUpdate
	// locks the row until the surrounding transaction ends.
	GetByUserAndType(ctx context.Context, userID, licenseType string, forUpdate bool) (*models.License, error)
	// Replace points an existing record at a new file and resets it to pending.
	Replace(ctx context.Context, id string, l *models.License) (*models.License, error)
	ListByUser(ctx context.Context, userID string) ([]models.License, error)
	ListWithUsers(ctx context.Context) ([]models.LicenseWithUser, error)
	UpdateStatus(ctx context.Context, id string, status models.LicenseStatus, notes *string) (*models.License, error)
	// DeleteByUser removes all records of a user and returns their file names.
	DeleteByUser(ctx context.Context, userID string) ([]string, error)
}
