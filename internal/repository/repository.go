package repository

import (
	"context"
	"time"

	"github.com/covalidate/licensesrv/internal/models"
)

// License repository interface
type LicenseRepo interface {
	// Create license
	// If license with the same key exists already has to return apperrors.ErrLicenseExists
	Create(ctx context.Context, license models.License) (models.License, error)

	// Get license by its key
	// If license not found must return apperrors.ErrLicenseNotFound
	GetByKey(ctx context.Context, licenseKey string) (models.License, error)

	// Report if license with the key exists
	ExistsByKey(ctx context.Context, licenseKey string) (bool, error)

	// Bind hardware id to the license and mark it active, but only if it is not bound yet
	// The update is conditioned on 'hwid IS NULL', so of two concurrent callers at most one wins
	// If the license is bound already (or was bound meanwhile) must return apperrors.ErrLicenseAlreadyBound
	BindHardware(ctx context.Context, licenseKey string, hardwareID string) (models.License, error)

	// List active licenses that expire exactly on the given date
	// Used by the expiration warning job only, not by the activation path
	ListExpiringOn(ctx context.Context, date time.Time) ([]models.License, error)

	// List every stored license
	// Used by the backup job only
	ListAll(ctx context.Context) ([]models.License, error)
}
