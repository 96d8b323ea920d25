package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covalidate/licensesrv/internal/apperrors"
	"github.com/covalidate/licensesrv/internal/logger"
	"github.com/covalidate/licensesrv/internal/models"
	"github.com/covalidate/licensesrv/internal/repository"
	"github.com/covalidate/licensesrv/internal/service/notification"
)

// Service is the license activation engine
// It keeps no state of its own: every call re-reads and re-writes through the
// repository, so it is safe to share between concurrent requests
type Service struct {
	licenses repository.LicenseRepo
	notifier notification.Sink
	logger   logger.Logger

	// Clock, replaceable in tests
	now func() time.Time
}

func NewService(licenses repository.LicenseRepo, notifier notification.Sink, l logger.Logger) *Service {
	if notifier == nil {
		notifier = notification.NoopSink{}
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		licenses: licenses,
		notifier: notifier,
		logger:   l,
		now:      time.Now,
	}
}

// Create stores a new unbound inactive license expiring validDays from today
// Returns apperrors.ErrLicenseExists if the key is taken already
func (s *Service) Create(ctx context.Context, licenseKey string, email string, validDays int) (models.License, error) {
	exists, err := s.licenses.ExistsByKey(ctx, licenseKey)
	if err != nil {
		return models.License{}, fmt.Errorf("error while checking license key. Err: %w", err)
	}
	if exists {
		return models.License{}, fmt.Errorf("create rejected: %w", apperrors.ErrLicenseExists)
	}

	now := s.now()
	license := models.License{
		ID:             uuid.New(),
		CreatedAt:      now,
		LicenseKey:     licenseKey,
		Email:          email,
		HardwareID:     nil,
		ExpirationDate: models.DateOnly(now.AddDate(0, 0, validDays)),
		Active:         false,
	}

	// The insert still surfaces ErrLicenseExists if two creations race past the check
	created, err := s.licenses.Create(ctx, license)
	if err != nil {
		return created, err
	}

	// Best effort: the stored license must not depend on the notification outcome
	err = s.notifier.NotifyLicenseCreated(ctx, created.Email, created.LicenseKey, created.ExpirationDate)
	if err != nil {
		s.logger.Error("License created but notification failed", "license_key", created.LicenseKey, "error", err)
	}

	return created, nil
}

// Activate binds the license on first use and validates it on every later one
//
// The identity check runs strictly before the expiration check: a mismatched
// device is rejected the same way whether the license expired or not, so it
// never learns the expiration state of a license it does not own
func (s *Service) Activate(ctx context.Context, licenseKey string, hardwareID string) (models.Activation, error) {
	lic, err := s.licenses.GetByKey(ctx, licenseKey)
	if err != nil {
		return models.Activation{}, err
	}

	binding := lic.Binding()
	if !binding.Bound {
		bound, err := s.licenses.BindHardware(ctx, licenseKey, hardwareID)
		switch {
		case err == nil:
			s.logger.Info("License bound to hardware", "license_key", licenseKey)
			lic = bound
			binding = lic.Binding()
		case errors.Is(err, apperrors.ErrLicenseAlreadyBound):
			// Lost the first-activation race: re-read and fall into the
			// ordinary comparison below instead of overwriting the winner
			lic, err = s.licenses.GetByKey(ctx, licenseKey)
			if err != nil {
				return models.Activation{}, err
			}
			binding = lic.Binding()
		default:
			return models.Activation{}, err
		}
	}

	if binding.HardwareID != hardwareID {
		return models.Activation{}, fmt.Errorf("activation rejected: %w", apperrors.ErrHardwareMismatch)
	}

	if lic.ExpiredOn(s.now()) {
		return models.Activation{}, fmt.Errorf("activation rejected: %w", apperrors.ErrLicenseExpired)
	}

	return models.Activation{ExpirationDate: lic.ExpirationDate}, nil
}
