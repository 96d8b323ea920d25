// Package expiry implements the daily sweep that warns owners about
// licenses expiring the next day.
package expiry

import (
	"context"
	"time"

	"github.com/covalidate/licensesrv/internal/logger"
	"github.com/covalidate/licensesrv/internal/models"
	"github.com/covalidate/licensesrv/internal/repository"
	"github.com/covalidate/licensesrv/internal/service/notification"
)

// DefaultSchedule runs the sweep every morning at nine
const DefaultSchedule = "0 9 * * *"

type Job struct {
	licenses repository.LicenseRepo
	notifier notification.Sink
	logger   logger.Logger

	// Clock, replaceable in tests
	now func() time.Time
}

func NewJob(licenses repository.LicenseRepo, notifier notification.Sink, l logger.Logger) *Job {
	if notifier == nil {
		notifier = notification.NoopSink{}
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Job{
		licenses: licenses,
		notifier: notifier,
		logger:   l,
		now:      time.Now,
	}
}

// Run warns every owner whose active license expires tomorrow
// Notification failures are logged per license and never abort the sweep,
// one unreachable mailbox must not silence the rest
func (j *Job) Run(ctx context.Context) {
	tomorrow := models.DateOnly(j.now().AddDate(0, 0, 1))

	licenses, err := j.licenses.ListExpiringOn(ctx, tomorrow)
	if err != nil {
		j.logger.Error("Expiration sweep failed to list licenses", "error", err)
		return
	}
	if len(licenses) == 0 {
		j.logger.Debug("Expiration sweep found nothing to warn about")
		return
	}

	var sent, failed int
	for _, lic := range licenses {
		err := j.notifier.NotifyLicenseExpiringSoon(ctx, lic.Email, lic.LicenseKey, lic.ExpirationDate)
		if err != nil {
			failed++
			j.logger.Error("Expiration warning failed", "license_key", lic.LicenseKey, "error", err)
			continue
		}
		sent++
	}

	j.logger.Info("Expiration sweep finished", "sent", sent, "failed", failed)
}
