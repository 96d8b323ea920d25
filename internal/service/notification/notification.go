package notification

import (
	"context"
	"time"
)

// Sink delivers license lifecycle notifications to the owner
// Every method is best effort: callers log failures and move on,
// a stored license mutation never depends on the outcome
type Sink interface {
	NotifyLicenseCreated(ctx context.Context, email string, licenseKey string, expirationDate time.Time) error
	NotifyLicenseExpiringSoon(ctx context.Context, email string, licenseKey string, expirationDate time.Time) error
}

// NoopSink swallows every notification
// Used when email delivery is disabled and in tests
type NoopSink struct{}

func (NoopSink) NotifyLicenseCreated(context.Context, string, string, time.Time) error {
	return nil
}

func (NoopSink) NotifyLicenseExpiringSoon(context.Context, string, string, time.Time) error {
	return nil
}
