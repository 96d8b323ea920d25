package models

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	LicenseKey     string
	Email          string
	HardwareID     *string // nil until first activation
	ExpirationDate time.Time
	Active         bool
}

// Binding state of the license: either unbound or bound to exactly one hardware id.
// Derived from the row, so the illegal pair (active=true, hwid=nil) has no representation.
type Binding struct {
	Bound      bool
	HardwareID string
}

func (l License) Binding() Binding {
	if l.HardwareID == nil {
		return Binding{}
	}
	return Binding{Bound: true, HardwareID: *l.HardwareID}
}

// ExpiredOn reports if the license is expired on the given date
// The license stays valid through the whole expiration date itself
func (l License) ExpiredOn(date time.Time) bool {
	return DateOnly(date).After(DateOnly(l.ExpirationDate))
}

// DateOnly truncates a timestamp to its UTC calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Activation is the successful outcome of the activate-or-validate operation
type Activation struct {
	ExpirationDate time.Time
}
