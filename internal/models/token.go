package models

import (
	"time"
)

// Claims carried inside the encrypted token
// Timestamps are unix seconds, same as JWT numeric dates
type Claims struct {
	Subject   string `json:"sub"`
	Issuer    string `json:"iss"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func (c Claims) ExpiresAtTime() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// Token issued by TokenService
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Principal is the authenticated caller of a request
// A request without one is anonymous, not an error
type Principal struct {
	Subject string
}
