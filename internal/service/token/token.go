package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/covalidate/licensesrv/internal/apperrors"
	"github.com/covalidate/licensesrv/internal/models"
)

const (
	defaultTokenTTL = time.Hour
	defaultIssuer   = "licensesrv"

	// A256GCM needs 256 bits of key material, shorter secrets are rejected at startup
	minSecretKeyBytes = 32
)

// Token service with sensible defaults
type Config struct {
	// Secret key to encrypt tokens
	// Required to be set and at least 32 bytes long
	SecretKey string

	// Issuer stamped into every token and required back on validation
	// If not set then default is used
	Issuer string

	// Token lifetime
	// If not set then default is used
	TTL time.Duration
}

type Service struct {
	// Content encryption key derived from the secret
	key []byte

	issuer string
	ttl    time.Duration

	// Clock, replaceable in tests
	now func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}
	if len(cfg.SecretKey) < minSecretKeyBytes {
		return nil, fmt.Errorf("secret key is too short: need at least %d bytes for AES-256-GCM", minSecretKeyBytes)
	}

	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultTokenTTL
	}

	// The cipher wants exactly 256 bits, secrets may be longer
	sum := sha256.Sum256([]byte(cfg.SecretKey))

	return &Service{
		key:    sum[:],
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

// Issue builds claims for the subject and encrypts them into a token
// An error here means a cryptographic or programming failure, not a user error
func (s *Service) Issue(subject string) (models.IssuedToken, error) {
	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)

	claims := models.Claims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	value, err := EncodeClaims(claims, s.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while issuing token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Validate decrypts the token and enforces issuance policy
// Checks run in fixed order: claims decode, then expiration, then issuer
// A token with expiresAt equal to now is still valid
func (s *Service) Validate(tokenString string) (models.Claims, error) {
	claims, err := DecodeClaims(tokenString, s.key)
	if err != nil {
		return claims, err
	}

	if claims.ExpiresAt == 0 || s.now().After(claims.ExpiresAtTime()) {
		return claims, fmt.Errorf("token policy: %w", apperrors.ErrTokenExpired)
	}

	if claims.Issuer == "" || claims.Issuer != s.issuer {
		return claims, fmt.Errorf("token policy: %w", apperrors.ErrTokenIssuerInvalid)
	}

	return claims, nil
}

// ExtractSubject validates the token and returns its subject
// All errors are swallowed on purpose: use it only where token trust failure
// must degrade to anonymous instead of aborting
func (s *Service) ExtractSubject(tokenString string) (string, bool) {
	claims, err := s.Validate(tokenString)
	if err != nil || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
