package token

import (
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covalidate/licensesrv/internal/apperrors"
	"github.com/covalidate/licensesrv/internal/models"
)

func randomKey(t *testing.T) []byte {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func testClaims() models.Claims {
	now := time.Now().Truncate(time.Second)
	return models.Claims{
		Subject:   "license-admin",
		Issuer:    "licensesrv",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
}

func Test_Codec(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		key := randomKey(t)
		claims := testClaims()

		encoded, err := EncodeClaims(claims, key)
		require.NoError(t, err)
		require.NotEmpty(t, encoded)

		decoded, err := DecodeClaims(encoded, key)
		require.NoError(t, err)
		require.Equal(t, claims, decoded, "claims must survive encode and decode untouched")
	})

	t.Run("compact five part form", func(t *testing.T) {
		key := randomKey(t)

		encoded, err := EncodeClaims(testClaims(), key)
		require.NoError(t, err)

		parts := strings.Split(encoded, ".")
		require.Len(t, parts, 5, "compact JWE has header, key, iv, ciphertext and tag parts")
		assert.Empty(t, parts[1], "direct encryption mode has no wrapped key")
	})

	t.Run("fresh iv per call", func(t *testing.T) {
		key := randomKey(t)
		claims := testClaims()

		first, err := EncodeClaims(claims, key)
		require.NoError(t, err)
		second, err := EncodeClaims(claims, key)
		require.NoError(t, err)

		assert.NotEqual(t, first, second, "same claims must never produce the same token")
	})

	t.Run("garbage is malformed", func(t *testing.T) {
		_, err := DecodeClaims("definitely not a token", randomKey(t))
		assert.ErrorIs(t, err, apperrors.ErrTokenMalformed)
	})

	t.Run("wrong key fails authentication", func(t *testing.T) {
		encoded, err := EncodeClaims(testClaims(), randomKey(t))
		require.NoError(t, err)

		_, err = DecodeClaims(encoded, randomKey(t))
		assert.ErrorIs(t, err, apperrors.ErrTokenAuthentication)
	})

	t.Run("tampered ciphertext fails authentication", func(t *testing.T) {
		key := randomKey(t)
		encoded, err := EncodeClaims(testClaims(), key)
		require.NoError(t, err)

		parts := strings.Split(encoded, ".")
		require.Len(t, parts, 5)

		// Flip one character inside the ciphertext part
		tampered := []byte(parts[3])
		if tampered[0] == 'A' {
			tampered[0] = 'B'
		} else {
			tampered[0] = 'A'
		}
		parts[3] = string(tampered)

		_, err = DecodeClaims(strings.Join(parts, "."), key)
		assert.Error(t, err, "tampering must never yield silently wrong claims")
		assert.ErrorIs(t, err, apperrors.ErrTokenAuthentication)
	})

	t.Run("tampered tag fails authentication", func(t *testing.T) {
		key := randomKey(t)
		encoded, err := EncodeClaims(testClaims(), key)
		require.NoError(t, err)

		parts := strings.Split(encoded, ".")
		require.Len(t, parts, 5)

		tampered := []byte(parts[4])
		if tampered[0] == 'A' {
			tampered[0] = 'B'
		} else {
			tampered[0] = 'A'
		}
		parts[4] = string(tampered)

		_, err = DecodeClaims(strings.Join(parts, "."), key)
		assert.ErrorIs(t, err, apperrors.ErrTokenAuthentication)
	})

	t.Run("payload that is not claims", func(t *testing.T) {
		key := randomKey(t)

		// Build a structurally valid token around a non JSON payload
		encrypter, err := jose.NewEncrypter(
			jose.A256GCM,
			jose.Recipient{Algorithm: jose.DIRECT, Key: key},
			nil,
		)
		require.NoError(t, err)

		object, err := encrypter.Encrypt([]byte("plain text, not claims"))
		require.NoError(t, err)
		encoded, err := object.CompactSerialize()
		require.NoError(t, err)

		_, err = DecodeClaims(encoded, key)
		assert.ErrorIs(t, err, apperrors.ErrTokenDecode)
	})
}
